package application

import (
	"context"
	"log/slog"
	"maps"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ahrav/go-tally/internal/domain"
)

// CreateProblem adds a problem to the catalog with empty statistics.
func (l *Ledger) CreateProblem(ctx context.Context, in ProblemInput) (p *domain.Problem, err error) {
	ctx, finish := l.observer.Begin(ctx, "create_problem")
	defer func() { finish(err) }()

	in.Title = strings.TrimSpace(in.Title)
	if err := validateStruct(l.validate, "problem", in); err != nil {
		return nil, err
	}
	unlock, err := l.beginWrite(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p = l.createProblemLocked(in)
	return p.Clone(), l.persistLocked(ctx)
}

func (l *Ledger) createProblemLocked(in ProblemInput) *domain.Problem {
	s := l.st
	p := &domain.Problem{
		ID:                  s.nextProblemID,
		Type:                in.Type,
		Title:               in.Title,
		URL:                 in.URL,
		Contest:             in.Contest,
		Description:         in.Description,
		Tags:                append([]string(nil), in.Tags...),
		KnowledgeDifficulty: in.KnowledgeDifficulty,
	}
	if in.Meta != nil {
		p.Meta = maps.Clone(in.Meta)
	}
	s.nextProblemID++
	s.problems[p.ID] = p
	return p
}

// ApplyProblemEdit patches catalog fields of a problem and records the
// patch in problem_overrides so it survives catalog reseeding.
func (l *Ledger) ApplyProblemEdit(ctx context.Context, problemID int, patch domain.ProblemPatch) (err error) {
	ctx, finish := l.observer.Begin(ctx, "apply_problem_edit")
	defer func() { finish(err) }()

	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		ve := domain.NewValidationError("problem")
		ve.AddError("title cannot be empty")
		return ve
	}
	unlock, err := l.beginWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	p, ok := l.st.problems[problemID]
	if !ok {
		return domain.NewNotFoundError("problem", problemID)
	}
	patch.Apply(p)
	key := strconv.Itoa(problemID)
	l.st.overrides[key] = l.st.overrides[key].Merge(patch)
	return l.persistLocked(ctx)
}

// DeleteProblem removes a problem, hard-deletes all of its vote rows and
// purges reports on those votes.
func (l *Ledger) DeleteProblem(ctx context.Context, problemID int) (err error) {
	ctx, finish := l.observer.Begin(ctx, "delete_problem")
	defer func() { finish(err) }()

	unlock, err := l.beginWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	s := l.st
	if _, ok := s.problems[problemID]; !ok {
		return domain.NewNotFoundError("problem", problemID)
	}
	ids := make(map[int]struct{})
	for id, v := range s.votes {
		if v.ProblemID != problemID {
			continue
		}
		s.unindex(v)
		delete(s.votes, id)
		ids[id] = struct{}{}
	}
	s.purgeReports(ids)
	delete(s.problems, problemID)
	delete(s.overrides, strconv.Itoa(problemID))
	l.logger.Info("problem deleted", slog.Int("problem_id", problemID), slog.Int("votes_removed", len(ids)))
	return l.persistLocked(ctx)
}

// RegisterUser creates a user. Usernames are unique case-insensitively.
func (l *Ledger) RegisterUser(ctx context.Context, in UserInput) (u domain.User, err error) {
	ctx, finish := l.observer.Begin(ctx, "register_user")
	defer func() { finish(err) }()

	in.Username = strings.TrimSpace(in.Username)
	if err := validateStruct(l.validate, "user", in); err != nil {
		return domain.User{}, err
	}
	unlock, err := l.beginWrite(ctx)
	if err != nil {
		return domain.User{}, err
	}
	defer unlock()

	if _, ok := l.findUserLocked(in.Username); ok {
		return domain.User{}, domain.ErrDuplicateUser
	}
	user := l.createUserLocked(in)
	return *user, l.persistLocked(ctx)
}

func (l *Ledger) createUserLocked(in UserInput) *domain.User {
	s := l.st
	u := &domain.User{
		ID:           s.nextUserID,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Info:         in.Info,
		LuoguID:      in.LuoguID,
		Approved:     in.Approved,
		Roles:        []string{},
		CreatedAt:    l.now(),
	}
	s.nextUserID++
	s.users[u.ID] = u
	return u
}

// FindUserByUsername looks a user up case-insensitively.
func (l *Ledger) FindUserByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	unlock, err := l.beginRead(ctx)
	if err != nil {
		return domain.User{}, false, err
	}
	defer unlock()

	u, ok := l.findUserLocked(username)
	if !ok {
		return domain.User{}, false, nil
	}
	return *u, true, nil
}

func (l *Ledger) findUserLocked(username string) (*domain.User, bool) {
	folder := cases.Fold()
	want := folder.String(strings.TrimSpace(username))
	for _, u := range l.st.users {
		if folder.String(u.Username) == want {
			return u, true
		}
	}
	return nil, false
}

// Rebuild discards every aggregate block and median and replays all live
// votes. Use it when persisted summaries may be stale or absent.
func (l *Ledger) Rebuild(ctx context.Context) (err error) {
	ctx, finish := l.observer.Begin(ctx, "rebuild")
	defer func() { finish(err) }()

	unlock, err := l.beginWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	l.rebuildLocked()
	return l.persistLocked(ctx)
}

func (l *Ledger) rebuildLocked() {
	s := l.st
	for _, p := range s.problems {
		p.ResetStats()
	}
	for _, v := range s.live {
		s.addContribution(v)
	}
	for id := range s.problems {
		s.recomputeMedians(id)
	}
	l.logger.Info("aggregates rebuilt", slog.Int("problems", len(s.problems)), slog.Int("live_votes", len(s.live)))
}
