package application

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/ahrav/go-tally/internal/domain"
)

// GetProblemStats returns the live statistics of a problem. Values are read
// from the maintained aggregates; nothing is recomputed.
func (l *Ledger) GetProblemStats(ctx context.Context, problemID int) (domain.ProblemStats, error) {
	unlock, err := l.beginRead(ctx)
	if err != nil {
		return domain.ProblemStats{}, err
	}
	defer unlock()

	p, ok := l.st.problems[problemID]
	if !ok {
		return domain.ProblemStats{}, domain.NewNotFoundError("problem", problemID)
	}
	return p.Stats(), nil
}

// GetProblem returns a copy of a catalog problem.
func (l *Ledger) GetProblem(ctx context.Context, problemID int) (*domain.Problem, error) {
	unlock, err := l.beginRead(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, ok := l.st.problems[problemID]
	if !ok {
		return nil, domain.NewNotFoundError("problem", problemID)
	}
	return p.Clone(), nil
}

// ListVotesForProblem returns the live votes of a problem ordered by id.
func (l *Ledger) ListVotesForProblem(ctx context.Context, problemID int) ([]domain.Vote, error) {
	unlock, err := l.beginRead(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, ok := l.st.problems[problemID]; !ok {
		return nil, domain.NewNotFoundError("problem", problemID)
	}
	live := l.st.liveVotes(problemID)
	out := make([]domain.Vote, 0, len(live))
	for _, v := range live {
		out = append(out, v.Clone())
	}
	return out, nil
}

// FindVoteByUserAndProblem returns the live vote of a user on a problem.
func (l *Ledger) FindVoteByUserAndProblem(ctx context.Context, userID, problemID int) (domain.Vote, bool, error) {
	unlock, err := l.beginRead(ctx)
	if err != nil {
		return domain.Vote{}, false, err
	}
	defer unlock()

	v, ok := l.st.live[voteKey{userID, problemID}]
	if !ok {
		return domain.Vote{}, false, nil
	}
	return v.Clone(), true, nil
}

// ListVotesForUser returns the live votes of a user ordered by id. A
// positive courseID restricts the result to problems of that course.
func (l *Ledger) ListVotesForUser(ctx context.Context, userID, courseID int) ([]domain.Vote, error) {
	unlock, err := l.beginRead(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []domain.Vote
	for _, id := range slices.Sorted(maps.Keys(l.st.votes)) {
		v := l.st.votes[id]
		if v.Deleted || v.UserID != userID {
			continue
		}
		p, ok := l.st.problems[v.ProblemID]
		if !ok {
			continue
		}
		if courseID > 0 && p.Type != courseID {
			continue
		}
		out = append(out, v.Clone())
	}
	return out, nil
}

// ListReports returns every report ordered by id.
func (l *Ledger) ListReports(ctx context.Context) ([]domain.Report, error) {
	unlock, err := l.beginRead(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := make([]domain.Report, 0, len(l.st.reports))
	for _, id := range slices.Sorted(maps.Keys(l.st.reports)) {
		out = append(out, *l.st.reports[id])
	}
	return out, nil
}

// ProblemExists implements ports.Catalog.
func (l *Ledger) ProblemExists(ctx context.Context, id int) bool {
	l.freshOrWarn(ctx)
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.st.problems[id]
	return ok
}

// UserExists implements ports.Catalog.
func (l *Ledger) UserExists(ctx context.Context, id int) bool {
	l.freshOrWarn(ctx)
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.st.users[id]
	return ok
}

// freshOrWarn reconciles for boolean lookups that cannot return an error;
// on failure the current memory is used.
func (l *Ledger) freshOrWarn(ctx context.Context) {
	if err := l.EnsureFresh(ctx); err != nil {
		l.logger.Warn("freshness check failed; serving in-memory state", slog.String("error", err.Error()))
	}
}
