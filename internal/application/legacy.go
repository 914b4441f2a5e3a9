package application

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-tally/internal/domain"
)

// nearDuplicateDistance is the largest edit distance at which a newly
// created legacy title is flagged against an existing one.
const nearDuplicateDistance = 2

// ImportLegacy merges a legacy export into the ledger. It is idempotent:
// users match case-insensitively by username, problems match by exact
// title within the legacy course, and votes match by (user, problem) and
// go through the same upsert path as live votes. Votes whose user or
// problem cannot be resolved, or that fail validation, are skipped.
//
// After merging, aggregates are rebuilt by full vote replay and the
// snapshot is written once.
func (l *Ledger) ImportLegacy(ctx context.Context, batch domain.LegacyBatch) (summary domain.LegacySummary, err error) {
	ctx, finish := l.observer.Begin(ctx, "import_legacy")
	defer func() { finish(err) }()

	unlock, err := l.beginWrite(ctx)
	if err != nil {
		return summary, err
	}
	defer unlock()

	folder := cases.Fold()
	usersByName := make(map[string]*domain.User, len(l.st.users))
	for _, u := range l.st.users {
		usersByName[folder.String(u.Username)] = u
	}
	l.mergeLegacyUsers(batch.Users, usersByName, folder, &summary)

	problemsByTitle := make(map[string]*domain.Problem)
	for _, p := range l.st.problems {
		if p.Type == l.cfg.LegacyCourseID {
			problemsByTitle[p.Title] = p
		}
	}
	l.mergeLegacyProblems(batch, problemsByTitle, &summary)

	now := l.now()
	for _, lv := range batch.Votes {
		u, ok := usersByName[folder.String(strings.TrimSpace(lv.Username))]
		if !ok {
			summary.Skipped++
			continue
		}
		p, ok := problemsByTitle[strings.TrimSpace(lv.Problem)]
		if !ok {
			summary.Skipped++
			continue
		}
		in := VoteInput{
			UserID:         u.ID,
			ProblemID:      p.ID,
			Thinking:       lv.Difficulty,
			Implementation: lv.Difficulty,
			Quality:        lv.Quality,
			Comment:        lv.Comment,
			Public:         lv.Public,
		}
		if lv.Implementation != nil {
			in.Implementation = *lv.Implementation
		}
		if err := l.validateVote(in); err != nil {
			l.logger.Debug("skipping legacy vote",
				slog.String("username", lv.Username),
				slog.String("problem", lv.Problem),
				slog.String("reason", err.Error()))
			summary.Skipped++
			continue
		}
		if existing, ok := l.st.live[voteKey{u.ID, p.ID}]; ok && sameVote(existing, in) {
			summary.VotesUnchanged++
			continue
		}
		if _, created := l.upsertLocked(in, now); created {
			summary.VotesImported++
		} else {
			summary.VotesUpdated++
		}
	}

	l.rebuildLocked()
	l.logger.Info("legacy import finished",
		slog.Int("users_created", summary.UsersCreated),
		slog.Int("users_updated", summary.UsersUpdated),
		slog.Int("problems_created", summary.ProblemsCreated),
		slog.Int("problems_updated", summary.ProblemsUpdated),
		slog.Int("votes_imported", summary.VotesImported),
		slog.Int("votes_updated", summary.VotesUpdated),
		slog.Int("skipped", summary.Skipped))
	return summary, l.persistLocked(ctx)
}

func (l *Ledger) mergeLegacyUsers(
	users []domain.LegacyUser,
	byName map[string]*domain.User,
	folder cases.Caser,
	summary *domain.LegacySummary,
) {
	for _, lu := range users {
		name := strings.TrimSpace(lu.Username)
		if name == "" {
			continue
		}
		key := folder.String(name)
		u, ok := byName[key]
		if !ok {
			byName[key] = l.createUserLocked(UserInput{
				Username:     name,
				PasswordHash: lu.PasswordHash,
				Info:         lu.Info,
				LuoguID:      lu.LuoguID,
				Approved:     true,
			})
			summary.UsersCreated++
			continue
		}
		changed := false
		fill := func(dst *string, src string) {
			if src != "" && *dst != src {
				*dst = src
				changed = true
			}
		}
		fill(&u.PasswordHash, lu.PasswordHash)
		fill(&u.Info, lu.Info)
		fill(&u.LuoguID, lu.LuoguID)
		if changed {
			summary.UsersUpdated++
		}
	}
}

func (l *Ledger) mergeLegacyProblems(
	batch domain.LegacyBatch,
	byTitle map[string]*domain.Problem,
	summary *domain.LegacySummary,
) {
	titles := make(map[string]struct{}, len(batch.URLs))
	for title := range batch.URLs {
		if t := strings.TrimSpace(title); t != "" {
			titles[t] = struct{}{}
		}
	}
	for _, v := range batch.Votes {
		if t := strings.TrimSpace(v.Problem); t != "" {
			titles[t] = struct{}{}
		}
	}

	for _, title := range slices.Sorted(maps.Keys(titles)) {
		url := strings.TrimSpace(batch.URLs[title])
		if p, ok := byTitle[title]; ok {
			if url != "" && p.URL != url {
				p.URL = url
				summary.ProblemsUpdated++
			}
			continue
		}
		if near := nearestTitle(title, byTitle); near != "" {
			l.logger.Warn("legacy title resembles an existing problem",
				slog.String("title", title), slog.String("existing", near))
			summary.NearDuplicates = append(summary.NearDuplicates, title)
		}
		byTitle[title] = l.createProblemLocked(ProblemInput{
			Type:  l.cfg.LegacyCourseID,
			Title: title,
			URL:   url,
		})
		summary.ProblemsCreated++
	}
}

// nearestTitle returns an existing title within nearDuplicateDistance
// edits of title, or "" when there is none.
func nearestTitle(title string, byTitle map[string]*domain.Problem) string {
	best, bestDist := "", nearDuplicateDistance+1
	for _, existing := range slices.Sorted(maps.Keys(byTitle)) {
		d := levenshtein.ComputeDistance(title, existing)
		if d > 0 && d < bestDist {
			best, bestDist = existing, d
		}
	}
	return best
}

func sameVote(v *domain.Vote, in VoteInput) bool {
	if v.Thinking != in.Thinking || v.Implementation != in.Implementation ||
		v.Comment != in.Comment || v.Public != in.Public {
		return false
	}
	switch {
	case v.Quality == nil && in.Quality == nil:
		return true
	case v.Quality == nil || in.Quality == nil:
		return false
	default:
		return *v.Quality == *in.Quality
	}
}
