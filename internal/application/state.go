package application

import (
	"cmp"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"github.com/ahrav/go-tally/internal/domain"
)

type voteKey struct{ userID, problemID int }

type reportKey struct{ voteID, reporterID int }

// state is the ledger's in-memory catalog. It is rebuilt wholesale from a
// snapshot and otherwise mutated only under the ledger's write lock.
type state struct {
	problems  map[int]*domain.Problem
	users     map[int]*domain.User
	votes     map[int]*domain.Vote
	reports   map[int]*domain.Report
	overrides map[string]domain.ProblemPatch

	// live indexes non-deleted votes by (user, problem); at most one entry
	// per pair.
	live map[voteKey]*domain.Vote
	// byProblem indexes non-deleted votes per problem by vote id.
	byProblem map[int]map[int]*domain.Vote
	// reported maps a (vote, reporter) pair to its report id.
	reported map[reportKey]int

	nextVoteID    int
	nextReportID  int
	nextUserID    int
	nextProblemID int
}

func newEmptyState() *state {
	return &state{
		problems:      make(map[int]*domain.Problem),
		users:         make(map[int]*domain.User),
		votes:         make(map[int]*domain.Vote),
		reports:       make(map[int]*domain.Report),
		overrides:     make(map[string]domain.ProblemPatch),
		live:          make(map[voteKey]*domain.Vote),
		byProblem:     make(map[int]map[int]*domain.Vote),
		reported:      make(map[reportKey]int),
		nextVoteID:    1,
		nextReportID:  1,
		nextUserID:    1,
		nextProblemID: 1,
	}
}

// newState builds the catalog from snap. Aggregate blocks are seeded from
// the persisted summaries, not replayed from votes. Structural damage is
// repaired and logged: duplicate live votes for one pair keep the highest
// id, and reports pointing at missing or deleted votes are dropped.
func newState(snap *domain.Snapshot, logger *slog.Logger) *state {
	s := newEmptyState()
	if snap == nil {
		return s
	}

	for _, rec := range snap.Problems {
		s.problems[rec.ID] = rec.Problem()
	}
	for key, patch := range snap.ProblemOverrides {
		id, err := strconv.Atoi(key)
		if err != nil {
			logger.Warn("dropping problem override with invalid id", slog.String("key", key))
			continue
		}
		if p, ok := s.problems[id]; ok {
			patch.Apply(p)
			s.overrides[key] = patch
		}
	}

	for i := range snap.Users {
		u := snap.Users[i]
		s.users[u.ID] = &u
	}

	votes := slices.Clone(snap.Votes)
	slices.SortFunc(votes, func(a, b domain.Vote) int { return cmp.Compare(a.ID, b.ID) })
	for i := range votes {
		v := votes[i].Clone()
		if !v.Deleted {
			key := voteKey{v.UserID, v.ProblemID}
			if prev, ok := s.live[key]; ok {
				logger.Warn("retiring duplicate live vote",
					slog.Int("kept_vote_id", v.ID),
					slog.Int("retired_vote_id", prev.ID),
					slog.Int("user_id", v.UserID),
					slog.Int("problem_id", v.ProblemID))
				s.unindex(prev)
				prev.Deleted = true
			}
		}
		s.votes[v.ID] = &v
		if !v.Deleted {
			s.index(&v)
		}
	}

	dropped := 0
	for i := range snap.Reports {
		r := snap.Reports[i]
		v, ok := s.votes[r.VoteID]
		key := reportKey{r.VoteID, r.ReporterID}
		if !ok || v.Deleted {
			dropped++
			continue
		}
		if _, dup := s.reported[key]; dup {
			dropped++
			continue
		}
		s.reports[r.ID] = &r
		s.reported[key] = r.ID
	}
	if dropped > 0 {
		logger.Warn("dropped orphaned or duplicate reports", slog.Int("count", dropped))
	}

	s.nextVoteID = max(snap.NextVoteID, maxKey(s.votes)+1, 1)
	s.nextReportID = max(snap.NextReportID, maxKey(s.reports)+1, 1)
	s.nextUserID = max(snap.NextUserID, maxKey(s.users)+1, 1)
	s.nextProblemID = max(snap.NextProblemID, maxKey(s.problems)+1, 1)
	return s
}

func maxKey[V any](m map[int]V) int {
	best := 0
	for k := range m {
		best = max(best, k)
	}
	return best
}

// snapshot exports the full catalog, ordered by id for stable diffs.
func (s *state) snapshot() *domain.Snapshot {
	snap := &domain.Snapshot{
		Problems:         make([]domain.ProblemRecord, 0, len(s.problems)),
		ProblemOverrides: maps.Clone(s.overrides),
		Users:            make([]domain.User, 0, len(s.users)),
		Votes:            make([]domain.Vote, 0, len(s.votes)),
		Reports:          make([]domain.Report, 0, len(s.reports)),
		NextVoteID:       s.nextVoteID,
		NextReportID:     s.nextReportID,
		NextUserID:       s.nextUserID,
		NextProblemID:    s.nextProblemID,
	}
	for _, id := range slices.Sorted(maps.Keys(s.problems)) {
		snap.Problems = append(snap.Problems, s.problems[id].Record())
	}
	for _, id := range slices.Sorted(maps.Keys(s.users)) {
		snap.Users = append(snap.Users, *s.users[id])
	}
	for _, id := range slices.Sorted(maps.Keys(s.votes)) {
		snap.Votes = append(snap.Votes, s.votes[id].Clone())
	}
	for _, id := range slices.Sorted(maps.Keys(s.reports)) {
		snap.Reports = append(snap.Reports, *s.reports[id])
	}
	return snap
}

func (s *state) index(v *domain.Vote) {
	s.live[voteKey{v.UserID, v.ProblemID}] = v
	bucket, ok := s.byProblem[v.ProblemID]
	if !ok {
		bucket = make(map[int]*domain.Vote)
		s.byProblem[v.ProblemID] = bucket
	}
	bucket[v.ID] = v
}

func (s *state) unindex(v *domain.Vote) {
	key := voteKey{v.UserID, v.ProblemID}
	if cur, ok := s.live[key]; ok && cur.ID == v.ID {
		delete(s.live, key)
	}
	if bucket, ok := s.byProblem[v.ProblemID]; ok {
		delete(bucket, v.ID)
		if len(bucket) == 0 {
			delete(s.byProblem, v.ProblemID)
		}
	}
}

// liveVotes returns the non-deleted votes of a problem ordered by id.
func (s *state) liveVotes(problemID int) []*domain.Vote {
	bucket := s.byProblem[problemID]
	out := make([]*domain.Vote, 0, len(bucket))
	for _, id := range slices.Sorted(maps.Keys(bucket)) {
		out = append(out, bucket[id])
	}
	return out
}

// addContribution folds every metric value of v into its problem's blocks.
func (s *state) addContribution(v *domain.Vote) {
	p, ok := s.problems[v.ProblemID]
	if !ok {
		return
	}
	for _, m := range domain.Metrics {
		if val, ok := v.Value(m); ok {
			p.Block(m).Add(val)
		}
	}
}

// removeContribution reverses addContribution using the values stored on v.
func (s *state) removeContribution(v *domain.Vote) {
	p, ok := s.problems[v.ProblemID]
	if !ok {
		return
	}
	for _, m := range domain.Metrics {
		if val, ok := v.Value(m); ok {
			p.Block(m).Remove(val)
		}
	}
}

// purgeReports hard-deletes every report that references a vote in ids.
func (s *state) purgeReports(ids map[int]struct{}) int {
	if len(ids) == 0 {
		return 0
	}
	purged := 0
	for id, r := range s.reports {
		if _, hit := ids[r.VoteID]; !hit {
			continue
		}
		delete(s.reports, id)
		delete(s.reported, reportKey{r.VoteID, r.ReporterID})
		purged++
	}
	return purged
}
