package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahrav/go-tally/internal/domain"
)

// UpsertVote records a user's rating of a problem. An existing live vote
// for the same (user, problem) pair is updated in place: its stored values
// are first removed from the problem's aggregate blocks, then the new
// values are added. Otherwise a new vote is created with the next id.
//
// Validation and existence checks happen before any state changes. A
// *PersistError means the vote was recorded in memory but not written.
func (l *Ledger) UpsertVote(ctx context.Context, in VoteInput) (vote domain.Vote, err error) {
	ctx, finish := l.observer.Begin(ctx, "upsert_vote")
	defer func() { finish(err) }()

	if err := l.validateVote(in); err != nil {
		return domain.Vote{}, err
	}
	unlock, err := l.beginWrite(ctx)
	if err != nil {
		return domain.Vote{}, err
	}
	defer unlock()

	if _, ok := l.st.problems[in.ProblemID]; !ok {
		return domain.Vote{}, domain.NewNotFoundError("problem", in.ProblemID)
	}
	if _, ok := l.st.users[in.UserID]; !ok {
		return domain.Vote{}, domain.NewNotFoundError("user", in.UserID)
	}

	v, _ := l.upsertLocked(in, l.now())
	return v.Clone(), l.persistLocked(ctx)
}

// upsertLocked applies a validated vote and refreshes medians. created
// reports whether a new vote row was inserted.
func (l *Ledger) upsertLocked(in VoteInput, now time.Time) (v *domain.Vote, created bool) {
	s := l.st
	overall := domain.ComputeOverall(in.Thinking, in.Implementation)
	var quality *float64
	if in.Quality != nil {
		q := *in.Quality
		quality = &q
	}

	if existing, ok := s.live[voteKey{in.UserID, in.ProblemID}]; ok {
		s.removeContribution(existing)
		existing.Thinking = in.Thinking
		existing.Implementation = in.Implementation
		existing.Overall = overall
		existing.Quality = quality
		existing.Comment = in.Comment
		existing.Public = in.Public
		existing.UpdatedAt = now
		s.addContribution(existing)
		s.recomputeMedians(in.ProblemID)
		return existing, false
	}

	v = &domain.Vote{
		ID:             s.nextVoteID,
		UserID:         in.UserID,
		ProblemID:      in.ProblemID,
		Thinking:       in.Thinking,
		Implementation: in.Implementation,
		Overall:        overall,
		Quality:        quality,
		Comment:        in.Comment,
		Public:         in.Public,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.nextVoteID++
	s.votes[v.ID] = v
	s.index(v)
	s.addContribution(v)
	s.recomputeMedians(in.ProblemID)
	return v, true
}

// DeleteVote retires a live vote, reverses its contribution exactly once
// and purges every report that references it. It returns false when the
// vote does not exist or is already deleted.
func (l *Ledger) DeleteVote(ctx context.Context, voteID int) (deleted bool, err error) {
	ctx, finish := l.observer.Begin(ctx, "delete_vote")
	defer func() { finish(err) }()

	unlock, err := l.beginWrite(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	v, ok := l.st.votes[voteID]
	if !ok || v.Deleted {
		return false, nil
	}
	l.retireLocked([]*domain.Vote{v}, nil)
	return true, l.persistLocked(ctx)
}

// DeleteVotesForUser retires every live vote owned by userID and returns
// how many were retired. In purge mode rows already soft-deleted for the
// user are removed too.
func (l *Ledger) DeleteVotesForUser(ctx context.Context, userID int) (n int, err error) {
	ctx, finish := l.observer.Begin(ctx, "delete_votes_for_user")
	defer func() { finish(err) }()

	unlock, err := l.beginWrite(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	var live, dead []*domain.Vote
	for _, v := range l.st.votes {
		if v.UserID != userID {
			continue
		}
		if v.Deleted {
			dead = append(dead, v)
		} else {
			live = append(live, v)
		}
	}
	if len(live) == 0 && (l.cfg.DeleteMode != DeletePurge || len(dead) == 0) {
		return 0, nil
	}
	l.retireLocked(live, dead)
	l.logger.Info("cleared votes for user", slog.Int("user_id", userID), slog.Int("count", len(live)))
	return len(live), l.persistLocked(ctx)
}

// DeleteVotesBulk retires the live votes among voteIDs and returns how many
// were retired. Unknown and already-deleted ids are ignored.
func (l *Ledger) DeleteVotesBulk(ctx context.Context, voteIDs []int) (n int, err error) {
	ctx, finish := l.observer.Begin(ctx, "delete_votes_bulk")
	defer func() { finish(err) }()

	if len(voteIDs) == 0 {
		return 0, nil
	}
	unlock, err := l.beginWrite(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	seen := make(map[int]struct{}, len(voteIDs))
	var live []*domain.Vote
	for _, id := range voteIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if v, ok := l.st.votes[id]; ok && !v.Deleted {
			live = append(live, v)
		}
	}
	if len(live) == 0 {
		return 0, nil
	}
	l.retireLocked(live, nil)
	return len(live), l.persistLocked(ctx)
}

// retireLocked reverses the contribution of each live vote, applies the
// configured delete mode, removes rows in dead when purging, then runs one
// report cascade and one median pass per affected problem.
func (l *Ledger) retireLocked(live, dead []*domain.Vote) {
	s := l.st
	now := l.now()
	ids := make(map[int]struct{}, len(live)+len(dead))
	problems := make(map[int]struct{})

	for _, v := range live {
		s.removeContribution(v)
		s.unindex(v)
		ids[v.ID] = struct{}{}
		problems[v.ProblemID] = struct{}{}
		if l.cfg.DeleteMode == DeletePurge {
			delete(s.votes, v.ID)
			continue
		}
		v.Deleted = true
		v.UpdatedAt = now
	}
	if l.cfg.DeleteMode == DeletePurge {
		for _, v := range dead {
			ids[v.ID] = struct{}{}
			delete(s.votes, v.ID)
		}
	}

	s.purgeReports(ids)
	s.recomputeAllMedians(problems)
}

// ReportVote files a complaint by reporterID against a live vote. It fails
// with a NotFoundError when the vote is absent or deleted, and with a
// DuplicateReportError when the reporter already reported it.
func (l *Ledger) ReportVote(ctx context.Context, voteID, reporterID int) (report domain.Report, err error) {
	ctx, finish := l.observer.Begin(ctx, "report_vote")
	defer func() { finish(err) }()

	unlock, err := l.beginWrite(ctx)
	if err != nil {
		return domain.Report{}, err
	}
	defer unlock()

	s := l.st
	v, ok := s.votes[voteID]
	if !ok || v.Deleted {
		return domain.Report{}, domain.NewNotFoundError("vote", voteID)
	}
	if _, ok := s.users[reporterID]; !ok {
		return domain.Report{}, domain.NewNotFoundError("user", reporterID)
	}
	key := reportKey{voteID, reporterID}
	if _, dup := s.reported[key]; dup {
		return domain.Report{}, &domain.DuplicateReportError{VoteID: voteID, ReporterID: reporterID}
	}
	now := l.now()
	if !l.limiter.allow(reporterID, now) {
		return domain.Report{}, domain.ErrRateLimited
	}

	r := &domain.Report{
		ID:          s.nextReportID,
		VoteID:      voteID,
		ReporterID:  reporterID,
		VoteOwnerID: v.UserID,
		CreatedAt:   now,
	}
	s.nextReportID++
	s.reports[r.ID] = r
	s.reported[key] = r.ID
	return *r, l.persistLocked(ctx)
}
