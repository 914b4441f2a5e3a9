package application

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/go-tally/internal/domain"
)

// TestVotes_StatsMatchRecomputationAfterEveryMutation drives random
// UpsertVote/DeleteVote sequences and, after every step, compares each
// problem's count, mean and median against the live votes.
func TestVotes_StatsMatchRecomputationAfterEveryMutation(t *testing.T) {
	ctx := context.Background()

	err := quick.Check(func(seed int64) bool {
		rng := rand.New(rand.NewSource(seed))
		f := newFixture(t, testConfig())

		for step := 0; step < 60; step++ {
			var desc string
			if rng.Intn(10) < 7 {
				in := VoteInput{
					UserID:         f.users[rng.Intn(len(f.users))],
					ProblemID:      f.problems[rng.Intn(len(f.problems))],
					Thinking:       randomRating(rng),
					Implementation: randomRating(rng),
				}
				if rng.Intn(3) > 0 {
					in.Quality = ptr(float64(rng.Intn(11) - 5))
				}
				if _, err := f.ledger.UpsertVote(ctx, in); err != nil {
					t.Logf("seed %d step %d: upsert: %v", seed, step, err)
					return false
				}
				desc = fmt.Sprintf("upsert user=%d problem=%d", in.UserID, in.ProblemID)
			} else {
				// Ids may point at deleted or never-issued votes.
				id := rng.Intn(12) + 1
				if _, err := f.ledger.DeleteVote(ctx, id); err != nil {
					t.Logf("seed %d step %d: delete: %v", seed, step, err)
					return false
				}
				desc = fmt.Sprintf("delete vote=%d", id)
			}

			for _, pid := range f.problems {
				if msg := statsMismatch(ctx, f.ledger, pid); msg != "" {
					t.Logf("seed %d step %d (%s): problem %d: %s", seed, step, desc, pid, msg)
					return false
				}
			}
		}
		return true
	}, &quick.Config{MaxCount: 40})
	assert.NoError(t, err, "aggregates should match a recomputation after every mutation")
}

func randomRating(rng *rand.Rand) float64 {
	if rng.Intn(2) == 0 {
		return float64(800 + rng.Intn(2701))
	}
	return 800 + rng.Float64()*2700
}

// statsMismatch recomputes every metric of a problem from its live votes
// and describes the first disagreement with GetProblemStats.
func statsMismatch(ctx context.Context, l *Ledger, pid int) string {
	votes, err := l.ListVotesForProblem(ctx, pid)
	if err != nil {
		return err.Error()
	}
	stats, err := l.GetProblemStats(ctx, pid)
	if err != nil {
		return err.Error()
	}

	values := map[domain.Metric][]float64{}
	for _, v := range votes {
		values[domain.MetricThinking] = append(values[domain.MetricThinking], v.Thinking)
		values[domain.MetricImplementation] = append(values[domain.MetricImplementation], v.Implementation)
		values[domain.MetricOverall] = append(values[domain.MetricOverall], v.Overall)
		if v.Quality != nil {
			values[domain.MetricQuality] = append(values[domain.MetricQuality], *v.Quality)
		}
	}
	summaries := map[domain.Metric]domain.MetricSummary{
		domain.MetricThinking:       stats.Thinking,
		domain.MetricImplementation: stats.Implementation,
		domain.MetricOverall:        stats.Overall,
		domain.MetricQuality:        stats.Quality,
	}

	for _, m := range domain.Metrics {
		got, want := summaries[m], values[m]
		if got.Count != len(want) {
			return fmt.Sprintf("%s count %d, want %d", m, got.Count, len(want))
		}
		if len(want) == 0 {
			if got.Mean != nil || got.Median != nil {
				return fmt.Sprintf("%s has statistics without votes", m)
			}
			continue
		}
		var sum float64
		for _, v := range want {
			sum += v
		}
		if got.Mean == nil || math.Abs(*got.Mean-sum/float64(len(want))) > 1e-6 {
			return fmt.Sprintf("%s mean %s, want %g", m, fmtFloat(got.Mean), sum/float64(len(want)))
		}
		median := domain.Median(want)
		if got.Median == nil || math.Abs(*got.Median-*median) > 1e-9 {
			return fmt.Sprintf("%s median %s, want %g", m, fmtFloat(got.Median), *median)
		}
	}
	return ""
}

func fmtFloat(v *float64) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%g", *v)
}
