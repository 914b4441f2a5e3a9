package application

import "github.com/ahrav/go-tally/internal/domain"

// recomputeMedians refreshes every metric median of a problem from its
// live votes. It runs after each vote mutation touching the problem.
//
// This is a full recomputation: O(n log n) in the problem's live vote
// count per call. Per-problem vote counts are small relative to the
// corpus, so an incremental order-statistics structure is not kept.
func (s *state) recomputeMedians(problemID int) {
	p, ok := s.problems[problemID]
	if !ok {
		return
	}
	bucket := s.byProblem[problemID]
	for _, m := range domain.Metrics {
		values := make([]float64, 0, len(bucket))
		for _, v := range bucket {
			if val, ok := v.Value(m); ok {
				values = append(values, val)
			}
		}
		p.SetMedian(m, domain.Median(values))
	}
}

// recomputeAllMedians refreshes medians for every problem in ids.
func (s *state) recomputeAllMedians(ids map[int]struct{}) {
	for id := range ids {
		s.recomputeMedians(id)
	}
}
