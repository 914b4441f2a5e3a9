package domain

import "maps"

// Problem is a catalog entry together with its live rating statistics.
// Metric blocks are mutated only by the ledger.
type Problem struct {
	ID                  int
	Type                int
	Title               string
	URL                 string
	Contest             string
	Description         string
	Tags                []string
	KnowledgeDifficulty *string
	Meta                map[string]any

	blocks  [metricCount]AggregateBlock
	medians [metricCount]*float64
}

// Block returns the aggregate block for metric m.
func (p *Problem) Block(m Metric) *AggregateBlock { return &p.blocks[m] }

// SetMedian replaces the cached median for metric m.
func (p *Problem) SetMedian(m Metric, v *float64) { p.medians[m] = copyFloat(v) }

// ResetStats empties every block and median.
func (p *Problem) ResetStats() {
	for _, m := range Metrics {
		p.blocks[m].Reset()
		p.medians[m] = nil
	}
}

// Summary reports the current statistic for metric m.
func (p *Problem) Summary(m Metric) MetricSummary {
	b := &p.blocks[m]
	return MetricSummary{
		Count:  b.Count(),
		Mean:   b.Mean(),
		StdDev: b.StdDev(),
		Median: copyFloat(p.medians[m]),
	}
}

// Stats reports all four metric summaries.
func (p *Problem) Stats() ProblemStats {
	return ProblemStats{
		ProblemID:      p.ID,
		Thinking:       p.Summary(MetricThinking),
		Implementation: p.Summary(MetricImplementation),
		Overall:        p.Summary(MetricOverall),
		Quality:        p.Summary(MetricQuality),
	}
}

// Clone returns a deep copy safe to hand to callers outside the ledger lock.
func (p *Problem) Clone() *Problem {
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	c.KnowledgeDifficulty = cloneString(p.KnowledgeDifficulty)
	if p.Meta != nil {
		c.Meta = maps.Clone(p.Meta)
	}
	for _, m := range Metrics {
		c.medians[m] = copyFloat(p.medians[m])
	}
	return &c
}

// ProblemStats is the read model returned by GetProblemStats.
type ProblemStats struct {
	ProblemID      int           `json:"problem_id"`
	Thinking       MetricSummary `json:"thinking"`
	Implementation MetricSummary `json:"implementation"`
	Overall        MetricSummary `json:"overall"`
	Quality        MetricSummary `json:"quality"`
}

// ProblemPatch is a partial edit of catalog fields. Nil fields are left
// untouched. Patches are persisted in problem_overrides and re-applied on
// every load.
type ProblemPatch struct {
	Title               *string        `json:"title,omitempty"`
	URL                 *string        `json:"url,omitempty"`
	Contest             *string        `json:"contest,omitempty"`
	Description         *string        `json:"description,omitempty"`
	Tags                []string       `json:"tags,omitempty"`
	KnowledgeDifficulty *string        `json:"knowledge_difficulty,omitempty"`
	Meta                map[string]any `json:"meta,omitempty"`
}

// Apply writes the non-nil fields of the patch onto p.
func (pp ProblemPatch) Apply(p *Problem) {
	if pp.Title != nil {
		p.Title = *pp.Title
	}
	if pp.URL != nil {
		p.URL = *pp.URL
	}
	if pp.Contest != nil {
		p.Contest = *pp.Contest
	}
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.Tags != nil {
		p.Tags = append([]string(nil), pp.Tags...)
	}
	if pp.KnowledgeDifficulty != nil {
		p.KnowledgeDifficulty = cloneString(pp.KnowledgeDifficulty)
	}
	if pp.Meta != nil {
		p.Meta = maps.Clone(pp.Meta)
	}
}

// Merge layers next on top of pp and returns the combined patch.
func (pp ProblemPatch) Merge(next ProblemPatch) ProblemPatch {
	out := pp
	if next.Title != nil {
		out.Title = next.Title
	}
	if next.URL != nil {
		out.URL = next.URL
	}
	if next.Contest != nil {
		out.Contest = next.Contest
	}
	if next.Description != nil {
		out.Description = next.Description
	}
	if next.Tags != nil {
		out.Tags = next.Tags
	}
	if next.KnowledgeDifficulty != nil {
		out.KnowledgeDifficulty = next.KnowledgeDifficulty
	}
	if next.Meta != nil {
		out.Meta = next.Meta
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
