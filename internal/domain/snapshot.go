package domain

// Snapshot is the persisted form of every entity the ledger owns. It is
// written and read as a whole.
type Snapshot struct {
	Problems         []ProblemRecord         `json:"problems"`
	ProblemOverrides map[string]ProblemPatch `json:"problem_overrides"`
	Users            []User                  `json:"users"`
	Votes            []Vote                  `json:"votes"`
	Reports          []Report                `json:"reports"`

	NextVoteID    int `json:"next_vote_id"`
	NextReportID  int `json:"next_report_id"`
	NextUserID    int `json:"next_user_id"`
	NextProblemID int `json:"next_problem_id"`
}

// NewSnapshot returns an empty snapshot with all counters at 1.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		ProblemOverrides: make(map[string]ProblemPatch),
		NextVoteID:       1,
		NextReportID:     1,
		NextUserID:       1,
		NextProblemID:    1,
	}
}

// ProblemRecord is the flattened catalog row. Each metric persists its
// summary as cnt_*, avg_*, sd_* and med_*; the aggregate block is
// reconstructed from these on load.
type ProblemRecord struct {
	ID                  int            `json:"id"`
	Type                int            `json:"type"`
	Title               string         `json:"title"`
	URL                 string         `json:"url"`
	Contest             string         `json:"contest"`
	Description         string         `json:"description"`
	Tags                []string       `json:"tags"`
	KnowledgeDifficulty *string        `json:"knowledge_difficulty"`
	Meta                map[string]any `json:"meta"`

	CntThinking int      `json:"cnt_thinking"`
	AvgThinking *float64 `json:"avg_thinking"`
	SdThinking  *float64 `json:"sd_thinking"`
	MedThinking *float64 `json:"med_thinking"`

	CntImplementation int      `json:"cnt_implementation"`
	AvgImplementation *float64 `json:"avg_implementation"`
	SdImplementation  *float64 `json:"sd_implementation"`
	MedImplementation *float64 `json:"med_implementation"`

	CntOverall int      `json:"cnt_overall"`
	AvgOverall *float64 `json:"avg_overall"`
	SdOverall  *float64 `json:"sd_overall"`
	MedOverall *float64 `json:"med_overall"`

	CntQuality int      `json:"cnt_quality"`
	AvgQuality *float64 `json:"avg_quality"`
	SdQuality  *float64 `json:"sd_quality"`
	MedQuality *float64 `json:"med_quality"`
}

func (r *ProblemRecord) metricFields(m Metric) (cnt *int, avg, sd, med **float64) {
	switch m {
	case MetricThinking:
		return &r.CntThinking, &r.AvgThinking, &r.SdThinking, &r.MedThinking
	case MetricImplementation:
		return &r.CntImplementation, &r.AvgImplementation, &r.SdImplementation, &r.MedImplementation
	case MetricOverall:
		return &r.CntOverall, &r.AvgOverall, &r.SdOverall, &r.MedOverall
	default:
		return &r.CntQuality, &r.AvgQuality, &r.SdQuality, &r.MedQuality
	}
}

// Problem rebuilds a live problem from the record, seeding each aggregate
// block from the persisted count, mean and stddev.
func (r ProblemRecord) Problem() *Problem {
	p := &Problem{
		ID:                  r.ID,
		Type:                r.Type,
		Title:               r.Title,
		URL:                 r.URL,
		Contest:             r.Contest,
		Description:         r.Description,
		Tags:                append([]string(nil), r.Tags...),
		KnowledgeDifficulty: cloneString(r.KnowledgeDifficulty),
		Meta:                r.Meta,
	}
	for _, m := range Metrics {
		cnt, avg, sd, med := r.metricFields(m)
		p.blocks[m] = SeedAggregateBlock(*cnt, *avg, *sd)
		if p.blocks[m].Count() > 0 {
			p.medians[m] = copyFloat(*med)
		}
	}
	return p
}

// Record flattens p for persistence.
func (p *Problem) Record() ProblemRecord {
	r := ProblemRecord{
		ID:                  p.ID,
		Type:                p.Type,
		Title:               p.Title,
		URL:                 p.URL,
		Contest:             p.Contest,
		Description:         p.Description,
		Tags:                append([]string(nil), p.Tags...),
		KnowledgeDifficulty: cloneString(p.KnowledgeDifficulty),
		Meta:                p.Meta,
	}
	for _, m := range Metrics {
		s := p.Summary(m)
		cnt, avg, sd, med := r.metricFields(m)
		*cnt, *avg, *sd, *med = s.Count, s.Mean, s.StdDev, s.Median
	}
	return r
}
