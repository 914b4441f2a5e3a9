package domain

import "time"

// Vote is one user's rating of one problem. Overall is always derived from
// Thinking and Implementation with ComputeOverall.
type Vote struct {
	ID             int       `json:"id"`
	UserID         int       `json:"user_id"`
	ProblemID      int       `json:"problem_id"`
	Thinking       float64   `json:"thinking"`
	Implementation float64   `json:"implementation"`
	Overall        float64   `json:"overall"`
	Quality        *float64  `json:"quality"`
	Comment        string    `json:"comment"`
	Public         bool      `json:"public"`
	Deleted        bool      `json:"deleted"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Value returns the vote's contribution to metric m. The second result is
// false when the vote carries no value for m (an absent quality).
func (v *Vote) Value(m Metric) (float64, bool) {
	switch m {
	case MetricThinking:
		return v.Thinking, true
	case MetricImplementation:
		return v.Implementation, true
	case MetricOverall:
		return v.Overall, true
	case MetricQuality:
		if v.Quality == nil {
			return 0, false
		}
		return *v.Quality, true
	default:
		return 0, false
	}
}

// Clone returns a copy that shares no pointers with v.
func (v *Vote) Clone() Vote {
	c := *v
	c.Quality = copyFloat(v.Quality)
	return c
}

// Report is a complaint about a vote. VoteOwnerID is captured when the
// report is filed so it survives later edits of the vote.
type Report struct {
	ID          int       `json:"id"`
	VoteID      int       `json:"vote_id"`
	ReporterID  int       `json:"reporter_id"`
	VoteOwnerID int       `json:"vote_owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is an account that may cast votes and file reports.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Info         string    `json:"info"`
	LuoguID      string    `json:"luoguid"`
	IsAdmin      bool      `json:"is_admin"`
	Approved     bool      `json:"approved"`
	Banned       bool      `json:"banned"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}
