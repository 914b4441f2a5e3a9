package domain

// LegacyUser is one account from the legacy user export.
type LegacyUser struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Info         string `json:"info"`
	LuoguID      string `json:"luoguid"`
}

// LegacyVote is one rating from the legacy vote export. Legacy data has a
// single difficulty; Implementation, when present, overrides it for the
// implementation sub-rating.
type LegacyVote struct {
	Username       string   `json:"username"`
	Problem        string   `json:"problem"`
	Difficulty     float64  `json:"difficulty"`
	Implementation *float64 `json:"implementation,omitempty"`
	Quality        *float64 `json:"quality"`
	Comment        string   `json:"comment"`
	Public         bool     `json:"public"`
}

// LegacyBatch is the parsed content of one legacy import.
type LegacyBatch struct {
	Users []LegacyUser
	Votes []LegacyVote
	// URLs maps problem title to problem URL.
	URLs map[string]string
}

// LegacySummary counts what an import changed.
type LegacySummary struct {
	UsersCreated    int `json:"users_created"`
	UsersUpdated    int `json:"users_updated"`
	ProblemsCreated int `json:"problems_created"`
	ProblemsUpdated int `json:"problems_updated"`
	VotesImported   int `json:"votes_imported"`
	VotesUpdated    int `json:"votes_updated"`
	VotesUnchanged  int `json:"votes_unchanged"`
	Skipped         int `json:"skipped"`

	// NearDuplicates lists newly created titles that are within a small
	// edit distance of an existing legacy title.
	NearDuplicates []string `json:"near_duplicates,omitempty"`
}
