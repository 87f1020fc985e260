package internal

import "time"

type CollectionSource string

const (
	CollectionBritainElects CollectionSource = "britainelects"
	CollectionPollingReport CollectionSource = "uk_prh"
)

// RawPost is one announcement post as retrieved from the document store.
// CreatedAt carries no meaningful location: wall-clock fields are kept and the
// zone is dropped on import.
type RawPost struct {
	ID        string
	CreatedAt time.Time
	Body      []string
}

type PartyResult struct {
	Party      string
	Percentage int
	Change     int
}

// PartyShare is one flattened per-party column pair. Nil means the post did not
// mention the party.
type PartyShare struct {
	Party      string `json:"party"`
	Percentage *int   `json:"percentage"`
	Change     *int   `json:"change"`
}

type PollRecord struct {
	PostID           string
	ObservedAt       time.Time
	FieldworkStart   *time.Time
	FieldworkEnd     *time.Time
	EffectiveDate    time.Time
	Source           *string
	ChangeSummary    *string
	Shares           []PartyShare
	CollectionSource CollectionSource
}

// Share returns the flattened column pair for party, or false when the party
// is not part of the record's party set.
func (r PollRecord) Share(party string) (PartyShare, bool) {
	for _, s := range r.Shares {
		if s.Party == party {
			return s, true
		}
	}
	return PartyShare{}, false
}

type PostRow struct {
	ID        string
	CreatedAt string
	Body      string
	Hash      string
	RawRef    string
}

type FetchedPost struct {
	ID        string
	CreatedAt time.Time
	Text      string
	RawRef    string
}

type RecordFilter struct {
	Collection *CollectionSource
	From       *time.Time
	To         *time.Time
	Source     *string
	Limit      int
}

type RunCounts struct {
	Posts    int `json:"posts"`
	Records  int `json:"records"`
	Skipped  int `json:"skipped"`
	Dated    int `json:"dated"`
	Sourced  int `json:"sourced"`
	Historic int `json:"historic"`
}
