package model

import "time"

// Snapshot is the immutable record of one completed discovery run for one
// search context. Snapshots are committed atomically, never mutated, and only
// ever superseded by the next run's snapshot.
type Snapshot struct {
	ID         string          `json:"id"`
	SearchName string          `json:"search_name"`
	TakenAt    time.Time       `json:"taken_at"`
	CheckIn    string          `json:"check_in,omitempty"`
	CheckOut   string          `json:"check_out,omitempty"`
	Listings   []ListingRecord `json:"listings"`
	Failures   []TileFailure   `json:"failures,omitempty"`

	// Incomplete marks a run that was cancelled or lost tiles to exhausted
	// retries. Work completed before the abort is retained as-is.
	Incomplete bool `json:"incomplete,omitempty"`
}

// Listing returns the record for id, if the snapshot observed it.
func (s *Snapshot) Listing(id string) (ListingRecord, bool) {
	for _, l := range s.Listings {
		if l.ID == id {
			return l, true
		}
	}
	return ListingRecord{}, false
}
