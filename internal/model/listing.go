package model

import (
	"sort"
	"time"
)

// ListingRecord is one scraped listing. Identity is the stable source-assigned
// listing ID; everything else is observation state from a single run.
type ListingRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	NightlyPrice float64   `json:"nightly_price"`
	Currency     string    `json:"currency"`
	Occupancy    int       `json:"occupancy,omitempty"`
	UserRating   *float64  `json:"user_rating,omitempty"`
	ReviewCount  int       `json:"review_count"`
	Description  string    `json:"description,omitempty"`
	Highlights   string    `json:"highlights,omitempty"`
	Available    bool      `json:"available"`
	LastSeen     time.Time `json:"last_seen"`

	// PossiblyIncomplete marks listings collected from a tile that was still
	// saturated at the minimum tile span, where the source may have truncated.
	PossiblyIncomplete bool `json:"possibly_incomplete,omitempty"`
}

// TileFailure records a tile whose query exhausted retries. The subtree under
// the tile is excluded from the result set but never silently dropped.
type TileFailure struct {
	Tile     GeoTile `json:"tile"`
	Attempts int     `json:"attempts"`
	Reason   string  `json:"reason"`
}

// ListingSet is the deduplicated union of listings observed in one discovery
// run, together with the tiles that failed.
type ListingSet struct {
	records  map[string]ListingRecord
	Failures []TileFailure
}

// NewListingSet returns an empty ListingSet.
func NewListingSet() *ListingSet {
	return &ListingSet{records: make(map[string]ListingRecord)}
}

// Add merges one observation into the set. Duplicate IDs collapse to a single
// record: the later observation wins unless it would replace a record carrying
// a user rating with one that has none.
func (s *ListingSet) Add(rec ListingRecord) {
	prev, ok := s.records[rec.ID]
	if ok && prev.UserRating != nil && rec.UserRating == nil {
		// Keep the rated observation, but a truncation flag from either
		// sighting sticks.
		if rec.PossiblyIncomplete {
			prev.PossiblyIncomplete = true
			s.records[rec.ID] = prev
		}
		return
	}
	if ok && prev.PossiblyIncomplete {
		rec.PossiblyIncomplete = true
	}
	s.records[rec.ID] = rec
}

// AddAll merges a batch of observations.
func (s *ListingSet) AddAll(recs []ListingRecord) {
	for _, r := range recs {
		s.Add(r)
	}
}

// Get returns the record for id, if present.
func (s *ListingSet) Get(id string) (ListingRecord, bool) {
	r, ok := s.records[id]
	return r, ok
}

// Len returns the number of unique listings.
func (s *ListingSet) Len() int {
	return len(s.records)
}

// Records returns all listings ordered by ID, so two sets built from the same
// observations compare equal regardless of tile completion order.
func (s *ListingSet) Records() []ListingRecord {
	out := make([]ListingRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Complete reports whether every tile query in the run succeeded.
func (s *ListingSet) Complete() bool {
	return len(s.Failures) == 0
}
