// Package diff computes the classified difference between two listing
// snapshots. Diff is pure: it reads both snapshots and produces a Delta with
// no side effects.
package diff

import (
	"fmt"
	"math"
	"sort"

	"github.com/stayscope/stayscope-cli/internal/model"
)

// ChangeKind classifies one listing's transition between two snapshots.
type ChangeKind string

const (
	KindNew       ChangeKind = "new"
	KindRemoved   ChangeKind = "removed"
	KindChanged   ChangeKind = "changed"
	KindUnchanged ChangeKind = "unchanged"
)

// CurrencyRates maps ISO currency codes to their value in the search's
// reference currency. Prices are normalized through it before comparison.
type CurrencyRates map[string]float64

// FieldChange is one field-level difference on a changed listing.
type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Entry is the classified transition for one listing ID.
type Entry struct {
	ID     string        `json:"id"`
	Kind   ChangeKind    `json:"kind"`
	Fields []FieldChange `json:"fields,omitempty"`
}

// Delta is the classified difference between two snapshots for every listing
// ID present in either.
type Delta struct {
	FromID  string  `json:"from_id"`
	ToID    string  `json:"to_id"`
	Entries []Entry `json:"entries"`
}

// Count returns the number of entries with the given kind.
func (d *Delta) Count(kind ChangeKind) int {
	n := 0
	for _, e := range d.Entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Entry returns the entry for a listing ID, if present.
func (d *Delta) Entry(id string) (Entry, bool) {
	for _, e := range d.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Diff classifies every listing present in either snapshot. A listing only in
// b is new, only in a is removed; present in both it is changed when any
// compared field differs, else unchanged. Swapping a and b inverts new and
// removed and leaves each changed entry's field set identical with from/to
// swapped.
func Diff(a, b *model.Snapshot, rates CurrencyRates) *Delta {
	delta := &Delta{FromID: a.ID, ToID: b.ID}

	prev := make(map[string]model.ListingRecord, len(a.Listings))
	for _, l := range a.Listings {
		prev[l.ID] = l
	}
	next := make(map[string]model.ListingRecord, len(b.Listings))
	for _, l := range b.Listings {
		next[l.ID] = l
	}

	ids := make(map[string]struct{}, len(prev)+len(next))
	for id := range prev {
		ids[id] = struct{}{}
	}
	for id := range next {
		ids[id] = struct{}{}
	}

	for id := range ids {
		was, inPrev := prev[id]
		is, inNext := next[id]

		switch {
		case !inPrev:
			delta.Entries = append(delta.Entries, Entry{ID: id, Kind: KindNew})
		case !inNext:
			delta.Entries = append(delta.Entries, Entry{ID: id, Kind: KindRemoved})
		default:
			fields := compareListings(was, is, rates)
			kind := KindUnchanged
			if len(fields) > 0 {
				kind = KindChanged
			}
			delta.Entries = append(delta.Entries, Entry{ID: id, Kind: kind, Fields: fields})
		}
	}

	sort.Slice(delta.Entries, func(i, j int) bool { return delta.Entries[i].ID < delta.Entries[j].ID })
	return delta
}

// compareListings diffs the monitored fields in a fixed order so the field
// set is direction-independent.
func compareListings(was, is model.ListingRecord, rates CurrencyRates) []FieldChange {
	var fields []FieldChange

	// Prices compare in the reference currency; a changed currency with an
	// identical numeric amount is still a change, reported on the currency
	// field below.
	if !priceEqual(was, is, rates) {
		fields = append(fields, FieldChange{
			Field: "price",
			From:  formatPrice(was.NightlyPrice, was.Currency),
			To:    formatPrice(is.NightlyPrice, is.Currency),
		})
	}

	if was.Currency != is.Currency {
		fields = append(fields, FieldChange{Field: "currency", From: was.Currency, To: is.Currency})
	}

	if !ratingEqual(was.UserRating, is.UserRating) {
		fields = append(fields, FieldChange{
			Field: "rating",
			From:  formatRating(was.UserRating),
			To:    formatRating(is.UserRating),
		})
	}

	if was.Available != is.Available {
		fields = append(fields, FieldChange{
			Field: "availability",
			From:  fmt.Sprintf("%t", was.Available),
			To:    fmt.Sprintf("%t", is.Available),
		})
	}

	return fields
}

const priceEpsilon = 1e-9

func priceEqual(was, is model.ListingRecord, rates CurrencyRates) bool {
	return math.Abs(normalize(was.NightlyPrice, was.Currency, rates)-
		normalize(is.NightlyPrice, is.Currency, rates)) < priceEpsilon
}

// normalize converts an amount into the reference currency. An unknown code
// falls back to the raw amount; the currency field diff still surfaces the
// code change.
func normalize(amount float64, code string, rates CurrencyRates) float64 {
	if rate, ok := rates[code]; ok && rate > 0 {
		return amount * rate
	}
	return amount
}

func ratingEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func formatPrice(amount float64, code string) string {
	return fmt.Sprintf("%.2f %s", amount, code)
}

func formatRating(r *float64) string {
	if r == nil {
		return "none"
	}
	return fmt.Sprintf("%.2f", *r)
}
