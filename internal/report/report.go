// Package report renders run outcomes for humans: a completeness report over
// a snapshot, optional change and analysis sections, and workbook export.
package report

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/stayscope/stayscope-cli/internal/analysis"
	"github.com/stayscope/stayscope-cli/internal/diff"
	"github.com/stayscope/stayscope-cli/internal/model"
)

// TileFailureLine is one excluded tile in the completeness section.
type TileFailureLine struct {
	Tile     string `yaml:"tile"`
	Attempts int    `yaml:"attempts"`
	Reason   string `yaml:"reason"`
}

// AnalysisFailureLine is one listing the AI pipeline could not analyze.
type AnalysisFailureLine struct {
	ListingID string `yaml:"listing_id"`
	Stage     string `yaml:"stage"`
	Reason    string `yaml:"reason"`
}

// RunReport is the renderable summary of a discovery run and, when present,
// its analysis pass.
type RunReport struct {
	SearchName string `yaml:"search_name"`
	SnapshotID string `yaml:"snapshot_id"`
	TakenAt    string `yaml:"taken_at"`
	CheckIn    string `yaml:"check_in"`
	CheckOut   string `yaml:"check_out"`

	Listings           int  `yaml:"listings"`
	PossiblyIncomplete int  `yaml:"possibly_incomplete_listings"`
	Incomplete         bool `yaml:"incomplete"`

	ExcludedTiles []TileFailureLine `yaml:"excluded_tiles,omitempty"`

	Analyzed         int                   `yaml:"analyzed,omitempty"`
	AnalysisSkipped  int                   `yaml:"analysis_skipped,omitempty"`
	AnalysisFailures []AnalysisFailureLine `yaml:"analysis_failures,omitempty"`

	Changes *ChangeSummary `yaml:"changes,omitempty"`
}

// ChangeSummary aggregates a delta between two snapshots.
type ChangeSummary struct {
	FromID    string `yaml:"from_id"`
	ToID      string `yaml:"to_id"`
	New       int    `yaml:"new"`
	Removed   int    `yaml:"removed"`
	Changed   int    `yaml:"changed"`
	Unchanged int    `yaml:"unchanged"`
}

// Build assembles a RunReport from a snapshot and optional analysis output.
func Build(snap *model.Snapshot, ar *analysis.Report) *RunReport {
	r := &RunReport{
		SearchName: snap.SearchName,
		SnapshotID: snap.ID,
		TakenAt:    snap.TakenAt.Format("2006-01-02 15:04:05 UTC"),
		CheckIn:    snap.CheckIn,
		CheckOut:   snap.CheckOut,
		Listings:   len(snap.Listings),
		Incomplete: snap.Incomplete,
	}
	for _, l := range snap.Listings {
		if l.PossiblyIncomplete {
			r.PossiblyIncomplete++
		}
	}
	for _, f := range snap.Failures {
		r.ExcludedTiles = append(r.ExcludedTiles, TileFailureLine{
			Tile:     f.Tile.String(),
			Attempts: f.Attempts,
			Reason:   f.Reason,
		})
	}
	if ar != nil {
		r.Analyzed = len(ar.Analyses)
		r.AnalysisSkipped = ar.Skipped
		for _, f := range ar.Failures {
			r.AnalysisFailures = append(r.AnalysisFailures, AnalysisFailureLine{
				ListingID: f.ListingID,
				Stage:     f.Stage,
				Reason:    f.Err.Error(),
			})
		}
	}
	return r
}

// WithDelta attaches a change summary computed from a delta.
func (r *RunReport) WithDelta(d *diff.Delta) *RunReport {
	r.Changes = &ChangeSummary{
		FromID:    d.FromID,
		ToID:      d.ToID,
		New:       d.Count(diff.KindNew),
		Removed:   d.Count(diff.KindRemoved),
		Changed:   d.Count(diff.KindChanged),
		Unchanged: d.Count(diff.KindUnchanged),
	}
	return r
}

// WriteYAML renders the report as YAML.
func (r *RunReport) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	return eris.Wrap(enc.Close(), "report: close yaml encoder")
}

// WriteText renders the report as plain text.
func (r *RunReport) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Search:    %s\n", r.SearchName)
	fmt.Fprintf(w, "Snapshot:  %s (%s)\n", r.SnapshotID, r.TakenAt)
	fmt.Fprintf(w, "Stay:      %s to %s\n", r.CheckIn, r.CheckOut)
	fmt.Fprintf(w, "Listings:  %d\n", r.Listings)
	if r.PossiblyIncomplete > 0 {
		fmt.Fprintf(w, "  possibly incomplete (saturated floor tiles): %d\n", r.PossiblyIncomplete)
	}
	if r.Incomplete {
		fmt.Fprintln(w, "  run was cancelled before covering the full area")
	}
	if len(r.ExcludedTiles) > 0 {
		fmt.Fprintf(w, "Excluded tiles: %d\n", len(r.ExcludedTiles))
		for _, t := range r.ExcludedTiles {
			fmt.Fprintf(w, "  %s after %d attempts: %s\n", t.Tile, t.Attempts, t.Reason)
		}
	}
	if r.Analyzed > 0 || len(r.AnalysisFailures) > 0 || r.AnalysisSkipped > 0 {
		fmt.Fprintf(w, "Analyzed:  %d (skipped %d, failed %d)\n",
			r.Analyzed, r.AnalysisSkipped, len(r.AnalysisFailures))
		for _, f := range r.AnalysisFailures {
			fmt.Fprintf(w, "  %s failed at %s: %s\n", f.ListingID, f.Stage, f.Reason)
		}
	}
	if r.Changes != nil {
		c := r.Changes
		fmt.Fprintf(w, "Changes since %s: %d new, %d removed, %d changed, %d unchanged\n",
			c.FromID, c.New, c.Removed, c.Changed, c.Unchanged)
	}
	return nil
}
