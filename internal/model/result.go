package model

import "fmt"

// ResultKey addresses one cached AI result. Every component participates in
// the key: a new prompt template version or model name never reuses an entry
// computed under the old one.
type ResultKey struct {
	ListingID     string `json:"listing_id"`
	Fingerprint   string `json:"fingerprint"`
	PromptVersion string `json:"prompt_version"`
	Model         string `json:"model"`
}

func (k ResultKey) String() string {
	return k.ListingID + "/" + k.Fingerprint + "/" + k.PromptVersion + "/" + k.Model
}

// FocusSummary holds the bullet points extracted for one configured focus area.
// Bullets may be empty when the model had nothing to say for the area.
type FocusSummary struct {
	Focus   string   `json:"focus"`
	Bullets []string `json:"bullets"`
}

// SummaryResult is the per-listing review summary: one entry per configured
// focus area, in configuration order.
type SummaryResult struct {
	Focuses []FocusSummary `json:"focuses"`
}

// RatingResult is the per-listing AI rating, bounded by the configured scale.
type RatingResult struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale,omitempty"`
}

// AIResult is the cacheable value produced by one analysis operation. Exactly
// one of Summary or Rating is set, matching the prompt version under which the
// entry was computed.
type AIResult struct {
	Key     ResultKey      `json:"key"`
	Summary *SummaryResult `json:"summary,omitempty"`
	Rating  *RatingResult  `json:"rating,omitempty"`
}

// ListingAnalysis is the combined per-listing output of an analysis run.
type ListingAnalysis struct {
	ListingID string         `json:"listing_id"`
	Summary   *SummaryResult `json:"summary,omitempty"`
	Rating    *RatingResult  `json:"rating,omitempty"`
}

// AnalysisError marks one listing whose analysis failed after retries. The
// listing is excluded from aggregate output; the run continues.
type AnalysisError struct {
	ListingID string
	Stage     string // "fetch_reviews", "summarize", "rate"
	Err       error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed for listing %s at %s: %v", e.ListingID, e.Stage, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
