package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ReviewRecord is one guest review belonging to a single listing.
type ReviewRecord struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	Text      string    `json:"text"`
	Rating    int       `json:"rating,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BatchFingerprint computes a deterministic hash over the ordered review IDs
// and text content of a batch. Identical input batches always produce the same
// fingerprint, so it serves as the review-cache key component: unchanged
// reviews mean a cache hit on the next run.
func BatchFingerprint(reviews []ReviewRecord) string {
	h := sha256.New()
	for _, r := range reviews {
		h.Write([]byte(r.ID))
		h.Write([]byte{0x1f})
		h.Write([]byte(r.Text))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// noReviewsPlaceholder stands in for an empty review corpus so every listing
// still gets an analyzable text body.
const noReviewsPlaceholder = "No reviews available for this property."

// ReviewCorpus flattens a review batch into the text body fed to the analysis
// prompts: one "date text Rating: r" segment per review, followed by the
// listing's highlights and description when present.
func ReviewCorpus(listing ListingRecord, reviews []ReviewRecord) string {
	var b strings.Builder
	for i, r := range reviews {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s %s Rating: %d", r.CreatedAt.Format("2006-01-02"), r.Text, r.Rating)
	}
	if b.Len() == 0 {
		b.WriteString(noReviewsPlaceholder)
	}
	if listing.Highlights != "" {
		b.WriteString("\nHighlights: " + listing.Highlights)
	}
	if listing.Description != "" {
		b.WriteString("\nDescription: " + listing.Description)
	}
	return b.String()
}
