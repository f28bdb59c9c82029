package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchFingerprint_Deterministic(t *testing.T) {
	batch := []ReviewRecord{
		{ID: "r1", Text: "great stay"},
		{ID: "r2", Text: "noisy street"},
	}

	assert.Equal(t, BatchFingerprint(batch), BatchFingerprint(batch))
}

func TestBatchFingerprint_OrderAndContentSensitive(t *testing.T) {
	a := []ReviewRecord{{ID: "r1", Text: "great"}, {ID: "r2", Text: "ok"}}
	b := []ReviewRecord{{ID: "r2", Text: "ok"}, {ID: "r1", Text: "great"}}
	c := []ReviewRecord{{ID: "r1", Text: "great"}, {ID: "r2", Text: "ok!"}}

	assert.NotEqual(t, BatchFingerprint(a), BatchFingerprint(b))
	assert.NotEqual(t, BatchFingerprint(a), BatchFingerprint(c))
}

func TestBatchFingerprint_FieldBoundaries(t *testing.T) {
	// Shifting a byte between ID and text must change the hash.
	a := []ReviewRecord{{ID: "ab", Text: "c"}}
	b := []ReviewRecord{{ID: "a", Text: "bc"}}

	assert.NotEqual(t, BatchFingerprint(a), BatchFingerprint(b))
}

func TestReviewCorpus_Format(t *testing.T) {
	listing := ListingRecord{ID: "l1"}
	reviews := []ReviewRecord{
		{ID: "r1", Text: "Great location", Rating: 5, CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "r2", Text: "Cold shower", Rating: 2, CreatedAt: time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)},
	}

	corpus := ReviewCorpus(listing, reviews)
	assert.Equal(t, "2026-03-01 Great location Rating: 5; 2026-04-15 Cold shower Rating: 2", corpus)
}

func TestReviewCorpus_EmptyBatchUsesPlaceholder(t *testing.T) {
	corpus := ReviewCorpus(ListingRecord{ID: "l1"}, nil)
	assert.Equal(t, "No reviews available for this property.", corpus)
}

func TestReviewCorpus_AppendsHighlightsAndDescription(t *testing.T) {
	listing := ListingRecord{
		ID:          "l1",
		Highlights:  "Sea view",
		Description: "Two bedroom flat.",
	}

	corpus := ReviewCorpus(listing, nil)
	require.Contains(t, corpus, "No reviews available for this property.")
	assert.Contains(t, corpus, "\nHighlights: Sea view")
	assert.Contains(t, corpus, "\nDescription: Two bedroom flat.")
}
