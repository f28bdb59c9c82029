package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCost(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 500_000}

	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 0.80+2.00, cost, 1e-9)

	assert.Zero(t, usage.EstimateCost("unknown-model"))
}

func TestAPIError_Retryable(t *testing.T) {
	for _, code := range []int{408, 429, 500, 529} {
		err := &APIError{StatusCode: code, Err: assert.AnError}
		assert.True(t, err.Retryable(), "status %d", code)
	}
	for _, code := range []int{400, 401, 404} {
		err := &APIError{StatusCode: code, Err: assert.AnError}
		assert.False(t, err.Retryable(), "status %d", code)
	}
}
