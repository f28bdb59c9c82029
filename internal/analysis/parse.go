package analysis

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/stayscope/stayscope-cli/internal/model"
)

// parseSummary extracts per-focus bullet points from the model's text. The
// result always has one entry per configured focus area in configuration
// order; a focus the model skipped gets empty bullets.
func parseSummary(text string, focusAreas []string) *model.SummaryResult {
	bullets := make(map[int][]string, len(focusAreas))

	current := -1
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if idx := matchFocusHeading(line, focusAreas); idx >= 0 {
			current = idx
			continue
		}
		if current >= 0 {
			if b, ok := strings.CutPrefix(line, "- "); ok {
				bullets[current] = append(bullets[current], strings.TrimSpace(b))
			} else if b, ok := strings.CutPrefix(line, "* "); ok {
				bullets[current] = append(bullets[current], strings.TrimSpace(b))
			}
		}
	}

	result := &model.SummaryResult{Focuses: make([]model.FocusSummary, len(focusAreas))}
	for i, f := range focusAreas {
		result.Focuses[i] = model.FocusSummary{Focus: f, Bullets: bullets[i]}
	}
	return result
}

// matchFocusHeading reports which focus area a line is a heading for, or -1.
// Headings may carry numbering, markdown emphasis, or a trailing colon.
func matchFocusHeading(line string, focusAreas []string) int {
	cleaned := strings.Trim(line, "*#")
	cleaned = headingNumber.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), ":")
	cleaned = strings.Trim(cleaned, "*")
	for i, f := range focusAreas {
		if strings.EqualFold(strings.TrimSpace(cleaned), f) {
			return i
		}
	}
	return -1
}

var (
	headingNumber = regexp.MustCompile(`^\s*\d+[.)]\s*`)
	ratingPattern = regexp.MustCompile(`(?i)rating\D*?(-?\d+(?:\.\d+)?)`)
)

// parseRating extracts the numeric score from a rating response. It prefers
// the requested JSON object and falls back to scanning for a number after the
// word "rating" when the model wrapped or dropped the JSON.
func parseRating(text string) (float64, error) {
	var obj struct {
		Rating    *float64 `json:"rating"`
		Rationale string   `json:"rationale"`
	}
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err == nil && obj.Rating != nil {
				return *obj.Rating, nil
			}
		}
	}

	if m := ratingPattern.FindStringSubmatch(text); m != nil {
		score, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return score, nil
		}
	}

	return 0, eris.Errorf("analysis: no rating found in response %q", truncate(text, 120))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
