package analysis

import (
	"fmt"
	"strings"
)

// renderSummarySystem builds the summary system prompt by enumerating the
// configured focus areas into the role prompt by position.
func renderSummarySystem(rolePrompt string, focusAreas []string) string {
	var b strings.Builder
	b.WriteString(rolePrompt)
	b.WriteString("\n\nAreas:\n")
	for i, f := range focusAreas {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f)
	}
	b.WriteString("\nFormat your answer as the area name on its own line followed by its bullet points, one per line starting with \"- \".")
	return b.String()
}

// renderRatingSystem builds the rating system prompt: the role prompt, the
// criteria, the allowed scale, and the required response shape.
func renderRatingSystem(rolePrompt string, focusAreas []string, min, max float64) string {
	var b strings.Builder
	b.WriteString(rolePrompt)
	b.WriteString("\n\nCriteria:\n")
	for i, f := range focusAreas {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f)
	}
	fmt.Fprintf(&b, "\nThe rating must be between %g and %g inclusive.\n", min, max)
	b.WriteString("Respond with a JSON object of the form {\"rating\": N} and nothing else.")
	return b.String()
}

// strictRatingReminder is appended as a follow-up user turn when the first
// rating response fell outside the configured bounds.
func strictRatingReminder(min, max float64) string {
	return fmt.Sprintf(
		"Your previous rating was outside the allowed range. Respond again with only "+
			"{\"rating\": N} where N is between %g and %g inclusive.", min, max)
}
