package calc

import "strings"

var fenceReplacer = strings.NewReplacer("```json", "", "```", "")

// Normalize repairs the formatting slips models make most often: single
// quotes, code fences and surrounding whitespace. The result may still be
// invalid JSON.
func Normalize(raw string) string {
	s := strings.ReplaceAll(raw, "'", `"`)
	s = fenceReplacer.Replace(s)
	return strings.TrimSpace(s)
}
