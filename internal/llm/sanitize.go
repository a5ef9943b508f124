package llm

import "strings"

// Tagged fences go first so "```json" never degrades to a stray "json".
var fenceMarkers = []string{"```javascript", "```json", "```"}

// CleanJSONOutput strips code-fence markers and surrounding whitespace from
// a model completion. No other transformation is applied.
func CleanJSONOutput(raw string) string {
	out := strings.TrimSpace(raw)
	for _, marker := range fenceMarkers {
		out = strings.ReplaceAll(out, marker, "")
	}
	return strings.TrimSpace(out)
}
