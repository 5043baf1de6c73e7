package knowledge

import "strings"

// Chunking parameters, in runes.
const (
	ChunkSize    = 1000
	ChunkOverlap = 200
)

// Split breaks text into chunks of at most size runes, each starting
// overlap runes before the end of the previous one. Chunks end at a
// paragraph or line break when one falls in the second half of the window.
func Split(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); {
		end := min(start+size, len(runes))
		if end < len(runes) {
			end = breakPoint(runes, start, end)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// breakPoint moves end back to the last blank line or newline in the
// second half of [start, end).
func breakPoint(runes []rune, start, end int) int {
	half := start + (end-start)/2
	window := string(runes[half:end])
	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return half + len([]rune(window[:i])) + 2
	}
	if i := strings.LastIndex(window, "\n"); i >= 0 {
		return half + len([]rune(window[:i])) + 1
	}
	return end
}
