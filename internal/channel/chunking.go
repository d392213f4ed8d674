package channel

import (
	"strings"
	"unicode/utf8"
)

// SplitText breaks text into chunks of at most maxRunes runes. It prefers
// paragraph breaks, then line breaks, then spaces, and only cuts inside a
// word when a single word is longer than the limit. maxRunes <= 0 disables
// splitting. Empty text yields no chunks.
func SplitText(text string, maxRunes int) []string {
	if text == "" {
		return nil
	}
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return []string{text}
	}

	var chunks []string
	rest := []rune(text)
	for len(rest) > maxRunes {
		cut := splitPoint(rest[:maxRunes+1])
		chunk := strings.TrimRight(string(rest[:cut]), " \n")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		rest = trimLeadingBreaks(rest[cut:])
	}
	if len(rest) > 0 {
		chunks = append(chunks, string(rest))
	}
	return chunks
}

// splitPoint returns the rune index at which window should be cut. window
// holds one rune more than the limit so a boundary right at the limit counts.
func splitPoint(window []rune) int {
	limit := len(window) - 1
	s := string(window)

	for _, sep := range []string{"\n\n", "\n", " "} {
		if idx := strings.LastIndex(s, sep); idx > 0 {
			if cut := utf8.RuneCountInString(s[:idx]); cut > 0 && cut <= limit {
				return cut
			}
		}
	}
	return limit
}

func trimLeadingBreaks(r []rune) []rune {
	for len(r) > 0 && (r[0] == '\n' || r[0] == ' ') {
		r = r[1:]
	}
	return r
}
