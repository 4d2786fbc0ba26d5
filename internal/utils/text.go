package utils

import "strings"

// FirstLine returns the first non-empty line of text, truncated to max chars.
// Used for one-line previews of issue bodies.
func FirstLine(text string, max int) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if max > 3 && len(line) > max {
			return line[:max-3] + "..."
		}
		return line
	}
	return ""
}
