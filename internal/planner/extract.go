package planner

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoIssuesFound reports that no issue array could be recovered from text.
var ErrNoIssuesFound = errors.New("no issues found in model output")

// PlannedIssue is one structured work item produced by generation. It is
// never persisted; the creation step consumes it immediately.
type PlannedIssue struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

// ExtractIssues recovers an issue array from model output. Candidates are
// tried in order: the interior of the first fenced block, the whole text,
// then the substring from the first '[' to the last ']'. The first candidate
// that unmarshals as an array wins.
func ExtractIssues(text string) ([]PlannedIssue, error) {
	for _, candidate := range candidates(text) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		var issues []PlannedIssue
		if err := json.Unmarshal([]byte(candidate), &issues); err == nil {
			return issues, nil
		}
	}
	return nil, ErrNoIssuesFound
}

func candidates(text string) []string {
	var out []string
	if inner, ok := fencedBlock(text); ok {
		out = append(out, inner)
	}
	out = append(out, text)
	if start := strings.Index(text, "["); start != -1 {
		if end := strings.LastIndex(text, "]"); end > start {
			out = append(out, text[start:end+1])
		}
	}
	return out
}

// fencedBlock returns the interior of the first ``` block, tolerating a
// language tag on the opening fence.
func fencedBlock(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start == -1 {
		return "", false
	}
	rest := text[start+3:]
	nl := strings.Index(rest, "\n")
	if nl == -1 {
		return "", false
	}
	rest = rest[nl+1:]
	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}
	return rest[:end], true
}
