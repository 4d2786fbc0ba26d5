package agent

import "strings"

// Sentinel markers form the wire contract between the engine and the agent.
// They are line-anchored: a marker only counts when it starts a line outside
// a fenced code block, so prompts that quote the protocol do not trigger it.
const (
	// MarkerNoCodeRequired signals the item needs no code change.
	// Trailing lines carry the explanation.
	MarkerNoCodeRequired = "###NO_CODE_REQUIRED###"

	// MarkerSummary signals a summary of the change follows.
	MarkerSummary = "###SUMMARY###"

	// MarkerPlanReady signals the interview is done and the planned
	// issue array follows.
	MarkerPlanReady = "###PLAN_READY###"
)

// summaryWindow caps how many lines are captured after a marker.
const summaryWindow = 10

// PlaceholderSummary stands in when the agent changed files without
// emitting a summary marker.
const PlaceholderSummary = "(no summary provided)"

// maxCaptureBytes bounds the in-memory transcript kept for classification.
// The untruncated stream goes to the attempt log on disk.
const maxCaptureBytes = 256 * 1024

// Transcript is a bounded capture of the agent's text output for one
// attempt. When the limit is exceeded the oldest text is dropped.
type Transcript struct {
	chunks []string
	size   int
	limit  int
}

// NewTranscript creates a transcript with the default capture bound.
func NewTranscript() *Transcript {
	return &Transcript{limit: maxCaptureBytes}
}

// Append adds one block of agent text.
func (t *Transcript) Append(text string) {
	if text == "" {
		return
	}
	t.chunks = append(t.chunks, text)
	t.size += len(text) + 1
	for t.size > t.limit && len(t.chunks) > 1 {
		t.size -= len(t.chunks[0]) + 1
		t.chunks = t.chunks[1:]
	}
}

func (t *Transcript) String() string {
	return strings.Join(t.chunks, "\n")
}

// Signal is the classifier's reading of one attempt transcript.
type Signal struct {
	NoCodeRequired bool
	HasSummary     bool
	Summary        string
}

// Classify scans a transcript for the outcome markers. The no-code marker
// takes precedence; everything else in the transcript is opaque log.
func Classify(transcript string) Signal {
	if window, ok := CaptureWindow(transcript, MarkerNoCodeRequired, summaryWindow); ok {
		return Signal{NoCodeRequired: true, Summary: window}
	}
	if window, ok := CaptureWindow(transcript, MarkerSummary, summaryWindow); ok {
		return Signal{HasSummary: true, Summary: window}
	}
	return Signal{}
}

// HasMarker reports whether a marker occurs line-anchored outside fences.
func HasMarker(text, marker string) bool {
	_, ok := findMarkerLine(text, marker)
	return ok
}

// CaptureWindow returns the bounded free text following a marker: the
// remainder of the marker line plus up to maxLines following lines,
// stopping at the next marker or a fence.
func CaptureWindow(text, marker string, maxLines int) (string, bool) {
	lines := strings.Split(text, "\n")
	idx, ok := findMarkerIndex(lines, marker)
	if !ok {
		return "", false
	}

	var captured []string
	if rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[idx]), marker)); rest != "" {
		captured = append(captured, rest)
	}
	for _, line := range lines[idx+1:] {
		if len(captured) >= maxLines {
			break
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || isMarkerLine(trimmed) {
			break
		}
		captured = append(captured, line)
	}
	return strings.TrimSpace(strings.Join(captured, "\n")), true
}

// TextAfter returns everything following a marker line, including any
// remainder on the marker line itself. Used for the plan-ready payload.
func TextAfter(text, marker string) (string, bool) {
	lines := strings.Split(text, "\n")
	idx, ok := findMarkerIndex(lines, marker)
	if !ok {
		return "", false
	}

	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[idx]), marker))
	tail := strings.Join(lines[idx+1:], "\n")
	if rest != "" {
		return strings.TrimSpace(rest + "\n" + tail), true
	}
	return strings.TrimSpace(tail), true
}

func findMarkerLine(text, marker string) (string, bool) {
	lines := strings.Split(text, "\n")
	idx, ok := findMarkerIndex(lines, marker)
	if !ok {
		return "", false
	}
	return lines[idx], true
}

// findMarkerIndex locates the first line starting with the marker,
// skipping fenced code regions.
func findMarkerIndex(lines []string, marker string) (int, bool) {
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if strings.HasPrefix(trimmed, marker) {
			return i, true
		}
	}
	return 0, false
}

func isMarkerLine(trimmed string) bool {
	for _, m := range []string{MarkerNoCodeRequired, MarkerSummary, MarkerPlanReady} {
		if strings.HasPrefix(trimmed, m) {
			return true
		}
	}
	return false
}
