package agent

import (
	"fmt"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name           string
		transcript     string
		wantNoCode     bool
		wantHasSummary bool
		wantSummary    string
	}{
		{
			name:       "no markers",
			transcript: "I explored the codebase and made some edits.",
		},
		{
			name:           "summary with trailing lines",
			transcript:     "All done.\n###SUMMARY###\nFixed the null check in auth.go\nAdded a regression test",
			wantHasSummary: true,
			wantSummary:    "Fixed the null check in auth.go\nAdded a regression test",
		},
		{
			name:           "summary payload on marker line",
			transcript:     "###SUMMARY### Tightened the session timeout",
			wantHasSummary: true,
			wantSummary:    "Tightened the session timeout",
		},
		{
			name:        "no code required with explanation",
			transcript:  "Looked into it.\n###NO_CODE_REQUIRED###\nThis is a duplicate of #17, nothing to change.",
			wantNoCode:  true,
			wantSummary: "This is a duplicate of #17, nothing to change.",
		},
		{
			name:        "no code marker wins over summary",
			transcript:  "###NO_CODE_REQUIRED###\nconfig issue\n###SUMMARY###\nshould not be used",
			wantNoCode:  true,
			wantSummary: "config issue",
		},
		{
			name:       "marker inside fence ignored",
			transcript: "The protocol is:\n```\n###SUMMARY###\nexample\n```\nno real marker here",
		},
		{
			name:       "marker mid-line ignored",
			transcript: "mentioning ###SUMMARY### in passing does not count",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sig := Classify(tc.transcript)
			if sig.NoCodeRequired != tc.wantNoCode {
				t.Errorf("NoCodeRequired = %v, want %v", sig.NoCodeRequired, tc.wantNoCode)
			}
			if sig.HasSummary != tc.wantHasSummary {
				t.Errorf("HasSummary = %v, want %v", sig.HasSummary, tc.wantHasSummary)
			}
			if sig.Summary != tc.wantSummary {
				t.Errorf("Summary = %q, want %q", sig.Summary, tc.wantSummary)
			}
		})
	}
}

func TestCaptureWindowCapsLines(t *testing.T) {
	var b strings.Builder
	b.WriteString("###SUMMARY###\n")
	for i := 1; i <= 15; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}

	window, ok := CaptureWindow(b.String(), MarkerSummary, summaryWindow)
	if !ok {
		t.Fatal("expected marker to be found")
	}

	lines := strings.Split(window, "\n")
	if len(lines) != summaryWindow {
		t.Errorf("expected %d captured lines, got %d", summaryWindow, len(lines))
	}
	if lines[len(lines)-1] != "line 10" {
		t.Errorf("expected capture to end at line 10, got %q", lines[len(lines)-1])
	}
}

func TestCaptureWindowStopsAtNextMarker(t *testing.T) {
	text := "###SUMMARY###\nthe fix\n###PLAN_READY###\n[]"
	window, ok := CaptureWindow(text, MarkerSummary, summaryWindow)
	if !ok {
		t.Fatal("expected marker to be found")
	}
	if window != "the fix" {
		t.Errorf("expected capture to stop before the next marker, got %q", window)
	}
}

func TestTextAfter(t *testing.T) {
	t.Run("payload on following lines", func(t *testing.T) {
		text := "Ready to plan.\n###PLAN_READY###\n[{\"title\": \"a\"}]"
		payload, ok := TextAfter(text, MarkerPlanReady)
		if !ok {
			t.Fatal("expected marker to be found")
		}
		if payload != "[{\"title\": \"a\"}]" {
			t.Errorf("got payload %q", payload)
		}
	})

	t.Run("payload on marker line", func(t *testing.T) {
		payload, ok := TextAfter("###PLAN_READY### []", MarkerPlanReady)
		if !ok {
			t.Fatal("expected marker to be found")
		}
		if payload != "[]" {
			t.Errorf("got payload %q", payload)
		}
	})

	t.Run("missing marker", func(t *testing.T) {
		if _, ok := TextAfter("nothing here", MarkerPlanReady); ok {
			t.Error("expected no marker")
		}
	})
}

func TestTranscriptBounded(t *testing.T) {
	tr := &Transcript{limit: 40}
	tr.Append("first chunk of text that is quite long")
	tr.Append("second")
	tr.Append("third")

	got := tr.String()
	if strings.Contains(got, "first") {
		t.Errorf("expected oldest chunk to be dropped, got %q", got)
	}
	if !strings.Contains(got, "second") || !strings.Contains(got, "third") {
		t.Errorf("expected recent chunks to survive, got %q", got)
	}
}
