// Package report builds the end-of-run markdown report.
package report

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMaxBytes caps the rendered report size.
const DefaultMaxBytes = 64 * 1024

// Builder renders run reports capped at MaxBytes.
type Builder struct {
	MaxBytes int
}

// NewBuilder returns a Builder with the given byte cap. Non-positive caps fall
// back to DefaultMaxBytes.
func NewBuilder(maxBytes int) *Builder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Builder{MaxBytes: maxBytes}
}

// Item is one work item's outcome in the report.
type Item struct {
	Ref      string // "#42"
	Title    string
	Attempts int
	Summary  string
}

// Data aggregates one run's outcomes for rendering.
type Data struct {
	Started  time.Time
	Finished time.Time
	Branch   string
	RunDir   string
	Solved   []Item
	Failed   []Item
	Skipped  []Item
}

// Build renders the markdown report. The result never exceeds MaxBytes; when
// the full render is larger it is cut and a notice pointing at the run
// directory is appended within the cap.
func (b *Builder) Build(data Data) []byte {
	full := render(data)
	if len(full) <= b.MaxBytes {
		return full
	}

	notice := fmt.Sprintf("\n\n[report truncated: full logs in %s]\n", data.RunDir)
	if len(notice) >= b.MaxBytes {
		return []byte(notice[:b.MaxBytes])
	}

	cut := b.MaxBytes - len(notice)
	// Back off to a rune boundary so the cut never splits a character
	for cut > 0 && full[cut]&0xC0 == 0x80 {
		cut--
	}
	return append(full[:cut], notice...)
}

func render(data Data) []byte {
	var sb strings.Builder

	sb.WriteString("# toil run report\n\n")
	sb.WriteString(fmt.Sprintf("- Started: %s\n", data.Started.Format("2006-01-02 15:04:05")))
	elapsed := data.Finished.Sub(data.Started).Round(time.Second)
	sb.WriteString(fmt.Sprintf("- Finished: %s (%s)\n", data.Finished.Format("2006-01-02 15:04:05"), elapsed))
	if data.Branch != "" {
		sb.WriteString(fmt.Sprintf("- Branch: %s\n", data.Branch))
	}
	sb.WriteString(fmt.Sprintf("- Solved: %d, Failed: %d, Skipped: %d\n",
		len(data.Solved), len(data.Failed), len(data.Skipped)))

	writeSection(&sb, "Solved", data.Solved, true)
	writeSection(&sb, "Failed", data.Failed, true)
	writeSection(&sb, "Skipped", data.Skipped, false)

	return []byte(sb.String())
}

func writeSection(sb *strings.Builder, title string, items []Item, detailed bool) {
	if len(items) == 0 {
		return
	}

	sb.WriteString(fmt.Sprintf("\n## %s (%d)\n", title, len(items)))

	for _, item := range items {
		if !detailed {
			sb.WriteString(fmt.Sprintf("- %s %s\n", item.Ref, item.Title))
			continue
		}
		sb.WriteString(fmt.Sprintf("\n### %s %s\n\n", item.Ref, item.Title))
		if item.Attempts > 0 {
			noun := "attempts"
			if item.Attempts == 1 {
				noun = "attempt"
			}
			sb.WriteString(fmt.Sprintf("%d %s\n", item.Attempts, noun))
		}
		if summary := strings.TrimSpace(item.Summary); summary != "" {
			sb.WriteString("\n" + summary + "\n")
		}
	}
}
