package display

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// Display handles all formatted output for toil
type Display struct {
	theme *Theme
	width int
}

// New creates a Display with the default theme and auto-detected width
func New() *Display {
	return &Display{
		theme: DefaultTheme(),
		width: getTerminalWidth(),
	}
}

// NewWithOptions creates a Display with custom settings
func NewWithOptions(noColor bool, width int) *Display {
	theme := DefaultTheme()
	if noColor {
		theme = NoColorTheme()
	}
	if width <= 0 {
		width = getTerminalWidth()
	}
	return &Display{
		theme: theme,
		width: width,
	}
}

// getTerminalWidth returns the terminal width or a sensible default
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	if width > 120 {
		return 120
	}
	return width
}

// Box draws a bordered box with a title and optional content lines
func (d *Display) Box(title string, lines ...string) {
	width := d.width
	contentWidth := width - 4

	fmt.Println(d.theme.Border(BoxTopLeft + strings.Repeat(BoxHorizontal, width-2) + BoxTopRight))

	titleLine := fmt.Sprintf("%s %s %s",
		d.theme.Border(BoxVertical),
		d.theme.Label(padRight(title, contentWidth)),
		d.theme.Border(BoxVertical))
	fmt.Println(titleLine)

	for _, line := range lines {
		for _, wrapped := range wrapText(line, contentWidth) {
			fmt.Printf("%s %s %s\n",
				d.theme.Border(BoxVertical),
				d.theme.Text(padRight(wrapped, contentWidth)),
				d.theme.Border(BoxVertical))
		}
	}

	fmt.Println(d.theme.Border(BoxBottomLeft + strings.Repeat(BoxHorizontal, width-2) + BoxBottomRight))
}

// wrapText wraps text to fit within maxWidth, breaking on spaces when possible
func wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{text}
	}
	if len(text) <= maxWidth {
		return []string{text}
	}

	var lines []string
	remaining := text
	for len(remaining) > maxWidth {
		breakAt := maxWidth
		for i := maxWidth; i > maxWidth/2; i-- {
			if remaining[i-1] == ' ' {
				breakAt = i
				break
			}
		}
		lines = append(lines, strings.TrimRight(remaining[:breakAt], " "))
		remaining = strings.TrimLeft(remaining[breakAt:], " ")
		if len(lines) >= 5 {
			lines = append(lines, Truncate(remaining, maxWidth))
			return lines
		}
	}
	if remaining != "" {
		lines = append(lines, remaining)
	}
	return lines
}

// Status prints a timestamped status line
func (d *Display) Status(message string) {
	timestamp := time.Now().Format("15:04:05")
	fmt.Printf("%s %s\n",
		d.theme.AgentTimestamp("["+timestamp+"]"),
		d.theme.Text(message))
}

// Success prints a success message
func (d *Display) Success(message string) {
	fmt.Printf("%s %s\n", d.theme.Success(SymbolSuccess), d.theme.Text(message))
}

// Error prints an error message
func (d *Display) Error(message string) {
	fmt.Printf("%s %s\n", d.theme.Error(SymbolError), d.theme.Text(message))
}

// Warning prints a warning message
func (d *Display) Warning(message string) {
	fmt.Printf("%s %s\n", d.theme.Warning(SymbolWarning), d.theme.Text(message))
}

// Info prints an informational message
func (d *Display) Info(message string) {
	fmt.Printf("%s %s\n", d.theme.Info("•"), d.theme.Text(message))
}

// Retry prints a retry notice for an attempt that will run again
func (d *Display) Retry(message string) {
	fmt.Printf("%s %s\n", d.theme.Warning(SymbolRetry), d.theme.Text(message))
}

// Skip prints a skipped-item notice
func (d *Display) Skip(message string) {
	fmt.Printf("%s %s\n", d.theme.Dim(SymbolSkip), d.theme.Dim(message))
}

// Agent prints agent output with a subdued timestamp
func (d *Display) Agent(message string) {
	timestamp := time.Now().Format("15:04:05")
	fmt.Printf("%s %s\n",
		d.theme.AgentTimestamp("["+timestamp+"]"),
		d.theme.AgentText(message))
}

// AgentDone prints the agent completion summary
func (d *Display) AgentDone(message string) {
	timestamp := time.Now().Format("15:04:05")
	fmt.Printf("%s %s %s\n",
		d.theme.AgentTimestamp("["+timestamp+"]"),
		d.theme.Dim("[Done]"),
		d.theme.Dim(message))
}

// ItemBanner announces the item being worked on
func (d *Display) ItemBanner(ref, title string) {
	fmt.Println()
	fmt.Printf("%s %s %s\n",
		d.theme.Label("▶"),
		d.theme.Bold(ref),
		d.theme.Text(Truncate(title, d.width-len(ref)-4)))
}

// Attempt prints the attempt counter for the current item
func (d *Display) Attempt(current, max int) {
	fmt.Printf("%s\n", d.theme.Dim(fmt.Sprintf("  attempt %d/%d", current, max)))
}

// Section prints a horizontal section break
func (d *Display) Section() {
	fmt.Println(d.theme.Separator(strings.Repeat(SectionBreak, d.width)))
}

// RunComplete prints the end-of-run summary banner
func (d *Display) RunComplete(solved, failed, skipped int, elapsed time.Duration) {
	fmt.Println()
	d.Section()
	fmt.Printf("%s %s  %s %s  %s %s  %s\n",
		d.theme.Success(SymbolSuccess),
		d.theme.Text(fmt.Sprintf("%d solved", solved)),
		d.theme.Error(SymbolError),
		d.theme.Text(fmt.Sprintf("%d failed", failed)),
		d.theme.Dim(SymbolSkip),
		d.theme.Dim(fmt.Sprintf("%d skipped", skipped)),
		d.theme.Dim("("+Duration(elapsed)+")"))
}

// Duration formats a duration in human-readable form
func Duration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, minutes)
}

// padRight pads a string to the given width
func padRight(s string, width int) string {
	if len(s) >= width {
		return Truncate(s, width)
	}
	return s + strings.Repeat(" ", width-len(s))
}

// Truncate shortens a string to maxLen, adding ellipsis if needed
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// CleanText normalizes whitespace in text for display
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}
