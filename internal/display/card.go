package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const cardBodyLines = 6

var (
	cardBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	cardTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252"))

	cardIndexStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63")).
			Bold(true)

	cardLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212"))

	cardBodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	cardMoreStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// IssueCard renders a bordered preview of a proposed issue. The body is
// capped at a few lines so a long plan stays scannable.
func (d *Display) IssueCard(index int, title string, labels []string, body string) string {
	innerWidth := d.width - 6
	if innerWidth < 20 {
		innerWidth = 20
	}

	var b strings.Builder
	b.WriteString(cardIndexStyle.Render(fmt.Sprintf("%d.", index)))
	b.WriteString(" ")
	b.WriteString(cardTitleStyle.Render(Truncate(title, innerWidth-4)))

	if len(labels) > 0 {
		b.WriteString("\n")
		b.WriteString(cardLabelStyle.Render("[" + strings.Join(labels, "] [") + "]"))
	}

	if body = strings.TrimSpace(body); body != "" {
		b.WriteString("\n")
		lines := strings.Split(body, "\n")
		shown := lines
		if len(lines) > cardBodyLines {
			shown = lines[:cardBodyLines]
		}
		for _, line := range shown {
			b.WriteString("\n")
			b.WriteString(cardBodyStyle.Render(Truncate(line, innerWidth)))
		}
		if len(lines) > cardBodyLines {
			b.WriteString("\n")
			b.WriteString(cardMoreStyle.Render(fmt.Sprintf("… %d more lines", len(lines)-cardBodyLines)))
		}
	}

	return cardBorderStyle.Width(innerWidth + 2).Render(b.String())
}

// CardSummary renders the one-line count shown under a stack of issue cards.
func (d *Display) CardSummary(count int) string {
	noun := "issues"
	if count == 1 {
		noun = "issue"
	}
	return cardMoreStyle.Render(fmt.Sprintf("%d %s ready to file", count, noun))
}
