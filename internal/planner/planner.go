// Package planner turns free text or an interview dialogue into structured
// work items ready for creation in the tracker.
package planner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/daydemir/toil/internal/agent"
	"github.com/daydemir/toil/internal/prompts"
)

const (
	// maxInterviewTurns bounds the interview before a final generation
	// over the accumulated conversation is forced.
	maxInterviewTurns = 5

	// doneToken lets the operator end the interview at any prompt.
	doneToken = "done"
)

const (
	speakerOperator = "OPERATOR"
	speakerPlanner  = "PLANNER"
)

// Planner produces PlannedIssues through the agent backend.
type Planner struct {
	Backend agent.Backend
	Model   string
	WorkDir string
}

// New creates a Planner using the given backend
func New(backend agent.Backend, model, workDir string) *Planner {
	return &Planner{
		Backend: backend,
		Model:   model,
		WorkDir: workDir,
	}
}

// OneShot decomposes a request into issues with a single generation call.
// The second return value is the session transcript for the plan log, also
// returned when generation or extraction fails.
func (p *Planner) OneShot(ctx context.Context, request string, existingLabels []string) ([]PlannedIssue, string, error) {
	output, err := p.decompose(ctx, request, existingLabels)
	transcript := fmt.Sprintf("%s: %s\n\n%s: %s\n", speakerOperator, request, speakerPlanner, output)
	if err != nil {
		return nil, transcript, err
	}

	issues, err := parseIssues(output)
	if err != nil {
		return nil, transcript, err
	}
	return issues, transcript, nil
}

// Interview runs a bounded question loop before generating issues. Each turn
// resends the entire conversation; the model either asks one clarifying
// question or declares the plan ready. Typing "done" at any prompt, closing
// the input, or exhausting the turn budget forces a final generation over
// the accumulated conversation.
func (p *Planner) Interview(ctx context.Context, seed string, existingLabels []string, input io.Reader, out io.Writer) ([]PlannedIssue, string, error) {
	template, err := prompts.GetForWorkspace(p.WorkDir, "interview")
	if err != nil {
		return nil, "", err
	}

	conv := &session{}
	if seed = strings.TrimSpace(seed); seed != "" {
		conv.add(speakerOperator, seed)
	}
	scanner := bufio.NewScanner(input)

	for turn := 1; turn <= maxInterviewTurns; turn++ {
		prompt := fmt.Sprintf(`%s

## Existing labels

%s

## Conversation so far

%s`, template, labelList(existingLabels), conv.render())

		response, err := p.Backend.Generate(ctx, agent.RunOptions{
			Prompt:  prompt,
			Model:   p.Model,
			WorkDir: p.WorkDir,
		})
		if err != nil {
			return nil, conv.render(), fmt.Errorf("generation failed on turn %d: %w", turn, err)
		}
		conv.add(speakerPlanner, response)

		if agent.HasMarker(response, agent.MarkerPlanReady) {
			payload, _ := agent.TextAfter(response, agent.MarkerPlanReady)
			issues, err := parseIssues(payload)
			if err != nil {
				return nil, conv.render(), fmt.Errorf("plan declared ready but %w", err)
			}
			return issues, conv.render(), nil
		}

		// The response is a clarifying question
		if turn == maxInterviewTurns {
			break
		}
		fmt.Fprintf(out, "\n%s\n\n> ", strings.TrimSpace(response))
		if !scanner.Scan() {
			break
		}
		answer := strings.TrimSpace(scanner.Text())
		conv.add(speakerOperator, answer)
		if strings.EqualFold(answer, doneToken) {
			break
		}
	}

	output, err := p.decompose(ctx, conv.render(), existingLabels)
	if err != nil {
		return nil, conv.render(), err
	}
	conv.add(speakerPlanner, output)

	issues, err := parseIssues(output)
	if err != nil {
		return nil, conv.render(), err
	}
	return issues, conv.render(), nil
}

// decompose issues the one-shot generation call over a request text.
func (p *Planner) decompose(ctx context.Context, request string, existingLabels []string) (string, error) {
	template, err := prompts.GetForWorkspace(p.WorkDir, "oneshot")
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(`%s

## Request

%s

## Existing labels

%s`, template, request, labelList(existingLabels))

	output, err := p.Backend.Generate(ctx, agent.RunOptions{
		Prompt:  prompt,
		Model:   p.Model,
		WorkDir: p.WorkDir,
	})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	return output, nil
}

func parseIssues(output string) ([]PlannedIssue, error) {
	issues, err := ExtractIssues(output)
	if err != nil {
		return nil, err
	}
	if len(issues) == 0 {
		return nil, ErrNoIssuesFound
	}
	return issues, nil
}

func labelList(labels []string) string {
	if len(labels) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for i, label := range labels {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- " + label)
	}
	return sb.String()
}

// session is the interview transcript, resent in full on every turn.
type session struct {
	turns []turn
}

type turn struct {
	speaker string
	text    string
}

func (s *session) add(speaker, text string) {
	s.turns = append(s.turns, turn{speaker: speaker, text: strings.TrimSpace(text)})
}

func (s *session) render() string {
	if len(s.turns) == 0 {
		return "(no conversation yet)"
	}
	var sb strings.Builder
	for i, t := range s.turns {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(t.speaker + ": " + t.text)
	}
	return sb.String()
}
