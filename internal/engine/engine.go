// Package engine drives the issue queue: scan, claim, bounded attempts with
// checkpoint rollback, outcome classification, commit, and label resolution.
package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/daydemir/toil/internal/agent"
	"github.com/daydemir/toil/internal/artifacts"
	"github.com/daydemir/toil/internal/display"
	"github.com/daydemir/toil/internal/gitx"
	"github.com/daydemir/toil/internal/prompts"
	"github.com/daydemir/toil/internal/tracker"
	"github.com/daydemir/toil/internal/utils"
)

// branchNamespace prefixes every run branch.
const branchNamespace = "toil"

// Engine processes the work queue sequentially: one item at a time, one
// agent subprocess at a time.
type Engine struct {
	Tracker tracker.Tracker
	Repo    gitx.Repo
	Backend agent.Backend
	Display *display.Display
	Run     *artifacts.Run

	Retries        int
	Steps          int
	FilterLabel    string
	Model          string
	AllowedTools   []string
	AttemptTimeout time.Duration // per-attempt wall clock; <= 0 disables
	WorkDir        string
	Instructions   string // appended verbatim to every per-item prompt
}

// Execute drives one full queue run. It returns the run state even on error
// so the caller can report partial results; on interrupt the returned error
// is ErrInterrupted and the in-flight item is left for Finalize.
func (e *Engine) Execute(ctx context.Context) (*RunState, error) {
	state := NewRunState(time.Now())

	items, err := e.Tracker.List(ctx, e.FilterLabel)
	if err != nil {
		return state, fmt.Errorf("cannot list work items: %w", err)
	}

	// Anything already carrying a queue label is skipped unconditionally;
	// re-processing requires removing the label in the tracker.
	var queue []tracker.WorkItem
	for _, item := range items {
		if tracker.HasQueueLabel(item.Labels) {
			state.Skipped = append(state.Skipped, ItemResult{ID: item.ID, Title: item.Title})
			e.Display.Skip(fmt.Sprintf("%s %s [%s]", item.Ref(), item.Title, item.Status))
			continue
		}
		queue = append(queue, item)
	}

	if len(queue) == 0 {
		e.Display.Info("no unclaimed items in the queue")
		return state, nil
	}

	branch, err := e.Repo.EnsureRunBranch(ctx, branchNamespace, state.StartedAt)
	if err != nil {
		return state, fmt.Errorf("cannot create run branch: %w", err)
	}
	state.Branch = branch
	e.Display.Info(fmt.Sprintf("working on branch %s", branch))

	for _, item := range queue {
		if ctx.Err() != nil {
			return state, ErrInterrupted
		}
		if err := e.processItem(ctx, item, state); err != nil {
			return state, err
		}
	}

	return state, nil
}

// processItem runs the bounded attempt loop for one item. It returns an
// error only when the run context was canceled; per-item failures are
// recorded in the state and the run continues.
func (e *Engine) processItem(ctx context.Context, item tracker.WorkItem, state *RunState) error {
	e.Display.ItemBanner(item.Ref(), item.Title)

	if err := tracker.Apply(ctx, e.Tracker, item.ID, tracker.ClaimOps(item.Labels)); err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		e.Display.Warning(fmt.Sprintf("cannot claim %s: %v", item.Ref(), err))
		state.Skipped = append(state.Skipped, ItemResult{ID: item.ID, Title: item.Title})
		return nil
	}
	state.SetCurrent(&item)
	e.logItem(item.ID, fmt.Sprintf("claimed %s %q", item.Ref(), item.Title))

	// Checkpoint C: every rollback for this item returns here.
	checkpoint, err := e.Repo.Head(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		e.Display.Error(fmt.Sprintf("cannot capture checkpoint for %s: %v", item.Ref(), err))
		e.resolve(ctx, item, state, false, 0, "checkpoint capture failed")
		return nil
	}

	solved := false
	summary := ""
	attempts := 0
	last := OutcomeProcessError

	for attempt := 1; attempt <= e.Retries; attempt++ {
		attempts = attempt
		e.Display.Attempt(attempt, e.Retries)

		// Attempt isolation: nothing from the previous attempt survives,
		// tracked or untracked.
		if err := e.rollback(ctx, checkpoint); err != nil {
			if ctx.Err() != nil {
				return ErrInterrupted
			}
			e.Display.Warning(fmt.Sprintf("rollback failed: %v", err))
			e.logItem(item.ID, fmt.Sprintf("attempt %d: rollback failed: %v", attempt, err))
			continue
		}

		result := e.runAttempt(ctx, item, attempt)
		if ctx.Err() != nil {
			// The child has already exited; label demotion happens in
			// Finalize, after this returns.
			return ErrInterrupted
		}

		last = result.Outcome
		e.logItem(item.ID, fmt.Sprintf("attempt %d: %s", attempt, result.Outcome))

		switch result.Outcome {
		case OutcomeNoCodeRequired:
			solved = true
			summary = result.Summary
			e.Display.Success(fmt.Sprintf("%s needs no code change", item.Ref()))
		case OutcomeSuccess:
			if err := e.commit(ctx, item, result.Summary); err != nil {
				if ctx.Err() != nil {
					return ErrInterrupted
				}
				e.Display.Warning(fmt.Sprintf("commit failed: %v", err))
				e.logItem(item.ID, fmt.Sprintf("attempt %d: commit failed: %v", attempt, err))
				last = OutcomeProcessError
				continue
			}
			solved = true
			summary = result.Summary
			e.Display.Success(fmt.Sprintf("committed fix for %s", item.Ref()))
		default:
			if attempt < e.Retries {
				e.Display.Retry(fmt.Sprintf("%s, retrying", result.Outcome))
			}
		}

		if solved {
			break
		}
	}

	if !solved {
		// Terminal failure leaves the branch exactly as it was before
		// this item started.
		if err := e.rollback(ctx, checkpoint); err != nil && ctx.Err() == nil {
			e.Display.Warning(fmt.Sprintf("final rollback failed: %v", err))
		}
		summary = fmt.Sprintf("retries exhausted after %d attempts (last outcome: %s)", attempts, last)
	}

	if ctx.Err() != nil {
		return ErrInterrupted
	}

	e.resolve(ctx, item, state, solved, attempts, summary)
	return nil
}

// runAttempt invokes the agent once and classifies what happened. The
// returned record is final; nothing mutates it afterwards.
func (e *Engine) runAttempt(ctx context.Context, item tracker.WorkItem, attempt int) Attempt {
	rec := Attempt{Index: attempt}

	prompt, err := e.buildPrompt(item)
	if err != nil {
		e.Display.Warning(fmt.Sprintf("cannot build prompt: %v", err))
		rec.Outcome = OutcomeProcessError
		return rec
	}

	attemptCtx := ctx
	if e.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, e.AttemptTimeout)
		defer cancel()
	}

	transcript := agent.NewTranscript()
	runErr := e.streamAgent(attemptCtx, prompt, transcript)

	if e.Run != nil {
		if err := e.Run.WriteAttemptLog(item.ID, attempt, transcript.String()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: cannot write attempt transcript: %v\n", err)
		} else {
			rec.TranscriptPath = e.Run.AttemptLogPath(item.ID, attempt)
		}
	}

	if ctx.Err() != nil {
		rec.Outcome = OutcomeProcessError
		return rec
	}
	if runErr != nil {
		e.Display.Warning(fmt.Sprintf("agent exited with error: %v", runErr))
		rec.Outcome = OutcomeProcessError
		return rec
	}

	signal := agent.Classify(transcript.String())
	if signal.NoCodeRequired {
		rec.Outcome = OutcomeNoCodeRequired
		rec.Summary = orPlaceholder(signal.Summary)
		return rec
	}

	changed, err := e.Repo.HasChanges(ctx)
	if err != nil {
		e.Display.Warning(fmt.Sprintf("cannot inspect working tree: %v", err))
		rec.Outcome = OutcomeProcessError
		return rec
	}
	if !changed {
		rec.Outcome = OutcomeNoChanges
		return rec
	}

	rec.Outcome = OutcomeSuccess
	rec.Summary = orPlaceholder(signal.Summary)
	return rec
}

// streamAgent runs one agent subprocess to completion, feeding its output
// into the transcript and the console.
func (e *Engine) streamAgent(ctx context.Context, prompt string, transcript *agent.Transcript) error {
	reader, err := e.Backend.Run(ctx, agent.RunOptions{
		Prompt:       prompt,
		Model:        e.Model,
		AllowedTools: e.AllowedTools,
		MaxTurns:     e.Steps,
		WorkDir:      e.WorkDir,
	})
	if err != nil {
		return err
	}

	collector := &agent.Collector{
		Transcript: transcript,
		Inner:      &consoleRelay{display: e.Display},
	}
	parseErr := agent.ParseStream(reader, collector)

	// Close blocks until the subprocess is fully gone; its error carries
	// the exit status.
	if err := reader.Close(); err != nil {
		return err
	}
	return parseErr
}

// consoleRelay turns stream events into live status lines. Tool uses are
// batched into a counter shown on the next text line.
type consoleRelay struct {
	display *display.Display
	tools   int
}

func (c *consoleRelay) OnToolUse(name string) {
	c.tools++
}

func (c *consoleRelay) OnText(text string) {
	text = display.Truncate(display.CleanText(text), 400)
	if c.tools > 0 {
		c.display.Agent(fmt.Sprintf("[Tools: %d] %s", c.tools, text))
		c.tools = 0
		return
	}
	c.display.Agent(text)
}

func (c *consoleRelay) OnResult(text string) {
	c.display.AgentDone(display.Truncate(display.CleanText(text), 200))
}

// buildPrompt renders the per-item instruction: the solve template, the
// issue detail, then the project instructions verbatim.
func (e *Engine) buildPrompt(item tracker.WorkItem) (string, error) {
	template, err := prompts.GetForWorkspace(e.WorkDir, "solve")
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(template)
	sb.WriteString(fmt.Sprintf("\n\n## Issue %s: %s\n\n", item.Ref(), item.Title))
	if body := strings.TrimSpace(item.Body); body != "" {
		sb.WriteString(body + "\n")
	} else {
		sb.WriteString("(no description)\n")
	}
	if inst := strings.TrimSpace(e.Instructions); inst != "" {
		sb.WriteString("\n## Project instructions\n\n" + inst + "\n")
	}
	return sb.String(), nil
}

// commit stages everything and records exactly one commit referencing the
// item.
func (e *Engine) commit(ctx context.Context, item tracker.WorkItem, summary string) error {
	if err := e.Repo.StageAll(ctx); err != nil {
		return err
	}
	message := fmt.Sprintf("toil: resolve %s %s", item.Ref(), item.Title)
	if summary != "" && summary != agent.PlaceholderSummary {
		message += "\n\n" + summary
	}
	return e.Repo.Commit(ctx, message)
}

// resolve moves the item to its terminal label state and records the result.
// Label failures here are warned, not escalated: the work itself is already
// committed or rolled back.
func (e *Engine) resolve(ctx context.Context, item tracker.WorkItem, state *RunState, solved bool, attempts int, summary string) {
	if err := tracker.Apply(ctx, e.Tracker, item.ID, tracker.ResolveOps(solved)); err != nil {
		e.Display.Warning(fmt.Sprintf("cannot update labels on %s: %v", item.Ref(), err))
	}
	state.ClearCurrent()

	result := ItemResult{ID: item.ID, Title: item.Title, Attempts: attempts, Summary: summary}
	if solved {
		state.Solved = append(state.Solved, result)
		e.logItem(item.ID, "resolved: solved")
	} else {
		state.Failed = append(state.Failed, result)
		e.Display.Error(fmt.Sprintf("%s failed: %s", item.Ref(), summary))
		if e.Run != nil {
			e.Display.Info(fmt.Sprintf("logs in %s", e.Run.Dir))
		}
		e.logItem(item.ID, "resolved: failed")
	}
	if s := utils.FirstLine(summary, 200); s != "" {
		e.logItem(item.ID, "summary: "+s)
	}
}

// rollback restores the checkpoint and removes untracked leftovers.
func (e *Engine) rollback(ctx context.Context, checkpoint string) error {
	if err := e.Repo.ResetHard(ctx, checkpoint); err != nil {
		return err
	}
	return e.Repo.CleanUntracked(ctx)
}

func (e *Engine) logItem(id int, line string) {
	if e.Run == nil {
		return
	}
	if err := e.Run.AppendItemLog(id, line); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot write item log: %v\n", err)
	}
}

func orPlaceholder(summary string) string {
	if strings.TrimSpace(summary) == "" {
		return agent.PlaceholderSummary
	}
	return summary
}
