package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/daydemir/toil/internal/agent"
	"github.com/daydemir/toil/internal/artifacts"
	"github.com/daydemir/toil/internal/config"
	"github.com/daydemir/toil/internal/display"
	"github.com/daydemir/toil/internal/engine"
	"github.com/daydemir/toil/internal/gitx"
	"github.com/daydemir/toil/internal/report"
	"github.com/daydemir/toil/internal/tracker"
	"github.com/daydemir/toil/internal/workspace"
)

var (
	solveRetries int
	solveSteps   int
	solveLabel   string
	solveModel   string
)

// runSolve drives one full queue run: preflight, the attempt loop over every
// unclaimed item, then the report. On interrupt the in-flight item is demoted
// before returning, and the partial report is still written.
func runSolve(cmd *cobra.Command) error {
	wsDir, cfg, err := loadWorkspace()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("retries") {
		cfg.Queue.Retries = solveRetries
	}
	if cmd.Flags().Changed("steps") {
		cfg.Queue.Steps = solveSteps
	}
	if cmd.Flags().Changed("label") {
		cfg.Queue.Label = solveLabel
	}
	if cmd.Flags().Changed("model") {
		cfg.Agent.Model = solveModel
	}

	d := display.NewWithOptions(noColor, 0)

	boxLines := []string{
		fmt.Sprintf("model %s, retries %d, steps %d", cfg.Agent.Model, cfg.Queue.Retries, cfg.Queue.Steps),
	}
	if cfg.Queue.Label != "" {
		boxLines = append(boxLines, "label filter: "+cfg.Queue.Label)
	}
	d.Box("toil v"+version, boxLines...)

	eng := &engine.Engine{
		Tracker:        tracker.NewGitHub(cfg.Tracker.Binary, wsDir),
		Repo:           gitx.NewLocal(wsDir),
		Backend:        agent.NewClaude(cfg.Agent.Binary),
		Display:        d,
		Retries:        cfg.Queue.Retries,
		Steps:          cfg.Queue.Steps,
		FilterLabel:    cfg.Queue.Label,
		Model:          cfg.Agent.Model,
		AllowedTools:   cfg.Agent.AllowedTools,
		AttemptTimeout: time.Duration(cfg.Queue.AttemptTimeoutMins) * time.Minute,
		WorkDir:        wsDir,
		Instructions:   workspace.Instructions(wsDir),
	}

	// One signal cancels the run context; the engine waits for the active
	// agent subprocess to exit before returning.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Preflight(ctx); err != nil {
		return err
	}

	store := artifacts.NewStore(afero.NewOsFs(), workspace.Path(wsDir))
	run, err := store.Begin(time.Now())
	if err != nil {
		return err
	}
	eng.Run = run
	d.Info(fmt.Sprintf("recording run in %s", run.Dir))

	state, execErr := eng.Execute(ctx)
	interrupted := errors.Is(execErr, engine.ErrInterrupted)
	if execErr != nil && !interrupted {
		d.Info(fmt.Sprintf("run log: %s", run.Dir))
		return execErr
	}

	if interrupted {
		// From here on a second signal kills the process directly
		stop()
		d.Warning("interrupted, cleaning up")
		cleanup := eng.Finalize(state)
		if cleanup.Demoted != nil {
			d.Warning(fmt.Sprintf("%s was in progress, now labeled %s",
				cleanup.Demoted.Ref(), tracker.LabelFailed))
		}
		for _, w := range cleanup.Warnings {
			d.Warning(w)
		}
	}

	finished := time.Now()
	writeRunArtifacts(d, cfg, run, state, finished)

	d.RunComplete(len(state.Solved), len(state.Failed), len(state.Skipped), finished.Sub(state.StartedAt))
	if state.Branch != "" && len(state.Solved) > 0 {
		d.Info(fmt.Sprintf("solved commits are on branch %s", state.Branch))
	}

	if interrupted {
		return engine.ErrInterrupted
	}
	return nil
}

// writeRunArtifacts persists REPORT.md and run.yaml. Both are best effort;
// the run outcome is already settled in the tracker.
func writeRunArtifacts(d *display.Display, cfg *config.Config, run *artifacts.Run, state *engine.RunState, finished time.Time) {
	data := report.Data{
		Started:  state.StartedAt,
		Finished: finished,
		Branch:   state.Branch,
		RunDir:   run.Dir,
		Solved:   reportItems(state.Solved),
		Failed:   reportItems(state.Failed),
		Skipped:  reportItems(state.Skipped),
	}
	if path, err := run.WriteReport(report.NewBuilder(cfg.Report.MaxBytes).Build(data)); err != nil {
		d.Warning(fmt.Sprintf("cannot write report: %v", err))
	} else {
		d.Info(fmt.Sprintf("report written to %s", path))
	}

	meta := artifacts.Meta{
		Started:  state.StartedAt,
		Finished: finished,
		Branch:   state.Branch,
		Solved:   len(state.Solved),
		Failed:   len(state.Failed),
		Skipped:  len(state.Skipped),
	}
	meta.Items = append(meta.Items, metaItems("solved", state.Solved)...)
	meta.Items = append(meta.Items, metaItems("failed", state.Failed)...)
	meta.Items = append(meta.Items, metaItems("skipped", state.Skipped)...)
	if err := run.WriteSummary(meta); err != nil {
		d.Warning(fmt.Sprintf("cannot write run summary: %v", err))
	}
}

func reportItems(results []engine.ItemResult) []report.Item {
	var items []report.Item
	for _, r := range results {
		items = append(items, report.Item{
			Ref:      fmt.Sprintf("#%d", r.ID),
			Title:    r.Title,
			Attempts: r.Attempts,
			Summary:  r.Summary,
		})
	}
	return items
}

func metaItems(status string, results []engine.ItemResult) []artifacts.ItemMeta {
	var items []artifacts.ItemMeta
	for _, r := range results {
		items = append(items, artifacts.ItemMeta{
			ID:       r.ID,
			Title:    r.Title,
			Status:   status,
			Attempts: r.Attempts,
			Summary:  r.Summary,
		})
	}
	return items
}
