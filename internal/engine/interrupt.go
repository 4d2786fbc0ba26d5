package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daydemir/toil/internal/tracker"
)

// ErrInterrupted reports that a signal ended the run before the queue
// drained. The caller maps it to exit code 130.
var ErrInterrupted = errors.New("run interrupted")

// finalizeTimeout bounds the label calls made during interrupt cleanup.
const finalizeTimeout = 30 * time.Second

// CleanupReport is the best-effort result of interrupt finalization.
// Cleanup never fails; anything that went wrong is a warning.
type CleanupReport struct {
	// Demoted is the in-flight item moved to failed, if there was one.
	Demoted *tracker.WorkItem

	Warnings []string
}

// Finalize demotes the in-flight item after an interrupt: in-progress is
// removed and failed added, so no item is ever left claimed. It runs on a
// fresh background context because the run context is already canceled, and
// it is safe to call again; only the first call mutates labels.
func (e *Engine) Finalize(state *RunState) CleanupReport {
	var report CleanupReport

	item := state.TakeCurrent()
	if item == nil {
		return report
	}
	report.Demoted = item

	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	// Best effort: attempt every operation and collect what failed rather
	// than stopping at the first error.
	for _, op := range tracker.ResolveOps(false) {
		var err error
		if op.Add {
			err = e.Tracker.AddLabel(ctx, item.ID, op.Label)
		} else {
			err = e.Tracker.RemoveLabel(ctx, item.ID, op.Label)
		}
		if err != nil {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("cannot update label %s on %s: %v", op.Label, item.Ref(), err))
		}
	}

	e.logItem(item.ID, "interrupted: demoted to failed")
	return report
}
