package tracker

import (
	"context"
	"fmt"
	"strings"
)

// Queue-owned status labels. Everything under the "toil:" prefix belongs to
// the queue; user labels are never touched.
const (
	// LabelPrefix namespaces all queue-owned labels.
	LabelPrefix = "toil:"

	// LabelInProgress marks the single item currently being processed.
	LabelInProgress = "toil:in-progress"

	// LabelSolved marks items resolved with a commit (or no code required).
	LabelSolved = "toil:solved"

	// LabelFailed marks items that exhausted their retry budget.
	LabelFailed = "toil:failed"
)

// StatusLabels are the three labels ensured to exist before a run.
var StatusLabels = []string{LabelInProgress, LabelSolved, LabelFailed}

// HasQueueLabel reports whether any queue-owned label is present.
// An item carrying one at scan time is skipped; re-processing requires
// removing the label externally.
func HasQueueLabel(labels []string) bool {
	for _, l := range labels {
		if strings.HasPrefix(l, LabelPrefix) {
			return true
		}
	}
	return false
}

// StatusFromLabels derives an item's status from its labels at fetch time.
func StatusFromLabels(labels []string) Status {
	for _, l := range labels {
		switch l {
		case LabelInProgress:
			return StatusInProgress
		case LabelSolved:
			return StatusSolved
		case LabelFailed:
			return StatusFailed
		}
	}
	if HasQueueLabel(labels) {
		return StatusSkipped
	}
	return StatusUnclaimed
}

// LabelOp is one add or remove of a queue-owned label.
type LabelOp struct {
	Add   bool
	Label string
}

// ClaimOps returns the operations that move an item into in-progress.
// Stale terminal labels from a prior run are cleared first so re-entry
// is idempotent.
func ClaimOps(labels []string) []LabelOp {
	var ops []LabelOp
	for _, l := range labels {
		if l == LabelSolved || l == LabelFailed {
			ops = append(ops, LabelOp{Add: false, Label: l})
		}
	}
	ops = append(ops, LabelOp{Add: true, Label: LabelInProgress})
	return ops
}

// ResolveOps returns the operations that move an item from in-progress to
// its terminal state. In-progress is always cleared first, then exactly one
// terminal label is set.
func ResolveOps(solved bool) []LabelOp {
	terminal := LabelFailed
	if solved {
		terminal = LabelSolved
	}
	return []LabelOp{
		{Add: false, Label: LabelInProgress},
		{Add: true, Label: terminal},
	}
}

// Apply runs a sequence of label operations in order, stopping at the
// first failure.
func Apply(ctx context.Context, t Tracker, id int, ops []LabelOp) error {
	for _, op := range ops {
		var err error
		if op.Add {
			err = t.AddLabel(ctx, id, op.Label)
		} else {
			err = t.RemoveLabel(ctx, id, op.Label)
		}
		if err != nil {
			return fmt.Errorf("label %s on #%d: %w", op.Label, id, err)
		}
	}
	return nil
}
