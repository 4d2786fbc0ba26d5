package tracker

import (
	"context"
	"fmt"
)

// Status is the queue-derived state of a work item.
type Status int

const (
	StatusUnclaimed Status = iota
	StatusInProgress
	StatusSolved
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusUnclaimed:
		return "unclaimed"
	case StatusInProgress:
		return "in_progress"
	case StatusSolved:
		return "solved"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// WorkItem is one tracked issue as seen at fetch time.
// Status is derived from Labels and only changes through label operations.
type WorkItem struct {
	ID     int
	Title  string
	Body   string
	Labels []string
	Status Status
}

// Ref returns the issue reference used in commits and logs, e.g. "#42".
func (w WorkItem) Ref() string {
	return fmt.Sprintf("#%d", w.ID)
}

// NewIssue is the input to Create. Produced by the planner, never stored.
type NewIssue struct {
	Title  string
	Body   string
	Labels []string
}

// Tracker is the issue tracking backend.
type Tracker interface {
	// Name returns the backend name (e.g., "github")
	Name() string

	// List returns open items, optionally filtered to one label.
	// Each item's Status is derived from its labels at fetch time.
	List(ctx context.Context, filterLabel string) ([]WorkItem, error)

	// AddLabel attaches a label to an item.
	AddLabel(ctx context.Context, id int, label string) error

	// RemoveLabel detaches a label from an item. Removing a label that
	// is not present is not an error.
	RemoveLabel(ctx context.Context, id int, label string) error

	// LabelNames returns all label names defined in the repository.
	LabelNames(ctx context.Context) ([]string, error)

	// EnsureLabel creates a label if it does not exist yet.
	EnsureLabel(ctx context.Context, label string) error

	// Create files a new issue and returns its id.
	Create(ctx context.Context, issue NewIssue) (int, error)
}
