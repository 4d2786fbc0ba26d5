package engine

import (
	"context"
	"fmt"

	"github.com/daydemir/toil/internal/tracker"
)

// InstallChecker is implemented by backends that can verify their binary
// before a run.
type InstallChecker interface {
	CheckInstalled() error
}

// AuthChecker is implemented by trackers that can verify their credentials
// before a run.
type AuthChecker interface {
	CheckAuth(ctx context.Context) error
}

// Preflight verifies the environment before any item is touched: a git
// repository, a clean working tree, a reachable agent, an authenticated
// tracker, and the queue labels defined. The first failure aborts the run.
func (e *Engine) Preflight(ctx context.Context) error {
	if !e.Repo.IsRepo(ctx) {
		return fmt.Errorf(`not a git repository

toil commits each solved item, so it must run inside a git repository.
Run it from your repository root, or initialize one with 'git init'.`)
	}

	dirty, err := e.Repo.HasChanges(ctx)
	if err != nil {
		return fmt.Errorf("cannot inspect working tree: %w", err)
	}
	if dirty {
		return fmt.Errorf(`working tree is not clean

toil rolls the tree back between attempts, which would destroy your
uncommitted changes. Commit or stash them first, then run again.`)
	}

	if checker, ok := e.Backend.(InstallChecker); ok {
		if err := checker.CheckInstalled(); err != nil {
			return err
		}
	}

	if checker, ok := e.Tracker.(AuthChecker); ok {
		if err := checker.CheckAuth(ctx); err != nil {
			return err
		}
	}

	for _, label := range tracker.StatusLabels {
		if err := e.Tracker.EnsureLabel(ctx, label); err != nil {
			return fmt.Errorf("cannot ensure label %s exists: %w", label, err)
		}
	}

	return nil
}
