// Package gitx wraps the git operations the attempt engine relies on:
// checkpoint capture, hard rollback, staging and committing, and run-branch
// creation.
package gitx

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Repo is the git surface consumed by the engine.
type Repo interface {
	// Head returns the current commit hash (the checkpoint reference).
	Head(ctx context.Context) (string, error)

	// ResetHard discards all tracked changes back to ref.
	ResetHard(ctx context.Context, ref string) error

	// CleanUntracked removes untracked files and directories.
	CleanUntracked(ctx context.Context) error

	// HasChanges reports whether the working tree has any modification,
	// staged change, or untracked file.
	HasChanges(ctx context.Context) (bool, error)

	// StageAll stages every change including untracked files.
	StageAll(ctx context.Context) error

	// Commit records staged changes with the given message.
	Commit(ctx context.Context, message string) error

	// EnsureRunBranch creates and checks out a fresh run branch named
	// after the namespace and date, de-duplicated with a time suffix.
	EnsureRunBranch(ctx context.Context, namespace string, now time.Time) (string, error)

	// IsRepo reports whether the work dir is inside a git repository.
	IsRepo(ctx context.Context) bool
}

// Local implements Repo against one working tree via the git CLI.
type Local struct {
	WorkDir string

	// execFn runs one git invocation and returns stdout. Swapped in tests.
	execFn func(ctx context.Context, args ...string) (string, error)
}

// NewLocal creates a git wrapper rooted at workDir.
func NewLocal(workDir string) *Local {
	g := &Local{WorkDir: workDir}
	g.execFn = g.execGit
	return g
}

func (g *Local) execGit(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.WorkDir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (g *Local) Head(ctx context.Context) (string, error) {
	out, err := g.execFn(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("cannot read HEAD: %w", err)
	}
	return out, nil
}

func (g *Local) ResetHard(ctx context.Context, ref string) error {
	_, err := g.execFn(ctx, "reset", "--hard", ref)
	return err
}

func (g *Local) CleanUntracked(ctx context.Context) error {
	_, err := g.execFn(ctx, "clean", "-fd")
	return err
}

func (g *Local) HasChanges(ctx context.Context) (bool, error) {
	// Porcelain output covers modified, staged, and untracked files.
	out, err := g.execFn(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

func (g *Local) StageAll(ctx context.Context) error {
	_, err := g.execFn(ctx, "add", "-A")
	return err
}

func (g *Local) Commit(ctx context.Context, message string) error {
	_, err := g.execFn(ctx, "commit", "-m", message)
	return err
}

func (g *Local) IsRepo(ctx context.Context) bool {
	_, err := g.execFn(ctx, "rev-parse", "--git-dir")
	return err == nil
}

func (g *Local) branchExists(ctx context.Context, name string) (bool, error) {
	_, err := g.execFn(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+name)
	if err != nil {
		// rev-parse --verify --quiet exits nonzero for unknown refs
		// without writing to stderr.
		if strings.Contains(err.Error(), "exit status") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (g *Local) EnsureRunBranch(ctx context.Context, namespace string, now time.Time) (string, error) {
	name, err := RunBranchName(namespace, now, func(candidate string) (bool, error) {
		return g.branchExists(ctx, candidate)
	})
	if err != nil {
		return "", err
	}
	if _, err := g.execFn(ctx, "checkout", "-b", name); err != nil {
		return "", fmt.Errorf("cannot create branch %s: %w", name, err)
	}
	return name, nil
}

// RunBranchName picks the first unused branch name for a run: the plain
// date form, then a date-time form, then numbered variants.
func RunBranchName(namespace string, now time.Time, exists func(string) (bool, error)) (string, error) {
	candidates := []string{
		fmt.Sprintf("%s/%s", namespace, now.Format("2006-01-02")),
		fmt.Sprintf("%s/%s", namespace, now.Format("2006-01-02-150405")),
	}
	for i := 1; i <= 10; i++ {
		candidates = append(candidates, fmt.Sprintf("%s/%s-%d", namespace, now.Format("2006-01-02-150405"), i))
	}

	for _, name := range candidates {
		taken, err := exists(name)
		if err != nil {
			return "", fmt.Errorf("cannot check branch %s: %w", name, err)
		}
		if !taken {
			return name, nil
		}
	}
	return "", fmt.Errorf("no free run branch name under %s/", namespace)
}
