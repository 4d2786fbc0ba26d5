package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/daydemir/toil/internal/utils"
)

// listLimit bounds one List call. The queue is processed sequentially, so a
// run never needs more than this many items anyway.
const listLimit = 200

// labelColor is the fixed color for queue-owned labels. Color and
// description bookkeeping beyond creation is out of scope.
const labelColor = "d4c5f9"

// retryMaxElapsed caps the retry window for transient gh failures.
const retryMaxElapsed = 30 * time.Second

// GitHub implements Tracker on top of the gh CLI.
type GitHub struct {
	BinaryPath string
	WorkDir    string

	// execFn runs one gh invocation and returns stdout. Swapped in tests.
	execFn func(ctx context.Context, args ...string) ([]byte, error)
}

// NewGitHub creates a gh-backed tracker rooted at workDir.
func NewGitHub(binaryPath, workDir string) *GitHub {
	if binaryPath == "" {
		binaryPath = "gh"
	}
	g := &GitHub{
		BinaryPath: utils.ResolveBinaryPath(binaryPath),
		WorkDir:    workDir,
	}
	g.execFn = g.execGH
	return g
}

func (g *GitHub) Name() string {
	return "github"
}

func (g *GitHub) execGH(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, g.BinaryPath, args...)
	cmd.Dir = g.WorkDir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("gh %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("gh %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

func newRetryBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed
	return bo
}

// isRetryableError reports whether a gh failure looks like a transient
// network problem worth retrying.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"timeout",
		"timed out",
		"connection refused",
		"connection reset",
		"temporarily unavailable",
		"502",
		"503",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// run executes gh with retries for transient errors. Non-retryable errors
// stop immediately.
func (g *GitHub) run(ctx context.Context, args ...string) ([]byte, error) {
	var out []byte
	op := func() error {
		var err error
		out, err = g.execFn(ctx, args...)
		if err != nil && isRetryableError(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(newRetryBackoff(), ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

// ghIssue mirrors the fields requested via --json.
type ghIssue struct {
	Number int       `json:"number"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	Labels []ghLabel `json:"labels"`
}

type ghLabel struct {
	Name string `json:"name"`
}

func (i ghIssue) workItem() WorkItem {
	labels := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		labels = append(labels, l.Name)
	}
	return WorkItem{
		ID:     i.Number,
		Title:  i.Title,
		Body:   i.Body,
		Labels: labels,
		Status: StatusFromLabels(labels),
	}
}

func (g *GitHub) List(ctx context.Context, filterLabel string) ([]WorkItem, error) {
	args := []string{
		"issue", "list",
		"--state", "open",
		"--json", "number,title,body,labels",
		"--limit", strconv.Itoa(listLimit),
	}
	if filterLabel != "" {
		args = append(args, "--label", filterLabel)
	}

	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}

	var issues []ghIssue
	if err := json.Unmarshal(out, &issues); err != nil {
		return nil, fmt.Errorf("failed to parse issue list: %w", err)
	}

	items := make([]WorkItem, 0, len(issues))
	for _, i := range issues {
		items = append(items, i.workItem())
	}
	return items, nil
}

func (g *GitHub) AddLabel(ctx context.Context, id int, label string) error {
	_, err := g.run(ctx, "issue", "edit", strconv.Itoa(id), "--add-label", label)
	return err
}

func (g *GitHub) RemoveLabel(ctx context.Context, id int, label string) error {
	_, err := g.run(ctx, "issue", "edit", strconv.Itoa(id), "--remove-label", label)
	return err
}

func (g *GitHub) LabelNames(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "label", "list", "--json", "name", "--limit", strconv.Itoa(listLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}

	var labels []ghLabel
	if err := json.Unmarshal(out, &labels); err != nil {
		return nil, fmt.Errorf("failed to parse label list: %w", err)
	}

	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	return names, nil
}

func (g *GitHub) EnsureLabel(ctx context.Context, label string) error {
	// --force makes creation idempotent when the label already exists.
	_, err := g.run(ctx, "label", "create", label, "--color", labelColor, "--force")
	return err
}

func (g *GitHub) Create(ctx context.Context, issue NewIssue) (int, error) {
	args := []string{"issue", "create", "--title", issue.Title, "--body", issue.Body}
	for _, l := range issue.Labels {
		args = append(args, "--label", l)
	}

	out, err := g.run(ctx, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to create issue: %w", err)
	}

	id, err := parseIssueURL(string(out))
	if err != nil {
		return 0, err
	}
	return id, nil
}

// parseIssueURL extracts the issue number from gh's created-issue URL,
// e.g. "https://github.com/owner/repo/issues/42".
func parseIssueURL(out string) (int, error) {
	url := strings.TrimSpace(out)
	if i := strings.LastIndexByte(url, '\n'); i >= 0 {
		url = strings.TrimSpace(url[i+1:])
	}
	idx := strings.LastIndexByte(url, '/')
	if idx < 0 {
		return 0, fmt.Errorf("unexpected gh output: %q", out)
	}
	id, err := strconv.Atoi(url[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("unexpected gh output: %q", out)
	}
	return id, nil
}

// CheckAuth verifies gh exists and can reach the tracker with valid
// credentials.
func (g *GitHub) CheckAuth(ctx context.Context) error {
	if _, err := exec.LookPath(g.BinaryPath); err != nil {
		return utils.GHNotFoundError()
	}
	if _, err := g.execFn(ctx, "auth", "status"); err != nil {
		return fmt.Errorf(`gh is not authenticated

Run:
  gh auth login

toil uses the gh CLI for all issue operations.`)
	}
	return nil
}
