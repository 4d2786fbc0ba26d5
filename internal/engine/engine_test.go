package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/toil/internal/agent"
	"github.com/daydemir/toil/internal/display"
	"github.com/daydemir/toil/internal/tracker"
)

// fakeTracker serves scripted items and records every label operation in
// order.
type fakeTracker struct {
	items   []tracker.WorkItem
	ops     []string
	ensured []string
	addErr  map[string]error
	remErr  map[string]error
	onAdd   func(id int, label string)
	listErr error
}

func (t *fakeTracker) Name() string { return "fake" }

func (t *fakeTracker) List(ctx context.Context, filterLabel string) ([]tracker.WorkItem, error) {
	return t.items, t.listErr
}

func (t *fakeTracker) AddLabel(ctx context.Context, id int, label string) error {
	t.ops = append(t.ops, fmt.Sprintf("add #%d %s", id, label))
	if t.onAdd != nil {
		t.onAdd(id, label)
	}
	if err := t.addErr[label]; err != nil {
		return err
	}
	return nil
}

func (t *fakeTracker) RemoveLabel(ctx context.Context, id int, label string) error {
	t.ops = append(t.ops, fmt.Sprintf("remove #%d %s", id, label))
	if err := t.remErr[label]; err != nil {
		return err
	}
	return nil
}

func (t *fakeTracker) LabelNames(ctx context.Context) ([]string, error) { return nil, nil }

func (t *fakeTracker) EnsureLabel(ctx context.Context, label string) error {
	t.ensured = append(t.ensured, label)
	return nil
}

func (t *fakeTracker) Create(ctx context.Context, issue tracker.NewIssue) (int, error) {
	return 0, errors.New("not used")
}

// fakeRepo simulates the working tree. dirty flips when a scripted attempt
// "changes files"; rollback and commit clear it. Every operation lands in
// log for ordering assertions.
type fakeRepo struct {
	head    string
	dirty   bool
	repoOK  bool
	commits []string
	log     []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{head: "abc123", repoOK: true}
}

func (r *fakeRepo) Head(ctx context.Context) (string, error) {
	r.log = append(r.log, "head")
	return r.head, nil
}

func (r *fakeRepo) ResetHard(ctx context.Context, ref string) error {
	r.log = append(r.log, "reset "+ref)
	r.dirty = false
	return nil
}

func (r *fakeRepo) CleanUntracked(ctx context.Context) error {
	r.log = append(r.log, "clean")
	r.dirty = false
	return nil
}

func (r *fakeRepo) HasChanges(ctx context.Context) (bool, error) {
	return r.dirty, nil
}

func (r *fakeRepo) StageAll(ctx context.Context) error {
	r.log = append(r.log, "stage")
	return nil
}

func (r *fakeRepo) Commit(ctx context.Context, message string) error {
	r.log = append(r.log, "commit")
	r.commits = append(r.commits, message)
	r.dirty = false
	return nil
}

func (r *fakeRepo) EnsureRunBranch(ctx context.Context, namespace string, now time.Time) (string, error) {
	branch := namespace + "/2026-08-25"
	r.log = append(r.log, "branch "+branch)
	return branch, nil
}

func (r *fakeRepo) IsRepo(ctx context.Context) bool { return r.repoOK }

// attemptScript describes one scripted agent invocation.
type attemptScript struct {
	text     string // agent text emitted on the stream
	exitErr  error  // nonzero exit, surfaced when the reader is closed
	runErr   error  // failure to start at all
	blockCtx bool   // block until the attempt context ends (timeout path)
	onRun    func() // side effect while the agent "runs"
}

type fakeBackend struct {
	scripts []attemptScript
	calls   int
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Generate(ctx context.Context, opts agent.RunOptions) (string, error) {
	return "", errors.New("not used")
}

func (b *fakeBackend) Run(ctx context.Context, opts agent.RunOptions) (io.ReadCloser, error) {
	idx := b.calls
	b.calls++
	if idx >= len(b.scripts) {
		return nil, errors.New("unexpected agent invocation")
	}
	s := b.scripts[idx]
	if s.onRun != nil {
		s.onRun()
	}
	if s.blockCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.runErr != nil {
		return nil, s.runErr
	}
	return &fakeRunCloser{Reader: strings.NewReader(streamLines(s.text)), closeErr: s.exitErr}, nil
}

type fakeRunCloser struct {
	io.Reader
	closeErr error
}

func (f *fakeRunCloser) Close() error { return f.closeErr }

// streamLines wraps raw agent text into the stream-json framing the engine
// parses.
func streamLines(text string) string {
	if text == "" {
		return ""
	}
	return fmt.Sprintf(`{"type":"assistant","message":{"content":[{"type":"text","text":%q}]}}`+"\n", text)
}

func item(id int, title string, labels ...string) tracker.WorkItem {
	return tracker.WorkItem{
		ID:     id,
		Title:  title,
		Body:   "body of " + title,
		Labels: labels,
		Status: tracker.StatusFromLabels(labels),
	}
}

func newEngine(tr *fakeTracker, repo *fakeRepo, backend *fakeBackend) *Engine {
	return &Engine{
		Tracker: tr,
		Repo:    repo,
		Backend: backend,
		Display: display.NewWithOptions(true, 80),
		Retries: 3,
		Steps:   50,
		Model:   "sonnet",
	}
}

func TestScenarioRetryUntilSummaryCommit(t *testing.T) {
	repo := newFakeRepo()
	tr := &fakeTracker{items: []tracker.WorkItem{item(42, "Fix login bug")}}
	backend := &fakeBackend{scripts: []attemptScript{
		{exitErr: errors.New("exit status 1")},
		{text: "Looked around, nothing to do yet."},
		{
			text:  "Patched the handler.\n###SUMMARY###\nFixed missing null check in login handler.",
			onRun: func() { repo.dirty = true },
		},
	}}

	eng := newEngine(tr, repo, backend)
	state, err := eng.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, backend.calls)
	require.Len(t, state.Solved, 1)
	assert.Equal(t, 42, state.Solved[0].ID)
	assert.Equal(t, "Fix login bug", state.Solved[0].Title)
	assert.Equal(t, 3, state.Solved[0].Attempts)
	assert.Contains(t, state.Solved[0].Summary, "Fixed missing null check")
	assert.Empty(t, state.Failed)

	require.Len(t, repo.commits, 1)
	assert.Contains(t, repo.commits[0], "toil: resolve #42 Fix login bug")
	assert.Contains(t, repo.commits[0], "Fixed missing null check in login handler.")

	assert.Equal(t, []string{
		"add #42 toil:in-progress",
		"remove #42 toil:in-progress",
		"add #42 toil:solved",
	}, tr.ops)
}

func TestLabeledItemsAreSkippedUnconditionally(t *testing.T) {
	repo := newFakeRepo()
	tr := &fakeTracker{items: []tracker.WorkItem{
		item(42, "Fix login bug"),
		item(43, "Migrate payments", "toil:failed"),
		item(44, "Half done work", "toil:in-progress"),
		item(45, "Oddly tagged", "toil:wip"),
	}}
	backend := &fakeBackend{scripts: []attemptScript{
		{
			text:  "###SUMMARY###\ndone",
			onRun: func() { repo.dirty = true },
		},
	}}

	eng := newEngine(tr, repo, backend)
	state, err := eng.Execute(context.Background())
	require.NoError(t, err)

	// Only the unclaimed item reached the agent
	assert.Equal(t, 1, backend.calls)
	require.Len(t, state.Skipped, 3)
	assert.Len(t, state.Solved, 1)

	// Skipped items never see a label mutation
	for _, op := range tr.ops {
		assert.Contains(t, op, "#42")
	}
}

func TestRetryCeilingThenFailed(t *testing.T) {
	repo := newFakeRepo()
	tr := &fakeTracker{items: []tracker.WorkItem{item(7, "Impossible task")}}
	backend := &fakeBackend{scripts: []attemptScript{
		{exitErr: errors.New("exit status 1")},
		{exitErr: errors.New("exit status 1")},
	}}

	eng := newEngine(tr, repo, backend)
	eng.Retries = 2
	state, err := eng.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, backend.calls)
	require.Len(t, state.Failed, 1)
	assert.Equal(t, 2, state.Failed[0].Attempts)
	assert.Contains(t, state.Failed[0].Summary, "retries exhausted after 2 attempts")
	assert.Contains(t, state.Failed[0].Summary, "process_error")
	assert.Empty(t, state.Solved)

	assert.Equal(t, []string{
		"add #7 toil:in-progress",
		"remove #7 toil:in-progress",
		"add #7 toil:failed",
	}, tr.ops)
}

func TestRollbackPrecedesEveryAttemptAndTerminalFailure(t *testing.T) {
	repo := newFakeRepo()
	tr := &fakeTracker{items: []tracker.WorkItem{item(7, "Impossible task")}}
	markRun := func() { repo.log = append(repo.log, "agent") }
	backend := &fakeBackend{scripts: []attemptScript{
		{exitErr: errors.New("exit status 1"), onRun: markRun},
		{exitErr: errors.New("exit status 1"), onRun: markRun},
	}}

	eng := newEngine(tr, repo, backend)
	eng.Retries = 2
	_, err := eng.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"branch toil/2026-08-25",
		"head",
		"reset abc123", "clean", "agent",
		"reset abc123", "clean", "agent",
		"reset abc123", "clean",
	}, repo.log)
}

func TestNoCodeRequiredSolvesWithoutCommit(t *testing.T) {
	repo := newFakeRepo()
	tr := &fakeTracker{items: []tracker.WorkItem{item(9, "Question about config")}}
	backend := &fakeBackend{scripts: []attemptScript{
		{text: "###NO_CODE_REQUIRED###\nAlready configurable via queue.retries."},
	}}

	eng := newEngine(tr, repo, backend)
	state, err := eng.Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, state.Solved, 1)
	assert.Equal(t, 1, state.Solved[0].Attempts)
	assert.Contains(t, state.Solved[0].Summary, "Already configurable")
	assert.Empty(t, repo.commits)
	assert.NotContains(t, repo.log, "stage")

	assert.Equal(t, []string{
		"add #9 toil:in-progress",
		"remove #9 toil:in-progress",
		"add #9 toil:solved",
	}, tr.ops)
}

func TestSuccessWithoutMarkerUsesPlaceholderSummary(t *testing.T) {
	repo := newFakeRepo()
	tr := &fakeTracker{items: []tracker.WorkItem{item(5, "Silent fix")}}
	backend := &fakeBackend{scripts: []attemptScript{
		{text: "changed some files, forgot to summarize", onRun: func() { repo.dirty = true }},
	}}

	eng := newEngine(tr, repo, backend)
	state, err := eng.Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, state.Solved, 1)
	assert.Equal(t, agent.PlaceholderSummary, state.Solved[0].Summary)
	require.Len(t, repo.commits, 1)
	// The placeholder never leaks into the commit body
	assert.NotContains(t, repo.commits[0], agent.PlaceholderSummary)
}

func TestClaimFailureSkipsItemAndRunContinues(t *testing.T) {
	repo := newFakeRepo()
	tr := &fakeTracker{
		items:  []tracker.WorkItem{item(1, "Unclaimable"), item(2, "Fine")},
		addErr: map[string]error{},
	}
	tr.onAdd = func(id int, label string) {
		if id == 1 && label == "toil:in-progress" {
			tr.addErr[label] = errors.New("api: forbidden")
		} else {
			delete(tr.addErr, label)
		}
	}
	backend := &fakeBackend{scripts: []attemptScript{
		{text: "###NO_CODE_REQUIRED###\nnothing to do"},
	}}

	eng := newEngine(tr, repo, backend)
	state, err := eng.Execute(context.Background())
	require.NoError(t, err)

	// The unclaimable item never reached the agent
	assert.Equal(t, 1, backend.calls)
	require.Len(t, state.Skipped, 1)
	assert.Equal(t, 1, state.Skipped[0].ID)
	require.Len(t, state.Solved, 1)
	assert.Equal(t, 2, state.Solved[0].ID)
}

func TestListFailureAbortsRun(t *testing.T) {
	repo := newFakeRepo()
	tr := &fakeTracker{listErr: errors.New("api: rate limited")}
	backend := &fakeBackend{}

	eng := newEngine(tr, repo, backend)
	_, err := eng.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot list work items")
	assert.Equal(t, 0, backend.calls)
}

func TestAttemptTimeoutIsRetryable(t *testing.T) {
	repo := newFakeRepo()
	tr := &fakeTracker{items: []tracker.WorkItem{item(11, "Slow fix")}}
	backend := &fakeBackend{scripts: []attemptScript{
		{blockCtx: true},
		{text: "###SUMMARY###\nquick this time", onRun: func() { repo.dirty = true }},
	}}

	eng := newEngine(tr, repo, backend)
	eng.AttemptTimeout = 5 * time.Millisecond
	state, err := eng.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, backend.calls)
	require.Len(t, state.Solved, 1)
	assert.Equal(t, 2, state.Solved[0].Attempts)
}

func TestEmptyQueueCreatesNoBranch(t *testing.T) {
	repo := newFakeRepo()
	tr := &fakeTracker{items: []tracker.WorkItem{
		item(43, "Migrate payments", "toil:solved"),
	}}
	backend := &fakeBackend{}

	eng := newEngine(tr, repo, backend)
	state, err := eng.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, backend.calls)
	assert.Empty(t, state.Branch)
	assert.NotContains(t, repo.log, "branch toil/2026-08-25")
	assert.Len(t, state.Skipped, 1)
}

func TestRunContinuesPastFailedItem(t *testing.T) {
	repo := newFakeRepo()
	tr := &fakeTracker{items: []tracker.WorkItem{
		item(1, "Cannot be done"),
		item(2, "Can be done"),
	}}
	backend := &fakeBackend{scripts: []attemptScript{
		{exitErr: errors.New("exit status 1")},
		{text: "###SUMMARY###\nfixed", onRun: func() { repo.dirty = true }},
	}}

	eng := newEngine(tr, repo, backend)
	eng.Retries = 1
	state, err := eng.Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, state.Failed, 1)
	require.Len(t, state.Solved, 1)
	assert.Equal(t, 1, state.Failed[0].ID)
	assert.Equal(t, 2, state.Solved[0].ID)
}
