package tracker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeGitHub(fn func(args ...string) ([]byte, error)) *GitHub {
	g := &GitHub{BinaryPath: "gh"}
	g.execFn = func(ctx context.Context, args ...string) ([]byte, error) {
		return fn(args...)
	}
	return g
}

func TestListParsesIssues(t *testing.T) {
	var gotArgs []string
	g := newFakeGitHub(func(args ...string) ([]byte, error) {
		gotArgs = args
		return []byte(`[
			{"number": 42, "title": "Fix login bug", "body": "steps to reproduce", "labels": [{"name": "bug"}]},
			{"number": 43, "title": "Old failure", "body": "", "labels": [{"name": "toil:failed"}]}
		]`), nil
	})

	items, err := g.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, 42, items[0].ID)
	assert.Equal(t, "Fix login bug", items[0].Title)
	assert.Equal(t, StatusUnclaimed, items[0].Status)
	assert.Equal(t, StatusFailed, items[1].Status)

	assert.Contains(t, gotArgs, "--state")
	assert.Contains(t, gotArgs, "open")
	assert.NotContains(t, gotArgs, "--label")
}

func TestListAppliesFilterLabel(t *testing.T) {
	var gotArgs []string
	g := newFakeGitHub(func(args ...string) ([]byte, error) {
		gotArgs = args
		return []byte(`[]`), nil
	})

	_, err := g.List(context.Background(), "backend")
	require.NoError(t, err)

	joined := strings.Join(gotArgs, " ")
	assert.Contains(t, joined, "--label backend")
}

func TestCreateParsesIssueNumber(t *testing.T) {
	var gotArgs []string
	g := newFakeGitHub(func(args ...string) ([]byte, error) {
		gotArgs = args
		return []byte("https://github.com/daydemir/toil/issues/77\n"), nil
	})

	id, err := g.Create(context.Background(), NewIssue{
		Title:  "Add rate limiting",
		Body:   "details",
		Labels: []string{"backend", "toil-created"},
	})
	require.NoError(t, err)
	assert.Equal(t, 77, id)

	joined := strings.Join(gotArgs, " ")
	assert.Contains(t, joined, "--title Add rate limiting")
	assert.Contains(t, joined, "--label backend")
	assert.Contains(t, joined, "--label toil-created")
}

func TestParseIssueURL(t *testing.T) {
	testCases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"https://github.com/o/r/issues/5", 5, false},
		{"Creating issue...\nhttps://github.com/o/r/issues/120\n", 120, false},
		{"no url here", 0, true},
		{"", 0, true},
	}

	for _, tc := range testCases {
		got, err := parseIssueURL(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestRunRetriesTransientErrors(t *testing.T) {
	calls := 0
	g := newFakeGitHub(func(args ...string) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("gh issue list: connection reset by peer")
		}
		return []byte(`[]`), nil
	})

	_, err := g.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "transient error should be retried")
}

func TestRunDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	g := newFakeGitHub(func(args ...string) ([]byte, error) {
		calls++
		return nil, errors.New("gh issue edit: label not found")
	})

	err := g.AddLabel(context.Background(), 42, LabelSolved)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "permanent errors should not be retried")
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.True(t, isRetryableError(errors.New("request timed out")))
	assert.True(t, isRetryableError(errors.New("HTTP 502 from api.github.com")))
	assert.False(t, isRetryableError(errors.New("could not resolve to an issue")))
}
