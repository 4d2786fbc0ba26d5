package artifacts

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestBeginCreatesStampedRunDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, ".toil")

	start := time.Date(2026, 8, 25, 14, 30, 22, 0, time.UTC)
	run, err := store.Begin(start)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if run.Dir != ".toil/runs/2026-08-25-143022" {
		t.Errorf("run dir = %q, want %q", run.Dir, ".toil/runs/2026-08-25-143022")
	}
	if run.Stamp() != "2026-08-25-143022" {
		t.Errorf("stamp = %q, want %q", run.Stamp(), "2026-08-25-143022")
	}

	info, err := fs.Stat(run.Dir)
	if err != nil {
		t.Fatalf("run dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("run dir is not a directory")
	}
}

func TestRunWritesAttemptLogAndReport(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, ".toil")
	run, err := store.Begin(time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if err := run.WriteAttemptLog(42, 2, "transcript text"); err != nil {
		t.Fatalf("WriteAttemptLog() error = %v", err)
	}
	logPath := run.AttemptLogPath(42, 2)
	if !strings.HasSuffix(logPath, "item-42-attempt-2.log") {
		t.Errorf("attempt log path = %q", logPath)
	}
	content, err := afero.ReadFile(fs, logPath)
	if err != nil {
		t.Fatalf("cannot read attempt log: %v", err)
	}
	if string(content) != "transcript text" {
		t.Errorf("attempt log content = %q", string(content))
	}

	path, err := run.WriteReport([]byte("# Run Report\n"))
	if err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	report, err := store.Report(run.Stamp())
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if string(report) != "# Run Report\n" {
		t.Errorf("report content = %q, path = %q", string(report), path)
	}
}

func TestAppendItemLogAccumulatesLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, ".toil")
	run, err := store.Begin(time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if err := run.AppendItemLog(42, "attempt 1: process error"); err != nil {
		t.Fatalf("AppendItemLog() error = %v", err)
	}
	if err := run.AppendItemLog(42, "attempt 2: solved"); err != nil {
		t.Fatalf("AppendItemLog() error = %v", err)
	}

	content, err := afero.ReadFile(fs, run.ItemLogPath(42))
	if err != nil {
		t.Fatalf("cannot read item log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("item log has %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "attempt 1: process error") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "attempt 2: solved") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestWritePlanLog(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, ".toil")

	path, err := store.WritePlanLog(time.Date(2026, 8, 25, 16, 45, 0, 0, time.UTC), "OPERATOR: add caching\n")
	if err != nil {
		t.Fatalf("WritePlanLog() error = %v", err)
	}
	if !strings.HasSuffix(path, "plan-2026-08-25-164500.log") {
		t.Errorf("plan log path = %q", path)
	}
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("cannot read plan log: %v", err)
	}
	if string(content) != "OPERATOR: add caching\n" {
		t.Errorf("plan log content = %q", string(content))
	}
}

func TestSummaryRoundTripsThroughList(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, ".toil")
	started := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	run, err := store.Begin(started)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	meta := Meta{
		Started:  started,
		Finished: started.Add(12 * time.Minute),
		Branch:   "toil/2026-08-25",
		Solved:   2,
		Failed:   1,
		Items: []ItemMeta{
			{ID: 42, Title: "Fix login bug", Status: "solved", Attempts: 2, Summary: "Fixed null check"},
		},
	}
	if err := run.WriteSummary(meta); err != nil {
		t.Fatalf("WriteSummary() error = %v", err)
	}

	runs, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("List() returned %d runs, want 1", len(runs))
	}
	got := runs[0]
	if got.Meta == nil {
		t.Fatal("List() did not load run.yaml")
	}
	if got.Meta.Branch != "toil/2026-08-25" {
		t.Errorf("branch = %q", got.Meta.Branch)
	}
	if got.Meta.Solved != 2 || got.Meta.Failed != 1 {
		t.Errorf("counts = %d solved, %d failed", got.Meta.Solved, got.Meta.Failed)
	}
	if len(got.Meta.Items) != 1 || got.Meta.Items[0].ID != 42 {
		t.Errorf("items = %+v", got.Meta.Items)
	}
}

func TestListSortsMostRecentFirst(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, ".toil")

	stamps := []string{"2026-08-23-090000", "2026-08-25-143022", "2026-08-24-120000"}
	for _, stamp := range stamps {
		if _, err := store.Begin(mustParseStamp(t, stamp)); err != nil {
			t.Fatalf("Begin(%s) error = %v", stamp, err)
		}
	}

	runs, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"2026-08-25-143022", "2026-08-24-120000", "2026-08-23-090000"}
	if len(runs) != len(want) {
		t.Fatalf("List() returned %d runs, want %d", len(runs), len(want))
	}
	for i, stamp := range want {
		if runs[i].Stamp != stamp {
			t.Errorf("runs[%d] = %q, want %q", i, runs[i].Stamp, stamp)
		}
	}

	latest, err := store.Latest()
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Stamp != "2026-08-25-143022" {
		t.Errorf("Latest() = %q", latest.Stamp)
	}
}

func TestListWithoutRunsDirReturnsEmpty(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), ".toil")
	runs, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("List() returned %d runs, want 0", len(runs))
	}
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := WriteFileAtomic(fs, "dir/file.txt", []byte("content")); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}

	content, err := afero.ReadFile(fs, "dir/file.txt")
	if err != nil {
		t.Fatalf("cannot read file: %v", err)
	}
	if string(content) != "content" {
		t.Errorf("content = %q", string(content))
	}

	entries, err := afero.ReadDir(fs, "dir")
	if err != nil {
		t.Fatalf("cannot read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}

func mustParseStamp(t *testing.T, stamp string) time.Time {
	t.Helper()
	parsed, err := time.Parse(runStampFormat, stamp)
	if err != nil {
		t.Fatalf("bad stamp %q: %v", stamp, err)
	}
	return parsed
}
