// Package artifacts persists per-run records under the toil workspace:
// attempt transcripts, the run report, and a machine-readable summary.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	runStampFormat = "2006-01-02-150405"
	reportFile     = "REPORT.md"
	summaryFile    = "run.yaml"
)

// Store manages the runs directory inside a toil workspace.
type Store struct {
	fs   afero.Fs
	root string // .toil/runs/
}

// NewStore creates a store rooted at the runs directory under toilDir.
func NewStore(fs afero.Fs, toilDir string) *Store {
	return &Store{
		fs:   fs,
		root: filepath.Join(toilDir, "runs"),
	}
}

// Begin creates a fresh run directory stamped with the start time.
func (s *Store) Begin(start time.Time) (*Run, error) {
	dir := filepath.Join(s.root, start.Format(runStampFormat))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create run directory: %w", err)
	}
	return &Run{fs: s.fs, Dir: dir, Started: start}, nil
}

// Run is an open run directory that transcripts and the report are written into.
type Run struct {
	fs      afero.Fs
	Dir     string
	Started time.Time
}

// Stamp returns the run's directory name.
func (r *Run) Stamp() string {
	return filepath.Base(r.Dir)
}

// AttemptLogPath returns the transcript path for one attempt at one item.
func (r *Run) AttemptLogPath(itemID, attempt int) string {
	return filepath.Join(r.Dir, fmt.Sprintf("item-%d-attempt-%d.log", itemID, attempt))
}

// WriteAttemptLog persists the captured agent transcript for an attempt.
func (r *Run) WriteAttemptLog(itemID, attempt int, transcript string) error {
	return WriteFileAtomic(r.fs, r.AttemptLogPath(itemID, attempt), []byte(transcript))
}

// ItemLogPath returns the combined engine log path for one item.
func (r *Run) ItemLogPath(itemID int) string {
	return filepath.Join(r.Dir, fmt.Sprintf("item-%d.log", itemID))
}

// AppendItemLog appends one timestamped line to an item's combined log.
func (r *Run) AppendItemLog(itemID int, line string) error {
	f, err := r.fs.OpenFile(r.ItemLogPath(itemID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("cannot open item log: %w", err)
	}
	defer f.Close()
	stamp := time.Now().Format("15:04:05")
	if _, err := fmt.Fprintf(f, "[%s] %s\n", stamp, line); err != nil {
		return fmt.Errorf("cannot append item log: %w", err)
	}
	return nil
}

// WriteReport persists the run report and returns its path.
func (r *Run) WriteReport(data []byte) (string, error) {
	path := filepath.Join(r.Dir, reportFile)
	if err := WriteFileAtomic(r.fs, path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteSummary persists the machine-readable run summary.
func (r *Run) WriteSummary(meta Meta) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("cannot encode run summary: %w", err)
	}
	return WriteFileAtomic(r.fs, filepath.Join(r.Dir, summaryFile), data)
}

// Meta is the machine-readable record of one run.
type Meta struct {
	Started  time.Time  `yaml:"started"`
	Finished time.Time  `yaml:"finished"`
	Branch   string     `yaml:"branch,omitempty"`
	Solved   int        `yaml:"solved"`
	Failed   int        `yaml:"failed"`
	Skipped  int        `yaml:"skipped"`
	Items    []ItemMeta `yaml:"items,omitempty"`
}

// ItemMeta records the outcome of one work item.
type ItemMeta struct {
	ID       int    `yaml:"id"`
	Title    string `yaml:"title"`
	Status   string `yaml:"status"`
	Attempts int    `yaml:"attempts"`
	Summary  string `yaml:"summary,omitempty"`
}

// Info describes one recorded run for listings.
type Info struct {
	Stamp string
	Dir   string
	Meta  *Meta // nil when run.yaml is missing or unreadable
}

// List returns recorded runs, most recent first.
func (s *Store) List() ([]Info, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read runs directory: %w", err)
	}

	var runs []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info := Info{
			Stamp: entry.Name(),
			Dir:   filepath.Join(s.root, entry.Name()),
		}
		if meta, err := s.readMeta(info.Dir); err == nil {
			info.Meta = meta
		}
		runs = append(runs, info)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Stamp > runs[j].Stamp
	})
	return runs, nil
}

// Latest returns the most recent recorded run.
func (s *Store) Latest() (*Info, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs recorded yet")
	}
	return &runs[0], nil
}

// Report reads the report of a recorded run by stamp.
func (s *Store) Report(stamp string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.root, stamp, reportFile))
	if err != nil {
		return nil, fmt.Errorf("cannot read report for run %s: %w", stamp, err)
	}
	return data, nil
}

// WritePlanLog persists a planner session transcript in the runs tree and
// returns its path.
func (s *Store) WritePlanLog(start time.Time, transcript string) (string, error) {
	path := filepath.Join(s.root, fmt.Sprintf("plan-%s.log", start.Format(runStampFormat)))
	if err := WriteFileAtomic(s.fs, path, []byte(transcript)); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) readMeta(dir string) (*Meta, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(dir, summaryFile))
	if err != nil {
		return nil, err
	}
	var meta Meta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
