package workspace

import (
	"errors"
	"os"
	"path/filepath"
)

const ToilDir = ".toil"

var ErrNoWorkspace = errors.New("no toil workspace found (run 'toil init' first)")
var ErrWorkspaceExists = errors.New("toil workspace already exists (use --force to overwrite)")

// Find walks up from cwd looking for a .toil/ directory
func Find() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		toilPath := filepath.Join(dir, ToilDir)
		if info, err := os.Stat(toilPath); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoWorkspace
		}
		dir = parent
	}
}

// Path returns the .toil directory path for a workspace
func Path(workspaceDir string) string {
	return filepath.Join(workspaceDir, ToilDir)
}

// ConfigPath returns the config.yaml path
func ConfigPath(workspaceDir string) string {
	return filepath.Join(workspaceDir, ToilDir, "config.yaml")
}

// InstructionsPath returns the instructions.md path
func InstructionsPath(workspaceDir string) string {
	return filepath.Join(workspaceDir, ToilDir, "instructions.md")
}

// Instructions returns the project instructions, or "" when the file is
// absent or empty.
func Instructions(workspaceDir string) string {
	data, err := os.ReadFile(InstructionsPath(workspaceDir))
	if err != nil {
		return ""
	}
	return string(data)
}
