package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/daydemir/toil/internal/prompts"
)

// Init creates a new toil workspace in the current directory
func Init(force bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	toilPath := filepath.Join(cwd, ToilDir)

	// Check if workspace already exists
	if _, err := os.Stat(toilPath); err == nil {
		if !force {
			return ErrWorkspaceExists
		}
		// Remove existing workspace if force
		if err := os.RemoveAll(toilPath); err != nil {
			return fmt.Errorf("failed to remove existing workspace: %w", err)
		}
	}

	// Create directory structure
	dirs := []string{
		toilPath,
		filepath.Join(toilPath, "prompts"),
		filepath.Join(toilPath, "runs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Create config.yaml
	if err := writeFile(filepath.Join(toilPath, "config.yaml"), defaultConfig); err != nil {
		return err
	}

	// Create instructions.md
	if err := writeFile(filepath.Join(toilPath, "instructions.md"), defaultInstructions); err != nil {
		return err
	}

	// Copy prompt templates
	if err := copyPrompts(filepath.Join(toilPath, "prompts")); err != nil {
		return err
	}

	fmt.Println("Initialized toil workspace in", toilPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit .toil/instructions.md with your build and test commands")
	fmt.Println("  2. Run 'toil create \"describe the work\"' to file issues")
	fmt.Println("  3. Run 'toil' to work through them")

	return nil
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func copyPrompts(promptsDir string) error {
	for _, name := range prompts.Names() {
		content, err := prompts.Get(name)
		if err != nil {
			return fmt.Errorf("failed to get embedded prompt %s: %w", name, err)
		}
		path := filepath.Join(promptsDir, name)
		if err := writeFile(path, content); err != nil {
			return err
		}
	}
	return nil
}

const defaultConfig = `# toil configuration
agent:
  binary: claude           # Path to Claude Code CLI
  model: sonnet
  allowed_tools:
    - Read
    - Write
    - Edit
    - Bash
    - Glob
    - Grep
    - Task
    - TodoWrite
    - WebFetch
    - WebSearch

queue:
  retries: 3               # Attempts per item before it is labeled toil:failed
  steps: 50                # Agent step budget per attempt
  label: ""                # Only pick up issues carrying this label (empty = all open)
  attempt_timeout_mins: 30 # Wall-clock limit per attempt (negative disables)

tracker:
  binary: gh               # Path to GitHub CLI

report:
  max_bytes: 65536         # REPORT.md size cap
`

const defaultInstructions = `# Project Instructions

Everything in this file is appended to the prompt for every issue toil
works on. Describe how to build and test this project so the agent can
verify its own changes before declaring a summary.

## Build & Test Commands

- Build: ` + "`make build`" + `
- Test: ` + "`make test`" + `
- Lint: ` + "`make lint`" + `

## Conventions

Key conventions the agent should follow:
- (coding style, commit expectations, directories to avoid)
`
