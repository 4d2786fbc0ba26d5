package agent

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/daydemir/toil/internal/utils"
)

// terminateGrace is how long a canceled agent process gets to exit after
// SIGINT before it is killed.
const terminateGrace = 10 * time.Second

// Claude implements the Backend interface for the Claude Code CLI
type Claude struct {
	BinaryPath string
}

// NewClaude creates a new Claude backend
func NewClaude(binaryPath string) *Claude {
	if binaryPath == "" {
		binaryPath = "claude"
	}
	resolved := utils.ResolveBinaryPath(binaryPath)
	return &Claude{BinaryPath: resolved}
}

func (c *Claude) Name() string {
	return "claude"
}

// CheckInstalled verifies the claude binary is reachable.
func (c *Claude) CheckInstalled() error {
	if _, err := exec.LookPath(c.BinaryPath); err != nil {
		return utils.ClaudeNotFoundError()
	}
	return nil
}

// Run starts Claude Code and returns its streaming output
func (c *Claude) Run(ctx context.Context, opts RunOptions) (io.ReadCloser, error) {
	args := c.buildArgs(opts, true)

	cmd := exec.CommandContext(ctx, c.BinaryPath, args...)
	cmd.Dir = opts.WorkDir
	cmd.Stderr = os.Stderr
	// On cancellation, interrupt the child and give it time to exit
	// cleanly before the kill; the caller's Close blocks until the
	// process is fully gone.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = terminateGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if strings.Contains(err.Error(), "executable file not found") {
			return nil, utils.ClaudeNotFoundError()
		}
		return nil, fmt.Errorf("failed to start claude: %w", err)
	}

	// Return a wrapper that waits for the command when closed
	return &cmdReader{
		ReadCloser: stdout,
		cmd:        cmd,
	}, nil
}

// Generate runs Claude Code in print mode and captures its text output
func (c *Claude) Generate(ctx context.Context, opts RunOptions) (string, error) {
	args := c.buildArgs(opts, false)

	cmd := exec.CommandContext(ctx, c.BinaryPath, args...)
	cmd.Dir = opts.WorkDir
	cmd.Stderr = os.Stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = terminateGrace

	out, err := cmd.Output()
	if err != nil {
		if strings.Contains(err.Error(), "executable file not found") {
			return "", utils.ClaudeNotFoundError()
		}
		return "", fmt.Errorf("claude generation failed: %w", err)
	}
	return string(out), nil
}

func (c *Claude) buildArgs(opts RunOptions, stream bool) []string {
	var args []string

	// Skip permissions for autonomous execution
	args = append(args, "--dangerously-skip-permissions")

	// Model
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}

	// Prompt
	if opts.Prompt != "" {
		args = append(args, "-p", opts.Prompt)
	}

	// Allowed tools
	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(opts.AllowedTools, ","))
	}

	// Step budget
	if opts.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(opts.MaxTurns))
	}

	// Output format (only when the caller consumes the stream)
	if stream {
		args = append(args, "--output-format", "stream-json", "--verbose")
	}

	return args
}

// cmdReader wraps an io.ReadCloser and waits for the command on close
type cmdReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (r *cmdReader) Close() error {
	closeErr := r.ReadCloser.Close()
	waitErr := r.cmd.Wait()
	if waitErr != nil {
		return waitErr
	}
	return closeErr
}
