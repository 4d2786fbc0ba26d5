package cli

import (
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/daydemir/toil/internal/config"
	"github.com/daydemir/toil/internal/workspace"
)

// loadWorkspace locates the workspace root and reads its configuration,
// honoring the --config override.
func loadWorkspace() (string, *config.Config, error) {
	wsDir, err := workspace.Find()
	if err != nil {
		return "", nil, err
	}

	var cfg *config.Config
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load(wsDir)
	}
	if err != nil {
		return "", nil, err
	}
	return wsDir, cfg, nil
}

// stdinText reads piped stdin. Returns false when stdin is a terminal.
func stdinText() (string, bool) {
	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice != 0 {
		return "", false
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
