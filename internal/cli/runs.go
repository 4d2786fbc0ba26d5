package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/daydemir/toil/internal/artifacts"
	"github.com/daydemir/toil/internal/workspace"
)

var runsShowRaw bool

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Long: `List recorded runs, most recent first.

Every run leaves a directory under .toil/runs/ with the agent
transcripts, a REPORT.md and a run.yaml summary.

Subcommands:
  list     List recorded runs (the default)
  show     Render a run's report (latest by default)`,
	RunE: listRuns,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	RunE:  listRuns,
}

func listRuns(cmd *cobra.Command, args []string) error {
	wsDir, _, err := loadWorkspace()
	if err != nil {
		return err
	}

	store := artifacts.NewStore(afero.NewOsFs(), workspace.Path(wsDir))
	runs, err := store.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet. Run 'toil' to work through the queue.")
		return nil
	}

	cyan := color.New(color.FgCyan).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	dim := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("Found %d run(s):\n\n", len(runs))
	for _, run := range runs {
		if run.Meta == nil {
			fmt.Printf("  %s  %s\n", cyan(run.Stamp), dim("(no summary)"))
			continue
		}
		fmt.Printf("  %s  %s %d  %s %d  skipped %d  %s\n",
			cyan(run.Stamp),
			green("solved"), run.Meta.Solved,
			red("failed"), run.Meta.Failed,
			run.Meta.Skipped,
			dim(run.Meta.Branch))
	}
	fmt.Println("\nUse 'toil runs show [stamp]' to read a report.")
	return nil
}

var runsShowCmd = &cobra.Command{
	Use:   "show [stamp]",
	Short: "Render a run's report",
	Long: `Render a run's REPORT.md to the terminal.

Without an argument the most recent run is shown. Pass a run stamp
(from 'toil runs') to show an older one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wsDir, _, err := loadWorkspace()
		if err != nil {
			return err
		}

		store := artifacts.NewStore(afero.NewOsFs(), workspace.Path(wsDir))
		stamp := ""
		if len(args) == 1 {
			stamp = args[0]
		} else {
			latest, err := store.Latest()
			if err != nil {
				return err
			}
			stamp = latest.Stamp
		}

		data, err := store.Report(stamp)
		if err != nil {
			return err
		}

		if runsShowRaw {
			fmt.Print(string(data))
			return nil
		}
		fmt.Print(renderMarkdown(string(data)))
		return nil
	},
}

// renderMarkdown renders a markdown document for the terminal, falling back
// to the raw text when rendering is unavailable.
func renderMarkdown(markdown string) string {
	if noColor {
		return markdown
	}

	// Wrap at terminal width, capped for readability
	const maxReadableWidth = 100
	wrapWidth := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		wrapWidth = w
	}
	if wrapWidth > maxReadableWidth {
		wrapWidth = maxReadableWidth
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return markdown
	}

	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return rendered
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsShowCmd.Flags().BoolVar(&runsShowRaw, "raw", false, "print the report without rendering")
}
