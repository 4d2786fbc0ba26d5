package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/daydemir/toil/internal/artifacts"
	"github.com/daydemir/toil/internal/tracker"
	"github.com/daydemir/toil/internal/utils"
	"github.com/daydemir/toil/internal/workspace"
)

var statusVerbose bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the queue and the last run",
	Long: `Show the current state of the issue queue.

Displays:
  - How many issues are unclaimed, solved, failed or stuck in progress
  - The most recent recorded run
  - Next recommended action

Use --verbose to list every issue in each bucket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wsDir, cfg, err := loadWorkspace()
		if err != nil {
			return err
		}

		ctx := context.Background()
		gh := tracker.NewGitHub(cfg.Tracker.Binary, wsDir)
		items, err := gh.List(ctx, cfg.Queue.Label)
		if err != nil {
			return fmt.Errorf("cannot list issues: %w", err)
		}

		var unclaimed, inProgress, solved, failed []tracker.WorkItem
		for _, item := range items {
			switch item.Status {
			case tracker.StatusInProgress:
				inProgress = append(inProgress, item)
			case tracker.StatusSolved:
				solved = append(solved, item)
			case tracker.StatusFailed:
				failed = append(failed, item)
			default:
				unclaimed = append(unclaimed, item)
			}
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		bold := color.New(color.Bold).SprintFunc()

		fmt.Printf("%s v%s\n\n", bold("toil"), version)

		// Progress bar over resolved items
		done := len(solved) + len(failed)
		total := len(items)
		if total > 0 {
			progress := float64(done) / float64(total)
			barWidth := 20
			filledWidth := int(progress * float64(barWidth))
			bar := strings.Repeat("█", filledWidth) + strings.Repeat("░", barWidth-filledWidth)
			fmt.Printf("Progress: [%s] %d%% (%d/%d issues resolved)\n\n", bar, int(progress*100), done, total)
		}

		fmt.Println(bold("Queue:"))
		fmt.Printf("  ○ Unclaimed:   %d\n", len(unclaimed))
		if len(inProgress) > 0 {
			fmt.Printf("  %s In progress: %d\n", yellow("◐"), len(inProgress))
		}
		fmt.Printf("  %s Solved:      %d\n", green("✓"), len(solved))
		fmt.Printf("  %s Failed:      %d\n", red("✗"), len(failed))
		fmt.Println()

		if statusVerbose {
			printBucket(bold("Unclaimed:"), "○", unclaimed)
			printBucket(bold("In progress:"), yellow("◐"), inProgress)
			printBucket(bold("Solved:"), green("✓"), solved)
			printBucket(bold("Failed:"), red("✗"), failed)
		}

		// Last run, when one was recorded
		store := artifacts.NewStore(afero.NewOsFs(), workspace.Path(wsDir))
		if latest, err := store.Latest(); err == nil {
			fmt.Println(bold("Last run:"))
			if latest.Meta != nil {
				fmt.Printf("  %s  solved %d, failed %d, skipped %d\n",
					cyan(latest.Stamp), latest.Meta.Solved, latest.Meta.Failed, latest.Meta.Skipped)
			} else {
				fmt.Printf("  %s\n", cyan(latest.Stamp))
			}
			fmt.Println()
		}

		fmt.Println(bold("Next Action:"))
		switch {
		case len(inProgress) > 0:
			fmt.Printf("  %s %d issue(s) are stuck in progress, probably from a killed run.\n", yellow("!"), len(inProgress))
			fmt.Printf("  Remove the %s label to make them eligible again.\n", cyan(tracker.LabelInProgress))
		case len(unclaimed) > 0:
			fmt.Printf("  Run: %s\n", cyan("toil"))
			fmt.Printf("  Work through %d unclaimed issue(s)\n", len(unclaimed))
		case len(failed) > 0:
			fmt.Printf("  %s Queue drained, but %d issue(s) failed.\n", yellow("!"), len(failed))
			fmt.Printf("  Read the report with %s, fix what blocked them,\n", cyan("toil runs show"))
			fmt.Printf("  then remove the %s label to retry.\n", cyan(tracker.LabelFailed))
		default:
			fmt.Printf("  %s Queue is clear. File more work with %s\n", green("✓"), cyan("toil create \"description\""))
		}
		fmt.Println()

		return nil
	},
}

func printBucket(header, icon string, items []tracker.WorkItem) {
	if len(items) == 0 {
		return
	}
	dim := color.New(color.FgHiBlack).SprintFunc()
	fmt.Println(header)
	for _, item := range items {
		fmt.Printf("  %s %s %s\n", icon, item.Ref(), item.Title)
		if preview := utils.FirstLine(item.Body, 72); preview != "" {
			fmt.Printf("      %s\n", dim(preview))
		}
	}
	fmt.Println()
}

func init() {
	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "list every issue in each bucket")
	rootCmd.AddCommand(statusCmd)
}
