package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/daydemir/toil/internal/agent"
	"github.com/daydemir/toil/internal/artifacts"
	"github.com/daydemir/toil/internal/display"
	"github.com/daydemir/toil/internal/planner"
	"github.com/daydemir/toil/internal/tracker"
	"github.com/daydemir/toil/internal/workspace"
)

var (
	createInterview bool
	createLabels    []string
	createYes       bool
	createModel     string
)

var createCmd = &cobra.Command{
	Use:   "create [request]",
	Short: "Turn a request into filed issues",
	Long: `Decompose a work request into self-contained issues and file them.

One-shot (default):
  toil create "users should be able to reset their password"
  echo "fix the flaky billing tests" | toil create

  A single planning call splits the request into issues, shows them,
  and files them after confirmation.

Interview mode:
  toil create --interview
  toil create --interview "rough idea to start from"

  The planner asks one clarifying question per turn before deciding.
  Answer 'done' at any point to stop the questions and generate from
  what it has. The session ends on its own after a few turns.

Nothing is filed without confirmation (skip the prompt with --yes).
Every planning session is logged under .toil/runs/.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wsDir, cfg, err := loadWorkspace()
		if err != nil {
			return err
		}

		request := strings.TrimSpace(strings.Join(args, " "))
		if request == "" {
			if text, ok := stdinText(); ok {
				request = text
			}
		}
		if request == "" && !createInterview {
			return fmt.Errorf("describe the work to plan, e.g. toil create \"fix the login flow\" (or use --interview)")
		}
		if !createYes && !stdinIsTerminal() {
			return fmt.Errorf("stdin is not a terminal; pass --yes to file issues non-interactively")
		}

		if createModel != "" {
			cfg.Agent.Model = createModel
		}

		d := display.NewWithOptions(noColor, 0)
		backend := agent.NewClaude(cfg.Agent.Binary)
		if err := backend.CheckInstalled(); err != nil {
			return err
		}
		gh := tracker.NewGitHub(cfg.Tracker.Binary, wsDir)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Existing labels steer the planner toward names already in use
		existing, err := gh.LabelNames(ctx)
		if err != nil {
			d.Warning(fmt.Sprintf("cannot list repository labels: %v", err))
		}

		p := planner.New(backend, cfg.Agent.Model, wsDir)
		started := time.Now()

		var issues []planner.PlannedIssue
		var transcript string
		if createInterview {
			d.Status("starting planning interview (answer 'done' to wrap up)")
			issues, transcript, err = p.Interview(ctx, request, existing, os.Stdin, os.Stdout)
		} else {
			d.Status("decomposing request into issues")
			issues, transcript, err = p.OneShot(ctx, request, existing)
		}

		// The session log is kept even when planning failed
		if transcript != "" {
			store := artifacts.NewStore(afero.NewOsFs(), workspace.Path(wsDir))
			if path, logErr := store.WritePlanLog(started, transcript); logErr != nil {
				d.Warning(fmt.Sprintf("cannot write session log: %v", logErr))
			} else {
				d.Info(fmt.Sprintf("session log: %s", path))
			}
		}
		if err != nil {
			return err
		}

		fmt.Println()
		for i, issue := range issues {
			fmt.Println(d.IssueCard(i+1, issue.Title, issue.Labels, issue.Body))
		}
		fmt.Println()
		fmt.Println(d.CardSummary(len(issues)))
		fmt.Println()

		if !createYes {
			confirmed := false
			form := huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("File %d issue(s)?", len(issues))).
					Affirmative("File them").
					Negative("Discard").
					Value(&confirmed),
			))
			if err := form.Run(); err != nil {
				if err == huh.ErrUserAborted {
					d.Info("discarded, nothing filed")
					return nil
				}
				return err
			}
			if !confirmed {
				d.Info("discarded, nothing filed")
				return nil
			}
		}

		created := 0
		for _, issue := range issues {
			labels := append(issue.Labels, createLabels...)
			id, err := gh.Create(ctx, tracker.NewIssue{
				Title:  issue.Title,
				Body:   issue.Body,
				Labels: labels,
			})
			if err != nil {
				d.Warning(fmt.Sprintf("cannot file %q: %v", issue.Title, err))
				continue
			}
			created++
			d.Success(fmt.Sprintf("filed #%d %s", id, issue.Title))
		}
		if created < len(issues) {
			d.Warning(fmt.Sprintf("filed %d of %d issues", created, len(issues)))
		}
		return nil
	},
}

func init() {
	createCmd.Flags().BoolVarP(&createInterview, "interview", "i", false, "clarify the request in a short question loop first")
	createCmd.Flags().StringSliceVarP(&createLabels, "label", "l", nil, "extra label for every filed issue (repeatable)")
	createCmd.Flags().BoolVarP(&createYes, "yes", "y", false, "file without confirmation")
	createCmd.Flags().StringVar(&createModel, "model", "", "model to use (sonnet, opus, haiku)")
	rootCmd.AddCommand(createCmd)
}
