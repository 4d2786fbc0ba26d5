package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	cfgFile string
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "toil",
	Short: "Autonomous issue queue runner for Claude Code",
	Long: `toil works through your issue backlog with Claude Code.

Running 'toil' with no arguments picks up every open unclaimed issue,
gives each one a bounded number of attempts on a dated run branch, and
resolves it to toil:solved or toil:failed. One commit per solved issue,
nothing is ever pushed.

Get started:
  toil init                 Initialize a workspace
  toil create "the work"    Turn a request into filed issues
  toil                      Work through the queue
  toil runs show            Read the latest run report`,
	Version:      version,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSolve(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .toil/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.Flags().IntVar(&solveRetries, "retries", 0, "attempts per issue before it is labeled toil:failed")
	rootCmd.Flags().IntVar(&solveSteps, "steps", 0, "agent step budget per attempt")
	rootCmd.Flags().StringVar(&solveLabel, "label", "", "only pick up issues carrying this label")
	rootCmd.Flags().StringVar(&solveModel, "model", "", "model to use (sonnet, opus, haiku)")
	rootCmd.SetVersionTemplate(fmt.Sprintf("toil version %s\n", version))
}
