package cli

import (
	"github.com/daydemir/toil/internal/workspace"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new toil workspace",
	Long: `Initialize a new toil workspace in the current directory.

Creates .toil/ with:
  - config.yaml     Agent, queue, tracker and report settings
  - instructions.md Project context appended to every solve prompt
  - prompts/        Customizable prompt templates
  - runs/           Run artifacts (transcripts, reports)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return workspace.Init(initForce)
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing workspace")
	rootCmd.AddCommand(initCmd)
}
