package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"pluginproxy.dev/pkg/pluginproxy/internal/domain"
)

// diffCmd represents the diff command.
var diffCmd = newDiffCmd()

func newDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <before> <after>",
		Short: "Diff the script sources of two plugin documents",
		Long:  "Print unified diffs of the Source properties of scripts that exist, by tree path, in both documents.",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return workflow.Diff(context.Background(), domain.DiffArgs{
				Before: args[0],
				After:  args[1],
			})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(diffCmd)
}
