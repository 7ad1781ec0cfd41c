package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pluginproxy.dev/pkg/pluginproxy/internal/domain"
)

var viewThreadsFlag int

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <input>",
		Short: "List the scripts a plugin document contains",
		Long:  viewLongDescription,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return workflow.View(context.Background(), domain.ViewArgs{
				Input:       args[0],
				Exclude:     viper.GetStringSlice(excludeConfigKey),
				IncludeLibs: viper.GetBool(includeLibsConfigKey),
				Threads:     viper.GetInt(threadsConfigKey),
			})
		},
	}

	configureViewFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(viewCmd)
}

func configureViewFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&viewThreadsFlag, threadsFlagName, "t", viper.GetInt(threadsConfigKey), "number of parallel workers for the source scan")
	bindFlagToConfig(cmd.Flags().Lookup(threadsFlagName), threadsConfigKey)
}
