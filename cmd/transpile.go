package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pluginproxy.dev/pkg/pluginproxy/internal/controller"
	"pluginproxy.dev/pkg/pluginproxy/internal/domain"
)

var transpileOutputFlag string
var transpileDiffFlag bool
var transpileWatchFlag bool
var transpileReportsFlag string

// transpileCmd represents the transpile command.
var transpileCmd = newTranspileCmd()

func newTranspileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transpile [input]",
		Short: "Transpile a plugin document into a requirable library",
		Long:  transpileLongDescription,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}

			return workflow.Transpile(context.Background(), domain.TranspileArgs{
				Input:       input,
				Output:      transpileOutputFlag,
				Exclude:     viper.GetStringSlice(excludeConfigKey),
				IncludeLibs: viper.GetBool(includeLibsConfigKey),
				ShowDiff:    transpileDiffFlag,
				Watch:       transpileWatchFlag,
				Reports:     viper.GetString(reportsConfigKey),
				Interactive: controller.IsTTY(os.Stdout),
			})
		},
	}

	configureTranspileFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(transpileCmd)
}

func configureTranspileFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&transpileOutputFlag, outputFlagName, "o", "", "output document path (default: out.rbxm next to the input)")
	cmd.Flags().BoolVar(&transpileDiffFlag, diffFlagName, false, "print a unified diff per rewritten script")
	cmd.Flags().BoolVarP(&transpileWatchFlag, watchFlagName, "w", false, "rerun whenever the input file changes")
	cmd.Flags().StringVar(&transpileReportsFlag, reportsFlagName, viper.GetString(reportsConfigKey), "directory for run reports")
	bindFlagToConfig(cmd.Flags().Lookup(reportsFlagName), reportsConfigKey)
}
