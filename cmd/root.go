// Package cmd provides the root command and CLI setup for the PluginProxy
// Transpiler.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"pluginproxy.dev/pkg/pluginproxy/internal/adapter"
	"pluginproxy.dev/pkg/pluginproxy/internal/controller"
	"pluginproxy.dev/pkg/pluginproxy/internal/domain"
)

var luauAdapter adapter.LuauFileAdapter
var modelAdapter adapter.ModelFileAdapter
var reportStore adapter.ReportStore
var filePicker adapter.FilePicker
var rewriter domain.Rewriter
var transpiler domain.Transpiler
var workflow domain.Workflow
var ui controller.UI

// verboseFlag switches logging from the rotating file to stderr.
var verboseFlag bool

// logFileFlag overrides the log file location.
var logFileFlag string

// excludeGlobs filters candidate scripts out of the rewrite set.
var excludeGlobs []string

// includeLibsFlag disables the exclusion globs entirely.
var includeLibsFlag bool

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
	luauAdapter = adapter.NewTreeSitterLuauAdapter()
	modelAdapter = adapter.NewLocalModelFileAdapter()
	reportStore = adapter.NewYAMLReportStore()
	filePicker = adapter.NewTUIFilePicker(os.Stdout)
	rewriter = domain.NewRewriter(luauAdapter)
	transpiler = domain.NewTranspiler(rewriter)
	workflow = domain.NewWorkflow(
		modelAdapter,
		luauAdapter,
		reportStore,
		filePicker,
		ui,
		transpiler,
	)
}

const fileFormatsHelp = `Supported document formats, picked by file extension:
  - .rbxm  .rbxl    binary model/place files
  - .rbxmx .rbxlx   XML model/place files`

const rootLongDescription = `PluginProxy converts a Roblox Studio plugin into a requirable library:
privileged API usage inside every contained script is rewritten to route
through an injected globals object, and the entry-point script is wrapped
into a module exposing a single init function.

` + fileFormatsHelp

const transpileLongDescription = `Transpile a plugin document into its requirable library form (default
output: out.rbxm next to the input).

` + fileFormatsHelp

const viewLongDescription = `List the scripts the transpiler would touch: tree path, class, depth,
source size and whether the exclusion globs would skip it.

` + fileFormatsHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pluginproxy",
		Short: "Roblox plugin to requirable library transpiler",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(logFileFlag, viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "log to stderr at debug level instead of the log file")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)

	cmd.PersistentFlags().StringVar(&logFileFlag, "log-file", viper.GetString(logFilenameKey), "log file location")
	bindFlagToConfig(cmd.PersistentFlags().Lookup("log-file"), logFilenameKey)

	cmd.PersistentFlags().StringArrayVarP(&excludeGlobs, excludeFlagName, "x", viper.GetStringSlice(excludeConfigKey), "exclude scripts whose tree path matches glob (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)

	cmd.PersistentFlags().BoolVar(&includeLibsFlag, includeLibsFlagName, viper.GetBool(includeLibsConfigKey), "rewrite bundled third-party library scripts too")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(includeLibsFlagName), includeLibsConfigKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
