// Package controller provides output adapters for displaying transpile
// results.
package controller

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
)

// UI defines the interface for presenting transpiler output.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	// ShowScripts displays the candidate script listing.
	ShowScripts(ctx context.Context, scripts []m.ScriptInfo) error
	// ShowSummary displays the totals of a finished transpile run.
	ShowSummary(ctx context.Context, stats m.TranspileStats, output string) error
	// ShowDiff displays one script's unified source diff.
	ShowDiff(ctx context.Context, path string, diff string) error
}

// NewUI picks the presentation suited to the output: the interactive pager
// on a terminal, plain text everywhere else.
func NewUI(cmd *cobra.Command, isTTY bool) UI {
	if isTTY {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether the file is attached to a terminal.
func IsTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
