package controller

import (
	"bytes"
	"context"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
)

// SimpleUI implements UI using cobra Command's Println.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// ShowScripts prints the candidate script listing as a table.
func (s *SimpleUI) ShowScripts(ctx context.Context, scripts []m.ScriptInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\n%s", renderScriptTable(scripts))

	return nil
}

func renderScriptTable(scripts []m.ScriptInfo) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Path", "Class", "Depth", "Bytes", "Lines", "Status"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
	})

	excluded := 0

	for _, script := range scripts {
		if script.Excluded {
			excluded++
		}

		table.Append([]string{
			script.Path,
			script.Class,
			fmt.Sprintf("%d", script.Depth),
			fmt.Sprintf("%d", script.Bytes),
			fmt.Sprintf("%d", script.Lines),
			scriptStatus(script),
		})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Scripts %d", len(scripts)),
		"", "", "", "",
		fmt.Sprintf("Excluded %d", excluded),
	})

	table.Render()

	return tableBuffer.String()
}

func scriptStatus(script m.ScriptInfo) string {
	switch {
	case script.Excluded:
		return "excluded"
	case !script.Parses:
		return "syntax error"
	}

	return "ok"
}

// ShowSummary prints the totals of a finished transpile run.
func (s *SimpleUI) ShowSummary(ctx context.Context, stats m.TranspileStats, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("Scripts found: %d\n", stats.Total)
	s.printf("Scripts excluded: %d\n", stats.Excluded)
	s.printf("Scripts rewritten: %d\n", stats.Rewritten)
	s.printf("Elapsed: %s\n", stats.Elapsed)
	s.printf("Saved to %s\n", output)

	return nil
}

// ShowDiff prints one script's unified diff under a path header.
func (s *SimpleUI) ShowDiff(ctx context.Context, path string, diff string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("--- %s\n%s\n", path, diff)

	return nil
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
