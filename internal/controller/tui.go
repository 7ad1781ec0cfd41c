package controller

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
)

const (
	// ANSI color codes for excluded rows (dark gray, faint).
	grayColor  = "\033[2;90m" // Faint + dark gray
	resetColor = "\033[0m"    // Reset
)

// TUI implements UI using Bubble Tea for interactive display.
type TUI struct {
	output io.Writer
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// ShowScripts pages through the candidate script listing.
func (p *TUI) ShowScripts(ctx context.Context, scripts []m.ScriptInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	model := newScriptListModel(scripts)

	if _, height, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		model.height = height
	}

	program := tea.NewProgram(model, tea.WithOutput(p.output), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run script list: %w", err)
	}

	return nil
}

// ShowSummary prints the run totals. Summaries are short, so they bypass the
// pager and go straight to the output.
func (p *TUI) ShowSummary(ctx context.Context, stats m.TranspileStats, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(
		p.output,
		"Scripts found: %d\nScripts excluded: %d\nScripts rewritten: %d\nElapsed: %s\nSaved to %s\n",
		stats.Total, stats.Excluded, stats.Rewritten, stats.Elapsed, output,
	)

	return err
}

// ShowDiff prints one script's unified diff under a path header.
func (p *TUI) ShowDiff(ctx context.Context, path string, diff string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(p.output, "--- %s\n%s\n", path, diff)

	return err
}

// scriptListModel represents the Bubble Tea model for paging script rows.
type scriptListModel struct {
	scripts  []m.ScriptInfo
	height   int
	width    int
	offset   int // Current scroll offset
	quitting bool
}

func newScriptListModel(scripts []m.ScriptInfo) scriptListModel {
	return scriptListModel{
		scripts:  scripts,
		height:   0, // Will be set on first WindowSizeMsg
		width:    0,
		offset:   0,
		quitting: false,
	}
}

func (slm scriptListModel) Init() tea.Cmd {
	return nil
}

func (slm scriptListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		slm.height = msg.Height
		slm.width = msg.Width

		return slm, nil

	case tea.KeyMsg:
		return slm.handleKeyPress(msg)
	}

	return slm, nil
}

func (slm scriptListModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		slm.quitting = true
		return slm, tea.Quit
	default:
		// Handle other key types in the string switch below
	}

	switch msg.String() {
	case "q":
		slm.quitting = true
		return slm, tea.Quit

	case "down", "j":
		slm.offset++
		if slm.offset > slm.maxOffset() {
			slm.offset = slm.maxOffset()
		}

		return slm, nil

	case "up", "k":
		slm.offset--
		if slm.offset < 0 {
			slm.offset = 0
		}

		return slm, nil

	case "g", "home":
		slm.offset = 0

		return slm, nil

	case "G", "end":
		slm.offset = slm.maxOffset()

		return slm, nil

	case "d", "pgdown":
		slm.offset += slm.itemsPerPage()
		if slm.offset > slm.maxOffset() {
			slm.offset = slm.maxOffset()
		}

		return slm, nil

	case "u", "pgup":
		slm.offset -= slm.itemsPerPage()
		if slm.offset < 0 {
			slm.offset = 0
		}

		return slm, nil
	}

	return slm, nil
}

// itemsPerPage calculates how many rows can fit on screen.
func (slm scriptListModel) itemsPerPage() int {
	if slm.height == 0 {
		return 10 // Default
	}
	// Reserve space for:
	// - Header: 3 lines (title + empty + column row)
	// - Footer: 3 lines (empty + page + help)
	// - Top margin: 1 line
	reserved := 7

	available := slm.height - reserved
	if available < 1 {
		return 1
	}

	return available
}

// maxOffset returns the maximum scroll offset.
func (slm scriptListModel) maxOffset() int {
	perPage := slm.itemsPerPage()
	if perPage <= 0 {
		return 0
	}

	maxOff := len(slm.scripts) - perPage
	if maxOff < 0 {
		return 0
	}

	return maxOff
}

// needsPagination returns true if the list is too large to fit on screen.
func (slm scriptListModel) needsPagination() bool {
	if len(slm.scripts) == 0 {
		return false
	}

	return len(slm.scripts) > slm.itemsPerPage() && slm.height > 0
}

func (slm scriptListModel) View() string {
	var b strings.Builder

	b.WriteString("\n  PluginProxy Transpiler - scripts\n\n")

	if len(slm.scripts) == 0 {
		b.WriteString("  No candidate scripts found\n")
		return b.String()
	}

	fmt.Fprintf(&b, "  %-40s %-14s %6s %8s %8s  %s\n", "PATH", "CLASS", "DEPTH", "BYTES", "LINES", "STATUS")

	start := slm.offset

	end := start + slm.itemsPerPage()
	if end > len(slm.scripts) {
		end = len(slm.scripts)
	}

	for _, script := range slm.scripts[start:end] {
		line := fmt.Sprintf(
			"  %-40s %-14s %6d %8d %8d  %s",
			script.Path, script.Class, script.Depth, script.Bytes, script.Lines, scriptStatus(script),
		)

		if script.Excluded {
			line = grayColor + line + resetColor
		}

		b.WriteString(line + "\n")
	}

	b.WriteString("\n")

	if slm.needsPagination() {
		fmt.Fprintf(&b, "  showing %d-%d of %d\n", start+1, end, len(slm.scripts))
	}

	b.WriteString("  q: quit    j/k: scroll    d/u: page\n")

	return b.String()
}
