package adapter

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	pickerErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	pickerHelpStyle  = lipgloss.NewStyle().Faint(true)
)

// FilePicker prompts for an input document when the command line did not
// name one.
type FilePicker interface {
	// PickModelFile browses from startDir and returns the chosen path, or
	// ErrUserCancelled when the prompt is dismissed.
	PickModelFile(startDir string) (string, error)
}

// TUIFilePicker provides a FilePicker backed by an interactive terminal
// browser filtered to the supported container extensions.
type TUIFilePicker struct {
	output io.Writer
}

// NewTUIFilePicker constructs a TUIFilePicker writing to output.
func NewTUIFilePicker(output io.Writer) *TUIFilePicker {
	return &TUIFilePicker{output: output}
}

// PickModelFile runs the picker until a document is chosen or the prompt is
// dismissed.
func (p *TUIFilePicker) PickModelFile(startDir string) (string, error) {
	program := tea.NewProgram(newFilePickerModel(startDir), tea.WithOutput(p.output), tea.WithAltScreen())

	finalModel, err := program.Run()
	if err != nil {
		return "", fmt.Errorf("failed to run file picker: %w", err)
	}

	final, ok := finalModel.(filePickerModel)
	if !ok || final.selected == "" {
		return "", m.ErrUserCancelled
	}

	return final.selected, nil
}

// filePickerModel is the Bubble Tea model wrapping the file browser.
type filePickerModel struct {
	picker   filepicker.Model
	selected string
	problem  string
	quitting bool
}

func newFilePickerModel(startDir string) filePickerModel {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".rbxm", ".rbxl", ".rbxmx", ".rbxlx"}
	fp.CurrentDirectory = startDir

	return filePickerModel{picker: fp}
}

func (fpm filePickerModel) Init() tea.Cmd {
	return fpm.picker.Init()
}

func (fpm filePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			fpm.quitting = true
			return fpm, tea.Quit
		}
	}

	var cmd tea.Cmd
	fpm.picker, cmd = fpm.picker.Update(msg)

	if ok, path := fpm.picker.DidSelectFile(msg); ok {
		fpm.selected = path
		return fpm, tea.Quit
	}

	if ok, path := fpm.picker.DidSelectDisabledFile(msg); ok {
		fpm.problem = fmt.Sprintf("%s is not a supported document", path)
	}

	return fpm, cmd
}

func (fpm filePickerModel) View() string {
	if fpm.quitting || fpm.selected != "" {
		return ""
	}

	var b strings.Builder

	b.WriteString("\n" + pickerTitleStyle.Render("Pick a plugin document") + "\n\n")

	if fpm.problem != "" {
		b.WriteString(pickerErrorStyle.Render(fpm.problem) + "\n")
	}

	b.WriteString(fpm.picker.View() + "\n")
	b.WriteString(pickerHelpStyle.Render("enter: select    q: quit") + "\n")

	return b.String()
}
