package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/errgroup"

	"pluginproxy.dev/pkg/pluginproxy/internal/adapter"
	"pluginproxy.dev/pkg/pluginproxy/internal/codec"
	"pluginproxy.dev/pkg/pluginproxy/internal/controller"
	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
	"pluginproxy.dev/pkg/pluginproxy/pkg/dotpath"
)

// defaultOutputName is written next to the input when no output path is
// given.
const defaultOutputName = "out.rbxm"

// reportsFileName is the run-report file inside the reports directory.
const reportsFileName = "runs.yaml"

// TranspileArgs contains the arguments for one transpile invocation.
type TranspileArgs struct {
	Input       string
	Output      string
	Exclude     []string
	IncludeLibs bool
	ShowDiff    bool
	Watch       bool
	Reports     string
	Interactive bool
}

// ViewArgs contains the arguments for listing a document's scripts.
type ViewArgs struct {
	Input       string
	Exclude     []string
	IncludeLibs bool
	Threads     int
}

// DiffArgs contains the arguments for diffing two documents' scripts.
type DiffArgs struct {
	Before string
	After  string
}

// Workflow is the facade the commands call: it resolves paths, moves
// documents through the codec, drives the transpiler and presents results.
type Workflow interface {
	Transpile(ctx context.Context, args TranspileArgs) error
	View(ctx context.Context, args ViewArgs) error
	Diff(ctx context.Context, args DiffArgs) error
}

type workflow struct {
	adapter.ModelFileAdapter
	adapter.LuauFileAdapter
	adapter.ReportStore
	adapter.FilePicker
	controller.UI
	Transpiler
}

// NewWorkflow creates a new Workflow instance with the provided dependencies.
func NewWorkflow(
	modelAdapter adapter.ModelFileAdapter,
	luauAdapter adapter.LuauFileAdapter,
	reportStore adapter.ReportStore,
	picker adapter.FilePicker,
	ui controller.UI,
	transpiler Transpiler,
) Workflow {
	return &workflow{
		ModelFileAdapter: modelAdapter,
		LuauFileAdapter:  luauAdapter,
		ReportStore:      reportStore,
		FilePicker:       picker,
		UI:               ui,
		Transpiler:       transpiler,
	}
}

// Transpile runs the full pipeline on one input document. With Watch set it
// keeps rerunning on input changes until the context is cancelled.
func (w *workflow) Transpile(ctx context.Context, args TranspileArgs) error {
	input, err := w.resolveInput(args)
	if err != nil {
		slog.Error("Failed to resolve input document", "error", err)
		return err
	}

	output, err := resolveOutput(input, args.Output)
	if err != nil {
		slog.Error("Failed to resolve output path", "input", input, "error", err)
		return err
	}

	opts := TranspileOptions{ExcludeGlobs: args.Exclude, IncludeLibs: args.IncludeLibs}

	if err := w.runTranspile(ctx, input, output, opts, args); err != nil {
		return err
	}

	if !args.Watch {
		return nil
	}

	slog.Info("Watching input for changes", "input", input)

	return w.WatchFile(ctx, input, func() {
		slog.Info("Input changed, rerunning", "input", input)

		if err := w.runTranspile(ctx, input, output, opts, args); err != nil {
			slog.Error("Rerun failed", "input", input, "error", err)
		}
	})
}

func (w *workflow) runTranspile(ctx context.Context, input, output string, opts TranspileOptions, args TranspileArgs) error {
	startedAt := time.Now()

	tree, _, err := w.LoadModel(input)
	if err != nil {
		slog.Error("Failed to load input document", "input", input, "error", err)
		return fmt.Errorf("load input: %w", err)
	}

	var before map[string]string

	if args.ShowDiff {
		entry, err := w.EntryPoint(tree)
		if err != nil {
			return err
		}

		before = scriptSources(tree, entry, true)
	}

	outcome, err := w.TranspileTree(ctx, tree, opts)
	if err != nil {
		return fmt.Errorf("transpile: %w", err)
	}

	if args.ShowDiff {
		if err := w.showSourceDiffs(ctx, tree, outcome.Entry, before); err != nil {
			return fmt.Errorf("display diffs: %w", err)
		}
	}

	format, err := codec.DetectFormat(output)
	if err != nil {
		slog.Error("Unsupported output extension", "output", output, "error", err)
		return err
	}

	if err := w.SaveModel(output, format, tree, []m.Ref{outcome.Entry}); err != nil {
		slog.Error("Failed to save output document", "output", output, "error", err)
		return fmt.Errorf("save output: %w", err)
	}

	if args.Reports != "" {
		if err := w.saveRunReport(input, output, startedAt, outcome, args.Reports); err != nil {
			slog.Error("Failed to save run report", "reports", args.Reports, "error", err)
			return fmt.Errorf("save report: %w", err)
		}
	}

	if err := w.ShowSummary(ctx, outcome.Stats, output); err != nil {
		return fmt.Errorf("display summary: %w", err)
	}

	return nil
}

// View lists every script the transpiler would touch, scanning sources
// concurrently for line counts and parseability.
func (w *workflow) View(ctx context.Context, args ViewArgs) error {
	tree, _, err := w.LoadModel(args.Input)
	if err != nil {
		slog.Error("Failed to load input document", "input", args.Input, "error", err)
		return fmt.Errorf("load input: %w", err)
	}

	opts := TranspileOptions{ExcludeGlobs: args.Exclude, IncludeLibs: args.IncludeLibs}

	infos, err := w.Survey(tree, opts)
	if err != nil {
		slog.Error("Failed to survey document", "input", args.Input, "error", err)
		return fmt.Errorf("survey: %w", err)
	}

	entry, err := w.EntryPoint(tree)
	if err != nil {
		return err
	}

	sources := scriptSources(tree, entry, true)

	var group errgroup.Group
	if args.Threads > 0 {
		group.SetLimit(args.Threads)
	}

	for i := range infos {
		group.Go(func() error {
			src, ok := sources[infos[i].Path]
			if !ok {
				return nil
			}

			infos[i].Lines = strings.Count(src, "\n") + 1

			parsed, err := w.Parse(ctx, infos[i].Path, []byte(src))
			if err == nil {
				parsed.Close()

				infos[i].Parses = true
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("scan sources: %w", err)
	}

	if err := w.ShowScripts(ctx, infos); err != nil {
		return fmt.Errorf("display scripts: %w", err)
	}

	return nil
}

// Diff prints unified source diffs of the scripts that exist, by tree path,
// in both documents.
func (w *workflow) Diff(ctx context.Context, args DiffArgs) error {
	beforeTree, _, err := w.LoadModel(args.Before)
	if err != nil {
		slog.Error("Failed to load document", "input", args.Before, "error", err)
		return fmt.Errorf("load %s: %w", args.Before, err)
	}

	afterTree, _, err := w.LoadModel(args.After)
	if err != nil {
		slog.Error("Failed to load document", "input", args.After, "error", err)
		return fmt.Errorf("load %s: %w", args.After, err)
	}

	before := scriptSources(beforeTree, beforeTree.Root(), false)
	after := scriptSources(afterTree, afterTree.Root(), false)

	paths := make([]string, 0, len(before))
	for path := range before {
		if _, ok := after[path]; ok {
			paths = append(paths, path)
		}
	}

	sort.Strings(paths)

	for _, path := range paths {
		if before[path] == after[path] {
			continue
		}

		diff, err := unifiedDiff(before[path], after[path], args.Before, args.After)
		if err != nil {
			return fmt.Errorf("diff %s: %w", path, err)
		}

		if err := w.ShowDiff(ctx, path, diff); err != nil {
			return fmt.Errorf("display diff: %w", err)
		}
	}

	return nil
}

func (w *workflow) showSourceDiffs(ctx context.Context, tree *m.Tree, entry m.Ref, before map[string]string) error {
	after := scriptSources(tree, entry, true)

	paths := make([]string, 0, len(before))
	for path := range before {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	for _, path := range paths {
		if before[path] == after[path] {
			continue
		}

		diff, err := unifiedDiff(before[path], after[path], "original", "transpiled")
		if err != nil {
			return err
		}

		if err := w.ShowDiff(ctx, path, diff); err != nil {
			return err
		}
	}

	return nil
}

func (w *workflow) saveRunReport(input, output string, startedAt time.Time, outcome *TranspileOutcome, reportsDir string) error {
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", reportsDir, err)
	}

	report := &m.RunReport{
		ID:        uuid.NewString(),
		Input:     input,
		Output:    output,
		StartedAt: startedAt,
		Stats:     outcome.Stats,
		Scripts:   outcome.Scripts,
	}

	return w.SaveReport(filepath.Join(reportsDir, reportsFileName), report)
}

func (w *workflow) resolveInput(args TranspileArgs) (string, error) {
	if args.Input != "" {
		return args.Input, nil
	}

	if !args.Interactive {
		return "", errors.New("an input document path is required")
	}

	return w.PickModelFile(".")
}

// resolveOutput defaults to out.rbxm next to the input.
func resolveOutput(input, output string) (string, error) {
	if output != "" {
		return output, nil
	}

	dir := filepath.Dir(input)
	if dir == input {
		return "", fmt.Errorf("%w: %s", m.ErrPathResolution, input)
	}

	return filepath.Join(dir, defaultOutputName), nil
}

// scriptSources maps each script's dotted tree path to its source text. With
// includeRoot set the root node itself is keyed as the bare root token.
func scriptSources(tree *m.Tree, root m.Ref, includeRoot bool) map[string]string {
	sources := map[string]string{}

	if includeRoot {
		if inst := tree.Get(root); inst != nil && inst.IsScriptClass() {
			if src, ok := inst.Source(); ok {
				sources[dotpath.New().String()] = src
			}
		}
	}

	Walk(tree, root, 0, func(inst *m.Instance, path *dotpath.Path) VisitAction {
		if inst.IsScriptClass() {
			if src, ok := inst.Source(); ok {
				sources[path.String()] = src
			}
		}

		return VisitContinue
	})

	return sources
}

func unifiedDiff(before, after, fromFile, toFile string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  3,
	})
}
