package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
	"pluginproxy.dev/pkg/pluginproxy/pkg/dotpath"
)

// entryDiscoveryDepth bounds how far below the tree root the entry-point
// script may sit.
const entryDiscoveryDepth = 2

// DefaultExcludeGlobs matches well-known third-party library subtrees that
// never touch privileged APIs and must not be rewritten.
func DefaultExcludeGlobs() []string {
	return []string{
		"**/[Rr][eo]act*/**",
		"**/*jsdotlua*/**",
		"**/Fusion/**",
	}
}

// TranspileOptions tunes one transpile or survey pass.
type TranspileOptions struct {
	// ExcludeGlobs are doublestar patterns tested against each candidate's
	// slash-joined tree path.
	ExcludeGlobs []string
	// IncludeLibs disables exclusion entirely; matching candidates are still
	// counted for diagnostics.
	IncludeLibs bool
}

// TranspileOutcome is what a completed transpile pass produced: the entry
// reference to export, run totals and the per-script record.
type TranspileOutcome struct {
	Entry   m.Ref
	Stats   m.TranspileStats
	Scripts []m.ScriptReport
}

// Transpiler converts a plugin document tree into its requirable library
// form. Collection and mutation are strictly separated: no node content is
// touched until the walk gathering the rewrite targets has fully returned.
type Transpiler interface {
	// EntryPoint locates the designated top-level script near the tree root.
	EntryPoint(tree *m.Tree) (m.Ref, error)

	// Survey lists every candidate script without mutating anything.
	Survey(tree *m.Tree, opts TranspileOptions) ([]m.ScriptInfo, error)

	// TranspileTree rewrites every eligible script in place and wraps the
	// entry point.
	TranspileTree(ctx context.Context, tree *m.Tree, opts TranspileOptions) (*TranspileOutcome, error)
}

type transpiler struct {
	rewriter Rewriter
}

// NewTranspiler constructs a Transpiler applying the given rewriter to each
// collected script.
func NewTranspiler(rewriter Rewriter) Transpiler {
	return &transpiler{rewriter: rewriter}
}

// EntryPoint returns the first script-class node within the discovery depth
// bound of the tree root.
func (t *transpiler) EntryPoint(tree *m.Tree) (m.Ref, error) {
	entry := FindFirstOfClass(tree, tree.Root(), entryDiscoveryDepth, func(class string) bool {
		switch class {
		case m.ClassModuleScript, m.ClassScript, m.ClassLocalScript:
			return true
		}

		return false
	})

	if entry == m.NilRef {
		return m.NilRef, m.ErrNoEntryPoint
	}

	return entry, nil
}

// candidate is one collected rewrite target, with the rendered paths the
// mutate and display phases need.
type candidate struct {
	target   m.Target
	dotted   string
	slash    string
	excluded bool
}

// collect walks the entry subtree unbounded and gathers every ModuleScript
// descendant. The walk only reads the tree; mutation waits until it returns.
func (t *transpiler) collect(tree *m.Tree, entry m.Ref, opts TranspileOptions) []candidate {
	var out []candidate

	Walk(tree, entry, 0, func(inst *m.Instance, path *dotpath.Path) VisitAction {
		if inst.ClassName != m.ClassModuleScript {
			return VisitContinue
		}

		c := candidate{
			target: m.Target{Ref: inst.Ref, Depth: path.Depth()},
			dotted: path.String(),
			slash:  path.Slash(),
		}
		c.excluded = !opts.IncludeLibs && matchesAnyGlob(opts.ExcludeGlobs, c.slash)
		out = append(out, c)

		return VisitContinue
	})

	return out
}

func matchesAnyGlob(globs []string, slashPath string) bool {
	for _, glob := range globs {
		matched, err := doublestar.Match(glob, slashPath)
		if err != nil {
			slog.Warn("skipping malformed exclusion glob", "glob", glob, "error", err)
			continue
		}

		if matched {
			return true
		}
	}

	return false
}

// Survey reports every candidate the transpiler would touch, the entry point
// included, without mutating the tree.
func (t *transpiler) Survey(tree *m.Tree, opts TranspileOptions) ([]m.ScriptInfo, error) {
	entry, err := t.EntryPoint(tree)
	if err != nil {
		return nil, err
	}

	entryInst := tree.Get(entry)
	infos := []m.ScriptInfo{{
		Path:  dotpath.New().String(),
		Class: entryInst.ClassName,
		Bytes: sourceSize(entryInst),
	}}

	for _, c := range t.collect(tree, entry, opts) {
		inst := tree.Get(c.target.Ref)
		infos = append(infos, m.ScriptInfo{
			Path:     c.dotted,
			Class:    inst.ClassName,
			Depth:    c.target.Depth,
			Bytes:    sourceSize(inst),
			Excluded: c.excluded,
		})
	}

	return infos, nil
}

func sourceSize(inst *m.Instance) int {
	src, ok := inst.Source()
	if !ok {
		return 0
	}

	return len(src)
}

// TranspileTree runs the two-phase pipeline: collect every rewrite target
// under the entry point, then mutate each target and finally the entry point
// itself. Any error aborts the whole run; no partial output is produced.
func (t *transpiler) TranspileTree(ctx context.Context, tree *m.Tree, opts TranspileOptions) (*TranspileOutcome, error) {
	started := time.Now()

	entry, err := t.EntryPoint(tree)
	if err != nil {
		slog.Error("No entry-point script found", "error", err)
		return nil, err
	}

	candidates := t.collect(tree, entry, opts)

	outcome := &TranspileOutcome{Entry: entry}
	outcome.Stats.Total = len(candidates)

	slog.Info("Collected rewrite candidates", "total", len(candidates))

	for _, c := range candidates {
		if c.excluded {
			outcome.Stats.Excluded++
			outcome.Scripts = append(outcome.Scripts, m.ScriptReport{
				Path:     c.dotted,
				Depth:    c.target.Depth,
				Excluded: true,
			})

			slog.Debug("Skipping excluded script", "path", c.slash)

			continue
		}

		req, err := t.rewriteScript(ctx, tree, c.target.Ref, c.dotted, c.target.Depth)
		if err != nil {
			slog.Error("Failed to rewrite script", "path", c.dotted, "error", err)
			return nil, fmt.Errorf("failed to rewrite %s: %w", c.dotted, err)
		}

		outcome.Stats.Rewritten++
		outcome.Scripts = append(outcome.Scripts, m.ScriptReport{
			Path:         c.dotted,
			Depth:        c.target.Depth,
			Requirements: req,
		})
	}

	entryPath := dotpath.New().String()

	req, err := t.rewriteScript(ctx, tree, entry, entryPath, 0)
	if err != nil {
		slog.Error("Failed to rewrite entry point", "error", err)
		return nil, fmt.Errorf("failed to rewrite entry point: %w", err)
	}

	outcome.Stats.Rewritten++
	outcome.Scripts = append(outcome.Scripts, m.ScriptReport{Path: entryPath, Requirements: req})
	outcome.Stats.Elapsed = time.Since(started)

	slog.Info("Transpile pass finished",
		"total", outcome.Stats.Total,
		"excluded", outcome.Stats.Excluded,
		"rewritten", outcome.Stats.Rewritten,
		"elapsed", outcome.Stats.Elapsed,
	)

	return outcome, nil
}

// rewriteScript mutates one script's Source in place. Depth 0 marks the
// entry point, which additionally gets wrapped and reclassified as a
// ModuleScript.
func (t *transpiler) rewriteScript(ctx context.Context, tree *m.Tree, ref m.Ref, path string, depth int) (m.Requirements, error) {
	inst := tree.Get(ref)

	src, ok := inst.Source()
	if !ok {
		return m.Requirements{}, &m.MissingSourceError{Name: inst.Name}
	}

	rewritten, req, err := t.rewriter.Rewrite(ctx, path, []byte(src))
	if err != nil {
		return m.Requirements{}, err
	}

	assembled := Assemble(rewritten, req, depth)

	if depth == 0 {
		assembled = WrapEntryPoint(assembled)
		inst.ClassName = m.ClassModuleScript
	}

	inst.SetSource(string(assembled))

	return req, nil
}
