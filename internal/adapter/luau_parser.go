package adapter

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/lua"

	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
)

// LuauFileAdapter encapsulates Luau-specific parsing and literal handling so
// the domain layer can focus on rewrite rules while delegating grammar
// details to an infrastructure component.
type LuauFileAdapter interface {
	// Parse builds a syntax tree for the named script. The caller owns the
	// returned tree and must Close it.
	Parse(ctx context.Context, script string, src []byte) (*sitter.Tree, error)

	// NodeText returns the source text a node spans.
	NodeText(src []byte, node *sitter.Node) string

	// StringLiteralValue unquotes a Lua string literal in any of its forms.
	StringLiteralValue(text string) (string, bool)
}

// TreeSitterLuauAdapter provides a concrete LuauFileAdapter backed by the
// tree-sitter Lua grammar. Each Parse call creates its own parser instance,
// which keeps the adapter safe for concurrent use.
type TreeSitterLuauAdapter struct{}

// NewTreeSitterLuauAdapter constructs a TreeSitterLuauAdapter.
func NewTreeSitterLuauAdapter() *TreeSitterLuauAdapter {
	return &TreeSitterLuauAdapter{}
}

// Parse builds a syntax tree for the provided script/source pair. Sources
// that do not parse cleanly produce a SyntaxError listing every problem
// position the grammar reported.
func (a *TreeSitterLuauAdapter) Parse(ctx context.Context, script string, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lua.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", script, err)
	}

	root := tree.RootNode()
	if root == nil {
		tree.Close()
		return nil, fmt.Errorf("failed to parse %s: no syntax tree produced", script)
	}

	if root.HasError() {
		problems := collectSyntaxProblems(root, src)
		tree.Close()

		return nil, &m.SyntaxError{Script: script, Problems: problems}
	}

	return tree, nil
}

// NodeText returns the source text a node spans.
func (a *TreeSitterLuauAdapter) NodeText(src []byte, node *sitter.Node) string {
	return string(src[node.StartByte():node.EndByte()])
}

// StringLiteralValue unquotes a Lua string literal. Both quote characters
// and the long bracket form with any level of = padding are recognized.
func (a *TreeSitterLuauAdapter) StringLiteralValue(text string) (string, bool) {
	if len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return text[1 : len(text)-1], true
		}
	}

	if strings.HasPrefix(text, "[") {
		level := 0
		for level+1 < len(text) && text[level+1] == '=' {
			level++
		}

		opening := "[" + strings.Repeat("=", level) + "["
		closing := "]" + strings.Repeat("=", level) + "]"

		if len(text) >= len(opening)+len(closing) && strings.HasPrefix(text, opening) && strings.HasSuffix(text, closing) {
			return text[len(opening) : len(text)-len(closing)], true
		}
	}

	return "", false
}

func collectSyntaxProblems(root *sitter.Node, src []byte) []m.SyntaxProblem {
	var problems []m.SyntaxProblem

	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}

		switch {
		case node.IsMissing():
			problems = append(problems, m.SyntaxProblem{
				Line:    int(node.StartPoint().Row + 1),
				Column:  int(node.StartPoint().Column + 1),
				Message: fmt.Sprintf("missing %s", node.Type()),
			})
		case node.Type() == "ERROR":
			problems = append(problems, m.SyntaxProblem{
				Line:    int(node.StartPoint().Row + 1),
				Column:  int(node.StartPoint().Column + 1),
				Message: fmt.Sprintf("unexpected %q", trimExcerpt(string(src[node.StartByte():node.EndByte()]))),
			})
		}

		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}

	walk(root)

	if len(problems) == 0 {
		problems = append(problems, m.SyntaxProblem{Line: 1, Column: 1, Message: "source contains syntax errors"})
	}

	return problems
}

func trimExcerpt(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")

	const max = 24
	if len(s) > max {
		return s[:max] + "..."
	}

	return s
}
