package adapter

import (
	"context"
	"errors"
	"testing"

	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
)

func TestTreeSitterLuauAdapter_Parse(t *testing.T) {
	adapter := NewTreeSitterLuauAdapter()

	src := []byte("local count = 1\nprint(count)\n")

	tree, err := adapter.Parse(context.Background(), "Loader", src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.ChildCount() == 0 {
		t.Fatalf("Parse() produced an empty syntax tree")
	}

	if adapter.NodeText(src, root) != string(src) {
		t.Fatalf("NodeText() on the root does not span the whole source")
	}
}

func TestTreeSitterLuauAdapter_Parse_InvalidSource(t *testing.T) {
	adapter := NewTreeSitterLuauAdapter()

	_, err := adapter.Parse(context.Background(), "Broken", []byte("local function (\n"))
	if err == nil {
		t.Fatalf("Parse() expected error for invalid source")
	}

	var syntaxErr *m.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("Parse() error = %T, want *SyntaxError", err)
	}

	if syntaxErr.Script != "Broken" {
		t.Fatalf("Parse() error script = %q, want Broken", syntaxErr.Script)
	}

	if len(syntaxErr.Problems) == 0 {
		t.Fatalf("Parse() error carries no problems")
	}
}

// The rewrite rules depend on these exact node shapes: flat prefix-field
// chains on function_call, self_call_colon before the method identifier, and
// dotted access rendered as sibling identifiers. A failure here means the
// bundled grammar changed and the rewriter needs revisiting.
func TestTreeSitterLuauAdapter_Parse_CallShapes(t *testing.T) {
	adapter := NewTreeSitterLuauAdapter()

	cases := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "colon call",
			source: `game:GetService("RunService")`,
			want:   `(program (function_call prefix: (identifier) (self_call_colon) (identifier) (function_call_paren) args: (function_arguments (string)) (function_call_paren)))`,
		},
		{
			name:   "plain call",
			source: `settings()`,
			want:   `(program (function_call prefix: (identifier) (function_call_paren) (function_call_paren)))`,
		},
		{
			name:   "dotted chain",
			source: `return Enum.StudioStyleGuideColor.MainBackground`,
			want:   `(program (module_return_statement (identifier) (identifier) (identifier)))`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tree, err := adapter.Parse(context.Background(), "Shape", []byte(tc.source))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			defer tree.Close()

			if got := tree.RootNode().String(); got != tc.want {
				t.Fatalf("Parse(%q) tree = %s, want %s", tc.source, got, tc.want)
			}
		})
	}
}

func TestTreeSitterLuauAdapter_StringLiteralValue(t *testing.T) {
	adapter := NewTreeSitterLuauAdapter()

	cases := []struct {
		text  string
		want  string
		valid bool
	}{
		{`"Plugin"`, "Plugin", true},
		{`'Plugin'`, "Plugin", true},
		{`[[Plugin]]`, "Plugin", true},
		{`[==[Plugin]==]`, "Plugin", true},
		{`""`, "", true},
		{`[[multi
line]]`, "multi\nline", true},
		{`Plugin`, "", false},
		{`"unterminated`, "", false},
		{`[=[mismatched]]`, "", false},
		{`[`, "", false},
	}

	for _, tc := range cases {
		got, ok := adapter.StringLiteralValue(tc.text)
		if ok != tc.valid {
			t.Fatalf("StringLiteralValue(%q) valid = %v, want %v", tc.text, ok, tc.valid)
		}

		if ok && got != tc.want {
			t.Fatalf("StringLiteralValue(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}
