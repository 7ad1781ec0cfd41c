package domain

import (
	"bytes"
	"context"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"pluginproxy.dev/pkg/pluginproxy/internal/adapter"
	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
)

// Names injected into rewritten scripts.
const (
	globalsName = "_proxyGlobals"
	pluginName  = "plugin"
	enumsName   = "Enums"
)

// Rewriter rewrites privileged API usage inside one script's source,
// reporting which injected declarations the result depends on.
type Rewriter interface {
	Rewrite(ctx context.Context, script string, source []byte) ([]byte, m.Requirements, error)
}

type rewriter struct {
	adapter.LuauFileAdapter
}

// NewRewriter creates a Rewriter backed by the provided parser adapter.
func NewRewriter(parser adapter.LuauFileAdapter) Rewriter {
	return &rewriter{LuauFileAdapter: parser}
}

// spanEdit replaces one byte span of the original source with new text.
type spanEdit struct {
	start uint32
	end   uint32
	text  string
}

// descendMode controls which children of a matched node are still walked.
type descendMode int

const (
	descendAll descendMode = iota
	// descendArguments walks only the call arguments, leaving the replaced
	// receiver span alone.
	descendArguments
	descendNone
)

// Grammar shapes the rules match. The Lua grammar keeps calls and index
// chains flat: a call is a function_call whose callee or receiver occupies
// one or more prefix-field children, colon calls carry a self_call_colon
// token followed by the method identifier, and a dotted chain like Enum.X.Y
// is a run of sibling identifiers separated by anonymous "." tokens.
const (
	nodeFunctionCall   = "function_call"
	nodeIdentifier     = "identifier"
	nodeSelfCallColon  = "self_call_colon"
	nodeFunctionArgs   = "function_arguments"
	nodeStringArgument = "string_argument"
	nodeString         = "string"
	tokenDot           = "."
	fieldPrefix        = "prefix"
	fieldArgs          = "args"
)

// Rewrite parses the script and applies the rewrite rules in a single pass
// over its syntax tree. The rules match disjoint node shapes, so at most one
// applies per node; everything outside the replaced spans, comments and
// whitespace included, survives byte for byte.
func (rw *rewriter) Rewrite(ctx context.Context, script string, source []byte) ([]byte, m.Requirements, error) {
	tree, err := rw.Parse(ctx, script, source)
	if err != nil {
		return nil, m.Requirements{}, err
	}
	defer tree.Close()

	var req m.Requirements

	edits := rw.collectEdits(source, tree.RootNode(), &req)
	if len(edits) == 0 {
		return source, req, nil
	}

	return spliceEdits(source, edits), req, nil
}

func (rw *rewriter) collectEdits(source []byte, root *sitter.Node, req *m.Requirements) []spanEdit {
	var edits []spanEdit

	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch rw.applyRules(source, node, req, &edits) {
		case descendNone:
		case descendArguments:
			if args := node.ChildByFieldName(fieldArgs); args != nil {
				stack = append(stack, args)
			}
		case descendAll:
			for i := int(node.ChildCount()) - 1; i >= 0; i-- {
				if child := node.Child(i); child != nil {
					stack = append(stack, child)
				}
			}
		}
	}

	return edits
}

func (rw *rewriter) applyRules(source []byte, node *sitter.Node, req *m.Requirements, edits *[]spanEdit) descendMode {
	switch node.Type() {
	case nodeIdentifier:
		rw.rewriteEnumAccess(source, node, req, edits)
	case nodeFunctionCall:
		return rw.rewriteCall(source, node, req, edits)
	}

	return descendAll
}

// rewriteEnumAccess redirects the two style-guide enum categories through the
// injected enum table: Enum.StudioStyleGuideColor.X becomes
// Enums.StudioStyleGuideColor.X. Only the head of a dotted chain counts, and
// other Enum categories are left alone.
func (rw *rewriter) rewriteEnumAccess(source []byte, node *sitter.Node, req *m.Requirements, edits *[]spanEdit) {
	if rw.NodeText(source, node) != "Enum" {
		return
	}

	if prev := node.PrevSibling(); prev != nil && prev.Type() == tokenDot {
		return
	}

	next := node.NextSibling()
	if next == nil || next.Type() != tokenDot {
		return
	}

	field := node.NextNamedSibling()
	if field == nil || field.Type() != nodeIdentifier {
		return
	}

	switch rw.NodeText(source, field) {
	case "StudioStyleGuideColor", "StudioStyleGuideModifier":
		*edits = append(*edits, spanEdit{start: node.StartByte(), end: node.EndByte(), text: enumsName})
		req.Enums = true
	}
}

func (rw *rewriter) rewriteCall(source []byte, node *sitter.Node, req *m.Requirements, edits *[]spanEdit) descendMode {
	prefixes := callPrefixes(node)
	if len(prefixes) == 0 {
		return descendAll
	}

	method := callMethod(node)

	if method == nil {
		// settings() routes through the globals object.
		if len(prefixes) == 1 && rw.isIdentifier(source, prefixes[0], "settings") {
			*edits = append(*edits, spanEdit{
				start: prefixes[0].StartByte(),
				end:   prefixes[0].EndByte(),
				text:  globalsName + ".settings",
			})
			req.Globals = true
		}

		return descendAll
	}

	switch rw.NodeText(source, method) {
	case "FindFirstAncestorOfClass", "FindFirstAncestorWhichIsA":
		// Ancestor lookups for the plugin instance collapse to the injected
		// plugin handle. Nothing inside the call is worth another look.
		if rw.firstArgumentIs(source, node, "Plugin") {
			*edits = append(*edits, spanEdit{start: node.StartByte(), end: node.EndByte(), text: pluginName})
			req.Plugin = true

			return descendNone
		}
	case "GetService":
		// Whatever the receiver was, services resolve off the proxied game
		// handle. The receiver span is replaced wholesale, so only the
		// arguments still need walking.
		*edits = append(*edits, spanEdit{
			start: prefixes[0].StartByte(),
			end:   prefixes[len(prefixes)-1].EndByte(),
			text:  globalsName + ".game",
		})
		req.Globals = true

		return descendArguments
	}

	return descendAll
}

// callPrefixes collects the children occupying the call's prefix field; the
// first and last together span the callee or receiver expression.
func callPrefixes(node *sitter.Node) []*sitter.Node {
	var out []*sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		if node.FieldNameForChild(i) == fieldPrefix {
			out = append(out, node.Child(i))
		}
	}

	return out
}

// callMethod returns the method identifier of a colon call, or nil for a
// plain call.
func callMethod(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() != nodeSelfCallColon {
			continue
		}

		method := node.Child(i).NextNamedSibling()
		if method != nil && method.Type() == nodeIdentifier {
			return method
		}

		return nil
	}

	return nil
}

// firstArgumentIs reports whether the call's first argument is a string
// literal with the given value, in any quote form including the f"x" sugar.
func (rw *rewriter) firstArgumentIs(source []byte, call *sitter.Node, want string) bool {
	args := call.ChildByFieldName(fieldArgs)
	if args == nil {
		return false
	}

	literal := args
	if args.Type() == nodeFunctionArgs {
		literal = args.NamedChild(0)
	}

	if literal == nil {
		return false
	}

	switch literal.Type() {
	case nodeString, nodeStringArgument:
	default:
		return false
	}

	value, ok := rw.StringLiteralValue(rw.NodeText(source, literal))

	return ok && value == want
}

func (rw *rewriter) isIdentifier(source []byte, node *sitter.Node, text string) bool {
	return node != nil && node.Type() == nodeIdentifier && rw.NodeText(source, node) == text
}

// spliceEdits rebuilds the source with each span replaced. Spans never
// overlap, so everything between them is copied through untouched.
func spliceEdits(source []byte, edits []spanEdit) []byte {
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var out bytes.Buffer
	out.Grow(len(source))

	last := uint32(0)
	for _, edit := range edits {
		out.Write(source[last:edit.start])
		out.WriteString(edit.text)
		last = edit.end
	}
	out.Write(source[last:])

	return out.Bytes()
}
