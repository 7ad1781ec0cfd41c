// Package dotpath tracks a position inside an instance tree as a stack of
// name components under a fixed symbolic root, and renders it either as a
// dotted accessor chain or as a slash-joined path usable for glob matching.
package dotpath

import "strings"

const (
	// RootToken is the symbolic name of the tree root in rendered paths.
	RootToken = "script"
	// AscendToken is the component used to step one level up the tree.
	AscendToken = "Parent"
)

// Path is a mutable stack of path components rooted at RootToken.
// The zero value is not usable; construct with New or NewAncestor.
type Path struct {
	components []string
}

// New returns an empty path at depth 0.
func New() *Path {
	return &Path{components: []string{}}
}

// NewAncestor returns a path of depth ascends, one AscendToken per level.
// Rendering it produces the accessor chain that reaches the root from a
// node that many levels deep, e.g. depth 2 gives "script.Parent.Parent".
func NewAncestor(depth int) *Path {
	p := &Path{components: make([]string, 0, depth)}
	for range depth {
		p.components = append(p.components, AscendToken)
	}

	return p
}

// Clone returns an independent copy of the path.
func (p *Path) Clone() *Path {
	c := &Path{components: make([]string, len(p.components))}
	copy(c.components, p.components)

	return c
}

// Push appends a component to the path.
func (p *Path) Push(name string) {
	p.components = append(p.components, name)
}

// Pop removes the most recently pushed component. Popping an empty path is
// a no-op.
func (p *Path) Pop() {
	if len(p.components) > 0 {
		p.components = p.components[:len(p.components)-1]
	}
}

// Depth reports how many components have been pushed.
func (p *Path) Depth() int {
	return len(p.components)
}

// String renders the dotted form: "script.Foo.Bar". An empty path renders
// as the bare root token.
func (p *Path) String() string {
	if len(p.components) == 0 {
		return RootToken
	}

	var b strings.Builder
	b.WriteString(RootToken)

	for _, c := range p.components {
		b.WriteByte('.')
		b.WriteString(c)
	}

	return b.String()
}

// Slash renders the slash-joined form with a trailing separator:
// "script/Foo/Bar/". An empty path renders as "script/".
func (p *Path) Slash() string {
	var b strings.Builder
	b.WriteString(RootToken)
	b.WriteByte('/')

	for _, c := range p.components {
		b.WriteString(c)
		b.WriteByte('/')
	}

	return b.String()
}
