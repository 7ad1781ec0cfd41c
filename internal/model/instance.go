// Package model defines the document-tree data structures for the
// transpiler: instances addressed by stable references, their property
// bags, and the bookkeeping types the transpile pipeline produces.
package model

import "fmt"

// Script class tags recognized by the transpiler. ClassModuleScript is the
// requirable library kind the entry point is converted to.
const (
	ClassModuleScript = "ModuleScript"
	ClassScript       = "Script"
	ClassLocalScript  = "LocalScript"
	ClassDataModel    = "DataModel"
	ClassFolder       = "Folder"
)

// SourceProperty is the property name that carries script text.
const SourceProperty = "Source"

// Ref is an opaque, stable reference to an instance within one Tree.
type Ref string

// NilRef is the absent reference.
const NilRef Ref = ""

// Instance is a single node of the document tree: a class tag, a name, a
// property bag and its position in the forest. Parent and Children are
// maintained by the owning Tree; mutate structure through Tree methods
// only.
type Instance struct {
	Ref        Ref
	ClassName  string
	Name       string
	Properties map[string]Value
	Parent     Ref
	Children   []Ref
}

// IsScriptClass reports whether the instance is one of the recognized
// script kinds.
func (i *Instance) IsScriptClass() bool {
	switch i.ClassName {
	case ClassModuleScript, ClassScript, ClassLocalScript:
		return true
	}

	return false
}

// Source returns the script text when the Source property exists and holds
// a string payload.
func (i *Instance) Source() (string, bool) {
	v, ok := i.Properties[SourceProperty]
	if !ok || (v.Kind != KindString && v.Kind != KindProtectedString) {
		return "", false
	}

	return v.Str, true
}

// SetSource replaces the script text, keeping the property's existing kind
// when present so the codecs re-emit it the way it arrived.
func (i *Instance) SetSource(text string) {
	if v, ok := i.Properties[SourceProperty]; ok && (v.Kind == KindString || v.Kind == KindProtectedString) {
		v.Str = text
		i.Properties[SourceProperty] = v

		return
	}

	i.Properties[SourceProperty] = NewProtectedString(text)
}

// Tree is an arena of instances forming a strict forest under a synthetic
// DataModel root. References stay valid across structural edits; child
// order is insertion order.
type Tree struct {
	root      Ref
	instances map[Ref]*Instance
	nextRef   uint64
}

// rootRef sits outside the generated RBX sequence so decoded documents can
// claim any referent without colliding with the synthetic root.
const rootRef Ref = "ROOT"

// NewTree returns a tree holding only the synthetic root.
func NewTree() *Tree {
	t := &Tree{instances: map[Ref]*Instance{}}
	t.root = rootRef
	t.instances[rootRef] = &Instance{
		Ref:        rootRef,
		ClassName:  ClassDataModel,
		Name:       "ROOT",
		Properties: map[string]Value{},
	}

	return t
}

// Root returns the reference of the synthetic root instance.
func (t *Tree) Root() Ref {
	return t.root
}

// Get resolves a reference, or nil when it does not belong to this tree.
func (t *Tree) Get(ref Ref) *Instance {
	return t.instances[ref]
}

// NewInstance creates an instance under parent and returns its reference.
// A NilRef parent creates a detached instance. Generated references skip
// any value a decoded document has already claimed.
func (t *Tree) NewInstance(class, name string, parent Ref) Ref {
	var ref Ref
	for {
		t.nextRef++
		ref = Ref(fmt.Sprintf("RBX%016X", t.nextRef))

		if _, taken := t.instances[ref]; !taken {
			break
		}
	}

	inst := &Instance{
		Ref:        ref,
		ClassName:  class,
		Name:       name,
		Properties: map[string]Value{},
		Parent:     parent,
	}
	t.instances[ref] = inst

	if p := t.instances[parent]; p != nil {
		p.Children = append(p.Children, ref)
	}

	return ref
}

// AddInstance inserts an externally built instance (codec decode path).
// Its Ref must be unique within the tree; Children is reset and rebuilt by
// subsequent SetParent calls.
func (t *Tree) AddInstance(inst *Instance) error {
	if inst.Ref == NilRef {
		return fmt.Errorf("instance %q has no reference", inst.Name)
	}

	if _, exists := t.instances[inst.Ref]; exists {
		return fmt.Errorf("duplicate instance reference %q", inst.Ref)
	}

	inst.Children = nil
	inst.Parent = NilRef
	t.instances[inst.Ref] = inst

	return nil
}

// SetParent moves child under parent, keeping both Children lists
// consistent. Re-parenting under the child's own subtree is rejected.
func (t *Tree) SetParent(child, parent Ref) error {
	c := t.instances[child]
	if c == nil {
		return fmt.Errorf("unknown child reference %q", child)
	}

	p := t.instances[parent]
	if p == nil {
		return fmt.Errorf("unknown parent reference %q", parent)
	}

	for cursor := parent; cursor != NilRef; {
		if cursor == child {
			return fmt.Errorf("cannot parent %q under its own descendant %q", child, parent)
		}

		cursor = t.instances[cursor].Parent
	}

	if c.Parent != NilRef {
		if old := t.instances[c.Parent]; old != nil {
			old.Children = removeRef(old.Children, child)
		}
	}

	c.Parent = parent
	p.Children = append(p.Children, child)

	return nil
}

// ChildrenOf returns the ordered child references of ref, nil for unknown
// references.
func (t *Tree) ChildrenOf(ref Ref) []Ref {
	inst := t.instances[ref]
	if inst == nil {
		return nil
	}

	return inst.Children
}

// Len reports the number of instances, the synthetic root included.
func (t *Tree) Len() int {
	return len(t.instances)
}

func removeRef(refs []Ref, target Ref) []Ref {
	for i, r := range refs {
		if r == target {
			return append(refs[:i], refs[i+1:]...)
		}
	}

	return refs
}
