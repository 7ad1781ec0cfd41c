// Package domain contains the core transpilation pipeline and logic.
package domain

import (
	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
	"pluginproxy.dev/pkg/pluginproxy/pkg/dotpath"
)

// VisitAction tells Walk whether to keep going after visiting a node.
type VisitAction int

// Available VisitAction values.
const (
	// VisitContinue keeps the walk going.
	VisitContinue VisitAction = iota
	// VisitBreak stops the entire walk, siblings included.
	VisitBreak
)

// VisitFunc examines one visited node. The path reflects the node's position
// below the walk root, so path.Depth() is the node's depth.
type VisitFunc func(inst *m.Instance, path *dotpath.Path) VisitAction

// SearchAction tells CollectMatches what to do with an examined node.
type SearchAction int

// Available SearchAction values.
const (
	// SearchSkip leaves the node out and keeps walking.
	SearchSkip SearchAction = iota
	// SearchMatch records the node and keeps walking.
	SearchMatch
	// SearchMatchAndStop records the node and ends the walk.
	SearchMatchAndStop
	// SearchStop ends the walk without recording the node.
	SearchStop
)

// SearchFunc classifies one examined node for CollectMatches.
type SearchFunc func(inst *m.Instance, path *dotpath.Path) SearchAction

type walkFrame struct {
	ref  m.Ref
	path *dotpath.Path
}

// Walk performs an iterative depth-first walk over the descendants of parent,
// visiting each at most once. A node's name is pushed onto the path before it
// is visited and popped once its subtree is scheduled. Children are only
// scheduled while their depth stays below depthLimit; a depthLimit of 0 walks
// the whole subtree. The walk never mutates the tree.
func Walk(tree *m.Tree, parent m.Ref, depthLimit int, visit VisitFunc) {
	stack := []walkFrame{{ref: parent, path: dotpath.New()}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, childRef := range tree.ChildrenOf(frame.ref) {
			child := tree.Get(childRef)
			if child == nil {
				continue
			}

			frame.path.Push(child.Name)

			if visit(child, frame.path) == VisitBreak {
				return
			}

			if frame.path.Depth() < depthLimit || depthLimit == 0 {
				stack = append(stack, walkFrame{ref: childRef, path: frame.path.Clone()})
			}

			frame.path.Pop()
		}
	}
}

// CollectMatches walks the descendants of parent and returns the nodes the
// predicate selected, in visitation order, each paired with its depth.
func CollectMatches(tree *m.Tree, parent m.Ref, depthLimit int, predicate SearchFunc) []m.Target {
	var matches []m.Target

	Walk(tree, parent, depthLimit, func(inst *m.Instance, path *dotpath.Path) VisitAction {
		switch predicate(inst, path) {
		case SearchMatch:
			matches = append(matches, m.Target{Ref: inst.Ref, Depth: path.Depth()})
		case SearchMatchAndStop:
			matches = append(matches, m.Target{Ref: inst.Ref, Depth: path.Depth()})
			return VisitBreak
		case SearchStop:
			return VisitBreak
		case SearchSkip:
		}

		return VisitContinue
	})

	return matches
}

// FindFirstOfClass returns the first descendant of parent whose class
// satisfies the predicate, or NilRef when none does within the depth bound.
func FindFirstOfClass(tree *m.Tree, parent m.Ref, depthLimit int, classPredicate func(class string) bool) m.Ref {
	result := m.NilRef

	Walk(tree, parent, depthLimit, func(inst *m.Instance, _ *dotpath.Path) VisitAction {
		if classPredicate(inst.ClassName) {
			result = inst.Ref
			return VisitBreak
		}

		return VisitContinue
	})

	return result
}
