// Package codec reads and writes Roblox model/place containers in both
// on-disk encodings: the XML markup form (rbxmx, rbxlx) and the chunked
// binary form (rbxm, rbxl). Decoding produces a model.Tree; encoding
// persists a chosen set of root subtrees and nothing else.
package codec

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
)

var errUnknownFormat = errors.New("unknown document format")

// Format selects one of the two container encodings.
type Format int

const (
	// FormatXML is the human-readable markup encoding.
	FormatXML Format = iota + 1
	// FormatBinary is the compact chunked encoding.
	FormatBinary
)

// String names the format for error tags and logs.
func (f Format) String() string {
	switch f {
	case FormatXML:
		return "xml"
	case FormatBinary:
		return "binary"
	}

	return "unknown"
}

// DetectFormat picks the encoding from the path's extension. Unknown
// extensions are rejected before any I/O happens.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".rbxmx", ".rbxlx":
		return FormatXML, nil
	case ".rbxm", ".rbxl":
		return FormatBinary, nil
	}

	return 0, &m.InvalidExtensionError{Path: path}
}

// Decode parses a whole document stream into a tree.
func Decode(r io.Reader, f Format) (*m.Tree, error) {
	switch f {
	case FormatXML:
		return decodeXML(r)
	case FormatBinary:
		return decodeBinary(r)
	}

	return nil, &m.CodecError{Op: "decode", Format: f.String(), Err: errUnknownFormat}
}

// Encode serializes the subtrees under roots. Instances outside those
// subtrees are not persisted even when they exist in the tree.
func Encode(w io.Writer, f Format, tree *m.Tree, roots []m.Ref) error {
	switch f {
	case FormatXML:
		return encodeXML(w, tree, roots)
	case FormatBinary:
		return encodeBinary(w, tree, roots)
	}

	return &m.CodecError{Op: "encode", Format: f.String(), Err: errUnknownFormat}
}

// exportSet walks the root subtrees depth-first and returns every reachable
// reference in visitation order, parents before children.
func exportSet(tree *m.Tree, roots []m.Ref) []m.Ref {
	var out []m.Ref

	seen := map[m.Ref]bool{}
	stack := make([]m.Ref, 0, len(roots))

	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}

	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if seen[ref] || tree.Get(ref) == nil {
			continue
		}

		seen[ref] = true
		out = append(out, ref)

		children := tree.ChildrenOf(ref)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	return out
}
