package domain

import (
	"bytes"

	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
	"pluginproxy.dev/pkg/pluginproxy/pkg/dotpath"
)

// markerComment tags injected declarations so readers of the output know the
// lines were not written by hand.
const markerComment = "-- Autogenerated with PluginProxy Transpiler"

// Assemble prepends the local declarations the rewritten script depends on.
// Declarations come in a fixed order: the globals require, the plugin handle,
// the enum table. A script at depth 0 is the entry point itself; it never
// requires its own module and always defines the plugin handle, since its
// wrapping function receives the globals object as a parameter.
func Assemble(rewritten []byte, req m.Requirements, depth int) []byte {
	var decls []string

	if req.NeedsGlobals() && depth > 0 {
		decls = append(decls, "local "+globalsName+" = require("+dotpath.NewAncestor(depth).String()+").Globals")
	}

	if req.Plugin || depth == 0 {
		decls = append(decls, "local "+pluginName+" = "+globalsName+".plugin")
	}

	if req.Enums {
		decls = append(decls, "local "+enumsName+" = "+globalsName+".Enums")
	}

	if len(decls) == 0 {
		return rewritten
	}

	var out bytes.Buffer
	out.Grow(len(rewritten) + 128)

	for _, decl := range decls {
		out.WriteString(decl)
		out.WriteByte('\n')
	}

	out.WriteString(markerComment)
	out.WriteString("\n\n")
	out.Write(rewritten)

	return out.Bytes()
}
