package domain

import (
	"strings"
)

// indentUnit is the indentation added to the wrapped entry-point body.
const indentUnit = "\t"

// WrapEntryPoint embeds the fully assembled entry-point source as the body of
// a one-parameter init function inside a returned table, turning a directly
// executable script into a requirable module. Every non-empty body line gains
// one indent level; empty lines stay empty.
func WrapEntryPoint(assembled []byte) []byte {
	var b strings.Builder
	b.Grow(len(assembled) + 64)

	b.WriteString("return {\n")
	b.WriteString(indentUnit + "init = function(" + globalsName + ")\n")
	b.WriteString(reindent(string(assembled)))
	b.WriteString(indentUnit + "end,\n")
	b.WriteString("}\n")

	return []byte(b.String())
}

// reindent shifts every non-empty line one indent unit right and guarantees
// the result ends with a newline so the closing end lands on its own line.
func reindent(body string) string {
	body = strings.TrimSuffix(body, "\n")
	if body == "" {
		return ""
	}

	lines := strings.Split(body, "\n")

	var b strings.Builder
	for _, line := range lines {
		if line != "" {
			b.WriteString(indentUnit)
			b.WriteString(line)
		}

		b.WriteByte('\n')
	}

	return b.String()
}
