// SPDX-License-Identifier: MPL-2.0

// Package linker turns module-shaped chunk code into plain scripts that link
// through global-scope slots, and computes the load order those scripts
// require. It consumes the chunk graph read-only; the slot allocator is the
// only shared state and serializes internally.
package linker

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/eritbh/exby/internal/chunk"
	"github.com/eritbh/exby/internal/slot"
)

// Rewrite transforms one chunk's code so that no import/export declarations
// remain: exported values are accumulated on the chunk's global slot object,
// imported names are read from the slots of the chunks that provide them, and
// the whole body runs inside a closure so module locals never leak into the
// shared scope. Everything outside the scanned declarations is preserved
// byte for byte.
func Rewrite(c *chunk.Chunk, g *chunk.Graph, alloc *slot.Allocator) (string, error) {
	decls, err := scanModule(c.Code)
	if err != nil {
		return "", fmt.Errorf("chunk %q: %w", c.FileName, err)
	}

	hasExports := len(c.ExportedNames) > 0
	for _, d := range decls {
		if d.kind == declExport {
			hasExports = true
		}
	}

	var body strings.Builder
	last := 0
	for _, d := range decls {
		body.WriteString(c.Code[last:d.start])
		repl, err := renderDecl(d, c, g, alloc)
		if err != nil {
			return "", err
		}
		body.WriteString(repl)
		last = d.end
	}
	body.WriteString(c.Code[last:])

	if !hasExports {
		// No observable values flow out of this chunk; the wrapper alone is
		// enough to keep its locals out of the shared scope.
		return "(function () {\n" + body.String() + "\n})();\n", nil
	}

	// The slot object is created once and reused if an earlier script in the
	// same scope already populated it, so script order never clobbers
	// exports that are already attached.
	slotName := alloc.Allocate(c.FileName)
	var out strings.Builder
	out.WriteString("var " + slotName + " = typeof " + slotName + " === \"undefined\" ? {} : " + slotName + ";\n")
	out.WriteString("(function (exports) {\n")
	out.WriteString(body.String())
	out.WriteString("\n})(" + slotName + ");\n")
	return out.String(), nil
}

// renderDecl synthesizes the replacement statement for one declaration.
func renderDecl(d decl, c *chunk.Chunk, g *chunk.Graph, alloc *slot.Allocator) (string, error) {
	switch d.kind {
	case declImport:
		return renderImport(d.imp, c, g, alloc)
	case declExport:
		return renderExport(d.exp, c, g, alloc)
	}
	return "", fmt.Errorf("chunk %q: unknown declaration kind %d", c.FileName, d.kind)
}

func renderImport(imp importDecl, c *chunk.Chunk, g *chunk.Graph, alloc *slot.Allocator) (string, error) {
	slotName, err := resolveSlot(imp.from, c, g, alloc)
	if err != nil {
		return "", err
	}

	switch {
	case imp.namespace != "":
		return "var " + imp.namespace + " = " + slotName + ";", nil
	case imp.def == "" && len(imp.bindings) == 0:
		// Side-effect-only import: the load order already guarantees the
		// imported chunk ran, so nothing remains to bind.
		return "", nil
	default:
		var parts []string
		if imp.def != "" {
			parts = append(parts, "default: "+imp.def)
		}
		for _, b := range imp.bindings {
			p, err := renderPattern(b)
			if err != nil {
				return "", fmt.Errorf("chunk %q: %w", c.FileName, err)
			}
			parts = append(parts, p)
		}
		return "var { " + strings.Join(parts, ", ") + " } = " + slotName + ";", nil
	}
}

func renderExport(exp exportDecl, c *chunk.Chunk, g *chunk.Graph, alloc *slot.Allocator) (string, error) {
	sourceSlot := ""
	if exp.from != "" {
		slotName, err := resolveSlot(exp.from, c, g, alloc)
		if err != nil {
			return "", err
		}
		sourceSlot = slotName
	}

	var parts []string
	for _, b := range exp.bindings {
		// Exported names may be arbitrary strings; those go through bracket
		// member syntax. The local side of a plain export has no such
		// freedom: it must name an identifier in the chunk body.
		target := "exports." + b.alias
		if !isIdentifier(b.alias) {
			target = "exports[" + quoteName(b.alias) + "]"
		}

		var value string
		switch {
		case sourceSlot == "":
			if !isIdentifier(b.name) {
				return "", fmt.Errorf("chunk %q: export %q does not name a local identifier", c.FileName, b.name)
			}
			value = b.name
		case isIdentifier(b.name):
			value = sourceSlot + "." + b.name
		default:
			value = sourceSlot + "[" + quoteName(b.name) + "]"
		}
		parts = append(parts, target+" = "+value+";")
	}
	return strings.Join(parts, "\n"), nil
}

// renderPattern renders one destructuring element, collapsing `a: a`. The
// providing side may be an arbitrary string name, but the alias becomes a
// local variable and must be an identifier.
func renderPattern(b declBinding) (string, error) {
	if !isIdentifier(b.alias) {
		return "", fmt.Errorf("import of %q binds to %q, which is not a valid identifier", b.name, b.alias)
	}
	if b.name == b.alias {
		return b.name, nil
	}
	if isIdentifier(b.name) {
		return b.name + ": " + b.alias, nil
	}
	return quoteName(b.name) + ": " + b.alias, nil
}

// isIdentifier reports whether s is usable in an identifier position of the
// target grammar without quoting.
func isIdentifier(s string) bool {
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !identByte(s[i]) {
			return false
		}
	}
	return true
}

func quoteName(s string) string {
	return strconv.Quote(s)
}

// resolveSlot maps a declaration's module specifier to the slot name of the
// chunk it refers to. Specifiers in chunk code are relative to the importing
// chunk's own location.
func resolveSlot(spec string, c *chunk.Chunk, g *chunk.Graph, alloc *slot.Allocator) (string, error) {
	fileName := path.Join(path.Dir(c.FileName), spec)
	if _, ok := g.Get(fileName); !ok {
		return "", fmt.Errorf("chunk %q: import %q does not resolve to a chunk in the graph", c.FileName, spec)
	}
	return alloc.Allocate(fileName), nil
}
