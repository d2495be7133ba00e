// SPDX-License-Identifier: MPL-2.0

package linker

import (
	"fmt"
	"strings"
)

// The scanner below understands the restricted declaration grammar the
// bundler emits in chunk output, not arbitrary scripts: import and export
// declarations start at column zero, end with a semicolon, and use plain
// string-literal specifiers. Declarations are parsed into typed records so
// replacement code is synthesized structurally instead of by ad-hoc string
// interpolation.

type (
	// declBinding is one `name as alias` pair. For imports, name is the
	// identifier in the providing module and alias the local binding; for
	// exports, name is the local identifier and alias the exported name.
	// alias equals name when no `as` clause is present.
	declBinding struct {
		name  string
		alias string
	}

	// importDecl is a parsed import declaration.
	importDecl struct {
		from      string        // module specifier
		def       string        // local name of a default import, "" if none
		namespace string        // local name of a `* as ns` import, "" if none
		bindings  []declBinding // named imports
	}

	// exportDecl is a parsed export-clause declaration, optionally a
	// re-export when from is non-empty.
	exportDecl struct {
		from     string
		bindings []declBinding
	}

	declKind int

	// decl is one scanned declaration with its byte span in the original
	// code, so the rewriter can splice replacements in place.
	decl struct {
		kind       declKind
		imp        importDecl
		exp        exportDecl
		start, end int
	}
)

const (
	declImport declKind = iota
	declExport
)

// scanModule finds every import/export declaration in code. Code outside the
// declarations is never inspected, except that template-literal state is
// tracked across lines so a backticked body containing `import` or `export`
// at column zero is never mistaken for a declaration.
func scanModule(code string) ([]decl, error) {
	var decls []decl

	inTemplate := false
	for i := 0; i < len(code); {
		lineEnd := strings.IndexByte(code[i:], '\n')
		if lineEnd < 0 {
			lineEnd = len(code)
		} else {
			lineEnd += i
		}

		if inTemplate {
			inTemplate = templateState(inTemplate, code[i:lineEnd])
			i = lineEnd + 1
			continue
		}

		kind, ok := declStart(code[i:lineEnd])
		if !ok {
			inTemplate = templateState(inTemplate, code[i:lineEnd])
			i = lineEnd + 1
			continue
		}

		// A declaration may span lines (multi-line import clauses); extend
		// until the statement is brace-balanced and semicolon-terminated.
		start := i
		end := lineEnd
		for !declComplete(code[start:end]) && end < len(code) {
			next := strings.IndexByte(code[end+1:], '\n')
			if next < 0 {
				end = len(code)
			} else {
				end = end + 1 + next
			}
		}
		stmt := code[start:end]
		if !declComplete(stmt) {
			return nil, fmt.Errorf("unterminated %s declaration: %q", kindName(kind), firstLine(stmt))
		}

		d := decl{kind: kind, start: start, end: end}
		var err error
		switch kind {
		case declImport:
			d.imp, err = parseImport(stmt)
		case declExport:
			d.exp, err = parseExport(stmt)
		}
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
		i = end + 1
	}

	return decls, nil
}

// declStart reports whether a line opens an import or export declaration.
// The keyword must sit at column zero and be followed by a non-identifier
// character, so lines like `importantCall()` never match.
func declStart(line string) (declKind, bool) {
	switch {
	case keywordAt(line, "import"):
		return declImport, true
	case keywordAt(line, "export"):
		return declExport, true
	}
	return 0, false
}

func keywordAt(line, kw string) bool {
	if !strings.HasPrefix(line, kw) {
		return false
	}
	rest := line[len(kw):]
	return rest == "" || !identByte(rest[0])
}

// templateState advances the open-template flag across one line, flipping on
// every unescaped backtick. Backticks inside quoted strings would flip it
// wrongly, but the restricted grammar keeps declarations free of backticks
// and everything else is only ever skipped, never parsed.
func templateState(in bool, line string) bool {
	for j := 0; j < len(line); j++ {
		switch line[j] {
		case '\\':
			j++
		case '`':
			in = !in
		}
	}
	return in
}

func declComplete(stmt string) bool {
	if strings.Count(stmt, "{") != strings.Count(stmt, "}") {
		return false
	}
	return strings.HasSuffix(strings.TrimRight(stmt, " \t\r"), ";")
}

func kindName(k declKind) string {
	if k == declExport {
		return "export"
	}
	return "import"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// parseImport parses the forms the bundler emits:
//
//	import "spec";
//	import { a, b as c } from "spec";
//	import * as ns from "spec";
//	import def from "spec";
//	import def, { a } from "spec";
func parseImport(stmt string) (importDecl, error) {
	c := newCursor(stmt)
	c.expectWord("import")

	var d importDecl

	if spec, ok := c.stringLit(); ok {
		// Side-effect-only import.
		d.from = spec
		return d, c.finish(stmt)
	}

	if name, ok := c.ident(); ok {
		d.def = name
		c.accept(',')
	}

	switch {
	case c.accept('*'):
		if !c.word("as") {
			return d, fmt.Errorf("malformed namespace import: %q", firstLine(stmt))
		}
		ns, ok := c.ident()
		if !ok {
			return d, fmt.Errorf("malformed namespace import: %q", firstLine(stmt))
		}
		d.namespace = ns
	case c.accept('{'):
		bindings, err := parseBindings(c, stmt)
		if err != nil {
			return d, err
		}
		d.bindings = bindings
	}

	if !c.word("from") {
		return d, fmt.Errorf("import declaration missing from clause: %q", firstLine(stmt))
	}
	spec, ok := c.stringLit()
	if !ok {
		return d, fmt.Errorf("import declaration missing specifier: %q", firstLine(stmt))
	}
	d.from = spec
	return d, c.finish(stmt)
}

// parseExport parses `export { a, b as c };` and the re-export form with a
// trailing from clause. Any other export shape (declarations, default
// expressions) is outside the bundler's chunk grammar and is an error.
func parseExport(stmt string) (exportDecl, error) {
	c := newCursor(stmt)
	c.expectWord("export")

	var d exportDecl
	if !c.accept('{') {
		return d, fmt.Errorf("unsupported export declaration: %q", firstLine(stmt))
	}
	bindings, err := parseBindings(c, stmt)
	if err != nil {
		return d, err
	}
	d.bindings = bindings

	if c.word("from") {
		spec, ok := c.stringLit()
		if !ok {
			return d, fmt.Errorf("re-export missing specifier: %q", firstLine(stmt))
		}
		d.from = spec
	}
	return d, c.finish(stmt)
}

// parseBindings consumes `a, b as c, "d" as e` up to the closing brace. The
// opening brace has already been consumed.
func parseBindings(c *cursor, stmt string) ([]declBinding, error) {
	var out []declBinding
	for {
		if c.accept('}') {
			return out, nil
		}
		name, ok := c.ident()
		if !ok {
			if name, ok = c.stringLit(); !ok {
				return nil, fmt.Errorf("malformed binding list: %q", firstLine(stmt))
			}
		}
		b := declBinding{name: name, alias: name}
		if c.word("as") {
			alias, ok := c.ident()
			if !ok {
				if alias, ok = c.stringLit(); !ok {
					return nil, fmt.Errorf("malformed binding alias: %q", firstLine(stmt))
				}
			}
			b.alias = alias
		}
		out = append(out, b)
		if !c.accept(',') && !c.peek('}') {
			return nil, fmt.Errorf("malformed binding list: %q", firstLine(stmt))
		}
	}
}

// cursor is a minimal token reader over one declaration statement.
type cursor struct {
	s string
	i int
}

func newCursor(s string) *cursor { return &cursor{s: s} }

func (c *cursor) skipSpace() {
	for c.i < len(c.s) {
		switch c.s[c.i] {
		case ' ', '\t', '\r', '\n':
			c.i++
		default:
			return
		}
	}
}

func (c *cursor) peek(b byte) bool {
	c.skipSpace()
	return c.i < len(c.s) && c.s[c.i] == b
}

func (c *cursor) accept(b byte) bool {
	if c.peek(b) {
		c.i++
		return true
	}
	return false
}

// word consumes the given keyword if it appears next as a whole word.
func (c *cursor) word(w string) bool {
	c.skipSpace()
	if !strings.HasPrefix(c.s[c.i:], w) {
		return false
	}
	after := c.i + len(w)
	if after < len(c.s) && identByte(c.s[after]) {
		return false
	}
	c.i = after
	return true
}

// expectWord consumes a keyword the caller already verified via declStart.
func (c *cursor) expectWord(w string) {
	if !c.word(w) {
		panic("linker: cursor keyword mismatch: " + w)
	}
}

func (c *cursor) ident() (string, bool) {
	c.skipSpace()
	start := c.i
	for c.i < len(c.s) && identByte(c.s[c.i]) {
		c.i++
	}
	if c.i == start {
		return "", false
	}
	return c.s[start:c.i], true
}

func (c *cursor) stringLit() (string, bool) {
	c.skipSpace()
	if c.i >= len(c.s) {
		return "", false
	}
	quote := c.s[c.i]
	if quote != '"' && quote != '\'' {
		return "", false
	}
	end := strings.IndexByte(c.s[c.i+1:], quote)
	if end < 0 {
		return "", false
	}
	lit := c.s[c.i+1 : c.i+1+end]
	c.i += end + 2
	return lit, true
}

// finish verifies nothing but the terminating semicolon remains.
func (c *cursor) finish(stmt string) error {
	c.skipSpace()
	rest := strings.TrimRight(c.s[c.i:], " \t\r\n")
	if rest != ";" {
		return fmt.Errorf("trailing tokens in declaration: %q", firstLine(stmt))
	}
	return nil
}

func identByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
