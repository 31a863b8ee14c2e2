// Package typescript is a hand-rolled recursive-descent parser for
// the TypeScript subset used to describe portable schemas: `interface`
// and `type` declarations with `name: TypeExpr,` fields, union-with-
// null for nullability, the `T[]` array suffix, and magic aliases
// (`decimal`, `int16`, `int32`, `int64`, `Date`) that map directly to
// portable types instead of falling through to `Named`.
package typescript

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
)

// ParseError carries diagnostic position information, matching the
// spec's `{file, line, column, snippet}` shape.
type ParseError struct {
	File    string
	Line    int
	Column  int
	Snippet string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s (near %q)", e.File, e.Line, e.Column, e.Message, e.Snippet)
}

var magicAliases = map[string]dbctypes.DataType{
	"decimal": dbctypes.Decimal,
	"int16":   dbctypes.Int16,
	"int32":   dbctypes.Int32,
	"int64":   dbctypes.Int64,
	"Date":    dbctypes.Date,
}

// declaration is one `interface`/`type` declaration parsed from the
// source, prior to resolving field types (which may reference other
// declarations or magic aliases).
type declaration struct {
	name   string
	fields []rawField // for interfaces; empty for a `type` alias
	alias  string      // for `type X = Y` aliases; empty for interfaces
}

type rawField struct {
	name       string
	typeExpr   string
	isNullable bool
}

// Render emits a single `interface Name { ... }` declaration for
// schema's table, the inverse of Parse. Named types referenced by a
// column are rendered as their own preceding `type` aliases.
func Render(schema *dbcschema.Schema) (string, error) {
	table, err := schema.Table0()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	names := make([]string, 0, len(schema.NamedDataTypes))
	for name := range schema.NamedDataTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		expr, err := renderTypeExpr(schema.NamedDataTypes[name])
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "type %s = %s;\n", name, expr)
	}
	fmt.Fprintf(&b, "interface %s {\n", table.Name)
	for _, col := range table.Columns {
		expr, err := renderTypeExpr(col.DataType)
		if err != nil {
			return "", err
		}
		if col.IsNullable {
			expr += " | null"
		}
		fmt.Fprintf(&b, "  %s: %s;\n", col.Name, expr)
	}
	b.WriteString("}\n")
	return b.String(), nil
}

func renderTypeExpr(dt dbctypes.DataType) (string, error) {
	switch v := dt.(type) {
	case dbctypes.ArrayType:
		elem, err := renderTypeExpr(v.Element)
		if err != nil {
			return "", err
		}
		return elem + "[]", nil
	case dbctypes.NamedType:
		return v.Name, nil
	}
	for name, magic := range magicAliases {
		if magic.Equal(dt) {
			return name, nil
		}
	}
	switch dt.Kind() {
	case dbctypes.KindText, dbctypes.KindOneOf:
		return "string", nil
	case dbctypes.KindFloat32, dbctypes.KindFloat64:
		return "number", nil
	case dbctypes.KindBool:
		return "boolean", nil
	case dbctypes.KindUUID:
		return "string", nil
	case dbctypes.KindJSON, dbctypes.KindGeoJSON:
		return "any", nil
	case dbctypes.KindTimestampWithoutTimeZone, dbctypes.KindTimestampWithTimeZone:
		return "Date", nil
	case dbctypes.KindStruct:
		return "any", nil
	default:
		return "", fmt.Errorf("typescript: no rendering for %s", dt.String())
	}
}

// Parse parses TypeScript source and selects the interface named by
// fragment (the part of the locator after `#`) as the schema's table.
// fileName is used only for diagnostics.
func Parse(source, fragment, fileName string) (*dbcschema.Schema, error) {
	p := &parser{src: source, file: fileName}
	decls, err := p.parseDeclarations()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]declaration, len(decls))
	for _, d := range decls {
		byName[d.name] = d
	}

	target, ok := byName[fragment]
	if !ok {
		return nil, &ParseError{File: fileName, Line: 1, Column: 1, Message: fmt.Sprintf("no declaration named %q", fragment)}
	}
	if target.alias != "" {
		return nil, &ParseError{File: fileName, Line: 1, Column: 1, Message: fmt.Sprintf("%q is a type alias, not an interface", fragment)}
	}

	resolver := &typeResolver{byName: byName, file: fileName, visiting: map[string]bool{}, named: map[string]dbctypes.DataType{}}
	columns := make([]dbcschema.Column, len(target.fields))
	for i, f := range target.fields {
		dt, err := resolver.resolve(f.typeExpr)
		if err != nil {
			return nil, err
		}
		columns[i] = dbcschema.Column{Name: f.name, IsNullable: f.isNullable, DataType: dt}
	}

	named := make([]dbcschema.NamedDataType, 0, len(resolver.named))
	for name, dt := range resolver.named {
		named = append(named, dbcschema.NamedDataType{Name: name, DataType: dt})
	}
	return dbcschema.New(dbcschema.Table{Name: fragment, Columns: columns}, named)
}

// typeResolver turns a raw type expression string into a DataType,
// following `type` aliases (including magic aliases for decimal/
// int16/int32/int64/Date) and detecting alias cycles. When a field
// references another interface by name, that interface's fields are
// flattened into a Struct and registered in named so the resulting
// Named reference resolves within the schema's own named-type table.
type typeResolver struct {
	byName   map[string]declaration
	file     string
	visiting map[string]bool
	named    map[string]dbctypes.DataType
}

func (r *typeResolver) resolve(expr string) (dbctypes.DataType, error) {
	expr = strings.TrimSpace(expr)

	if strings.HasSuffix(expr, "[]") {
		elem, err := r.resolve(strings.TrimSuffix(expr, "[]"))
		if err != nil {
			return nil, err
		}
		return dbctypes.NewArray(elem), nil
	}

	switch expr {
	case "string":
		return dbctypes.Text, nil
	case "number":
		return dbctypes.Float64, nil
	case "boolean":
		return dbctypes.Bool, nil
	}

	if dt, ok := magicAliases[expr]; ok {
		return dt, nil
	}

	if d, ok := r.byName[expr]; ok {
		if r.visiting[expr] {
			return nil, &ParseError{File: r.file, Line: 1, Column: 1, Message: fmt.Sprintf("type alias %q is cyclic", expr)}
		}
		r.visiting[expr] = true
		defer delete(r.visiting, expr)
		if d.alias != "" {
			return r.resolve(d.alias)
		}
		if _, done := r.named[expr]; !done {
			fields := make([]dbctypes.StructField, len(d.fields))
			for i, f := range d.fields {
				fdt, err := r.resolve(f.typeExpr)
				if err != nil {
					return nil, err
				}
				fields[i] = dbctypes.StructField{Name: f.name, IsNullable: f.isNullable, DataType: fdt}
			}
			st, err := dbctypes.NewStruct(fields)
			if err != nil {
				return nil, &ParseError{File: r.file, Line: 1, Column: 1, Message: err.Error()}
			}
			r.named[expr] = st
		}
		return dbctypes.NewNamed(expr), nil
	}

	return nil, &ParseError{File: r.file, Line: 1, Column: 1, Message: fmt.Sprintf("unknown type %q", expr), Snippet: expr}
}

// parser is a hand-rolled scanner/recursive-descent parser over the
// declaration grammar. It tracks line/column for diagnostics.
type parser struct {
	src  string
	pos  int
	line int
	col  int
	file string
}

func (p *parser) parseDeclarations() ([]declaration, error) {
	p.line, p.col = 1, 1
	var decls []declaration
	for {
		p.skipWhitespaceAndComments()
		if p.eof() {
			break
		}
		word, err := p.peekWord()
		if err != nil {
			return nil, err
		}
		switch word {
		case "interface":
			d, err := p.parseInterface()
			if err != nil {
				return nil, err
			}
			decls = append(decls, d)
		case "type":
			d, err := p.parseTypeAlias()
			if err != nil {
				return nil, err
			}
			decls = append(decls, d)
		default:
			return nil, p.errorf("expected 'interface' or 'type', found %q", word)
		}
	}
	return decls, nil
}

func (p *parser) parseInterface() (declaration, error) {
	p.consumeWord("interface")
	p.skipWhitespaceAndComments()
	name, err := p.consumeIdent()
	if err != nil {
		return declaration{}, err
	}
	p.skipWhitespaceAndComments()
	if err := p.consumeByte('{'); err != nil {
		return declaration{}, err
	}

	var fields []rawField
	for {
		p.skipWhitespaceAndComments()
		if p.peekByte() == '}' {
			p.advance()
			break
		}
		f, err := p.parseField()
		if err != nil {
			return declaration{}, err
		}
		fields = append(fields, f)
	}
	return declaration{name: name, fields: fields}, nil
}

func (p *parser) parseField() (rawField, error) {
	fieldName, err := p.consumeIdent()
	if err != nil {
		return rawField{}, err
	}
	optional := false
	if p.peekByte() == '?' {
		optional = true
		p.advance()
	}
	p.skipWhitespaceAndComments()
	if err := p.consumeByte(':'); err != nil {
		return rawField{}, err
	}
	p.skipWhitespaceAndComments()
	typeExpr, isNullable, err := p.parseTypeExpr()
	if err != nil {
		return rawField{}, err
	}
	p.skipWhitespaceAndComments()
	if p.peekByte() == ',' || p.peekByte() == ';' {
		p.advance()
	}
	return rawField{name: fieldName, typeExpr: typeExpr, isNullable: isNullable || optional}, nil
}

// parseTypeExpr parses a type expression up to `,`, `;`, or `}`,
// recognizing `X | null` and `null | X` as nullable X.
func (p *parser) parseTypeExpr() (string, bool, error) {
	start := p.pos
	depth := 0
loop:
	for !p.eof() {
		c := p.src[p.pos]
		switch c {
		case '{', '(', '[':
			depth++
		case '}':
			if depth == 0 {
				break loop
			}
			depth--
		case ')', ']':
			depth--
		case ',', ';':
			if depth == 0 {
				break loop
			}
		}
		p.advance()
	}
	raw := strings.TrimSpace(p.src[start:p.pos])
	parts := strings.Split(raw, "|")
	nullable := false
	var kept []string
	for _, part := range parts {
		t := strings.TrimSpace(part)
		if t == "null" || t == "undefined" {
			nullable = true
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) != 1 {
		return "", false, p.errorf("union types are only supported for nullability (got %q)", raw)
	}
	return kept[0], nullable, nil
}

func (p *parser) parseTypeAlias() (declaration, error) {
	p.consumeWord("type")
	p.skipWhitespaceAndComments()
	name, err := p.consumeIdent()
	if err != nil {
		return declaration{}, err
	}
	p.skipWhitespaceAndComments()
	if err := p.consumeByte('='); err != nil {
		return declaration{}, err
	}
	p.skipWhitespaceAndComments()
	typeExpr, _, err := p.parseAliasRHS()
	if err != nil {
		// A magic alias resolves by name, so its right-hand side
		// (e.g. `number|string` for decimal) is not interpreted.
		if _, magic := magicAliases[name]; !magic {
			return declaration{}, err
		}
		typeExpr = name
	}
	p.skipWhitespaceAndComments()
	if p.peekByte() == ';' {
		p.advance()
	}
	return declaration{name: name, alias: typeExpr}, nil
}

// parseAliasRHS is like parseTypeExpr but terminates on `;` or
// newline-then-EOF, not on `,`/`}` (top-level alias bodies aren't
// nested in braces).
func (p *parser) parseAliasRHS() (string, bool, error) {
	start := p.pos
	for !p.eof() && p.src[p.pos] != ';' {
		p.advance()
	}
	raw := strings.TrimSpace(p.src[start:p.pos])
	parts := strings.Split(raw, "|")
	nullable := false
	var kept []string
	for _, part := range parts {
		t := strings.TrimSpace(part)
		if t == "null" || t == "undefined" {
			nullable = true
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) != 1 {
		return "", false, p.errorf("union types are only supported for nullability (got %q)", raw)
	}
	return kept[0], nullable, nil
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peekByte() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) advance() {
	if p.eof() {
		return
	}
	if p.src[p.pos] == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	p.pos++
}

func (p *parser) skipWhitespaceAndComments() {
	for !p.eof() {
		c := p.src[p.pos]
		if unicode.IsSpace(rune(c)) {
			p.advance()
			continue
		}
		if c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/' {
			for !p.eof() && p.src[p.pos] != '\n' {
				p.advance()
			}
			continue
		}
		break
	}
}

func (p *parser) peekWord() (string, error) {
	start := p.pos
	for i := p.pos; i < len(p.src) && isIdentRune(rune(p.src[i])); i++ {
	}
	end := start
	for end < len(p.src) && isIdentRune(rune(p.src[end])) {
		end++
	}
	if end == start {
		return "", p.errorf("expected a keyword")
	}
	return p.src[start:end], nil
}

func (p *parser) consumeWord(word string) {
	for range word {
		p.advance()
	}
}

func (p *parser) consumeIdent() (string, error) {
	p.skipWhitespaceAndComments()
	start := p.pos
	for !p.eof() && isIdentRune(rune(p.src[p.pos])) {
		p.advance()
	}
	if p.pos == start {
		return "", p.errorf("expected an identifier")
	}
	return p.src[start:p.pos], nil
}

func (p *parser) consumeByte(b byte) error {
	p.skipWhitespaceAndComments()
	if p.eof() || p.src[p.pos] != b {
		return p.errorf("expected %q", string(b))
	}
	p.advance()
	return nil
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$'
}

func (p *parser) errorf(format string, args ...interface{}) error {
	snippetEnd := p.pos + 20
	if snippetEnd > len(p.src) {
		snippetEnd = len(p.src)
	}
	return &ParseError{
		File:    p.file,
		Line:    p.line,
		Column:  p.col,
		Snippet: p.src[p.pos:snippetEnd],
		Message: fmt.Sprintf(format, args...),
	}
}
