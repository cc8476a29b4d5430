package dtd

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

//go:embed rittdoc.dtd
var embeddedDTD []byte

// SchemaBytes returns the embedded DTD source. The packager copies it
// into every output archive so archives validate offline.
func SchemaBytes() []byte {
	return append([]byte(nil), embeddedDTD...)
}

// ErrSchemaUnavailable is returned when the schema cannot be loaded or
// parsed. A validator without a usable schema must never report a pass, so
// this error is fatal at construction time.
var ErrSchemaUnavailable = errors.New("dtd: schema unavailable")

// Schema is a parsed DTD: element declarations with compiled content
// models plus attribute lists.
type Schema struct {
	Elements map[string]*ElementDecl
}

// ElementDecl is one ELEMENT declaration with its ATTLIST attributes.
type ElementDecl struct {
	Name string

	// Empty is true for EMPTY content.
	Empty bool

	// Any is true for ANY content.
	Any bool

	// Mixed is true for mixed content (#PCDATA | ...): character data
	// plus the elements in MixedAllowed in any order.
	Mixed bool

	// MixedAllowed lists elements permitted in mixed content.
	MixedAllowed map[string]bool

	// Model is the original content model text for element content.
	Model string

	// pattern matches a serialized child-element sequence against the
	// content model.
	pattern *regexp.Regexp

	// required names direct children the model cannot omit; used to
	// distinguish a missing-required-child from a general content-model
	// violation.
	required []string

	// Attrs are the declared attributes by name.
	Attrs map[string]AttDecl
}

// AttDecl is one attribute declaration.
type AttDecl struct {
	Name     string
	Type     string   // "CDATA", "ID", "IDREF", or "enum"
	Enum     []string // allowed values when Type is "enum"
	Required bool
	Default  string
}

// LoadSchema reads and parses a DTD. An empty path loads the embedded
// RittDoc schema bundled with this package. Any read or parse failure is
// wrapped in ErrSchemaUnavailable.
func LoadSchema(path string) (*Schema, error) {
	data := embeddedDTD
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchemaUnavailable, err)
		}
	}
	s, err := ParseSchema(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaUnavailable, err)
	}
	return s, nil
}

var (
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	declRe    = regexp.MustCompile(`(?s)<!(ELEMENT|ATTLIST)\s+([^\s>]+)\s+(.*?)>`)
)

// ParseSchema parses DTD text into a Schema. Only the declaration subset
// the RittDoc grammar uses is supported: ELEMENT with EMPTY/ANY/mixed/
// element content, and ATTLIST with CDATA, ID, IDREF and enumerated types.
func ParseSchema(data []byte) (*Schema, error) {
	text := commentRe.ReplaceAllString(string(data), "")

	s := &Schema{Elements: make(map[string]*ElementDecl)}

	for _, m := range declRe.FindAllStringSubmatch(text, -1) {
		kind, name, body := m[1], m[2], strings.TrimSpace(m[3])
		switch kind {
		case "ELEMENT":
			decl, err := parseElementDecl(name, body)
			if err != nil {
				return nil, err
			}
			if existing, ok := s.Elements[name]; ok {
				// ATTLIST seen first: keep its attributes.
				decl.Attrs = existing.Attrs
			}
			s.Elements[name] = decl
		case "ATTLIST":
			decl, ok := s.Elements[name]
			if !ok {
				decl = &ElementDecl{Name: name, Attrs: make(map[string]AttDecl)}
				s.Elements[name] = decl
			}
			if decl.Attrs == nil {
				decl.Attrs = make(map[string]AttDecl)
			}
			if err := parseAttlist(decl, body); err != nil {
				return nil, err
			}
		}
	}

	if len(s.Elements) == 0 {
		return nil, errors.New("no element declarations found")
	}
	return s, nil
}

// parseElementDecl parses one ELEMENT declaration body.
func parseElementDecl(name, body string) (*ElementDecl, error) {
	decl := &ElementDecl{Name: name, Attrs: make(map[string]AttDecl)}
	body = strings.Join(strings.Fields(body), " ")

	switch {
	case body == "EMPTY":
		decl.Empty = true
	case body == "ANY":
		decl.Any = true
	case strings.Contains(body, "#PCDATA"):
		decl.Mixed = true
		decl.MixedAllowed = make(map[string]bool)
		inner := strings.Trim(body, "()* ")
		for _, part := range strings.Split(inner, "|") {
			part = strings.TrimSpace(part)
			if part == "" || part == "#PCDATA" {
				continue
			}
			decl.MixedAllowed[part] = true
		}
	default:
		decl.Model = body
		pattern, required, err := compileContentModel(body)
		if err != nil {
			return nil, fmt.Errorf("element %s: %v", name, err)
		}
		decl.pattern = pattern
		decl.required = required
	}
	return decl, nil
}

var nameRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9._-]*`)

// compileContentModel translates a DTD content model into a regular
// expression over serialized child names, where each child contributes the
// token "<name>". Commas become concatenation; groups, alternation and the
// ?/*/+ quantifiers carry over directly.
func compileContentModel(model string) (*regexp.Regexp, []string, error) {
	var sb strings.Builder
	sb.WriteString(`^`)

	for i := 0; i < len(model); {
		c := model[i]
		switch {
		case c == '(':
			sb.WriteString(`(?:`)
			i++
		case c == ')' || c == '?' || c == '*' || c == '+' || c == '|':
			sb.WriteByte(c)
			i++
		case c == ',' || c == ' ':
			i++
		default:
			loc := nameRe.FindStringIndex(model[i:])
			if loc == nil || loc[0] != 0 {
				return nil, nil, fmt.Errorf("unexpected character %q in content model %q", c, model)
			}
			name := model[i : i+loc[1]]
			sb.WriteString(`(?:<` + regexp.QuoteMeta(name) + `>)`)
			i += loc[1]
		}
	}
	sb.WriteString(`$`)

	pattern, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, nil, fmt.Errorf("content model %q: %v", model, err)
	}
	return pattern, requiredChildren(model), nil
}

// requiredChildren extracts the direct child names the model cannot omit:
// bare names in the top-level sequence that carry no ? or * quantifier.
// Alternation groups contribute nothing; this is a diagnostic aid, not a
// second validator.
func requiredChildren(model string) []string {
	var required []string
	for _, item := range splitTopLevel(model) {
		item = strings.TrimSpace(item)
		if item == "" || strings.HasPrefix(item, "(") {
			continue
		}
		if strings.HasSuffix(item, "?") || strings.HasSuffix(item, "*") {
			continue
		}
		name := strings.TrimSuffix(item, "+")
		if nameRe.MatchString(name) && nameRe.FindString(name) == name {
			required = append(required, name)
		}
	}
	return required
}

// splitTopLevel splits the model's outermost sequence on commas, ignoring
// commas inside nested groups.
func splitTopLevel(model string) []string {
	model = strings.TrimSpace(model)
	if strings.HasPrefix(model, "(") && strings.HasSuffix(model, ")") {
		model = model[1 : len(model)-1]
	}
	var parts []string
	depth := 0
	start := 0
	for i, c := range model {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, model[start:i])
				start = i + 1
			}
		case '|':
			if depth == 0 {
				// Top-level alternation: nothing is individually required.
				return nil
			}
		}
	}
	parts = append(parts, model[start:])
	return parts
}

// parseAttlist parses an ATTLIST body of one or more attribute definitions.
func parseAttlist(decl *ElementDecl, body string) error {
	fields := tokenizeAttlist(body)
	for i := 0; i < len(fields); {
		if i+1 >= len(fields) {
			return fmt.Errorf("attlist %s: truncated declaration", decl.Name)
		}
		att := AttDecl{Name: fields[i]}
		typ := fields[i+1]
		i += 2

		if strings.HasPrefix(typ, "(") {
			att.Type = "enum"
			inner := strings.Trim(typ, "()")
			for _, v := range strings.Split(inner, "|") {
				att.Enum = append(att.Enum, strings.TrimSpace(v))
			}
		} else {
			att.Type = typ
		}

		if i < len(fields) {
			switch fields[i] {
			case "#REQUIRED":
				att.Required = true
				i++
			case "#IMPLIED":
				i++
			case "#FIXED":
				i++
				if i < len(fields) {
					att.Default = strings.Trim(fields[i], `"'`)
					i++
				}
			default:
				if strings.HasPrefix(fields[i], `"`) || strings.HasPrefix(fields[i], `'`) {
					att.Default = strings.Trim(fields[i], `"'`)
					i++
				}
			}
		}
		decl.Attrs[att.Name] = att
	}
	return nil
}

// tokenizeAttlist splits an ATTLIST body, keeping parenthesized enumerations
// and quoted defaults as single tokens.
func tokenizeAttlist(body string) []string {
	var tokens []string
	var cur strings.Builder
	depth := 0
	inQuote := byte(0)

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case inQuote != 0:
			cur.WriteByte(c)
			if c == inQuote {
				inQuote = 0
				flush()
			}
		case c == '"' || c == '\'':
			inQuote = c
			cur.WriteByte(c)
		case c == '(':
			depth++
			cur.WriteByte(c)
		case c == ')':
			depth--
			cur.WriteByte(c)
		case (c == ' ' || c == '\t' || c == '\n' || c == '\r') && depth == 0:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}
