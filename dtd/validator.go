package dtd

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// Category classifies one validation finding.
type Category int

const (
	// CategoryInvalidContentModel: an element's children violate its
	// declared content model.
	CategoryInvalidContentModel Category = iota
	// CategoryUndeclaredElement: the element has no declaration in the
	// schema.
	CategoryUndeclaredElement
	// CategoryMissingRequiredAttribute: a #REQUIRED attribute is absent.
	CategoryMissingRequiredAttribute
	// CategoryMissingRequiredChild: a child the content model cannot omit
	// is absent.
	CategoryMissingRequiredChild
	// CategoryInvalidAttributeValue: an attribute value violates its
	// declared type (enumeration mismatch, duplicate ID, dangling IDREF).
	CategoryInvalidAttributeValue
)

// String returns a string representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryInvalidContentModel:
		return "invalid content model"
	case CategoryUndeclaredElement:
		return "undeclared element"
	case CategoryMissingRequiredAttribute:
		return "missing required attribute"
	case CategoryMissingRequiredChild:
		return "missing required child"
	case CategoryInvalidAttributeValue:
		return "invalid attribute value"
	default:
		return "unknown"
	}
}

// Severity ranks a finding.
type Severity int

const (
	// SeverityError findings fail validation.
	SeverityError Severity = iota
	// SeverityWarning findings are reported but informational.
	SeverityWarning
)

// String returns a string representation of the severity.
func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Finding is one DTD violation: which file, which line, what kind, and a
// human-readable description. Findings are produced only by the validator
// and never mutated afterward.
type Finding struct {
	File        string   `json:"file"`
	Line        int      `json:"line"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// Validator validates chapter XML files against a parsed DTD. Validation
// operates per chapter file, never on a concatenated document, so reported
// line numbers always correspond to real source locations.
type Validator struct {
	schema *Schema
}

// NewValidator loads the schema at dtdPath (the embedded RittDoc schema
// when empty) and returns a validator. Construction fails loudly when the
// schema cannot be loaded or parsed: a validator that cannot actually check
// anything must never report a false pass.
func NewValidator(dtdPath string) (*Validator, error) {
	schema, err := LoadSchema(dtdPath)
	if err != nil {
		return nil, err
	}
	return &Validator{schema: schema}, nil
}

// Schema exposes the parsed schema.
func (v *Validator) Schema() *Schema {
	return v.schema
}

// ValidateFile validates a single chapter XML file and returns its ordered
// findings. An I/O or well-formedness failure is an error, not a finding
// list: the file could not be checked at all.
func (v *Validator) ValidateFile(path string) ([]Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dtd: reading %s: %w", path, err)
	}
	return v.validate(path, data)
}

// ValidateChapters validates each chapter file independently, fanning out
// across files, and merges results in chapter order. The boolean is true
// only when no error-severity finding was produced.
func (v *Validator) ValidateChapters(paths []string) (bool, []Finding, error) {
	type result struct {
		findings []Finding
		err      error
	}
	results := make([]result, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			f, err := v.ValidateFile(path)
			results[i] = result{findings: f, err: err}
		}(i, path)
	}
	wg.Wait()

	var all []Finding
	for _, r := range results {
		if r.err != nil {
			return false, all, r.err
		}
		all = append(all, r.findings...)
	}

	pass := true
	for _, f := range all {
		if f.Severity == SeverityError {
			pass = false
			break
		}
	}
	return pass, all, nil
}

// frame tracks one open element during the parse.
type frame struct {
	name     string
	line     int
	children []string
	text     strings.Builder
}

// validate runs the token-level walk over one file.
func (v *Validator) validate(path string, data []byte) ([]Finding, error) {
	lines := newLineIndex(data)
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	var findings []Finding
	var stack []*frame

	// Entity tracking: ids declared and idrefs used in this file.
	ids := make(map[string]int) // id -> first line seen
	type idref struct {
		value string
		line  int
	}
	var idrefs []idref
	chapterPrefix := ""

	add := func(line int, cat Category, sev Severity, format string, args ...any) {
		findings = append(findings, Finding{
			File:        path,
			Line:        line,
			Category:    cat,
			Description: fmt.Sprintf(format, args...),
			Severity:    sev,
		})
	}

	for {
		line := lines.lineAt(dec.InputOffset())
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("dtd: %s is not well-formed XML: %w", path, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if len(stack) == 0 && name == "chapter" {
				for _, a := range t.Attr {
					if a.Name.Local == "id" && a.Value != "" {
						chapterPrefix = a.Value + "-"
					}
				}
			}
			decl, declared := v.schema.Elements[name]
			if !declared {
				add(line, CategoryUndeclaredElement, SeverityError,
					"element <%s> is not declared in the schema", name)
			} else {
				findings = append(findings, v.checkAttributes(path, line, decl, t.Attr, ids, func(val string, ln int) {
					idrefs = append(idrefs, idref{value: val, line: ln})
				})...)
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, name)
			}
			stack = append(stack, &frame{name: name, line: line})

		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if decl, ok := v.schema.Elements[f.name]; ok {
				findings = append(findings, v.checkContent(path, f, decl)...)
			}

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	// Dangling intra-chapter references: a linkend carrying this
	// chapter's own prefix must resolve within the file. References
	// into other chapters are resolved at the package level.
	for _, ref := range idrefs {
		if chapterPrefix == "" || !strings.HasPrefix(ref.value, chapterPrefix) {
			continue
		}
		if _, ok := ids[ref.value]; !ok {
			add(ref.line, CategoryInvalidAttributeValue, SeverityError,
				"linkend %q does not match any id in this chapter", ref.value)
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Line < findings[j].Line
	})
	return findings, nil
}

// checkAttributes validates one element's attributes against its ATTLIST.
func (v *Validator) checkAttributes(path string, line int, decl *ElementDecl, attrs []xml.Attr, ids map[string]int, recordRef func(string, int)) []Finding {
	var findings []Finding
	seen := make(map[string]string, len(attrs))
	for _, a := range attrs {
		seen[a.Name.Local] = a.Value
	}

	names := make([]string, 0, len(decl.Attrs))
	for name := range decl.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		att := decl.Attrs[name]
		val, present := seen[name]
		if !present {
			if att.Required {
				findings = append(findings, Finding{
					File:        path,
					Line:        line,
					Category:    CategoryMissingRequiredAttribute,
					Description: fmt.Sprintf("<%s> is missing required attribute %q", decl.Name, name),
					Severity:    SeverityError,
				})
			}
			continue
		}

		switch att.Type {
		case "enum":
			ok := false
			for _, allowed := range att.Enum {
				if val == allowed {
					ok = true
					break
				}
			}
			if !ok {
				findings = append(findings, Finding{
					File:        path,
					Line:        line,
					Category:    CategoryInvalidAttributeValue,
					Description: fmt.Sprintf("<%s> attribute %q has value %q, allowed: %v", decl.Name, name, val, att.Enum),
					Severity:    SeverityError,
				})
			}
		case "ID":
			if firstLine, dup := ids[val]; dup {
				findings = append(findings, Finding{
					File:        path,
					Line:        line,
					Category:    CategoryInvalidAttributeValue,
					Description: fmt.Sprintf("duplicate id %q (first declared at line %d)", val, firstLine),
					Severity:    SeverityError,
				})
			} else {
				ids[val] = line
			}
		case "IDREF":
			recordRef(val, line)
		}
	}

	// Track plain-CDATA ids and linkends for entity resolution too: the
	// RittDoc schema declares section and paragraph ids as CDATA, but they
	// participate in cross-referencing all the same.
	if val, ok := seen["id"]; ok && decl.Attrs["id"].Type != "ID" {
		if _, dup := ids[val]; !dup {
			ids[val] = line
		}
	}
	if val, ok := seen["linkend"]; ok && decl.Attrs["linkend"].Type != "IDREF" {
		recordRef(val, line)
	}

	return findings
}

// checkContent validates one closed element's children and text against its
// content model.
func (v *Validator) checkContent(path string, f *frame, decl *ElementDecl) []Finding {
	var findings []Finding
	text := strings.TrimSpace(f.text.String())

	switch {
	case decl.Any:
		return nil

	case decl.Empty:
		if len(f.children) > 0 || text != "" {
			findings = append(findings, Finding{
				File:        path,
				Line:        f.line,
				Category:    CategoryInvalidContentModel,
				Description: fmt.Sprintf("<%s> is declared EMPTY but has content", f.name),
				Severity:    SeverityError,
			})
		}

	case decl.Mixed:
		for _, child := range f.children {
			if !decl.MixedAllowed[child] {
				findings = append(findings, Finding{
					File:        path,
					Line:        f.line,
					Category:    CategoryInvalidContentModel,
					Description: fmt.Sprintf("<%s> does not allow child <%s>", f.name, child),
					Severity:    SeverityError,
				})
			}
		}

	default:
		// Element content: character data other than whitespace is
		// illegal, and the child sequence must match the model.
		if text != "" {
			findings = append(findings, Finding{
				File:        path,
				Line:        f.line,
				Category:    CategoryInvalidContentModel,
				Description: fmt.Sprintf("<%s> does not allow character data", f.name),
				Severity:    SeverityError,
			})
		}
		if decl.pattern != nil && !decl.pattern.MatchString(serializeChildren(f.children)) {
			if missing := firstMissingRequired(decl, f.children); missing != "" {
				findings = append(findings, Finding{
					File:        path,
					Line:        f.line,
					Category:    CategoryMissingRequiredChild,
					Description: fmt.Sprintf("<%s> is missing required child <%s>", f.name, missing),
					Severity:    SeverityError,
				})
			} else {
				findings = append(findings, Finding{
					File:        path,
					Line:        f.line,
					Category:    CategoryInvalidContentModel,
					Description: fmt.Sprintf("<%s> content (%s) does not match model %s", f.name, strings.Join(f.children, ", "), decl.Model),
					Severity:    SeverityError,
				})
			}
		}
	}
	return findings
}

// serializeChildren renders a child name sequence in the token form the
// compiled content-model pattern matches against.
func serializeChildren(children []string) string {
	var sb strings.Builder
	for _, c := range children {
		sb.WriteString("<")
		sb.WriteString(c)
		sb.WriteString(">")
	}
	return sb.String()
}

// firstMissingRequired returns the first required child absent from the
// element's children, or "".
func firstMissingRequired(decl *ElementDecl, children []string) string {
	present := make(map[string]bool, len(children))
	for _, c := range children {
		present[c] = true
	}
	for _, name := range decl.required {
		if !present[name] {
			return name
		}
	}
	return ""
}

// lineIndex converts byte offsets to 1-based line numbers.
type lineIndex struct {
	starts []int64
}

func newLineIndex(data []byte) *lineIndex {
	idx := &lineIndex{starts: []int64{0}}
	for i, b := range data {
		if b == '\n' {
			idx.starts = append(idx.starts, int64(i+1))
		}
	}
	return idx
}

// lineAt returns the 1-based line containing the byte offset.
func (l *lineIndex) lineAt(offset int64) int {
	lo, hi := 0, len(l.starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if l.starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}
