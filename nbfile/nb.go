// Package nbfile implements reading and in-place text editing of Jupyter
// notebooks (.ipynb).
//
// Only two kinds of text are translatable: the full source of markdown
// cells, and the trailing line comments of code cells. Executable code is
// never touched. Every notebook and cell field the package does not
// understand is carried through serialization verbatim via json.RawMessage,
// so outputs, metadata, and execution counts survive the round trip.
package nbfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"traduko/document"
)

// MIME is the content type served for translated .ipynb downloads.
const MIME = "application/x-ipynb+json"

const commentDelimiter = "#"

// cell is one notebook cell. fields holds the raw JSON of everything but
// source, which is kept split into lines for comment surgery.
type cell struct {
	fields       map[string]json.RawMessage
	cellType     string
	lines        []string
	sourceIsList bool
	mutated      bool
}

// fragRef locates one fragment: a whole markdown cell (line == -1) or a
// comment on one line of a code cell, split into the untouched prefix
// (code plus the # delimiter), the spacing after the delimiter, and any
// trailing whitespace.
type fragRef struct {
	cellIndex int
	line      int
	prefix    string
	gap       string
	trail     string
}

// Document is a parsed notebook. Owned by a single translation run.
type Document struct {
	top   map[string]json.RawMessage
	cells []cell
	refs  []fragRef
	frags []document.Fragment
}

// Open parses a notebook from data. Malformed JSON or a missing cell list
// fails with a *document.ParseError.
func Open(data []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, &document.ParseError{Format: "ipynb", Err: err}
	}
	rawCells, ok := top["cells"]
	if !ok {
		return nil, &document.ParseError{Format: "ipynb", Err: fmt.Errorf("notebook has no cells field")}
	}

	var cellFields []map[string]json.RawMessage
	if err := json.Unmarshal(rawCells, &cellFields); err != nil {
		return nil, &document.ParseError{Format: "ipynb", Err: fmt.Errorf("cells: %w", err)}
	}

	d := &Document{top: top}
	for i, fields := range cellFields {
		c := cell{fields: fields}
		if raw, ok := fields["cell_type"]; ok {
			if err := json.Unmarshal(raw, &c.cellType); err != nil {
				return nil, &document.ParseError{Format: "ipynb", Err: fmt.Errorf("cell %d: cell_type: %w", i, err)}
			}
		}
		source, isList, err := decodeSource(fields["source"])
		if err != nil {
			return nil, &document.ParseError{Format: "ipynb", Err: fmt.Errorf("cell %d: source: %w", i, err)}
		}
		c.lines = strings.Split(source, "\n")
		c.sourceIsList = isList
		d.cells = append(d.cells, c)
	}
	return d, nil
}

// decodeSource accepts both notebook source shapes: a single string or a
// list of line strings.
func decodeSource(raw json.RawMessage) (string, bool, error) {
	if len(raw) == 0 {
		return "", false, nil
	}
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var lines []string
		if err := json.Unmarshal(raw, &lines); err != nil {
			return "", false, err
		}
		return strings.Join(lines, ""), true, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, err
	}
	return s, false, nil
}

func (c *cell) source() string {
	return strings.Join(c.lines, "\n")
}

// ---------------------------------------------------------------------------
// Extraction
// ---------------------------------------------------------------------------

// Fragments collects the translatable text in cell order: one fragment per
// non-blank markdown cell, one fragment per code line carrying a non-blank
// trailing comment. Code lines without a comment yield nothing.
func (d *Document) Fragments() []document.Fragment {
	d.refs = d.refs[:0]
	d.frags = d.frags[:0]

	for i := range d.cells {
		c := &d.cells[i]
		switch c.cellType {
		case "markdown":
			source := c.source()
			if strings.TrimSpace(source) == "" {
				continue
			}
			d.refs = append(d.refs, fragRef{cellIndex: i, line: -1})
			d.frags = append(d.frags, document.Fragment{Text: source, Kind: document.KindMarkdownCell})
		case "code":
			for lineNo, line := range c.lines {
				ref, text, ok := splitComment(line)
				if !ok {
					continue
				}
				ref.cellIndex = i
				ref.line = lineNo
				d.refs = append(d.refs, ref)
				d.frags = append(d.frags, document.Fragment{Text: text, Kind: document.KindCodeComment})
			}
		}
	}
	return d.frags
}

// splitComment isolates the trailing line-comment of one code line. The
// prefix (code plus the # delimiter) and the whitespace on either side of
// the comment text are kept so the line can be reassembled exactly.
func splitComment(line string) (fragRef, string, bool) {
	idx := strings.Index(line, commentDelimiter)
	if idx < 0 {
		return fragRef{}, "", false
	}
	after := line[idx+len(commentDelimiter):]
	text := strings.TrimSpace(after)
	if text == "" {
		return fragRef{}, "", false
	}
	gap := after[:len(after)-len(strings.TrimLeftFunc(after, unicode.IsSpace))]
	trail := after[len(gap)+len(text):]
	return fragRef{prefix: line[:idx+len(commentDelimiter)], gap: gap, trail: trail}, text, true
}

// ---------------------------------------------------------------------------
// Reinsertion
// ---------------------------------------------------------------------------

// Apply splices translations back: markdown cells get their whole source
// replaced, code lines are rebuilt as prefix + delimiter spacing +
// translated comment, preserving indentation and code exactly.
func (d *Document) Apply(translations []string) error {
	if len(translations) != len(d.refs) {
		return fmt.Errorf("ipynb: %d translations for %d fragments", len(translations), len(d.refs))
	}
	for i, ref := range d.refs {
		if ref.cellIndex >= len(d.cells) {
			return &document.WriteError{Index: i, Err: fmt.Errorf("cell %d is gone", ref.cellIndex)}
		}
		c := &d.cells[ref.cellIndex]
		if ref.line < 0 {
			c.lines = strings.Split(translations[i], "\n")
			c.mutated = true
			continue
		}
		if ref.line >= len(c.lines) {
			return &document.WriteError{Index: i, Err: fmt.Errorf("line %d of cell %d is gone", ref.line, ref.cellIndex)}
		}
		c.lines[ref.line] = ref.prefix + ref.gap + translations[i] + ref.trail
		c.mutated = true
	}
	return nil
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// Save re-marshals the notebook. Only mutated cells get a new source value;
// everything else round-trips as the original raw JSON.
func (d *Document) Save() ([]byte, error) {
	cells := make([]map[string]json.RawMessage, len(d.cells))
	for i := range d.cells {
		c := &d.cells[i]
		if !c.mutated {
			cells[i] = c.fields
			continue
		}
		raw, err := encodeSource(c.source(), c.sourceIsList)
		if err != nil {
			return nil, fmt.Errorf("ipynb: encoding cell %d source: %w", i, err)
		}
		fields := make(map[string]json.RawMessage, len(c.fields))
		for k, v := range c.fields {
			fields[k] = v
		}
		fields["source"] = raw
		cells[i] = fields
	}

	rawCells, err := json.Marshal(cells)
	if err != nil {
		return nil, fmt.Errorf("ipynb: encoding cells: %w", err)
	}
	top := make(map[string]json.RawMessage, len(d.top))
	for k, v := range d.top {
		top[k] = v
	}
	top["cells"] = rawCells

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", " ")
	if err := enc.Encode(top); err != nil {
		return nil, fmt.Errorf("ipynb: encoding notebook: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeSource writes source back in the JSON shape it arrived in: a plain
// string, or a list of lines each keeping its trailing newline.
func encodeSource(source string, asList bool) (json.RawMessage, error) {
	if !asList {
		return json.Marshal(source)
	}
	lines := strings.SplitAfter(source, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return json.Marshal(lines)
}
