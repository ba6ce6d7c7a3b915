// Package pptxfile implements reading and in-place text editing of
// PowerPoint .pptx packages.
//
// A .pptx file is a zip archive of XML parts. Translatable text lives in
// <a:t> run elements inside the slide parts (ppt/slides/slideN.xml) and the
// speaker-notes parts (ppt/notesSlides/notesSlideN.xml). Editing replaces
// only the text of those runs: run properties (font, size, color, bold),
// table structure, and every zip entry that is not touched are preserved
// byte for byte on save.
package pptxfile

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"traduko/document"
)

const (
	presentationPart = "ppt/presentation.xml"

	relNotesSlideSuffix = "/notesSlide"
)

var slidePartRe = regexp.MustCompile(`^ppt/slides/slide([0-9]+)\.xml$`)

// MIME is the content type served for translated .pptx downloads.
const MIME = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

// runRef is the location handle of one extracted fragment: the <a:t> element
// it came from and the zip part that owns it.
type runRef struct {
	el   *etree.Element
	part string
}

// slideEntry is one slide part with its resolved notes part (empty if the
// slide has no notes page).
type slideEntry struct {
	num   int
	name  string
	notes string
}

// Document is a parsed .pptx package. It is owned by a single translation
// run: extract fragments once, apply translations once, save once.
type Document struct {
	reader  *zip.Reader
	files   map[string]*zip.File
	slides  []slideEntry
	parts   map[string]*etree.Document
	refs    []runRef
	frags   []document.Fragment
	touched map[string]bool
}

// Open parses a .pptx package from data. Malformed zip or XML fails with a
// *document.ParseError and no partial state.
func Open(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &document.ParseError{Format: "pptx", Err: fmt.Errorf("not a zip archive: %w", err)}
	}

	d := &Document{
		reader:  zr,
		files:   make(map[string]*zip.File),
		parts:   make(map[string]*etree.Document),
		touched: make(map[string]bool),
	}
	for _, f := range zr.File {
		d.files[f.Name] = f
	}

	if _, ok := d.files[presentationPart]; !ok {
		return nil, &document.ParseError{Format: "pptx", Err: fmt.Errorf("missing %s: not a PowerPoint package", presentationPart)}
	}

	if err := d.loadSlides(); err != nil {
		return nil, &document.ParseError{Format: "pptx", Err: err}
	}
	return d, nil
}

// loadSlides discovers slide parts in numeric order, resolves each slide's
// notes part through its relationships, and parses all of them.
func (d *Document) loadSlides() error {
	for name := range d.files {
		m := slidePartRe.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		d.slides = append(d.slides, slideEntry{num: num, name: name})
	}
	sort.Slice(d.slides, func(i, j int) bool { return d.slides[i].num < d.slides[j].num })

	for i := range d.slides {
		notes, err := d.resolveNotesPart(d.slides[i])
		if err != nil {
			return err
		}
		d.slides[i].notes = notes

		if err := d.parsePart(d.slides[i].name); err != nil {
			return err
		}
		if notes != "" {
			if err := d.parsePart(notes); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveNotesPart finds the notes part attached to a slide via the slide's
// relationships file. Falls back to the conventional numeric name when the
// relationships part is absent.
func (d *Document) resolveNotesPart(s slideEntry) (string, error) {
	relsName := path.Join("ppt/slides/_rels", path.Base(s.name)+".rels")
	f, ok := d.files[relsName]
	if !ok {
		fallback := fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", s.num)
		if _, ok := d.files[fallback]; ok {
			return fallback, nil
		}
		return "", nil
	}

	data, err := readEntry(f)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", relsName, err)
	}
	rels := etree.NewDocument()
	if err := rels.ReadFromBytes(data); err != nil {
		return "", fmt.Errorf("parsing %s: %w", relsName, err)
	}
	root := rels.Root()
	if root == nil {
		return "", fmt.Errorf("parsing %s: empty document", relsName)
	}
	for _, rel := range root.ChildElements() {
		if !strings.HasSuffix(rel.SelectAttrValue("Type", ""), relNotesSlideSuffix) {
			continue
		}
		target := rel.SelectAttrValue("Target", "")
		if target == "" {
			continue
		}
		resolved := path.Clean(path.Join("ppt/slides", target))
		if _, ok := d.files[resolved]; ok {
			return resolved, nil
		}
	}
	return "", nil
}

func (d *Document) parsePart(name string) error {
	f, ok := d.files[name]
	if !ok {
		return fmt.Errorf("part %s not found in package", name)
	}
	data, err := readEntry(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	if doc.Root() == nil {
		return fmt.Errorf("parsing %s: empty document", name)
	}
	d.parts[name] = doc
	return nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ---------------------------------------------------------------------------
// Extraction
// ---------------------------------------------------------------------------

// Fragments walks every slide in order, collecting the non-blank text runs.
// Body runs come first (shapes, grouped shapes, and tables in document
// order), followed by the slide's speaker notes when includeNotes is set.
// The returned order is the splice order expected by Apply.
func (d *Document) Fragments(includeNotes bool) []document.Fragment {
	d.refs = d.refs[:0]
	d.frags = d.frags[:0]

	for _, s := range d.slides {
		d.collectRuns(s.name, false)
		if includeNotes && s.notes != "" {
			d.collectRuns(s.notes, true)
		}
	}
	return d.frags
}

func (d *Document) collectRuns(part string, isNotes bool) {
	doc := d.parts[part]
	if doc == nil {
		return
	}
	walkElements(doc.Root(), func(el *etree.Element) {
		if el.Space != "a" || el.Tag != "t" {
			return
		}
		text := el.Text()
		if strings.TrimSpace(text) == "" {
			return
		}
		kind := document.KindSlideText
		switch {
		case isNotes:
			kind = document.KindSpeakerNote
		case insideTable(el):
			kind = document.KindTableCell
		}
		d.refs = append(d.refs, runRef{el: el, part: part})
		d.frags = append(d.frags, document.Fragment{Text: text, Kind: kind})
	})
}

// walkElements visits el and its descendants in document order.
func walkElements(el *etree.Element, fn func(*etree.Element)) {
	if el == nil {
		return
	}
	fn(el)
	for _, child := range el.ChildElements() {
		walkElements(child, fn)
	}
}

func insideTable(el *etree.Element) bool {
	for p := el.Parent(); p != nil; p = p.Parent() {
		if p.Space == "a" && p.Tag == "tbl" {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Reinsertion
// ---------------------------------------------------------------------------

// Apply replaces each extracted run's text with the matching translation,
// leaving run properties untouched. translations must match the fragment
// sequence returned by Fragments, element for element.
func (d *Document) Apply(translations []string) error {
	if len(translations) != len(d.refs) {
		return fmt.Errorf("pptx: %d translations for %d fragments", len(translations), len(d.refs))
	}
	for i, ref := range d.refs {
		if !d.resolves(ref) {
			return &document.WriteError{Index: i, Err: fmt.Errorf("run in %s is no longer attached to its slide", ref.part)}
		}
		ref.el.SetText(translations[i])
		d.touched[ref.part] = true
	}
	return nil
}

// resolves checks that the run element is still rooted in its part's tree.
func (d *Document) resolves(ref runRef) bool {
	doc := d.parts[ref.part]
	if doc == nil {
		return false
	}
	root := doc.Root()
	for p := ref.el; p != nil; p = p.Parent() {
		if p == root {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// Save writes the package back out. Entries whose parts were never mutated
// are copied raw (same compressed bytes, same headers); mutated slide parts
// are re-serialized.
func (d *Document) Save() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range d.reader.File {
		if d.touched[f.Name] {
			if err := writeSerialized(zw, f, d.parts[f.Name]); err != nil {
				return nil, fmt.Errorf("pptx: writing %s: %w", f.Name, err)
			}
			continue
		}
		if err := copyRaw(zw, f); err != nil {
			return nil, fmt.Errorf("pptx: copying %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("pptx: closing archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSerialized(zw *zip.Writer, f *zip.File, doc *etree.Document) error {
	data, err := doc.WriteToBytes()
	if err != nil {
		return err
	}
	header := f.FileHeader
	header.Method = zip.Deflate
	w, err := zw.CreateHeader(&header)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func copyRaw(zw *zip.Writer, f *zip.File) error {
	rr, err := f.OpenRaw()
	if err != nil {
		return err
	}
	header := f.FileHeader
	w, err := zw.CreateRaw(&header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, rr)
	return err
}
