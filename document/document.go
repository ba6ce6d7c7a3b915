// Package document defines the ordered translatable-text model shared by all
// supported file formats. A Fragment is one addressable unit of translatable
// text collected from a parsed document; the format packages (pptxfile,
// nbfile) own the location handles and splice translations back in the same
// order the fragments were collected.
package document

import "fmt"

// Kind classifies where a fragment came from inside the source document.
type Kind string

const (
	// KindSlideText is a formatted text run inside a slide shape.
	KindSlideText Kind = "slide-text-run"
	// KindTableCell is a text run inside a table cell on a slide.
	KindTableCell Kind = "table-cell"
	// KindSpeakerNote is a text run inside a slide's notes page.
	KindSpeakerNote Kind = "speaker-note"
	// KindMarkdownCell is the full source of a notebook markdown cell.
	KindMarkdownCell Kind = "markdown-cell"
	// KindCodeComment is the trailing line comment of a notebook code line.
	KindCodeComment Kind = "code-comment"
)

// Fragment is one translatable text unit. The location it was extracted from
// is tracked by the owning format package, indexed by position: the i-th
// fragment returned by Fragments() corresponds to the i-th translation passed
// to Apply().
type Fragment struct {
	// Text is the original source text.
	Text string
	// Kind classifies the fragment's origin.
	Kind Kind
}

// Editable is a parsed document that can receive translations and be
// serialized back to bytes. Implemented by pptxfile.Document and
// nbfile.Document.
type Editable interface {
	// Apply replaces each fragment's text with the matching translation.
	// len(translations) must equal the number of extracted fragments.
	Apply(translations []string) error
	// Save serializes the (possibly mutated) document to output bytes.
	Save() ([]byte, error)
}

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// ParseError reports a malformed or structurally unsupported document.
// Extraction is all-or-nothing: no partial fragment list accompanies it.
type ParseError struct {
	// Format names the document format being parsed ("pptx", "ipynb").
	Format string
	// Err is the underlying cause.
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s document: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// WriteError reports a location handle that no longer resolves during
// reinsertion. It cannot occur in the single-threaded, single-request model
// but is checked defensively.
type WriteError struct {
	// Index is the fragment position whose location failed to resolve.
	Index int
	// Err is the underlying cause.
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing translation for fragment %d: %v", e.Index, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
