// Package pipeline orchestrates one translation run: load the document,
// extract the ordered fragment sequence, batch it, translate each batch
// through the DeepL client, splice the translations back, and serialize.
//
// One run owns its document exclusively; nothing is shared between runs.
// Batches are translated sequentially so that when a batch fails under the
// default abort-on-first-error policy, no later batch has been paid for.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"traduko/convert"
	"traduko/deepl"
	"traduko/document"
	"traduko/nbfile"
	"traduko/pptxfile"
)

// Format identifies the high-level input type.
type Format string

const (
	// FormatPPTX is a modern PowerPoint package.
	FormatPPTX Format = "pptx"
	// FormatPPT is a legacy binary PowerPoint file, converted before use.
	FormatPPT Format = "ppt"
	// FormatNotebook is a Jupyter notebook.
	FormatNotebook Format = "ipynb"
)

// ErrUnsupportedFormat means the file extension matches none of the
// supported input types.
var ErrUnsupportedFormat = errors.New("unsupported file type (expected .pptx, .ppt or .ipynb)")

// ErrNoText means the document parsed fine but contains nothing to
// translate; no API call is made.
var ErrNoText = errors.New("no translatable text found in the document")

// DetectFormat maps a filename to its Format by extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pptx":
		return FormatPPTX, nil
	case ".ppt":
		return FormatPPT, nil
	case ".ipynb":
		return FormatNotebook, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Options controls one translation run. Immutable for the run's duration.
type Options struct {
	// TargetLang is the English variant (deepl.TargetEnglishUS or
	// deepl.TargetEnglishGB).
	TargetLang string
	// SourceLang is the source language. Default: "FR".
	SourceLang string
	// IncludeNotes also translates speaker notes (PowerPoint only).
	IncludeNotes bool
	// BatchSize is the number of texts per API call. Default: 45.
	BatchSize int
	// KeepOriginalOnError keeps the original text of a failed batch and
	// continues, instead of aborting the run. The skip count is reported in
	// the Result so the fallback is never silent.
	KeepOriginalOnError bool
	// OnProgress is called after each batch with cumulative fragment counts.
	OnProgress func(done, total int)
	// OnLog emits log messages during the run.
	OnLog func(format string, args ...any)
}

func (o *Options) effectiveSource() string {
	if o.SourceLang != "" {
		return o.SourceLang
	}
	return "FR"
}

func (o *Options) effectiveTarget() string {
	if o.TargetLang != "" {
		return o.TargetLang
	}
	return deepl.TargetEnglishUS
}

func (o *Options) effectiveBatchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return 45
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

// Result is the outcome of a successful run.
type Result struct {
	// Data is the serialized translated document.
	Data []byte
	// Filename is the suggested output name (<stem>_EN.<ext>).
	Filename string
	// MIME is the download content type.
	MIME string
	// Fragments is the number of translated text units.
	Fragments int
	// Batches is the number of API calls made (or attempted).
	Batches int
	// SkippedBatches counts batches kept in the original language under
	// KeepOriginalOnError.
	SkippedBatches int
}

// Runner executes translation runs. Safe to share across requests: it holds
// only the client and converter, never per-run state.
type Runner struct {
	// Client is the translation client.
	Client *deepl.Client
	// Converter handles legacy .ppt inputs. A nil converter disables them.
	Converter convert.Converter
}

// Run translates the document at inputPath and returns the serialized
// result. The input file is not modified; legacy conversion writes its
// intermediate .pptx next to the input.
func (r *Runner) Run(ctx context.Context, inputPath string, opts Options) (*Result, error) {
	format, err := DetectFormat(inputPath)
	if err != nil {
		return nil, err
	}
	if !deepl.ValidTarget(opts.effectiveTarget()) {
		return nil, fmt.Errorf("invalid target variant %q", opts.TargetLang)
	}

	// Legacy conversion runs before anything else so a missing converter
	// fails the run with zero API calls spent.
	if format == FormatPPT {
		if r.Converter == nil {
			return nil, convert.ErrUnavailable
		}
		opts.log("converting %s to .pptx", filepath.Base(inputPath))
		converted, err := r.Converter.Convert(ctx, inputPath, filepath.Dir(inputPath))
		if err != nil {
			return nil, err
		}
		inputPath = converted
		format = FormatPPTX
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	doc, frags, mime, outExt, err := open(format, data, opts)
	if err != nil {
		return nil, err
	}
	if len(frags) == 0 {
		return nil, ErrNoText
	}
	opts.log("%d segments to translate", len(frags))

	translated, batches, skipped, err := r.translateAll(ctx, frags, opts)
	if err != nil {
		return nil, err
	}

	if err := doc.Apply(translated); err != nil {
		return nil, err
	}
	out, err := doc.Save()
	if err != nil {
		return nil, err
	}

	return &Result{
		Data:           out,
		Filename:       OutputName(inputPath, outExt),
		MIME:           mime,
		Fragments:      len(frags),
		Batches:        batches,
		SkippedBatches: skipped,
	}, nil
}

// open parses data in the given format and extracts its fragments.
func open(format Format, data []byte, opts Options) (document.Editable, []document.Fragment, string, string, error) {
	switch format {
	case FormatPPTX:
		doc, err := pptxfile.Open(data)
		if err != nil {
			return nil, nil, "", "", err
		}
		return doc, doc.Fragments(opts.IncludeNotes), pptxfile.MIME, ".pptx", nil
	case FormatNotebook:
		doc, err := nbfile.Open(data)
		if err != nil {
			return nil, nil, "", "", err
		}
		return doc, doc.Fragments(), nbfile.MIME, ".ipynb", nil
	default:
		return nil, nil, "", "", ErrUnsupportedFormat
	}
}

// translateAll runs the batches in order and returns one translation per
// fragment. A failing batch aborts with a *deepl.TranslationError unless
// KeepOriginalOnError is set, in which case the batch keeps its source text
// and is counted as skipped.
func (r *Runner) translateAll(ctx context.Context, frags []document.Fragment, opts Options) ([]string, int, int, error) {
	batches := document.Batch(frags, opts.effectiveBatchSize())
	translated := make([]string, 0, len(frags))
	skipped := 0
	done := 0

	for i, batch := range batches {
		texts := document.Texts(batch)
		out, err := r.Client.Translate(ctx, texts, opts.effectiveSource(), opts.effectiveTarget())
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, 0, ctx.Err()
			}
			terr := &deepl.TranslationError{Batch: i, Err: err}
			if !opts.KeepOriginalOnError {
				return nil, 0, 0, terr
			}
			opts.log("batch %d failed, keeping original text: %v", i, err)
			skipped++
			out = texts
		}
		translated = append(translated, out...)
		done += len(batch)
		if opts.OnProgress != nil {
			opts.OnProgress(done, len(frags))
		}
	}
	return translated, len(batches), skipped, nil
}

// OutputName derives the suggested download name: the input stem plus an
// _EN suffix and the output extension.
func OutputName(inputPath, ext string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "_EN" + ext
}
