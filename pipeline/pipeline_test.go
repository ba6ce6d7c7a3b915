package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"traduko/convert"
	"traduko/deepl"
	"traduko/nbfile"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

const testNotebook = `{
 "cells": [
  {"cell_type": "markdown", "metadata": {}, "source": "Première cellule"},
  {"cell_type": "code", "metadata": {}, "source": "x = 1  # un commentaire"},
  {"cell_type": "markdown", "metadata": {}, "source": "Deuxième cellule"}
 ],
 "metadata": {},
 "nbformat": 4,
 "nbformat_minor": 5
}`

const noTextNotebook = `{
 "cells": [
  {"cell_type": "code", "metadata": {}, "source": "x = 1\ny = 2"},
  {"cell_type": "markdown", "metadata": {}, "source": "   "}
 ],
 "metadata": {},
 "nbformat": 4,
 "nbformat_minor": 5
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func buildTestPPTX(t *testing.T) []byte {
	t.Helper()
	entries := map[string]string{
		"ppt/presentation.xml": `<?xml version="1.0"?><p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"/>`,
		"ppt/slides/slide1.xml": `<?xml version="1.0"?><p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">` +
			`<p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>Bonjour</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`,
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// fakeDeepL is an httptest server that prefixes each text with "EN:" and
// counts calls. failOnCall (1-based) makes that call return a 456 quota
// error; 0 disables failure.
type fakeDeepL struct {
	server     *httptest.Server
	calls      int
	failOnCall int
}

func newFakeDeepL(t *testing.T) *fakeDeepL {
	t.Helper()
	f := &fakeDeepL{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls++
		if f.failOnCall != 0 && f.calls == f.failOnCall {
			w.WriteHeader(456)
			w.Write([]byte(`{"message":"Quota exceeded"}`))
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		var resp struct {
			Translations []map[string]string `json:"translations"`
		}
		for _, text := range r.PostForm["text"] {
			resp.Translations = append(resp.Translations, map[string]string{"text": "EN:" + text})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeDeepL) runner() *Runner {
	return &Runner{Client: deepl.New(deepl.Config{Key: "test-key", Endpoint: f.server.URL})}
}

// stubConverter satisfies convert.Converter by dropping a prepared .pptx
// into the output directory.
type stubConverter struct {
	data  []byte
	calls int
}

func (s *stubConverter) Convert(_ context.Context, inputPath, outDir string) (string, error) {
	s.calls++
	stem := filepath.Base(inputPath)
	stem = stem[:len(stem)-len(filepath.Ext(stem))]
	out := filepath.Join(outDir, stem+".pptx")
	if err := os.WriteFile(out, s.data, 0o644); err != nil {
		return "", err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Format detection and naming
// ---------------------------------------------------------------------------

func TestDetectFormat(t *testing.T) {
	for _, tc := range []struct {
		name string
		want Format
		ok   bool
	}{
		{"deck.pptx", FormatPPTX, true},
		{"DECK.PPTX", FormatPPTX, true},
		{"old.ppt", FormatPPT, true},
		{"analysis.ipynb", FormatNotebook, true},
		{"report.docx", "", false},
		{"noext", "", false},
	} {
		got, err := DetectFormat(tc.name)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("DetectFormat(%q) = %v, %v", tc.name, got, err)
		}
		if !tc.ok && !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("DetectFormat(%q) err = %v, want ErrUnsupportedFormat", tc.name, err)
		}
	}
}

func TestOutputName(t *testing.T) {
	if got := OutputName("/tmp/run/cours.pptx", ".pptx"); got != "cours_EN.pptx" {
		t.Errorf("OutputName = %q", got)
	}
	if got := OutputName("tp1.ipynb", ".ipynb"); got != "tp1_EN.ipynb" {
		t.Errorf("OutputName = %q", got)
	}
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

func TestRunNotebook(t *testing.T) {
	fake := newFakeDeepL(t)
	path := writeFile(t, "tp.ipynb", testNotebook)

	var progress []int
	res, err := fake.runner().Run(context.Background(), path, Options{
		TargetLang: deepl.TargetEnglishUS,
		OnProgress: func(done, total int) { progress = append(progress, done) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Filename != "tp_EN.ipynb" {
		t.Errorf("Filename = %q", res.Filename)
	}
	if res.MIME != nbfile.MIME {
		t.Errorf("MIME = %q", res.MIME)
	}
	if res.Fragments != 3 || res.Batches != 1 || res.SkippedBatches != 0 {
		t.Errorf("counts = %d/%d/%d", res.Fragments, res.Batches, res.SkippedBatches)
	}
	if fake.calls != 1 {
		t.Errorf("API calls = %d, want 1", fake.calls)
	}
	if len(progress) != 1 || progress[0] != 3 {
		t.Errorf("progress = %v", progress)
	}

	reopened, err := nbfile.Open(res.Data)
	if err != nil {
		t.Fatalf("reopen output: %v", err)
	}
	frags := reopened.Fragments()
	want := []string{"EN:Première cellule", "EN:un commentaire", "EN:Deuxième cellule"}
	if len(frags) != len(want) {
		t.Fatalf("got %d fragments", len(frags))
	}
	for i := range want {
		if frags[i].Text != want[i] {
			t.Errorf("fragment %d = %q, want %q", i, frags[i].Text, want[i])
		}
	}
}

func TestRunPPTX(t *testing.T) {
	fake := newFakeDeepL(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "cours.pptx")
	if err := os.WriteFile(path, buildTestPPTX(t), 0o644); err != nil {
		t.Fatalf("write pptx: %v", err)
	}

	res, err := fake.runner().Run(context.Background(), path, Options{TargetLang: deepl.TargetEnglishGB})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Filename != "cours_EN.pptx" {
		t.Errorf("Filename = %q", res.Filename)
	}
	if res.Fragments != 1 {
		t.Errorf("Fragments = %d", res.Fragments)
	}
}

func TestRunNoTextMakesNoAPICall(t *testing.T) {
	fake := newFakeDeepL(t)
	path := writeFile(t, "vide.ipynb", noTextNotebook)

	_, err := fake.runner().Run(context.Background(), path, Options{TargetLang: deepl.TargetEnglishUS})
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("err = %v, want ErrNoText", err)
	}
	if fake.calls != 0 {
		t.Errorf("API calls = %d, want 0", fake.calls)
	}
}

func TestRunAbortsOnFirstError(t *testing.T) {
	fake := newFakeDeepL(t)
	fake.failOnCall = 2
	path := writeFile(t, "tp.ipynb", testNotebook)

	_, err := fake.runner().Run(context.Background(), path, Options{
		TargetLang: deepl.TargetEnglishUS,
		BatchSize:  1,
	})
	var terr *deepl.TranslationError
	if !errors.As(err, &terr) {
		t.Fatalf("err %T = %v, want *deepl.TranslationError", err, err)
	}
	if terr.Batch != 1 {
		t.Errorf("failing batch = %d, want 1", terr.Batch)
	}
	if fake.calls != 2 {
		t.Errorf("API calls = %d, want 2 (no call after the failure)", fake.calls)
	}
}

func TestRunKeepOriginalOnError(t *testing.T) {
	fake := newFakeDeepL(t)
	fake.failOnCall = 2
	path := writeFile(t, "tp.ipynb", testNotebook)

	res, err := fake.runner().Run(context.Background(), path, Options{
		TargetLang:          deepl.TargetEnglishUS,
		BatchSize:           1,
		KeepOriginalOnError: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.SkippedBatches != 1 {
		t.Errorf("SkippedBatches = %d, want 1", res.SkippedBatches)
	}
	if fake.calls != 3 {
		t.Errorf("API calls = %d, want 3", fake.calls)
	}

	reopened, err := nbfile.Open(res.Data)
	if err != nil {
		t.Fatalf("reopen output: %v", err)
	}
	frags := reopened.Fragments()
	want := []string{"EN:Première cellule", "un commentaire", "EN:Deuxième cellule"}
	for i := range want {
		if frags[i].Text != want[i] {
			t.Errorf("fragment %d = %q, want %q", i, frags[i].Text, want[i])
		}
	}
}

func TestRunInvalidVariant(t *testing.T) {
	fake := newFakeDeepL(t)
	path := writeFile(t, "tp.ipynb", testNotebook)

	if _, err := fake.runner().Run(context.Background(), path, Options{TargetLang: "DE"}); err == nil {
		t.Fatal("expected invalid variant error")
	}
	if fake.calls != 0 {
		t.Errorf("API calls = %d, want 0", fake.calls)
	}
}

// ---------------------------------------------------------------------------
// Legacy conversion
// ---------------------------------------------------------------------------

func TestRunLegacyConverterUnavailable(t *testing.T) {
	fake := newFakeDeepL(t)
	path := writeFile(t, "vieux.ppt", "legacy binary junk")

	runner := fake.runner()
	runner.Converter = &convert.Soffice{Binary: "definitely-not-a-real-binary-name"}

	_, err := runner.Run(context.Background(), path, Options{TargetLang: deepl.TargetEnglishUS})
	if !errors.Is(err, convert.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if fake.calls != 0 {
		t.Errorf("API calls = %d, want 0 (fail fast before translation)", fake.calls)
	}
}

func TestRunLegacyNilConverter(t *testing.T) {
	fake := newFakeDeepL(t)
	path := writeFile(t, "vieux.ppt", "legacy binary junk")

	if _, err := fake.runner().Run(context.Background(), path, Options{TargetLang: deepl.TargetEnglishUS}); !errors.Is(err, convert.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestRunLegacyThroughStubConverter(t *testing.T) {
	fake := newFakeDeepL(t)
	path := writeFile(t, "vieux.ppt", "legacy binary junk")

	stub := &stubConverter{data: buildTestPPTX(t)}
	runner := fake.runner()
	runner.Converter = stub

	res, err := runner.Run(context.Background(), path, Options{TargetLang: deepl.TargetEnglishUS})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stub.calls != 1 {
		t.Errorf("converter calls = %d, want 1", stub.calls)
	}
	if res.Filename != "vieux_EN.pptx" {
		t.Errorf("Filename = %q", res.Filename)
	}
	if res.MIME == "" || res.Fragments != 1 {
		t.Errorf("result = %+v", res)
	}
}
