// Package convert wraps the LibreOffice command-line converter used to turn
// legacy binary .ppt presentations into modern .pptx packages before
// translation.
//
// The converter sits behind a narrow interface so the pipeline can be tested
// with a stub, and its availability is probed up front: a missing soffice
// binary fails the run before a single translation call is spent on a file
// that could never be written back out.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnavailable means the external conversion utility was not found.
// Legacy .ppt support is disabled; modern .pptx files are unaffected.
var ErrUnavailable = errors.New("soffice not found in PATH: legacy .ppt conversion unavailable")

const (
	defaultBinary  = "soffice"
	defaultTimeout = 120 * time.Second
)

// Converter turns a legacy-format input file into a modern one inside
// outDir, returning the path of the produced file.
type Converter interface {
	Convert(ctx context.Context, inputPath, outDir string) (string, error)
}

// Soffice converts .ppt to .pptx by shelling out to LibreOffice in headless
// mode.
type Soffice struct {
	// Binary is the soffice executable name or path. Default: "soffice".
	Binary string
	// Timeout bounds one conversion. Default: 120s.
	Timeout time.Duration
}

func (s *Soffice) binary() string {
	if s.Binary != "" {
		return s.Binary
	}
	return defaultBinary
}

func (s *Soffice) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return defaultTimeout
}

// Available reports whether the converter binary can be found.
func (s *Soffice) Available() bool {
	_, err := exec.LookPath(s.binary())
	return err == nil
}

// Convert runs soffice --headless --convert-to pptx on inputPath, writing
// into outDir, and returns the produced .pptx path.
func (s *Soffice) Convert(ctx context.Context, inputPath, outDir string) (string, error) {
	if !s.Available() {
		return "", ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, s.binary(),
		"--headless", "--convert-to", "pptx", "--outdir", outDir, inputPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("converting %s: %w: %s", filepath.Base(inputPath), err, strings.TrimSpace(string(output)))
	}

	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	produced := filepath.Join(outDir, stem+".pptx")
	if _, err := os.Stat(produced); err == nil {
		return produced, nil
	}

	// Some LibreOffice builds mangle the output name; fall back to a glob.
	candidates, err := filepath.Glob(filepath.Join(outDir, stem+"*.pptx"))
	if err == nil && len(candidates) > 0 {
		return candidates[0], nil
	}
	return "", fmt.Errorf("converting %s: no .pptx produced in %s", filepath.Base(inputPath), outDir)
}
