// Package web implements the HTTP front-end: an upload form, a translation
// endpoint streaming back the translated document, and a health probe.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"traduko/config"
	"traduko/convert"
	"traduko/deepl"
	"traduko/document"
	"traduko/i18n"
	"traduko/pipeline"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Server serves the translation front-end. One Server handles many runs;
// each run gets its own working directory and owns its document
// exclusively.
type Server struct {
	cfg    *config.Config
	runner *pipeline.Runner
	logger *log.Logger
	engine *gin.Engine
}

// New builds the server and its routes.
func New(cfg *config.Config, runner *pipeline.Runner, logger *log.Logger) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{"T": i18n.T}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))
	engine.SetHTMLTemplate(tmpl)
	engine.MaxMultipartMemory = int64(cfg.MaxUploadMB) << 20

	s := &Server{cfg: cfg, runner: runner, logger: logger, engine: engine}
	engine.GET("/", s.handleIndex)
	engine.GET("/healthz", s.handleHealth)
	engine.POST("/translate", s.handleTranslate)
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", s.cfg.Listen)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleIndex(c *gin.Context) {
	s.renderForm(c, http.StatusOK, "")
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleTranslate(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.renderForm(c, http.StatusBadRequest, i18n.T("No file was uploaded."))
		return
	}

	opts := pipeline.Options{
		TargetLang:          c.PostForm("variant"),
		IncludeNotes:        c.PostForm("notes") != "",
		KeepOriginalOnError: c.PostForm("keep_original") != "",
		BatchSize:           s.cfg.BatchSize,
	}

	runID := uuid.NewString()
	runLog := s.logger.With("run", runID, "file", fileHeader.Filename)
	opts.OnLog = func(format string, args ...any) { runLog.Info(fmt.Sprintf(format, args...)) }
	opts.OnProgress = func(done, total int) { runLog.Info("progress", "done", done, "total", total) }

	runDir := filepath.Join(os.TempDir(), "traduko-"+runID)
	if err := os.MkdirAll(runDir, 0o700); err != nil {
		runLog.Error("creating run directory", "err", err)
		s.renderForm(c, http.StatusInternalServerError, i18n.T("Internal error while writing the translated document."))
		return
	}
	defer os.RemoveAll(runDir)

	inPath := filepath.Join(runDir, filepath.Base(fileHeader.Filename))
	if err := c.SaveUploadedFile(fileHeader, inPath); err != nil {
		runLog.Error("saving upload", "err", err)
		s.renderForm(c, http.StatusInternalServerError, i18n.T("Internal error while writing the translated document."))
		return
	}

	res, err := s.runner.Run(c.Request.Context(), inPath, opts)
	if err != nil {
		status, msg := classify(err)
		runLog.Error("run failed", "err", err)
		s.renderForm(c, status, msg)
		return
	}

	if res.SkippedBatches > 0 {
		runLog.Warn("batches kept in original language", "skipped", res.SkippedBatches)
	}
	runLog.Info("run complete", "fragments", res.Fragments, "batches", res.Batches)

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	c.Data(http.StatusOK, res.MIME, res.Data)
}

func (s *Server) renderForm(c *gin.Context, status int, errMsg string) {
	c.HTML(status, "index.html", gin.H{
		"Error":    errMsg,
		"Variants": []string{deepl.TargetEnglishUS, deepl.TargetEnglishGB},
	})
}

// classify maps a run error to an HTTP status and a user-facing message.
// Every failure is surfaced; none are swallowed.
func classify(err error) (int, string) {
	var parseErr *document.ParseError
	var writeErr *document.WriteError
	var translationErr *deepl.TranslationError

	switch {
	case errors.Is(err, pipeline.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, i18n.T("Unsupported file type (expected .pptx, .ppt or .ipynb).")
	case errors.Is(err, pipeline.ErrNoText):
		return http.StatusUnprocessableEntity, i18n.T("No translatable text found in the document.")
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity, i18n.T("The document could not be parsed. Is the file intact?")
	case errors.Is(err, convert.ErrUnavailable):
		return http.StatusServiceUnavailable, i18n.T("Legacy .ppt conversion is unavailable on this server (LibreOffice not installed).")
	case errors.As(err, &translationErr):
		return http.StatusBadGateway, i18n.T("The translation service rejected the request.")
	case errors.As(err, &writeErr):
		return http.StatusInternalServerError, i18n.T("Internal error while writing the translated document.")
	default:
		return http.StatusInternalServerError, i18n.T("Translation failed")
	}
}
