// traduko — batch document translator: PowerPoint decks and Jupyter
// notebooks, French to English via the DeepL API, formatting preserved.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"traduko/config"
	"traduko/convert"
	"traduko/deepl"
	"traduko/i18n"
	"traduko/pipeline"
	"traduko/web"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var configPath string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "traduko",
		Short: "Translate PowerPoint decks and Jupyter notebooks via DeepL",
		Long: `traduko — batch document translator.

Translates .pptx, .ppt and .ipynb files from French to English through the
DeepL API while preserving formatting: slide runs, tables and speaker notes
keep their fonts and colors, notebook code stays untouched (only markdown
cells and trailing # comments are translated).

Commands:
  serve       Start the web front-end (upload form + download)
  translate   Translate one file from the command line
  version     Show version information

Configuration:
  DEEPL_API_KEY   DeepL credential (required; free keys are auto-routed
                  to the free endpoint)
  DEEPL_API_URL   explicit endpoint override (optional)
  traduko.yaml    optional config file (batch_size, listen, soffice_path)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag — inherited by all subcommands
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	root.AddCommand(
		newServeCmd(),
		newTranslateCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// serve
// ---------------------------------------------------------------------------

func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web front-end",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := log.New(os.Stderr)
			soffice := &convert.Soffice{Binary: cfg.SofficePath}
			runner := &pipeline.Runner{
				Client:    deepl.New(cfg.ClientConfig()),
				Converter: soffice,
			}
			if !soffice.Available() {
				logWarning("soffice not found: legacy .ppt uploads will be rejected")
			}

			srv, err := web.New(cfg, runner, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Bind address (overrides config)")
	return cmd
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		variant      string
		includeNotes bool
		keepOriginal bool
		batchSize    int
		output       string
	)

	cmd := &cobra.Command{
		Use:   "translate <file>",
		Short: "Translate one file from the command line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if batchSize > 0 {
				cfg.BatchSize = batchSize
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			runner := &pipeline.Runner{
				Client:    deepl.New(cfg.ClientConfig()),
				Converter: &convert.Soffice{Binary: cfg.SofficePath},
			}

			inputPath := args[0]
			opts := pipeline.Options{
				TargetLang:          variant,
				IncludeNotes:        includeNotes,
				KeepOriginalOnError: keepOriginal,
				BatchSize:           cfg.BatchSize,
				OnLog:               logInfo,
				OnProgress: func(done, total int) {
					logInfo("%d/%d segments", done, total)
				},
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := runner.Run(ctx, inputPath, opts)
			if err != nil {
				return err
			}

			outPath := output
			if outPath == "" {
				outPath = filepath.Join(filepath.Dir(inputPath), res.Filename)
			}
			if err := os.WriteFile(outPath, res.Data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", outPath, err)
			}

			if res.SkippedBatches > 0 {
				logWarning(i18n.N(
					"%d batch was skipped and kept its original text.",
					"%d batches were skipped and kept their original text.",
					res.SkippedBatches), res.SkippedBatches)
			}
			logSuccess("translated %d segments -> %s", res.Fragments, outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&variant, "to", deepl.TargetEnglishUS, "English variant (EN-US or EN-GB)")
	cmd.Flags().BoolVar(&includeNotes, "notes", true, "Translate speaker notes (PowerPoint)")
	cmd.Flags().BoolVar(&keepOriginal, "keep-original-on-error", false, "Keep original text for failed batches instead of aborting")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Texts per API request (overrides config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path")
	return cmd
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("traduko %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
