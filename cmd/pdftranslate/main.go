// pdftranslate translates a PDF document on the command line while keeping
// its layout, using the same pipeline as the HTTP service.
//
// Usage:
//
//	pdftranslate -in document.pdf [options]
//
// Options:
//
//	-in string          PDF to translate (required)
//	-out string         Output directory (default: directory of the input)
//	-from string        Source language (default $SOURCE_LANG or TR)
//	-to string          Target language (default $TARGET_LANG or DE)
//	-ocr                OCR every page instead of reading the text layer
//	-provider string    Translation provider: deepl, openai, ollama, googleai
//	-ocr-provider string OCR engine: tesseract, ios_ocr, azure, google_docai, none
//	-font string        TrueType font for the translated text
//	-batch-size int     Texts per translation request
//	-pacing duration    Pause between translation requests
//	-workers int        Pages extracted in parallel
//	-json               Print the job result as JSON
//	-log-level string   debug, info, warn or error
//
// Credentials are read from the environment (DEEPL_API_KEY, OPENAI_API_KEY,
// GOOGLEAI_API_KEY, ...), optionally from a .env file in the working directory.
//
// Example:
//
//	DEEPL_API_KEY=... pdftranslate -in rapor.pdf -from TR -to EN
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"pdf-translator/internal/extract"
	"pdf-translator/internal/pipeline"
	"pdf-translator/internal/reconstruct"
	"pdf-translator/internal/render"
	"pdf-translator/internal/stage"
	"pdf-translator/ocr"
	"pdf-translator/translate"
)

type options struct {
	input       string
	outputDir   string
	sourceLang  string
	targetLang  string
	useOCR      bool
	provider    string
	ocrProvider string
	fontPath    string
	batchSize   int
	pacing      time.Duration
	workers     int
	jsonOutput  bool
	logLevel    logrus.Level
}

func parseOptions(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("pdftranslate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	var logLevel string
	fs.StringVar(&opts.input, "in", "", "PDF to translate")
	fs.StringVar(&opts.outputDir, "out", "", "Output directory (default: directory of the input)")
	fs.StringVar(&opts.sourceLang, "from", envOr("SOURCE_LANG", "TR"), "Source language")
	fs.StringVar(&opts.targetLang, "to", envOr("TARGET_LANG", "DE"), "Target language")
	fs.BoolVar(&opts.useOCR, "ocr", false, "OCR every page instead of reading the text layer")
	fs.StringVar(&opts.provider, "provider", envOr("TRANSLATION_PROVIDER", "deepl"), "Translation provider: deepl, openai, ollama, googleai")
	fs.StringVar(&opts.ocrProvider, "ocr-provider", envOr("OCR_PROVIDER", "tesseract"), "OCR engine: tesseract, ios_ocr, azure, google_docai, none")
	fs.StringVar(&opts.fontPath, "font", os.Getenv("FONT_PATH"), "TrueType font for the translated text")
	fs.IntVar(&opts.batchSize, "batch-size", translate.DefaultBatchSize, "Texts per translation request")
	fs.DurationVar(&opts.pacing, "pacing", translate.DefaultPacingDelay, "Pause between translation requests")
	fs.IntVar(&opts.workers, "workers", 1, "Pages extracted in parallel")
	fs.BoolVar(&opts.jsonOutput, "json", false, "Print the job result as JSON")
	fs.StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.input == "" {
		return opts, errors.New("-in is required")
	}
	if opts.outputDir == "" {
		opts.outputDir = filepath.Dir(opts.input)
	}
	opts.sourceLang = strings.ToUpper(opts.sourceLang)
	opts.targetLang = strings.ToUpper(opts.targetLang)
	if opts.sourceLang == opts.targetLang {
		return opts, fmt.Errorf("source and target language are both %s", opts.sourceLang)
	}
	if opts.batchSize < 1 {
		return opts, errors.New("-batch-size must be at least 1")
	}
	if opts.workers < 1 {
		return opts, errors.New("-workers must be at least 1")
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return opts, fmt.Errorf("invalid log level %q", logLevel)
	}
	opts.logLevel = level
	return opts, nil
}

func envOr(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		color.Yellow("Could not load .env file: %v", err)
	}

	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		color.Red("Error: %v", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func setLogLevel(level logrus.Level) {
	ocr.SetLogLevel(level)
	translate.SetLogLevel(level)
	render.SetLogLevel(level)
	extract.SetLogLevel(level)
	reconstruct.SetLogLevel(level)
	pipeline.SetLogLevel(level)
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	setLogLevel(opts.logLevel)

	translator, err := translate.NewTranslator(ctx, translate.Config{
		Provider:      opts.provider,
		DeepLAPIKey:   os.Getenv("DEEPL_API_KEY"),
		DeepLAPIURL:   os.Getenv("DEEPL_API_URL"),
		Model:         os.Getenv("LLM_MODEL"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OllamaHost:    os.Getenv("OLLAMA_HOST"),
		GoogleAPIKey:  os.Getenv("GOOGLEAI_API_KEY"),
	})
	if err != nil {
		return fmt.Errorf("translator: %w", err)
	}

	var engine ocr.Provider
	if opts.ocrProvider != "none" {
		engine, err = ocr.NewProvider(ocr.Config{
			Provider:          opts.ocrProvider,
			TesseractLanguage: os.Getenv("OCR_LANGUAGE"),
			IOSOCRServerURL:   os.Getenv("IOS_OCR_SERVER_URL"),
			GoogleProjectID:   os.Getenv("GOOGLE_PROJECT_ID"),
			GoogleLocation:    os.Getenv("GOOGLE_LOCATION"),
			GoogleProcessorID: os.Getenv("GOOGLE_PROCESSOR_ID"),
			AzureEndpoint:     os.Getenv("AZURE_DOCAI_ENDPOINT"),
			AzureAPIKey:       os.Getenv("AZURE_DOCAI_KEY"),
			AzureModelID:      os.Getenv("AZURE_DOCAI_MODEL_ID"),
		})
		if err != nil {
			return fmt.Errorf("OCR: %w", err)
		}
	}

	cfg := pipeline.DefaultConfig()
	cfg.BatchSize = opts.batchSize
	cfg.PacingDelay = opts.pacing
	cfg.FontPath = opts.fontPath
	cfg.ExtractWorkers = opts.workers

	progress := func(done, total int) {
		if !opts.jsonOutput {
			fmt.Fprintf(stdout, "\rTranslated page %d/%d", done, total)
			if done == total {
				fmt.Fprintln(stdout)
			}
		}
	}

	result, err := pipeline.New(translator, engine, cfg).Run(ctx, pipeline.Request{
		InputPath:  opts.input,
		SourceLang: opts.sourceLang,
		TargetLang: opts.targetLang,
		OutputDir:  opts.outputDir,
		UseOCR:     opts.useOCR,
		Progress:   progress,
	})
	if err != nil {
		return err
	}
	return printResult(stdout, result, opts.jsonOutput)
}

func printResult(w io.Writer, result *pipeline.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	mark := color.New(color.FgGreen).SprintFunc()
	switch {
	case result.Status == stage.Failed:
		mark = color.New(color.FgRed).SprintFunc()
	case result.Status == stage.Degraded || result.Mode == pipeline.ModeCopied:
		mark = color.New(color.FgYellow).SprintFunc()
	}

	fmt.Fprintf(w, "%s %s (%s)\n", mark("✔"), result.OutputPath, result.Mode)
	fmt.Fprintf(w, "  pages: %d, text groups: %d, overflowing groups: %d\n", result.Pages, result.Groups, result.Overflows)
	for _, code := range result.Conditions {
		fmt.Fprintf(w, "  %s\n", color.YellowString(string(code)))
	}
	for _, o := range result.Outcomes {
		if o.Status != stage.Extracted {
			fmt.Fprintf(w, "  %s\n", o)
		}
	}
	return nil
}
