// Package extract pulls narration source text out of uploaded PDF documents.
//
// Text is read with pdftotext first. Scanned documents, which come back empty
// or full of glyph placeholders, fall back to OCR: pdftoppm renders each page
// and tesseract reads it in English and Spanish.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"

	"studai/internal/logging"
	"studai/internal/services"
)

const stageName = "pdf_extraction"

// OCRLanguages is the tesseract language set used for scanned pages.
const OCRLanguages = "eng+spa"

var glyphPlaceholder = regexp.MustCompile(`/g\d+`)

// CommandRunner executes an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Validator checks a PDF and returns its page count.
type Validator func(path string) (int, error)

// Options configures an Extractor. Zero values select the system binaries.
type Options struct {
	PDFToText string
	PDFToPPM  string
	Tesseract string
	OCRDPI    int
	WorkDir   string
	Runner    CommandRunner
	Validate  Validator
	Logger    *slog.Logger
}

// Extractor implements the text extraction collaborator.
type Extractor struct {
	opts   Options
	logger *slog.Logger
}

// New constructs an Extractor.
func New(opts Options) *Extractor {
	if opts.PDFToText == "" {
		opts.PDFToText = "pdftotext"
	}
	if opts.PDFToPPM == "" {
		opts.PDFToPPM = "pdftoppm"
	}
	if opts.Tesseract == "" {
		opts.Tesseract = "tesseract"
	}
	if opts.OCRDPI <= 0 {
		opts.OCRDPI = 300
	}
	if opts.Runner == nil {
		opts.Runner = defaultRunner
	}
	if opts.Validate == nil {
		opts.Validate = validatePDF
	}
	return &Extractor{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "extract")}
}

// NeedsOCR reports whether directly extracted text should be replaced by OCR.
func NeedsOCR(text string) bool {
	return strings.TrimSpace(text) == "" || glyphPlaceholder.MatchString(text)
}

// Extract returns the text content of the PDF at path.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", services.Wrap(services.ErrNotFound, stageName, "stat document", path, err)
	}
	pages, err := e.opts.Validate(path)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "validate pdf", "document is not a readable PDF", err)
	}
	logger := logging.WithContext(ctx, e.logger)
	logger.Debug("pdf validated", logging.String("path", path), logging.Int("pages", pages))

	out, err := e.opts.Runner(ctx, e.opts.PDFToText, "-layout", "-enc", "UTF-8", path, "-")
	text := string(out)
	if err != nil {
		logging.WarnWithContext(logger, "pdftotext failed; trying OCR", "pdftotext_failed",
			logging.String(logging.FieldErrorHint, "install poppler-utils or check the document"),
			logging.String(logging.FieldImpact, "falling back to OCR"),
			logging.Error(err),
		)
		text = ""
	}
	if !NeedsOCR(text) {
		return strings.TrimSpace(text), nil
	}

	logger.Info("document appears scanned; using OCR", logging.Int("pages", pages))
	ocrText, err := e.ocr(ctx, path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(ocrText), nil
}

func (e *Extractor) ocr(ctx context.Context, path string) (string, error) {
	dir, err := os.MkdirTemp(e.opts.WorkDir, "ocr-")
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, "ocr workdir", "create temp dir", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	if _, err := e.opts.Runner(ctx, e.opts.PDFToPPM, "-r", fmt.Sprint(e.opts.OCRDPI), "-png", path, prefix); err != nil {
		return "", services.Wrap(services.ErrExternalTool, stageName, "pdftoppm", "render pages", err)
	}
	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, stageName, "pdftoppm", "list pages", err)
	}
	sort.Strings(images)

	var b strings.Builder
	for _, image := range images {
		out, err := e.opts.Runner(ctx, e.opts.Tesseract, image, "stdout", "-l", OCRLanguages)
		if err != nil {
			return "", services.Wrap(services.ErrExternalTool, stageName, "tesseract", filepath.Base(image), err)
		}
		b.Write(bytes.TrimSpace(out))
		b.WriteString("\n")
	}
	return b.String(), nil
}

func validatePDF(path string) (int, error) {
	if err := pdfapi.ValidateFile(path, nil); err != nil {
		return 0, err
	}
	return pdfapi.PageCountFile(path)
}

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
