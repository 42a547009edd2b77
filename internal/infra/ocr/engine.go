// Package ocr turns uploaded invoices into plain text. PDFs are read from
// their text layer when they have one; scanned PDFs and images go through
// tesseract after grayscale and contrast preprocessing.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"

	"github.com/disintegration/imaging"
	"github.com/ledongthuc/pdf"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("ocr")

// Config holds the OCR binaries and their tuning.
type Config struct {
	Tesseract     string
	Pdftoppm      string
	TesseractLang string
	DPI           int
	// MinTextLayer is the number of non-space characters a PDF text layer
	// needs before rasterization is skipped.
	MinTextLayer int
	// MinWidth upscales narrow images before recognition.
	MinWidth int
}

type mediaKind int

const (
	kindUnknown mediaKind = iota
	kindPDF
	kindImage
)

// Engine implements port.TextExtractor.
type Engine struct {
	cfg    Config
	runner Runner
	logger *zap.Logger
}

// NewEngine fills config defaults and uses an ExecRunner.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "por"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinTextLayer <= 0 {
		cfg.MinTextLayer = 20
	}
	if cfg.MinWidth <= 0 {
		cfg.MinWidth = 1000
	}
	return &Engine{cfg: cfg, runner: ExecRunner{Logger: logger}, logger: logger}
}

// WithRunner swaps the command runner.
func (e *Engine) WithRunner(r Runner) *Engine {
	e.runner = r
	return e
}

// ExtractText returns the raw text of doc. Unsupported types yield
// *domain.ErrUnsupportedMedia; engine failures yield *domain.ErrOCR.
func (e *Engine) ExtractText(ctx context.Context, doc domain.RawDocument) (string, error) {
	ctx, span := tracer.Start(ctx, "OCR.ExtractText")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.filename", doc.Filename),
		attribute.String("document.media_type", doc.MediaType),
		attribute.Int("document.size", len(doc.Data)),
	)

	switch detectKind(doc) {
	case kindPDF:
		return e.extractPDF(ctx, doc.Data)
	case kindImage:
		return e.extractImage(ctx, doc.Data)
	default:
		return "", &domain.ErrUnsupportedMedia{MediaType: doc.MediaType}
	}
}

func detectKind(doc domain.RawDocument) mediaKind {
	mt := strings.ToLower(strings.TrimSpace(doc.MediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "application/pdf":
		return kindPDF
	case "image/png", "image/jpeg", "image/jpg":
		return kindImage
	case "", "application/octet-stream":
		switch strings.ToLower(filepath.Ext(doc.Filename)) {
		case ".pdf":
			return kindPDF
		case ".png", ".jpg", ".jpeg":
			return kindImage
		}
	}
	return kindUnknown
}

// ============================================================
// PDF
// ============================================================

func (e *Engine) extractPDF(ctx context.Context, data []byte) (string, error) {
	text, err := textLayer(data)
	if err != nil {
		e.logger.Debug("pdf text layer unavailable", zap.Error(err))
	} else if countVisible(text) >= e.cfg.MinTextLayer {
		e.logger.Debug("pdf text layer used", zap.Int("chars", len(text)))
		return text, nil
	}

	tmpDir, err := os.MkdirTemp("", "faturas-pdf-*")
	if err != nil {
		return "", &domain.ErrOCR{Reason: "temp dir", Err: err}
	}
	defer e.removeAll(tmpDir)

	in := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return "", &domain.ErrOCR{Reason: "write pdf", Err: err}
	}

	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	prefix := filepath.Join(tmpDir, "page")
	if _, stderr, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", in, prefix); err != nil {
		return "", &domain.ErrOCR{Reason: "pdftoppm: " + strings.TrimSpace(string(stderr)), Err: err}
	}

	pages, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(pages)
	if len(pages) == 0 {
		return "", &domain.ErrOCR{Reason: "pdftoppm produced no pages"}
	}

	var b strings.Builder
	for _, page := range pages {
		img, err := imaging.Open(page)
		if err != nil {
			return "", &domain.ErrOCR{Reason: "open rendered page", Err: err}
		}
		txt, err := e.recognize(ctx, tmpDir, filepath.Base(page), img)
		if err != nil {
			return "", err
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(txt)
	}
	return b.String(), nil
}

// textLayer reads embedded text. The pdf package panics on some malformed
// files, so the panic is turned into an error.
func textLayer(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func countVisible(s string) int {
	n := 0
	for _, r := range s {
		if r > ' ' {
			n++
		}
	}
	return n
}

// ============================================================
// Images
// ============================================================

func (e *Engine) extractImage(ctx context.Context, data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", &domain.ErrOCR{Reason: "decode image", Err: err}
	}

	tmpDir, err := os.MkdirTemp("", "faturas-img-*")
	if err != nil {
		return "", &domain.ErrOCR{Reason: "temp dir", Err: err}
	}
	defer e.removeAll(tmpDir)

	return e.recognize(ctx, tmpDir, "upload.png", img)
}

// Preprocess prepares an image for tesseract: grayscale, more contrast,
// a light sharpen and an upscale when the image is narrow.
func Preprocess(src image.Image, minWidth int) image.Image {
	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 20)
	img = imaging.Sharpen(img, 1.0)
	if w := img.Bounds().Dx(); w > 0 && w < minWidth {
		img = imaging.Resize(img, minWidth, 0, imaging.Lanczos)
	}
	return img
}

func (e *Engine) recognize(ctx context.Context, dir, name string, img image.Image) (string, error) {
	path := filepath.Join(dir, "prep-"+name)
	if err := imaging.Save(Preprocess(img, e.cfg.MinWidth), path); err != nil {
		return "", &domain.ErrOCR{Reason: "save preprocessed image", Err: err}
	}

	// tesseract <file> stdout -l <lang>
	out, stderr, err := e.runner.Run(ctx, e.cfg.Tesseract, path, "stdout", "-l", e.cfg.TesseractLang)
	if err != nil {
		return "", &domain.ErrOCR{Reason: "tesseract: " + strings.TrimSpace(string(stderr)), Err: err}
	}
	return string(out), nil
}

func (e *Engine) removeAll(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		e.logger.Warn("failed to remove temp dir", zap.String("dir", dir), zap.Error(err))
	}
}
