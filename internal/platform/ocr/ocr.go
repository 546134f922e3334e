// Package ocr recognizes text in scanned PDF documents by rasterizing pages
// with pdftoppm and running tesseract over each page image.
package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the external tool settings for the OCR engine.
type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Lang        string        // tesseract language pack, default "por+eng"
	DPI         int           // rasterization DPI, default 300
	MaxPages    int           // 0 = no limit
	PageTimeout time.Duration // per-page tesseract deadline, default 30s
}

// Result is the outcome of recognizing one document.
type Result struct {
	Text     string
	Pages    int
	Duration time.Duration
	Warnings []string
}

// Engine runs the external OCR toolchain.
type Engine struct {
	cfg    Config
	runner Runner
	logger zerolog.Logger
}

// NewEngine creates an Engine with defaults applied for unset config fields.
func NewEngine(cfg Config, logger zerolog.Logger) *Engine {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "por+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
	}
	return &Engine{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// NewEngineWithRunner creates an Engine with a custom command runner. Used by
// tests to stub the external tools.
func NewEngineWithRunner(cfg Config, runner Runner, logger zerolog.Logger) *Engine {
	e := NewEngine(cfg, logger)
	e.runner = runner
	return e
}

// RecognizePDF rasterizes the PDF at path and runs tesseract over each page,
// concatenating the page texts with form-feed separators.
func (e *Engine) RecognizePDF(ctx context.Context, path string) (Result, error) {
	start := time.Now()

	tmpDir, err := os.MkdirTemp("", "labflow-ocr-*")
	if err != nil {
		return Result{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn().Str("dir", tmpDir).Err(rmErr).Msg("failed to remove ocr temp dir")
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return Result{Warnings: []string{string(errb)}}, fmt.Errorf("pdftoppm: %w", err)
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return Result{}, fmt.Errorf("pdftoppm produced no page images")
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		txt, w, err := e.recognizePage(ctx, img)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)
		warns = append(warns, w...)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return Result{Pages: len(matches), Warnings: warns},
			fmt.Errorf("tesseract produced no text for %d page(s)", len(matches))
	}

	return Result{
		Text:     text,
		Pages:    len(matches),
		Duration: time.Since(start),
		Warnings: warns,
	}, nil
}

// recognizePage runs tesseract on a single page image under the per-page
// deadline.
func (e *Engine) recognizePage(ctx context.Context, imgPath string) (string, []string, error) {
	pageCtx, cancel := context.WithTimeout(ctx, e.cfg.PageTimeout)
	defer cancel()

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(pageCtx, e.cfg.Tesseract, imgPath, "stdout", "-l", e.cfg.Lang)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract %s: %w", filepath.Base(imgPath), err)
	}
	return string(out), nil, nil
}
