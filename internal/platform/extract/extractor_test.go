package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/ocr"
)

// pageRunner fakes pdftoppm and tesseract for extractor tests.
type pageRunner struct {
	pages   int
	text    string
	pdfErr  error
	tessErr error
}

func (r *pageRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	switch {
	case strings.Contains(name, "pdftoppm"):
		if r.pdfErr != nil {
			return nil, []byte("render error"), r.pdfErr
		}
		prefix := args[len(args)-1]
		for i := 1; i <= r.pages; i++ {
			if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o644); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case strings.Contains(name, "tesseract"):
		if r.tessErr != nil {
			return nil, []byte("ocr error"), r.tessErr
		}
		page := filepath.Base(args[0])
		return []byte(r.text + " " + page), nil, nil
	}
	return nil, nil, fmt.Errorf("unexpected command %s", name)
}

func stubEngine(r ocr.Runner) *ocr.Engine {
	return ocr.NewEngineWithRunner(ocr.Config{
		Lang:        "por+eng",
		DPI:         150,
		PageTimeout: time.Second,
	}, r, zerolog.Nop())
}

func TestExtractFallsBackToOCR(t *testing.T) {
	runner := &pageRunner{pages: 2, text: "Hemoglobina 14,2 g/dL"}
	ex := NewDocumentExtractor(120, stubEngine(runner), zerolog.Nop())

	// Not a real PDF, so the text layer path fails structurally.
	ocrStarted := false
	res, err := ex.Extract(context.Background(), []byte("not a pdf"), func() { ocrStarted = true })
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if res.Method != MethodOCR {
		t.Errorf("expected method %s, got %s", MethodOCR, res.Method)
	}
	if res.Pages != 2 {
		t.Errorf("expected 2 pages, got %d", res.Pages)
	}
	if !strings.Contains(res.Text, "Hemoglobina") {
		t.Errorf("expected recognized text, got %q", res.Text)
	}
	if res.Chars == 0 {
		t.Error("expected a nonzero char count")
	}
	if !ocrStarted {
		t.Error("expected the ocr callback to fire")
	}
}

func TestExtractOCRFailureIsMarked(t *testing.T) {
	runner := &pageRunner{pdfErr: errors.New("exit status 1")}
	ex := NewDocumentExtractor(120, stubEngine(runner), zerolog.Nop())

	_, err := ex.Extract(context.Background(), []byte("not a pdf"), nil)
	if !errors.Is(err, ErrOCR) {
		t.Errorf("expected ErrOCR, got %v", err)
	}
}

func TestExtractWithoutEngineIsUnreadable(t *testing.T) {
	ex := NewDocumentExtractor(120, nil, zerolog.Nop())

	ocrStarted := false
	_, err := ex.Extract(context.Background(), []byte("not a pdf"), func() { ocrStarted = true })
	if !errors.Is(err, ErrUnreadableDocument) {
		t.Errorf("expected ErrUnreadableDocument, got %v", err)
	}
	if ocrStarted {
		t.Error("ocr callback must not fire without an engine")
	}
}

func TestNewDocumentExtractorDefaultsMinChars(t *testing.T) {
	ex := NewDocumentExtractor(0, nil, zerolog.Nop())
	if ex.minChars != 120 {
		t.Errorf("expected default min chars 120, got %d", ex.minChars)
	}
}
