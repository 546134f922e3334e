package extract

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/ocr"
)

// Extraction methods.
const (
	MethodDirect = "direct"
	MethodOCR    = "ocr"
)

// ErrUnreadableDocument marks documents whose text layer could not be read at
// all. ErrOCR marks failures on the OCR fallback path, so callers can tell
// the two apart.
var (
	ErrUnreadableDocument = errors.New("document could not be read")
	ErrOCR                = errors.New("ocr failed")
)

// Extraction is the outcome of pulling text out of an uploaded document.
type Extraction struct {
	Text   string
	Method string
	Pages  int
	Chars  int
}

// DocumentExtractor pulls text from a PDF: the embedded text layer first,
// falling back to OCR when the layer is missing or too sparse to be a real
// report body.
type DocumentExtractor struct {
	minChars int
	engine   *ocr.Engine
	logger   zerolog.Logger
}

// NewDocumentExtractor builds an extractor. minChars below 1 falls back to a
// default of 120.
func NewDocumentExtractor(minChars int, engine *ocr.Engine, logger zerolog.Logger) *DocumentExtractor {
	if minChars < 1 {
		minChars = 120
	}
	return &DocumentExtractor{
		minChars: minChars,
		engine:   engine,
		logger:   logger.With().Str("component", "extractor").Logger(),
	}
}

// Extract returns the document text and how it was obtained. A readable text
// layer with enough content wins; otherwise the document is rasterized and
// OCR'd page by page. onOCR, when non-nil, is called once just before the OCR
// fallback starts so callers can report the stage change.
func (e *DocumentExtractor) Extract(ctx context.Context, doc []byte, onOCR func()) (Extraction, error) {
	layer, layerErr := TextLayer(doc)
	if layerErr == nil && Sufficient(layer.Text, e.minChars) {
		return Extraction{
			Text:   layer.Text,
			Method: MethodDirect,
			Pages:  layer.Pages,
			Chars:  MeaningfulChars(layer.Text),
		}, nil
	}

	if layerErr != nil {
		e.logger.Warn().Err(layerErr).Msg("text layer unreadable, trying ocr")
	} else {
		e.logger.Info().
			Int("chars", MeaningfulChars(layer.Text)).
			Int("min_chars", e.minChars).
			Msg("text layer too sparse, trying ocr")
	}

	if e.engine == nil {
		if layerErr != nil {
			return Extraction{}, fmt.Errorf("%w: %v", ErrUnreadableDocument, layerErr)
		}
		return Extraction{}, fmt.Errorf("%w: text layer too sparse and no ocr engine configured", ErrUnreadableDocument)
	}

	if onOCR != nil {
		onOCR()
	}

	path, cleanup, err := writeTempPDF(doc)
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrOCR, err)
	}
	defer cleanup()

	res, err := e.engine.RecognizePDF(ctx, path)
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrOCR, err)
	}

	text := NormalizeText(res.Text)
	return Extraction{
		Text:   text,
		Method: MethodOCR,
		Pages:  res.Pages,
		Chars:  MeaningfulChars(text),
	}, nil
}

func writeTempPDF(doc []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "labflow-doc-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("create temp pdf: %w", err)
	}
	if _, err := f.Write(doc); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("write temp pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("close temp pdf: %w", err)
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}
