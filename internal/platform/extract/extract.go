// Package extract pulls the embedded text layer out of PDF documents and
// decides whether that layer is substantial enough to analyze, or whether the
// document is a scan that needs OCR.
package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// Result is the text layer pulled from one document.
type Result struct {
	Text  string
	Pages int
}

// TextLayer reads the PDF bytes and returns the embedded text of every page.
// Encrypted documents are tried with an empty password first; password
// protected files fail.
func TextLayer(data []byte) (Result, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}

	enc, err := pdfReader.IsEncrypted()
	if err != nil {
		return Result{}, fmt.Errorf("check encryption: %w", err)
	}
	if enc {
		ok, err := pdfReader.Decrypt([]byte(""))
		if err != nil {
			return Result{}, fmt.Errorf("decrypt pdf: %w", err)
		}
		if !ok {
			return Result{}, fmt.Errorf("pdf is password-protected")
		}
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return Result{}, fmt.Errorf("get page count: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			continue
		}

		ex, err := extractor.New(page)
		if err != nil {
			continue
		}

		text, err := ex.ExtractText()
		if err != nil {
			continue
		}

		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return Result{
		Text:  NormalizeText(sb.String()),
		Pages: numPages,
	}, nil
}

var (
	reControlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0e-\x1f\x7f]`)
	reBlankRuns    = regexp.MustCompile(`\n{3,}`)
	reSpaceRuns    = regexp.MustCompile(`[ \t]{2,}`)
)

// NormalizeText strips control characters and collapses whitespace runs while
// keeping line and page structure intact.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = reControlChars.ReplaceAllString(s, "")
	s = reSpaceRuns.ReplaceAllString(s, " ")
	s = reBlankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// MeaningfulChars counts the non-whitespace characters of s. Scanned PDFs
// often carry a near-empty text layer of stray whitespace; counting only
// visible characters keeps them from passing the sufficiency check.
func MeaningfulChars(s string) int {
	n := 0
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f', '\v':
		default:
			n++
		}
	}
	return n
}

// Sufficient reports whether the extracted text is substantial enough to be
// analyzed without OCR.
func Sufficient(text string, minChars int) bool {
	return MeaningfulChars(text) >= minChars
}
