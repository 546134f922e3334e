package extract

import (
	"strings"
	"testing"
)

func TestTextLayer_RejectsGarbage(t *testing.T) {
	_, err := TextLayer([]byte("this is not a pdf"))
	if err == nil {
		t.Fatal("expected error for non-PDF bytes")
	}
}

func TestTextLayer_RejectsEmpty(t *testing.T) {
	_, err := TextLayer(nil)
	if err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"collapses space runs", "Hemoglobina    14.2   g/dL", "Hemoglobina 14.2 g/dL"},
		{"strips control chars", "Leuc\x00\x01ócitos", "Leucócitos"},
		{"normalizes crlf", "linha1\r\nlinha2", "linha1\nlinha2"},
		{"collapses blank runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"trims", "  texto  ", "texto"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeText(tc.in); got != tc.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestMeaningfulChars(t *testing.T) {
	if got := MeaningfulChars("  \n\t \f "); got != 0 {
		t.Errorf("expected 0 for whitespace-only text, got %d", got)
	}
	if got := MeaningfulChars("ab c"); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}

func TestSufficient(t *testing.T) {
	sparse := "  \n " + strings.Repeat("x", 10)
	if Sufficient(sparse, 120) {
		t.Error("expected sparse text layer to be insufficient")
	}

	dense := strings.Repeat("Hemoglobina 14.2 g/dL\n", 20)
	if !Sufficient(dense, 120) {
		t.Error("expected dense text layer to be sufficient")
	}
}

func TestSufficient_WhitespaceDoesNotCount(t *testing.T) {
	// 200 chars of whitespace plus a handful of visible chars must not pass
	// a 120-char threshold.
	text := strings.Repeat(" \n", 100) + "abc"
	if Sufficient(text, 120) {
		t.Error("whitespace must not count toward sufficiency")
	}
}
