package analysis

import (
	"testing"

	"github.com/labflow/labflow/internal/domain/reference"
	"github.com/labflow/labflow/internal/platform/ai"
)

func TestClassifyNumericIntervals(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ref   string
		want  string
	}{
		{"within range", "14.2", "12-16", StatusNormal},
		{"within range comma decimals", "14,2 g/dL", "12,0 - 16,0 g/dL", StatusNormal},
		{"above range", "17.0", "12-16", StatusHigh},
		{"below range", "10,5", "12-16", StatusLow},
		{"at lower bound", "12", "12-16", StatusNormal},
		{"at upper bound", "16,0", "12 - 16", StatusNormal},
		{"en dash separator", "92", "70 – 99", StatusNormal},
		{"'a' separator", "14,2", "12 a 16", StatusNormal},
		{"'até' separator", "110", "70 até 99", StatusHigh},
		{"unparseable value", "reagente", "12-16", StatusIndeterminate},
		{"empty value", "  ", "12-16", StatusIndeterminate},
		{"empty reference", "14.2", "", StatusIndeterminate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.value, tt.ref); got != tt.want {
				t.Errorf("Classify(%q, %q) = %s, want %s", tt.value, tt.ref, got, tt.want)
			}
		})
	}
}

func TestClassifyComparators(t *testing.T) {
	tests := []struct {
		value string
		ref   string
		want  string
	}{
		{"5,4", "< 5,7", StatusNormal},
		{"6,1 %", "< 5,7", StatusHigh},
		{"45", "> 40", StatusNormal},
		{"38", "> 40", StatusLow},
		{"100", "<= 100", StatusNormal},
		{"101", "<= 100", StatusHigh},
		{"40", ">= 40 mg/dL", StatusNormal},
		{"39,9", ">= 40", StatusLow},
	}
	for _, tt := range tests {
		if got := Classify(tt.value, tt.ref); got != tt.want {
			t.Errorf("Classify(%q, %q) = %s, want %s", tt.value, tt.ref, got, tt.want)
		}
	}
}

func TestClassifyWordBounds(t *testing.T) {
	tests := []struct {
		value string
		ref   string
		want  string
	}{
		{"110", "Até 120", StatusNormal},
		{"130", "até 120 mg/dL", StatusHigh},
		{"120", "ATÉ 120", StatusNormal},
		{"140", "máximo 150", StatusNormal},
		{"155", "Máximo de 150", StatusHigh},
		{"5,4", "inferior a 5,7", StatusNormal},
		{"45", "mínimo 40", StatusNormal},
		{"38", "Mínimo de 40", StatusLow},
		{"50", "superior a 40", StatusNormal},
		{"35", "acima de 40", StatusLow},
		{"reagente", "Até 120", StatusIndeterminate},
	}
	for _, tt := range tests {
		if got := Classify(tt.value, tt.ref); got != tt.want {
			t.Errorf("Classify(%q, %q) = %s, want %s", tt.value, tt.ref, got, tt.want)
		}
	}
}

func TestClassifyUnreadableNumericReference(t *testing.T) {
	// A reference with digits that is neither an interval nor a bound must
	// not be scored as a qualitative mismatch.
	tests := []struct {
		value string
		ref   string
	}{
		{"9,0", "ver observação 1"},
		{"110", "tabela 2 do laudo"},
	}
	for _, tt := range tests {
		if got := Classify(tt.value, tt.ref); got != StatusIndeterminate {
			t.Errorf("Classify(%q, %q) = %s, want %s", tt.value, tt.ref, got, StatusIndeterminate)
		}
	}
}

func TestClassifyQualitative(t *testing.T) {
	tests := []struct {
		value string
		ref   string
		want  string
	}{
		{"Não Reagente", "não reagente", StatusNormal},
		{"NEGATIVO", "Negativo", StatusNormal},
		{"Reagente", "Não Reagente", StatusAltered},
		{"Positivo", "Negativo", StatusAltered},
		{"Ausente  ", " ausente", StatusNormal},
	}
	for _, tt := range tests {
		if got := Classify(tt.value, tt.ref); got != tt.want {
			t.Errorf("Classify(%q, %q) = %s, want %s", tt.value, tt.ref, got, tt.want)
		}
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	first := Classify("14,2", "12-16")
	for i := 0; i < 5; i++ {
		if got := Classify("14,2", "12-16"); got != first {
			t.Fatalf("Classify changed answer on repeat: %s then %s", first, got)
		}
	}
}

func TestClassifyRowRangeResolution(t *testing.T) {
	catalog := reference.NewCatalog([]*reference.Entry{
		{NormalizedName: "hemoglobina", IdealRange: "12-16"},
	})

	// Catalog entry overrides the range printed on the report.
	r := ClassifyRow(ai.ExamRow{Name: "Hemoglobina", Value: "17,0", Reference: "11-18"}, catalog, 0)
	if r.RangeSource != RangeSourceCustom {
		t.Errorf("expected custom range source, got %s", r.RangeSource)
	}
	if r.ReferenceText != "12-16" {
		t.Errorf("expected catalog range, got %q", r.ReferenceText)
	}
	if r.Status != StatusHigh {
		t.Errorf("expected high against catalog range, got %s", r.Status)
	}

	// No catalog entry: the report's own range applies.
	r = ClassifyRow(ai.ExamRow{Name: "Glicose", Value: "92", Reference: "70-99"}, catalog, 1)
	if r.RangeSource != RangeSourceDefault {
		t.Errorf("expected default range source, got %s", r.RangeSource)
	}
	if r.Status != StatusNormal {
		t.Errorf("expected normal, got %s", r.Status)
	}

	// No range anywhere.
	r = ClassifyRow(ai.ExamRow{Name: "Ferritina", Value: "150"}, catalog, 2)
	if r.RangeSource != RangeSourceNone {
		t.Errorf("expected none range source, got %s", r.RangeSource)
	}
	if r.Status != StatusIndeterminate {
		t.Errorf("expected indeterminate without a range, got %s", r.Status)
	}
}

func TestClassifyAllPreservesOrder(t *testing.T) {
	rows := []ai.ExamRow{
		{Name: "Hemoglobina", Value: "14,2", Reference: "12-16"},
		{Name: "Glicose", Value: "92", Reference: "70-99"},
		{Name: "Ferritina", Value: "150"},
	}
	results := ClassifyAll(rows, nil)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Position != i {
			t.Errorf("result %d: expected position %d, got %d", i, i, r.Position)
		}
	}
	if results[0].NormalizedName != "hemoglobina" {
		t.Errorf("expected normalized name, got %q", results[0].NormalizedName)
	}
	if results[2].Status != StatusIndeterminate {
		t.Errorf("expected indeterminate for rangeless row, got %s", results[2].Status)
	}
}
