package analysis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/labflow/labflow/internal/domain/reference"
	"github.com/labflow/labflow/internal/platform/ai"
)

// Brazilian lab reports write ranges as "12-16", "12 – 16" or "12 a 16",
// with comma or dot decimals. One-sided bounds come as comparators ("< 5,7",
// "> 40") or spelled out ("Até 120", "máximo 150", "acima de 40").
var (
	numberRe     = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	intervalRe   = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:-|–|até|a)\s*(\d+(?:[.,]\d+)?)`)
	comparatorRe = regexp.MustCompile(`(<=|>=|<|>)\s*(\d+(?:[.,]\d+)?)`)
	upperWordRe  = regexp.MustCompile(`(?i)(?:até|inferior a|m[áa]ximo(?: de)?)\s*:?\s*(\d+(?:[.,]\d+)?)`)
	lowerWordRe  = regexp.MustCompile(`(?i)(?:acima de|superior a|m[íi]nimo(?: de)?)\s*:?\s*(\d+(?:[.,]\d+)?)`)
)

// Classify scores a raw exam value against its reference text. Numeric
// references yield low/normal/high; qualitative references yield
// normal/altered by case-insensitive equality; anything unparseable is
// indeterminate. Pure and deterministic.
func Classify(value, referenceText string) string {
	referenceText = strings.TrimSpace(referenceText)
	if referenceText == "" || strings.TrimSpace(value) == "" {
		return StatusIndeterminate
	}

	if m := intervalRe.FindStringSubmatch(referenceText); m != nil {
		v, ok := parseNumber(value)
		if !ok {
			return StatusIndeterminate
		}
		lo, _ := parseDecimal(m[1])
		hi, _ := parseDecimal(m[2])
		switch {
		case v < lo:
			return StatusLow
		case v > hi:
			return StatusHigh
		default:
			return StatusNormal
		}
	}

	if m := comparatorRe.FindStringSubmatch(referenceText); m != nil {
		v, ok := parseNumber(value)
		if !ok {
			return StatusIndeterminate
		}
		bound, _ := parseDecimal(m[2])
		switch m[1] {
		case "<":
			if v < bound {
				return StatusNormal
			}
			return StatusHigh
		case "<=":
			if v <= bound {
				return StatusNormal
			}
			return StatusHigh
		case ">":
			if v > bound {
				return StatusNormal
			}
			return StatusLow
		default: // >=
			if v >= bound {
				return StatusNormal
			}
			return StatusLow
		}
	}

	if m := upperWordRe.FindStringSubmatch(referenceText); m != nil {
		v, ok := parseNumber(value)
		if !ok {
			return StatusIndeterminate
		}
		bound, _ := parseDecimal(m[1])
		if v <= bound {
			return StatusNormal
		}
		return StatusHigh
	}

	if m := lowerWordRe.FindStringSubmatch(referenceText); m != nil {
		v, ok := parseNumber(value)
		if !ok {
			return StatusIndeterminate
		}
		bound, _ := parseDecimal(m[1])
		if v >= bound {
			return StatusNormal
		}
		return StatusLow
	}

	// A reference that contains digits but parsed as neither an interval nor
	// a bound is unreadable, not a qualitative expectation.
	if numberRe.MatchString(referenceText) {
		return StatusIndeterminate
	}

	// Qualitative: "Não Reagente", "Negativo", etc.
	if reference.NormalizeName(value) == reference.NormalizeName(referenceText) {
		return StatusNormal
	}
	return StatusAltered
}

// parseNumber pulls the first numeric token out of a raw value such as
// "14,2 g/dL".
func parseNumber(s string) (float64, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	return parseDecimal(m)
}

// parseDecimal parses a number that may use a comma decimal separator.
func parseDecimal(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ClassifyRow resolves an exam row's reference range and scores it. Range
// resolution order: clinic catalog (exact, then partial), then the range
// printed on the report itself, then none.
func ClassifyRow(row ai.ExamRow, catalog *reference.Catalog, position int) ExamResult {
	var refText, source string
	if catalog != nil {
		if e := catalog.Lookup(row.Name); e != nil {
			refText = e.IdealRange
			source = RangeSourceCustom
		}
	}
	if refText == "" {
		if inline := strings.TrimSpace(row.Reference); inline != "" {
			refText = inline
			source = RangeSourceDefault
		} else {
			source = RangeSourceNone
		}
	}

	status := StatusIndeterminate
	if refText != "" {
		status = Classify(row.Value, refText)
	}

	return ExamResult{
		Name:           strings.TrimSpace(row.Name),
		NormalizedName: reference.NormalizeName(row.Name),
		Value:          strings.TrimSpace(row.Value),
		Unit:           strings.TrimSpace(row.Unit),
		ReferenceText:  refText,
		Status:         status,
		RangeSource:    source,
		Position:       position,
	}
}

// ClassifyAll scores every exam row of an interpretation in order.
func ClassifyAll(rows []ai.ExamRow, catalog *reference.Catalog) []ExamResult {
	results := make([]ExamResult, 0, len(rows))
	for i, row := range rows {
		results = append(results, ClassifyRow(row, catalog, i))
	}
	return results
}
