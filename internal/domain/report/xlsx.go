package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

var statusLabels = map[string]string{
	"normal":        "Normal",
	"high":          "Elevado",
	"low":           "Baixo",
	"altered":       "Alterado",
	"indeterminate": "Indeterminado",
}

// renderXLSX builds an exam-table workbook for the view.
func renderXLSX(view *View) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Exames"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// Drop the default sheet excelize creates.
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	write(1, 1, "Paciente")
	write(2, 1, view.Report.PatientName)
	write(1, 2, "Idade")
	write(2, 2, view.Report.PatientAge)
	write(1, 3, "Sexo")
	write(2, 3, view.Report.PatientSex)

	headers := []string{"Exame", "Resultado", "Unidade", "Referência", "Situação"}
	const headerRow = 5
	for i, h := range headers {
		write(i+1, headerRow, h)
	}

	row := headerRow + 1
	for _, exam := range view.Exams {
		write(1, row, exam.Name)
		write(2, row, exam.Value)
		write(3, row, exam.Unit)
		write(4, row, exam.ReferenceText)
		write(5, row, statusLabel(exam.Status))
		row++
	}

	if view.Report.Summary != "" {
		row++
		write(1, row, "Resumo")
		write(2, row, view.Report.Summary)
	}

	_ = f.SetColWidth(sheet, "A", "A", 32)
	_ = f.SetColWidth(sheet, "B", "B", 16)
	_ = f.SetColWidth(sheet, "C", "C", 12)
	_ = f.SetColWidth(sheet, "D", "D", 24)
	_ = f.SetColWidth(sheet, "E", "E", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func statusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}
