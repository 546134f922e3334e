package report

import (
	"bytes"
	"fmt"
	"html/template"
)

// printTemplate is the print-ready share view of a report. Styling is inlined
// so the exported file is self-contained.
var printTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"statusLabel": statusLabel,
}).Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>Análise de Exames{{if .Report.PatientName}} — {{.Report.PatientName}}{{end}}</title>
<style>
  body { font-family: Georgia, serif; max-width: 720px; margin: 2rem auto; color: #1a1a1a; }
  h1 { font-size: 1.4rem; border-bottom: 2px solid #1a1a1a; padding-bottom: .5rem; }
  h2 { font-size: 1.1rem; margin-top: 1.6rem; }
  table { width: 100%; border-collapse: collapse; margin-top: .8rem; }
  th, td { text-align: left; padding: .4rem .6rem; border-bottom: 1px solid #ccc; }
  th { background: #f2f2f2; }
  .status-high, .status-low, .status-altered { color: #a40000; font-weight: bold; }
  .status-indeterminate { color: #666; }
  .meta { color: #444; margin: .2rem 0; }
  ul { padding-left: 1.4rem; }
  @media print { body { margin: 0; } }
</style>
</head>
<body>
<h1>Análise de Exames Laboratoriais</h1>
{{if .Report.PatientName}}<p class="meta">Paciente: {{.Report.PatientName}}</p>{{end}}
{{if .Report.PatientAge}}<p class="meta">Idade: {{.Report.PatientAge}}</p>{{end}}
{{if .Report.PatientSex}}<p class="meta">Sexo: {{.Report.PatientSex}}</p>{{end}}
<p class="meta">Emitido em {{.Report.CreatedAt.Format "02/01/2006"}}</p>

<h2>Resultados</h2>
<table>
  <thead>
    <tr><th>Exame</th><th>Resultado</th><th>Unidade</th><th>Referência</th><th>Situação</th></tr>
  </thead>
  <tbody>
  {{range .Exams}}
    <tr>
      <td>{{.Name}}</td>
      <td>{{.Value}}</td>
      <td>{{.Unit}}</td>
      <td>{{.ReferenceText}}</td>
      <td class="status-{{.Status}}">{{statusLabel .Status}}</td>
    </tr>
  {{end}}
  </tbody>
</table>

{{if .Report.Summary}}
<h2>Resumo</h2>
<p>{{.Report.Summary}}</p>
{{end}}

{{if .Report.Prescriptions}}
<h2>Prescrições</h2>
<ul>
{{range .Report.Prescriptions}}<li>{{.Text}}</li>
{{end}}</ul>
{{end}}

{{if .Report.Orientations}}
<h2>Orientações</h2>
<ul>
{{range .Report.Orientations}}<li>{{.Text}}</li>
{{end}}</ul>
{{end}}
</body>
</html>
`))

// renderHTML renders the print-ready document for the view.
func renderHTML(view *View) ([]byte, error) {
	var buf bytes.Buffer
	if err := printTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}
