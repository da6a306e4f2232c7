// File: internal/sheets/formatter.go
package sheets

import (
	"fmt"
	"strings"
	"time"

	"github.com/pedroarca/censoapi/internal/data"
)

const timestampLayout = "2006-01-02 15:04:05"

var censoHeader = []any{
	"Ingreso",
	"Fecha ingreso",
	"Documento paciente",
	"Paciente",
	"Estado",
	"Validados",
	"Invalidos",
	"Totales",
	"Exactitud",
	"Observaciones",
	"Fecha proceso",
	"Tiempo proceso",
}

// FormatCensoData turns admissions into sheet rows: a header, one row per
// admission, a per-status summary and the export information.
func FormatCensoData(ingresos []*data.Ingreso, exportedBy string, exportedAt time.Time, loc *time.Location) [][]any {
	rows := [][]any{censoHeader}

	for _, i := range ingresos {
		rows = append(rows, []any{
			i.Consecutive,
			formatTime(i.AdmittedAt, loc),
			i.PatientDocument,
			i.PatientName,
			i.Status,
			i.Documents.Validated,
			i.Documents.Invalid,
			i.Documents.Total,
			fmt.Sprintf("%.2f", i.Accuracy),
			strings.Join(i.Observations, ", "),
			formatTime(i.ProcessedAt, loc),
			i.ProcessTime,
		})
	}

	if len(ingresos) > 0 {
		rows = append(rows, []any{}, []any{"Resumen"})
		counts := map[string]int{}
		for _, i := range ingresos {
			counts[i.Status]++
		}
		for _, status := range data.DistinctStatuses(ingresos) {
			rows = append(rows, []any{status + ":", counts[status]})
		}
		rows = append(rows, []any{"Total ingresos:", len(ingresos)})
	}

	rows = append(rows,
		[]any{},
		[]any{"Informacion de exportacion"},
		[]any{"Exportado por:", exportedBy},
		[]any{"Fecha de exportacion:", exportedAt.Format(timestampLayout)},
	)

	return rows
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(timestampLayout)
}

// FormatDateRange describes a date range for display.
func FormatDateRange(r data.DateRange) string {
	const layout = "2006-01-02"

	switch {
	case r.From != nil && r.To != nil:
		return fmt.Sprintf("%s a %s", r.From.Format(layout), r.To.Format(layout))
	case r.From != nil:
		return r.From.Format(layout)
	case r.To != nil:
		return fmt.Sprintf("Hasta %s", r.To.Format(layout))
	default:
		return "Todas las fechas"
	}
}
