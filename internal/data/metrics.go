// Filename: internal/data/metrics.go
package data

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MetricDoc is the document-level summary from sp_arca_metrics_doc.
type MetricDoc struct {
	Processed      int64   `json:"procesado"`
	Partial        int64   `json:"parciales"`
	ComplianceRate float64 `json:"tasa_cumplimiento"`
}

// MetricGeneral is an admission count per pipeline state.
type MetricGeneral struct {
	Name  string `json:"nombre"`
	Total int64  `json:"total"`
}

// MetricMonth is the number of admissions received in a month.
type MetricMonth struct {
	Month string `json:"mes"`
	Label string `json:"label"`
	Year  string `json:"year"`
	Total int64  `json:"total"`
}

// MetricIA is the extraction quality recorded for one admission.
type MetricIA struct {
	AINID      int64   `json:"ainid"`
	Accuracy   float64 `json:"exactitud"`
	Confidence float64 `json:"confianza"`
	Compliance float64 `json:"cumplimiento"`
}

// MetricsSummary is derived from the general metrics for the dashboard cards.
type MetricsSummary struct {
	Pending    int64   `json:"pendientes"`
	Processed  int64   `json:"procesados"`
	Incomplete int64   `json:"incompletos"`
	Accuracy   float64 `json:"exactitud"`
}

var monthNames = [...]string{"Ene", "Feb", "Mar", "Abr", "May", "Jun", "Jul", "Ago", "Sep", "Oct", "Nov", "Dic"}

// MonthLabel turns "2025-03" into "Mar 2025". Unparseable input is returned as is.
func MonthLabel(month string) (label, year string) {
	y, m, ok := strings.Cut(month, "-")
	if !ok {
		return month, ""
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 1 || n > 12 {
		return month, y
	}
	return fmt.Sprintf("%s %s", monthNames[n-1], y), y
}

// Summarize folds the per-state counts into the dashboard summary. Pending counts
// both "Pendiente" and "Descargado" rows.
func Summarize(general []MetricGeneral) MetricsSummary {
	var s MetricsSummary
	for _, g := range general {
		switch strings.ToUpper(strings.TrimSpace(g.Name)) {
		case "PENDIENTE", "DESCARGADO":
			s.Pending += g.Total
		case "PROCESADO":
			s.Processed += g.Total
		case "INCOMPLETO":
			s.Incomplete += g.Total
		}
	}
	if done := s.Processed + s.Incomplete; done > 0 {
		s.Accuracy = math.Round(float64(s.Processed)/float64(done)*10000) / 100
	}
	return s
}

// MetricsModel runs the metric procedures.
type MetricsModel struct {
	DB *sql.DB
}

// Docs returns the document summary rows.
func (m MetricsModel) Docs(ctx context.Context) ([]MetricDoc, error) {
	query := `
		SELECT procesado, parciales, tasa_cumplimiento
		FROM sp_arca_metrics_doc()`

	ctx, cancel := withTimeout(ctx, procedureTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []MetricDoc{}
	for rows.Next() {
		var (
			doc              MetricDoc
			processed, parts sql.NullInt64
			rate             sql.NullFloat64
		)
		if err := rows.Scan(&processed, &parts, &rate); err != nil {
			return nil, err
		}
		doc.Processed = processed.Int64
		doc.Partial = parts.Int64
		doc.ComplianceRate = rate.Float64
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// General returns the admission counts per state.
func (m MetricsModel) General(ctx context.Context) ([]MetricGeneral, error) {
	query := `
		SELECT nombre, total
		FROM sp_arca_metrics_general()`

	ctx, cancel := withTimeout(ctx, procedureTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	general := []MetricGeneral{}
	for rows.Next() {
		var g MetricGeneral
		var total sql.NullInt64
		if err := rows.Scan(&g.Name, &total); err != nil {
			return nil, err
		}
		g.Total = total.Int64
		general = append(general, g)
	}
	return general, rows.Err()
}

// ByMonth returns admissions per month.
func (m MetricsModel) ByMonth(ctx context.Context) ([]MetricMonth, error) {
	query := `
		SELECT mes, total
		FROM sp_arca_metrics_censoxmes()`

	ctx, cancel := withTimeout(ctx, procedureTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	months := []MetricMonth{}
	for rows.Next() {
		var month MetricMonth
		var total sql.NullInt64
		if err := rows.Scan(&month.Month, &total); err != nil {
			return nil, err
		}
		month.Total = total.Int64
		month.Label, month.Year = MonthLabel(month.Month)
		months = append(months, month)
	}
	return months, rows.Err()
}

// IA returns the per-admission extraction quality.
func (m MetricsModel) IA(ctx context.Context) ([]MetricIA, error) {
	query := `
		SELECT ainid, exactitud, confianza, cumplimiento
		FROM metric_ia`

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metrics := []MetricIA{}
	for rows.Next() {
		var (
			metric                           MetricIA
			accuracy, confidence, compliance sql.NullFloat64
		)
		if err := rows.Scan(&metric.AINID, &accuracy, &confidence, &compliance); err != nil {
			return nil, err
		}
		metric.Accuracy = accuracy.Float64
		metric.Confidence = confidence.Float64
		metric.Compliance = compliance.Float64
		metrics = append(metrics, metric)
	}
	return metrics, rows.Err()
}
