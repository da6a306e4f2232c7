// Filename: internal/data/censo.go
package data

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// DocumentCounts summarises the validation state of an admission's documents.
type DocumentCounts struct {
	Validated int64 `json:"validados"`
	Invalid   int64 `json:"invalidos"`
	Total     int64 `json:"totales"`
}

// Ingreso is one admission row produced by sp_arca_metrics_censo.
type Ingreso struct {
	AINID           int64          `json:"ainid"`
	Consecutive     int64          `json:"ainconsec"`
	AdmittedAt      *time.Time     `json:"ainfecing"`
	PatientDocument string         `json:"pacnumdoc"`
	PatientName     string         `json:"gpanomcom"`
	Status          string         `json:"estado"`
	Documents       DocumentCounts `json:"documentos"`
	Accuracy        float64        `json:"exactitud"`
	Observations    []string       `json:"observacion"`
	ProcessedAt     *time.Time     `json:"fechainsert"`
	ProcessTime     string         `json:"timeprocess"`
}

// CensoDocument is one classified document of an admission.
type CensoDocument struct {
	Document       string     `json:"documento"`
	Classification string     `json:"clasificacion"`
	Path           string     `json:"ruta"`
	Status         string     `json:"estado"`
	ProcessedAt    *time.Time `json:"fecha_proceso"`
}

// CensoModel calls the censo stored procedures.
type CensoModel struct {
	DB *sql.DB
}

// splitObservations turns the comma separated observation text into a list.
func splitObservations(raw string) []string {
	observations := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			observations = append(observations, part)
		}
	}
	return observations
}

// GetAll returns every admission known to the censo procedure.
func (m CensoModel) GetAll(ctx context.Context) ([]*Ingreso, error) {
	query := `
		SELECT ainid, ainconsec, ainfecing, pacnumdoc, gpanomcom, estado,
		       procesado, parciales, total, exactitud, observacion, fechainsert, timeprocess
		FROM sp_arca_metrics_censo()`

	ctx, cancel := withTimeout(ctx, procedureTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ingresos := []*Ingreso{}
	for rows.Next() {
		var (
			ingreso                   Ingreso
			admittedAt, processedAt   sql.NullTime
			document, name, status    sql.NullString
			observation, processTime  sql.NullString
			validated, invalid, total sql.NullInt64
			accuracy                  sql.NullFloat64
		)
		err := rows.Scan(
			&ingreso.AINID,
			&ingreso.Consecutive,
			&admittedAt,
			&document,
			&name,
			&status,
			&validated,
			&invalid,
			&total,
			&accuracy,
			&observation,
			&processedAt,
			&processTime,
		)
		if err != nil {
			return nil, err
		}
		ingreso.AdmittedAt = nullTime(admittedAt)
		ingreso.ProcessedAt = nullTime(processedAt)
		ingreso.PatientDocument = document.String
		ingreso.PatientName = name.String
		ingreso.Status = status.String
		ingreso.Documents = DocumentCounts{
			Validated: validated.Int64,
			Invalid:   invalid.Int64,
			Total:     total.Int64,
		}
		ingreso.Accuracy = accuracy.Float64
		ingreso.Observations = splitObservations(observation.String)
		ingreso.ProcessTime = processTime.String
		ingresos = append(ingresos, &ingreso)
	}

	return ingresos, rows.Err()
}

// Documents returns the processed documents of one admission.
func (m CensoModel) Documents(ctx context.Context, ainid int64) ([]*CensoDocument, error) {
	query := `
		SELECT documento, clasificacion, ruta, estado, fecha_proceso
		FROM sp_arca_censo_process($1)`

	ctx, cancel := withTimeout(ctx, procedureTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, ainid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	documents := []*CensoDocument{}
	for rows.Next() {
		var (
			doc                                CensoDocument
			name, classification, path, status sql.NullString
			processedAt                        sql.NullTime
		)
		if err := rows.Scan(&name, &classification, &path, &status, &processedAt); err != nil {
			return nil, err
		}
		doc.Document = name.String
		doc.Classification = classification.String
		doc.Path = path.String
		doc.Status = status.String
		doc.ProcessedAt = nullTime(processedAt)
		documents = append(documents, &doc)
	}

	return documents, rows.Err()
}

// Reprocess asks the pipeline to run an admission through extraction again.
func (m CensoModel) Reprocess(ctx context.Context, ainid int64) error {
	ctx, cancel := withTimeout(ctx, procedureTimeout)
	defer cancel()

	_, err := m.DB.ExecContext(ctx, `CALL sp_arca_reprocesar_web($1)`, ainid)
	return err
}

// ExtractionModel reads the RPA monitoring table.
type ExtractionModel struct {
	DB *sql.DB
}

// Latest returns when the RPA last inserted data, or nil if it never ran.
func (m ExtractionModel) Latest(ctx context.Context) (*time.Time, error) {
	query := `
		SELECT fechainsert
		FROM monitoreo_rpa
		ORDER BY fechainsert DESC
		LIMIT 1`

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	var latest time.Time
	err := m.DB.QueryRowContext(ctx, query).Scan(&latest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &latest, nil
}
