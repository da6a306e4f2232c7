package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pedroarca/censoapi/internal/data"
	"github.com/pedroarca/censoapi/internal/sheets"
	"github.com/pedroarca/censoapi/internal/validator"
)

// readCensoFilter reads the admissions table filters shared by the API and the dashboard page.
func (app *app) readCensoFilter(qs url.Values, v *validator.Validator) data.CensoFilter {
	filter := data.CensoFilter{
		Filter:   app.readFilters(qs, "-ainfecing", 20, data.CensoSortSafelist, v),
		Ingreso:  app.readString(qs, "ingreso", ""),
		Estado:   app.readString(qs, "estado", ""),
		Search:   app.readString(qs, "q", ""),
		Location: app.location,
	}

	filter.Admitted = data.DateRange{
		From: app.readDate(qs, "ingreso_from", v),
		To:   app.readDate(qs, "ingreso_to", v),
	}
	filter.Processed = data.DateRange{
		From: app.readDate(qs, "procesado_from", v),
		To:   app.readDate(qs, "procesado_to", v),
	}

	data.ValidateCensoFilter(v, filter)
	return filter
}

// listCensoHandler returns one page of the filtered admissions table.
func (app *app) listCensoHandler(w http.ResponseWriter, r *http.Request) {
	v := validator.New()
	filter := app.readCensoFilter(r.URL.Query(), v)
	if !v.IsValid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	ingresos, err := app.models.Censo.GetAll(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	page, metadata := filter.Apply(ingresos)

	env := envelope{"censo": page, "metadata": metadata, "total": len(ingresos)}
	if err := app.writeJSON(w, http.StatusOK, env, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listEstadosHandler returns the statuses present in the censo, for the filter dropdown.
func (app *app) listEstadosHandler(w http.ResponseWriter, r *http.Request) {
	ingresos, err := app.models.Censo.GetAll(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if err := app.writeJSON(w, http.StatusOK, envelope{"estados": data.DistinctStatuses(ingresos)}, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *app) censoDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	ainid, err := app.readIDParam(r, "ainid")
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	documents, err := app.models.Censo.Documents(r.Context(), ainid)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if err := app.writeJSON(w, http.StatusOK, envelope{"ainid": ainid, "documents": documents}, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// reprocessHandler asks the pipeline to run an admission again.
func (app *app) reprocessHandler(w http.ResponseWriter, r *http.Request) {
	ainid, err := app.readIDParam(r, "ainid")
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	if err := app.models.Censo.Reprocess(r.Context(), ainid); err != nil {
		app.logError(r, fmt.Errorf("reprocess ingreso %d: %w", ainid, err))
		env := envelope{"success": false, "error": fmt.Sprintf("No fue posible reprocesar el ingreso %d.", ainid)}
		if err := app.writeJSON(w, http.StatusInternalServerError, env, nil); err != nil {
			app.logError(r, err)
		}
		return
	}

	app.logger.Info("ingreso reprocessed",
		"ainid", ainid,
		"user_id", app.contextGetUser(r).ID,
		"request_id", app.contextGetRequestID(r),
	)

	env := envelope{"success": true, "message": fmt.Sprintf("Ingreso %d reprocesado correctamente.", ainid)}
	if err := app.writeJSON(w, http.StatusOK, env, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// exportCensoHandler writes the filtered admissions to a new sheet of the configured spreadsheet.
func (app *app) exportCensoHandler(w http.ResponseWriter, r *http.Request) {
	if app.exporter == nil {
		app.serviceUnavailableResponse(w, r, "Google Sheets export is not configured")
		return
	}

	var input struct {
		SheetName     string `json:"sheet_name"`
		Ingreso       string `json:"ingreso"`
		Estado        string `json:"estado"`
		Search        string `json:"q"`
		IngresoFrom   string `json:"ingreso_from"`
		IngresoTo     string `json:"ingreso_to"`
		ProcesadoFrom string `json:"procesado_from"`
		ProcesadoTo   string `json:"procesado_to"`
		Sort          string `json:"sort"`
	}

	if err := app.readJSON(w, r, &input); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	qs := url.Values{}
	for key, value := range map[string]string{
		"ingreso":        input.Ingreso,
		"estado":         input.Estado,
		"q":              input.Search,
		"ingreso_from":   input.IngresoFrom,
		"ingreso_to":     input.IngresoTo,
		"procesado_from": input.ProcesadoFrom,
		"procesado_to":   input.ProcesadoTo,
		"sort":           input.Sort,
	} {
		if value != "" {
			qs.Set(key, value)
		}
	}

	v := validator.New()
	filter := app.readCensoFilter(qs, v)
	v.Check(len(input.SheetName) <= 100, "sheet_name", "must not be more than 100 characters long")
	if !v.IsValid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	ingresos, err := app.models.Censo.GetAll(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	rows := filter.Select(ingresos)

	user := app.contextGetUser(r)

	export := &data.ExportHistory{
		UserID:        user.ID,
		SpreadsheetID: app.exporter.SpreadsheetID(),
		SheetName:     input.SheetName,
		Status:        data.ExportPending,
	}
	if export.SheetName == "" {
		export.SheetName = sheets.GenerateSheetName(filter.Admitted, time.Now().In(app.location))
	}

	if err := app.models.Exports.Insert(r.Context(), export); err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	exportedBy := fmt.Sprintf("%s (%s)", user.Name, user.Email)
	rowCount, err := app.exporter.ExportCenso(r.Context(), export.SheetName, rows, exportedBy)
	if err != nil {
		export.Status = data.ExportFailed
		export.ErrorMessage = err.Error()
		if updateErr := app.models.Exports.Update(r.Context(), export); updateErr != nil {
			err = errors.Join(err, updateErr)
		}
		app.serverErrorResponse(w, r, err)
		return
	}

	export.Status = data.ExportCompleted
	export.RowCount = int64(rowCount)
	if err := app.models.Exports.Update(r.Context(), export); err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	env := envelope{
		"export":  export,
		"message": fmt.Sprintf("Se exportaron %d ingresos a la hoja '%s'", rowCount, export.SheetName),
	}
	if err := app.writeJSON(w, http.StatusCreated, env, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
