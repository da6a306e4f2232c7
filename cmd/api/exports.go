// File: cmd/api/exports.go
// Description: export history handlers

package main

import (
	"net/http"

	"github.com/pedroarca/censoapi/internal/data"
	"github.com/pedroarca/censoapi/internal/validator"
)

// listExportsHandler lists spreadsheet exports. User managers see every export,
// everyone else only their own.
func (app *app) listExportsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	v := validator.New()

	user := app.contextGetUser(r)

	filter := data.ExportFilter{
		Filter: app.readFilters(query, "-created_at", 20, data.ExportSortSafelist, v),
		Status: app.readString(query, "status", ""),
	}
	if data.CanManageUsers(user.Role) {
		filter.UserID = app.readInt(query, "user_id", 0, v)
	} else {
		filter.UserID = user.ID
	}

	v.Check(validator.Permitted(filter.Status, "", data.ExportPending, data.ExportCompleted, data.ExportFailed), "status", "must be pending, completed or failed")
	if data.ValidateFilters(v, filter.Filter); !v.IsValid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	exports, metadata, err := app.models.Exports.GetAll(r.Context(), filter)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if err := app.writeJSON(w, http.StatusOK, envelope{"exports": exports, "metadata": metadata}, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
