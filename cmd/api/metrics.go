package main

import (
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pedroarca/censoapi/internal/data"
)

// metricsHandler runs the dashboard metric procedures concurrently.
func (app *app) metricsHandler(w http.ResponseWriter, r *http.Request) {
	var (
		docs    []data.MetricDoc
		general []data.MetricGeneral
		byMonth []data.MetricMonth
		ia      []data.MetricIA
	)

	g, ctx := errgroup.WithContext(r.Context())

	g.Go(func() (err error) {
		docs, err = app.models.Metrics.Docs(ctx)
		return err
	})
	g.Go(func() (err error) {
		general, err = app.models.Metrics.General(ctx)
		return err
	})
	g.Go(func() (err error) {
		byMonth, err = app.models.Metrics.ByMonth(ctx)
		return err
	})
	g.Go(func() (err error) {
		ia, err = app.models.Metrics.IA(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	env := envelope{
		"docs":           docs,
		"general":        general,
		"censo_by_month": byMonth,
		"ia":             ia,
		"summary":        data.Summarize(general),
	}
	if err := app.writeJSON(w, http.StatusOK, env, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// extractionHandler reports when the RPA last loaded data.
func (app *app) extractionHandler(w http.ResponseWriter, r *http.Request) {
	latest, err := app.models.Extraction.Latest(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	var extraction map[string]*time.Time
	if latest != nil {
		extraction = map[string]*time.Time{"fechainsert": latest}
	}

	if err := app.writeJSON(w, http.StatusOK, envelope{"extraction": extraction}, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
