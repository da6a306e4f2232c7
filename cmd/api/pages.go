package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pedroarca/censoapi/internal/data"
	"github.com/pedroarca/censoapi/internal/validator"
)

// templateData carries everything the page templates read.
type templateData struct {
	User           *data.User
	CanManageUsers bool
	CurrentYear    int

	Error       string
	Email       string
	FieldErrors map[string]string

	LastExtraction *time.Time
	Query          url.Values
	Estados        []string
	Metadata       data.MetaData
	Total          int
	Censo          []*data.Ingreso

	Users []*data.User
	Roles data.Roles
}

func (app *app) newTemplateData(r *http.Request) templateData {
	td := templateData{
		CurrentYear: time.Now().In(app.location).Year(),
		FieldErrors: map[string]string{},
		Query:       url.Values{},
	}

	if user := app.contextGetUser(r); !user.IsAnonymous() {
		td.User = user
		td.CanManageUsers = data.CanManageUsers(user.Role)
	}

	return td
}

// render executes a page into a buffer first so template errors become a clean 500.
func (app *app) render(w http.ResponseWriter, r *http.Request, status int, page string, td templateData) {
	ts, ok := app.templates[page]
	if !ok {
		app.serverErrorResponse(w, r, fmt.Errorf("the template %s does not exist", page))
		return
	}

	buf := new(bytes.Buffer)
	if err := ts.ExecuteTemplate(buf, "base", td); err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// loginPage shows the login form, or skips it for visitors already logged in.
func (app *app) loginPage(w http.ResponseWriter, r *http.Request) {
	if !app.contextGetUser(r).IsAnonymous() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	app.render(w, r, http.StatusOK, "login.tmpl", app.newTemplateData(r))
}

func (app *app) loginPagePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4096)
	if err := r.ParseForm(); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")

	td := app.newTemplateData(r)
	td.Email = email

	v := validator.New()
	if data.ValidateLogin(v, email, password); !v.IsValid() {
		td.FieldErrors = v.Errors
		app.render(w, r, http.StatusUnprocessableEntity, "login.tmpl", td)
		return
	}

	_, session, err := app.startSession(r.Context(), email, password)
	if err != nil {
		switch {
		case errors.Is(err, errInvalidCredentials):
			td.Error = "Correo o contraseña incorrectos."
			app.render(w, r, http.StatusUnauthorized, "login.tmpl", td)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.setSessionCookie(w, session)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// dashboardPage renders the admissions table with the same filters as GET /v1/censo.
func (app *app) dashboardPage(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	td := app.newTemplateData(r)
	td.Query = qs

	ingresos, err := app.models.Censo.GetAll(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	td.Total = len(ingresos)
	td.Estados = data.DistinctStatuses(ingresos)

	td.LastExtraction, err = app.models.Extraction.Latest(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	v := validator.New()
	filter := app.readCensoFilter(qs, v)
	if !v.IsValid() {
		td.FieldErrors = v.Errors
		app.render(w, r, http.StatusUnprocessableEntity, "dashboard.tmpl", td)
		return
	}

	td.Censo, td.Metadata = filter.Apply(ingresos)

	app.render(w, r, http.StatusOK, "dashboard.tmpl", td)
}

// usersPage lists the accounts the current user may manage.
func (app *app) usersPage(w http.ResponseWriter, r *http.Request) {
	actor := app.contextGetUser(r)

	filter := data.UserFilter{
		Filter: data.Filter{Page: 1, PageSize: 100, SortBy: "id", SortSafeList: data.UserSortSafelist},
	}
	if actor.Role != data.RoleAdmin {
		filter.ExcludeRoles = []int64{data.RoleAdmin}
	}

	users, _, err := app.models.Users.GetAll(r.Context(), filter)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	roles, err := app.models.Roles.GetAll(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	td := app.newTemplateData(r)
	td.Users = users
	td.Roles = data.VisibleRoles(actor.Role, roles)

	app.render(w, r, http.StatusOK, "users.tmpl", td)
}

func (app *app) logoutPage(w http.ResponseWriter, r *http.Request) {
	if err := app.endSession(r); err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	app.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
