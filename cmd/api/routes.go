// Filename: /cmd/api/routes.go
// Description: connects the routes with the handlers

package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/pedroarca/censoapi/internal/data"
)

func (app *app) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	managers := []int64{data.RoleSupervisor, data.RoleAdmin}

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)

	// Authentication
	router.HandlerFunc(http.MethodPost, "/v1/auth/login", app.loginHandler)
	router.HandlerFunc(http.MethodGet, "/v1/auth/me", app.requireAuthenticatedUser(app.meHandler))
	router.HandlerFunc(http.MethodPost, "/v1/auth/logout", app.logoutHandler)

	// Censo
	router.HandlerFunc(http.MethodGet, "/v1/censo", app.requireAuthenticatedUser(app.listCensoHandler))
	router.HandlerFunc(http.MethodGet, "/v1/censo/estados", app.requireAuthenticatedUser(app.listEstadosHandler))
	router.HandlerFunc(http.MethodGet, "/v1/censo/ingresos/:ainid/documents", app.requireAuthenticatedUser(app.censoDocumentsHandler))
	router.HandlerFunc(http.MethodPost, "/v1/censo/ingresos/:ainid/reprocess", app.requireAuthenticatedUser(app.reprocessHandler))
	router.HandlerFunc(http.MethodPost, "/v1/censo/export", app.requireAuthenticatedUser(app.exportCensoHandler))
	router.HandlerFunc(http.MethodGet, "/v1/exports", app.requireAuthenticatedUser(app.listExportsHandler))

	// Metrics
	router.HandlerFunc(http.MethodGet, "/v1/dashboard/metrics", app.requireAuthenticatedUser(app.metricsHandler))
	router.HandlerFunc(http.MethodGet, "/v1/rpa/extraction", app.requireAuthenticatedUser(app.extractionHandler))

	// User administration
	router.HandlerFunc(http.MethodGet, "/v1/admin/users", app.requireRole(app.listUsersHandler, managers...))
	router.HandlerFunc(http.MethodPost, "/v1/admin/users", app.requireRole(app.createUserHandler, managers...))
	router.HandlerFunc(http.MethodPut, "/v1/admin/users/:id", app.requireRole(app.updateUserHandler, managers...))
	router.HandlerFunc(http.MethodDelete, "/v1/admin/users/:id", app.requireRole(app.deleteUserHandler, managers...))

	// Pages
	router.HandlerFunc(http.MethodGet, "/", app.loginPage)
	router.HandlerFunc(http.MethodPost, "/", app.loginPagePost)
	router.HandlerFunc(http.MethodGet, "/dashboard", app.requirePageSession(app.dashboardPage))
	router.HandlerFunc(http.MethodGet, "/admin/user", app.requirePageRole(app.usersPage, managers...))
	router.HandlerFunc(http.MethodPost, "/logout", app.logoutPage)

	return app.recoverPanic(app.requestID(app.logRequest(app.blockProbes(app.enableCORS(app.rateLimit(app.authenticate(app.gateAdminPages(router))))))))
}
