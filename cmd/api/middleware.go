package main

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pedroarca/censoapi/internal/data"
	"github.com/pedroarca/censoapi/internal/validator"
	"golang.org/x/time/rate"
)

// Middleware to close connection when an unexpected panic occurs
func (app *app) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil { // nil unless the handler panicked
				w.Header().Set("Connection", "close")                // close the connection
				app.serverErrorResponse(w, r, fmt.Errorf("%s", err)) // log the error and send a 500 response
			}
		}()
		next.ServeHTTP(w, r) // call the next handler in the chain
	})
}

// requestID tags each request with an id, reusing a well-formed X-Request-ID from the caller.
func (app *app) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString() // missing or not a uuid, make our own
		}

		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, app.contextSetRequestID(r, id))
	})
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func (app *app) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r) // run the handler, then log what it did

		app.logger.Info("request",
			"method", r.Method,
			"uri", r.URL.RequestURI(),
			"status", rec.status,
			"duration", time.Since(start),
			"ip", app.clientIP(r),
			"request_id", app.contextGetRequestID(r),
		)
	})
}

// blockProbes rejects requests for paths vulnerability scanners look for.
func (app *app) blockProbes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.ToLower(r.URL.Path) // scanners vary the case

		for _, pattern := range app.dynamic.Load().BlockedPatterns {
			if strings.Contains(path, strings.ToLower(pattern)) {
				app.logger.Warn("blocked probe request",
					"ip", app.clientIP(r),
					"path", r.URL.Path,
					"user_agent", r.UserAgent(),
				)
				app.forbiddenResponse(w, r)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// Middleware for enabling cors
func (app *app) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")                        // response varies based on the Origin header
		w.Header().Add("Vary", "Access-Control-Request-Method") // and on the requested method for preflights

		origin := r.Header.Get("Origin") // get the Origin header from the request

		// only trusted origins get CORS headers
		if origin != "" && slices.Contains(app.dynamic.Load().TrustedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)      // echo the trusted origin
			w.Header().Set("Access-Control-Allow-Credentials", "true") // the session cookie has to travel

			// preflight
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET, POST, PUT, DELETE")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
				w.WriteHeader(http.StatusOK) // respond with 200 OK for preflight request
				return
			}
		}

		next.ServeHTTP(w, r) // call the next handler in the chain
	})
}

// Middleware to limit the rate of requests a client can make
func (app *app) rateLimit(next http.Handler) http.Handler {
	type client struct {
		limiter  *rate.Limiter // token bucket for the client
		lastSeen time.Time     // last request from the client
	}

	var mu sync.Mutex                   // protects the clients map
	clients := make(map[string]*client) // keyed by client address

	// Launch a goroutine to forget clients that went quiet
	if app.config.RateLimit.Enabled {
		go func() {
			for {
				time.Sleep(time.Minute) // run every minute

				mu.Lock()
				for ip, c := range clients {
					if time.Since(c.lastSeen) > 3*time.Minute {
						delete(clients, ip)
					}
				}
				mu.Unlock()
			}
		}()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !app.config.RateLimit.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		ip := app.clientIP(r) // connection address, proxy headers only from trusted proxies

		mu.Lock()
		c, found := clients[ip]
		if !found {
			c = &client{limiter: rate.NewLimiter(rate.Limit(app.config.RateLimit.RPS), app.config.RateLimit.Burst)}
			clients[ip] = c
		}
		c.lastSeen = time.Now() // update the last seen time

		if !c.limiter.Allow() {
			mu.Unlock() // unlock before writing the response
			app.rateLimitExceededResponse(w, r)
			return
		}
		mu.Unlock()

		next.ServeHTTP(w, r) // call the next handler in the chain
	})
}

// sessionToken returns the token presented in the Authorization header or the session cookie.
// ok is false when an Authorization header is present but malformed.
func (app *app) sessionToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || scheme != "Bearer" || token == "" {
			return "", false
		}
		return token, true
	}

	cookie, err := r.Cookie(app.config.Session.CookieName)
	if err != nil {
		return "", true
	}
	return cookie.Value, true
}

// isLogoutRequest reports whether r ends a session. Logging out never fails on
// a bad Authorization header.
func isLogoutRequest(r *http.Request) bool {
	return r.Method == http.MethodPost && (r.URL.Path == "/v1/auth/logout" || r.URL.Path == "/logout")
}

// authenticate loads the user owning the presented session. Requests without a
// valid session continue as the anonymous user.
func (app *app) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Authorization") // response depends on the session presented
		w.Header().Add("Vary", "Cookie")

		token, ok := app.sessionToken(r)
		if !ok {
			if isLogoutRequest(r) {
				next.ServeHTTP(w, app.contextSetUser(r, data.AnonymousUser))
				return
			}
			app.invalidAuthenticationTokenResponse(w, r)
			return
		}

		if token == "" {
			next.ServeHTTP(w, app.contextSetUser(r, data.AnonymousUser))
			return
		}

		v := validator.New()
		if data.ValidateTokenPlaintext(v, token); !v.IsValid() { // wrong shape, cannot be one of ours
			next.ServeHTTP(w, app.contextSetUser(r, data.AnonymousUser))
			return
		}

		user, err := app.models.Users.GetForToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, data.ErrRecordNotFound): // expired, revoked or unknown
				next.ServeHTTP(w, app.contextSetUser(r, data.AnonymousUser))
			default:
				app.serverErrorResponse(w, r, err)
			}
			return
		}

		next.ServeHTTP(w, app.contextSetUser(r, user))
	})
}

func (app *app) requireAuthenticatedUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if app.contextGetUser(r).IsAnonymous() {
			app.authenticationRequiredResponse(w, r)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// requireRole allows only users holding one of the given roles.
func (app *app) requireRole(next http.HandlerFunc, roles ...int64) http.HandlerFunc {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if !slices.Contains(roles, app.contextGetUser(r).Role) {
			app.notPermittedResponse(w, r)
			return
		}
		next.ServeHTTP(w, r)
	}
	return app.requireAuthenticatedUser(fn)
}

// requirePageSession sends visitors without a session back to the login page.
func (app *app) requirePageSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if app.contextGetUser(r).IsAnonymous() {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	}
}

// requirePageRole sends logged in users without one of the roles to the dashboard.
func (app *app) requirePageRole(next http.HandlerFunc, roles ...int64) http.HandlerFunc {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if !slices.Contains(roles, app.contextGetUser(r).Role) {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	}
	return app.requirePageSession(fn)
}

// gateAdminPages guards every page under /admin: visitors without a session go
// to the login page and users who cannot manage accounts go to the dashboard.
func (app *app) gateAdminPages(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin" && !strings.HasPrefix(r.URL.Path, "/admin/") {
			next.ServeHTTP(w, r) // not an admin page
			return
		}

		user := app.contextGetUser(r)
		switch {
		case user.IsAnonymous():
			http.Redirect(w, r, "/", http.StatusSeeOther)
		case !data.CanManageUsers(user.Role):
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		default:
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		}
	})
}
