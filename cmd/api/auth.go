package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pedroarca/censoapi/internal/data"
	"github.com/pedroarca/censoapi/internal/validator"
)

var errInvalidCredentials = errors.New("invalid credentials")

// startSession checks the credentials and opens a session for the user.
func (app *app) startSession(ctx context.Context, email, password string) (*data.User, *data.Session, error) {
	user, err := app.models.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			data.CompareDummy(password)
			return nil, nil, errInvalidCredentials
		}
		return nil, nil, err
	}

	match, err := user.Password.Matches(password)
	if err != nil {
		return nil, nil, err
	}
	if !match {
		return nil, nil, errInvalidCredentials
	}

	session, err := app.models.Sessions.New(ctx, user.ID, app.config.Session.TTL)
	if err != nil {
		return nil, nil, err
	}

	if err := app.models.Users.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, nil, err
	}
	now := time.Now()
	user.LastLogin = &now

	return user, session, nil
}

func (app *app) setSessionCookie(w http.ResponseWriter, session *data.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.config.Session.CookieName,
		Value:    session.Plaintext,
		Path:     "/",
		MaxAge:   int(app.config.Session.TTL.Seconds()),
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   app.config.Env == "production",
		SameSite: http.SameSiteLaxMode,
	})
}

func (app *app) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.config.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   app.config.Env == "production",
		SameSite: http.SameSiteLaxMode,
	})
}

// endSession deletes the session presented with the request, if any.
func (app *app) endSession(r *http.Request) error {
	token, ok := app.sessionToken(r)
	if !ok || token == "" {
		return nil
	}
	return app.models.Sessions.Delete(r.Context(), token)
}

// loginHandler exchanges credentials for a session cookie.
func (app *app) loginHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := app.readJSON(w, r, &input); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	if data.ValidateLogin(v, input.Email, input.Password); !v.IsValid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	user, session, err := app.startSession(r.Context(), input.Email, input.Password)
	if err != nil {
		switch {
		case errors.Is(err, errInvalidCredentials):
			app.invalidCredentialsResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.setSessionCookie(w, session)

	err = app.writeJSON(w, http.StatusOK, envelope{"user": user, "expires_at": session.ExpiresAt}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// meHandler returns the user owning the current session.
func (app *app) meHandler(w http.ResponseWriter, r *http.Request) {
	user := app.contextGetUser(r)

	if err := app.writeJSON(w, http.StatusOK, envelope{"user": user}, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// logoutHandler ends the current session. It succeeds without a session too.
func (app *app) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.endSession(r); err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	app.clearSessionCookie(w)

	if err := app.writeJSON(w, http.StatusOK, envelope{"message": "logged out successfully"}, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
