// File: cmd/api/users.go
package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pedroarca/censoapi/internal/data"
	"github.com/pedroarca/censoapi/internal/validator"
)

// welcomeEmail is the data rendered into user_welcome.tmpl.
type welcomeEmail struct {
	Name     string
	Email    string
	Role     string
	LoginURL string
}

// listUsersHandler lists active accounts. Supervisors never see administrators.
func (app *app) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query() // get the query parameters
	v := validator.New()   // validator for the query parameters

	actor := app.contextGetUser(r) // the supervisor or admin asking

	filter := data.UserFilter{
		Filter: app.readFilters(query, "id", 50, data.UserSortSafelist, v),
		Name:   app.readString(query, "name", ""),
		Email:  app.readString(query, "email", ""),
		Role:   app.readInt(query, "role", 0, v),
	}
	if actor.Role != data.RoleAdmin {
		filter.ExcludeRoles = []int64{data.RoleAdmin} // administrators stay hidden
	}

	if data.ValidateFilters(v, filter.Filter); !v.IsValid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	roles, err := app.models.Roles.GetAll(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	users, metadata, err := app.models.Users.GetAll(r.Context(), filter)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	env := envelope{
		"users":    users,
		"roles":    data.VisibleRoles(actor.Role, roles), // roles the actor may assign
		"metadata": metadata,
	}
	if err := app.writeJSON(w, http.StatusOK, env, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// createUserHandler creates an account and mails the new user a welcome message.
func (app *app) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     int64  `json:"role"`
	}

	if err := app.readJSON(w, r, &input); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	actor := app.contextGetUser(r)
	if !data.CanManage(actor.Role, input.Role) { // supervisors cannot create administrators
		app.notPermittedResponse(w, r)
		return
	}

	roles, err := app.models.Roles.GetAll(r.Context()) // needed to validate the role id
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	// Copy the data from the input into a new User struct
	user := &data.User{
		Name:  input.Name,
		Email: input.Email,
		Role:  input.Role,
	}

	v := validator.New()
	data.ValidatePasswordPlaintext(v, input.Password)
	if data.ValidateUser(v, user, roles); !v.IsValid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	if err := user.Password.Set(input.Password); err != nil { // salt and bcrypt hash
		app.serverErrorResponse(w, r, err)
		return
	}

	if err := app.models.Users.Insert(r.Context(), user); err != nil {
		switch {
		case errors.Is(err, data.ErrDuplicateEmail):
			v.AddError("email", "a user with this email address already exists")
			app.failedValidationResponse(w, r, v.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.logger.Info("user created",
		"user_id", user.ID,
		"role", user.Role,
		"created_by", actor.ID,
	)

	if app.mailer != nil {
		email := welcomeEmail{
			Name:     user.Name,
			Email:    user.Email,
			Role:     user.RoleName,
			LoginURL: app.config.BaseURL + "/",
		}
		// Send the welcome email without holding up the response
		app.background(func() {
			if err := app.mailer.Send(email.Email, "user_welcome.tmpl", email); err != nil {
				app.logger.Error("failed to send welcome email", "user_id", user.ID, "error", err)
			}
		})
	}

	headers := make(http.Header)                                        // create a new header map
	headers.Set("Location", fmt.Sprintf("/v1/admin/users/%d", user.ID)) // location of the new user

	if err := app.writeJSON(w, http.StatusCreated, envelope{"user": user}, headers); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateUserHandler replaces name, email and role. An empty password keeps the current one.
func (app *app) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     int64  `json:"role"`
	}

	if err := app.readJSON(w, r, &input); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, err := app.models.Users.GetByID(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	// both the current and the requested role must be manageable by the actor
	actor := app.contextGetUser(r)
	if !data.CanManage(actor.Role, user.Role) || !data.CanManage(actor.Role, input.Role) {
		app.notPermittedResponse(w, r)
		return
	}

	roles, err := app.models.Roles.GetAll(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	user.Name = input.Name
	user.Email = input.Email
	user.Role = input.Role

	v := validator.New()
	if input.Password != "" { // empty keeps the stored hash
		data.ValidatePasswordPlaintext(v, input.Password)
	}
	if data.ValidateUser(v, user, roles); !v.IsValid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	if input.Password != "" {
		if err := user.Password.Set(input.Password); err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}
	}

	if err := app.models.Users.Update(r.Context(), user); err != nil {
		switch {
		case errors.Is(err, data.ErrDuplicateEmail):
			v.AddError("email", "a user with this email address already exists")
			app.failedValidationResponse(w, r, v.Errors)
		case errors.Is(err, data.ErrEditConflict): // changed by someone else meanwhile
			app.editConflictResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	// fill in the role name for the response
	for _, role := range roles {
		if role.ID == user.Role {
			user.RoleName = role.Name
		}
	}

	if err := app.writeJSON(w, http.StatusOK, envelope{"user": user}, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteUserHandler soft deletes an account and ends its sessions.
func (app *app) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	actor := app.contextGetUser(r)
	if actor.ID == id {
		v := validator.New()
		v.AddError("id", "you cannot delete your own account")
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	user, err := app.models.Users.GetByID(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	if !data.CanManage(actor.Role, user.Role) {
		app.notPermittedResponse(w, r)
		return
	}

	if err := app.models.Users.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	if err := app.models.Sessions.DeleteAllForUser(r.Context(), id); err != nil { // log the user out everywhere
		app.serverErrorResponse(w, r, err)
		return
	}

	app.logger.Info("user deleted", "user_id", id, "deleted_by", actor.ID)

	if err := app.writeJSON(w, http.StatusOK, envelope{"message": "user successfully deleted"}, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
