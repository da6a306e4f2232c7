// File: internal/data/users.go
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pedroarca/censoapi/internal/validator"
	"golang.org/x/crypto/bcrypt"
)

// ----------------------------------------------------------------------
//
//	Definitions
//
// ----------------------------------------------------------------------

// Password holds a bcrypt hash. Accounts migrated from the previous system carry a
// salt that was appended to the plaintext before hashing.
type Password struct {
	hash      []byte
	salt      string
	plaintext *string
}

// User represents a staff account.
type User struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Password  Password   `json:"-"`
	Role      int64      `json:"role"`
	RoleName  string     `json:"rol"`
	LastLogin *time.Time `json:"last_login"`
	Created   time.Time  `json:"created"`
	Version   int        `json:"-"`

	// Latest session, filled in by GetAll only.
	LastActivity   *time.Time `json:"last_activity"`
	ExpiredAt      *time.Time `json:"expired_at"`
	SessionStarted *time.Time `json:"sesion"`
}

// AnonymousUser is stored in the request context when no session was presented.
var AnonymousUser = &User{}

// UserFilter narrows the user administration list.
type UserFilter struct {
	Filter       Filter
	Name         string
	Email        string
	Role         int64
	ExcludeRoles []int64
}

// UserSortSafelist lists the sort values accepted for the user list.
var UserSortSafelist = []string{"id", "name", "email", "created", "last_login", "-id", "-name", "-email", "-created", "-last_login"}

// UserModel wraps a sql.DB connection pool.
type UserModel struct {
	DB *sql.DB
}

// dummyHash is compared against when the email is unknown so that response timing
// does not reveal which accounts exist.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("__dummy_password__"), bcrypt.DefaultCost)

// ----------------------------------------------------------------------
//
//	Methods
//
// ----------------------------------------------------------------------

// Set hashes a plaintext password and stores it in the Password struct.
func (p *Password) Set(plaintextPassword string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(plaintextPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.plaintext = &plaintextPassword
	p.hash = hashedPassword
	p.salt = ""
	return nil
}

// Matches checks if the provided plaintext password matches the stored hash.
func (p *Password) Matches(plaintextPassword string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(p.hash, []byte(plaintextPassword+p.salt))
	if err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	}
	return true, nil
}

// CompareDummy burns the same work as Matches for requests naming an unknown email.
func CompareDummy(plaintextPassword string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plaintextPassword))
}

// IsAnonymous reports whether the user is the anonymous placeholder.
func (u *User) IsAnonymous() bool {
	return u == AnonymousUser
}

// ValidatePasswordPlaintext checks the strength of a plaintext password.
func ValidatePasswordPlaintext(v *validator.Validator, password string) {
	v.Check(password != "", "password", "must be provided")
	v.Check(len(password) >= 8, "password", "must be at least 8 characters long")
	v.Check(len(password) <= 72, "password", "must not be more than 72 characters long")
	v.Check(v.Matches(password, validator.PasswordNumberRX), "password", "must contain at least one number")
	v.Check(v.Matches(password, validator.PasswordUpperRX), "password", "must contain at least one uppercase letter")
	v.Check(v.Matches(password, validator.PasswordLowerRX), "password", "must contain at least one lowercase letter")
	v.Check(v.Matches(password, validator.PasswordSpecialRX), "password", "must contain at least one special character")
}

// ValidateEmail checks if the email is in a valid format.
func ValidateEmail(v *validator.Validator, email string) {
	v.Check(email != "", "email", "must be provided")
	v.Check(len(email) <= 320, "email", "must not be more than 320 characters long")
	v.Check(v.Matches(email, validator.EmailRX), "email", "must be a valid email address")
}

// ValidateLogin checks the credentials payload before any lookup happens.
func ValidateLogin(v *validator.Validator, email, password string) {
	ValidateEmail(v, email)
	v.Check(password != "", "password", "must be provided")
	v.Check(len(password) <= 200, "password", "must not be more than 200 characters long")
}

// ValidateUser checks the fields of a User against the known roles.
func ValidateUser(v *validator.Validator, user *User, roles Roles) {
	v.Check(user.Name != "", "name", "must be provided")
	v.Check(len(user.Name) <= 100, "name", "must not be more than 100 characters long")

	ValidateEmail(v, user.Email)

	if user.Password.plaintext != nil {
		ValidatePasswordPlaintext(v, *user.Password.plaintext)
	}
	v.Check(roles.Includes(user.Role), "role", "must be one of the permitted values")
}

// ----------------------------------------------------------------------
//
//	Database interaction methods
//
// ----------------------------------------------------------------------

const userColumns = `u.id, u.name, u.email, u.password_hash, COALESCE(u.salt, ''), u.role_id, r.name, u.last_login, u.created, u.version`

func scanUser(row interface{ Scan(...any) error }, user *User, extra ...any) error {
	var lastLogin sql.NullTime
	dest := append([]any{
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Password.hash,
		&user.Password.salt,
		&user.Role,
		&user.RoleName,
		&lastLogin,
		&user.Created,
		&user.Version,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	user.LastLogin = nullTime(lastLogin)
	return nil
}

// Insert adds a new user to the database.
func (m UserModel) Insert(ctx context.Context, user *User) error {
	query := `
		WITH inserted AS (
			INSERT INTO users (name, email, password_hash, salt, role_id)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5)
			RETURNING id, role_id, created, version
		)
		SELECT i.id, r.name, i.created, i.version
		FROM inserted i
		INNER JOIN roles r ON r.id = i.role_id`

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query,
		user.Name,
		user.Email,
		user.Password.hash,
		user.Password.salt,
		user.Role,
	).Scan(&user.ID, &user.RoleName, &user.Created, &user.Version)
	if err != nil {
		switch {
		case isUniqueViolation(err, "users_email_key"):
			return ErrDuplicateEmail
		default:
			return err
		}
	}
	return nil
}

// Update modifies an existing user, guarded by the version column.
func (m UserModel) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET name = $1, email = $2, password_hash = $3, salt = NULLIF($4, ''), role_id = $5, version = version + 1
		WHERE id = $6 AND version = $7 AND deleted IS NULL
		RETURNING version`

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query,
		user.Name,
		user.Email,
		user.Password.hash,
		user.Password.salt,
		user.Role,
		user.ID,
		user.Version,
	).Scan(&user.Version)
	if err != nil {
		switch {
		case isUniqueViolation(err, "users_email_key"):
			return ErrDuplicateEmail
		case errors.Is(err, sql.ErrNoRows):
			return ErrEditConflict
		default:
			return err
		}
	}
	return nil
}

// Delete soft-deletes a user. The row stays for audit purposes.
func (m UserModel) Delete(ctx context.Context, id int64) error {
	query := `
		UPDATE users
		SET deleted = NOW(), version = version + 1
		WHERE id = $1 AND deleted IS NULL`

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// GetByID retrieves an active user by id.
func (m UserModel) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		INNER JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1 AND u.deleted IS NULL`

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	user := &User{}
	err := scanUser(m.DB.QueryRowContext(ctx, query, id), user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return user, nil
}

// GetByEmail retrieves an active user by email.
func (m UserModel) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		INNER JOIN roles r ON r.id = u.role_id
		WHERE u.email = $1 AND u.deleted IS NULL`

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	user := &User{}
	err := scanUser(m.DB.QueryRowContext(ctx, query, email), user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return user, nil
}

// GetAll lists active users with the state of their newest session.
func (m UserModel) GetAll(ctx context.Context, filter UserFilter) ([]*User, MetaData, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) OVER(), `+userColumns+`, s.last_activity, s.expired_at, s.created_at
		FROM users u
		INNER JOIN roles r ON r.id = u.role_id
		LEFT JOIN LATERAL (
			SELECT last_activity, expired_at, created_at
			FROM user_sessions
			WHERE user_id = u.id
			ORDER BY created_at DESC
			LIMIT 1
		) s ON TRUE
		WHERE u.deleted IS NULL
		  AND (u.name ILIKE '%%' || $1 || '%%')
		  AND (u.email ILIKE '%%' || $2 || '%%')
		  AND ($3 = 0 OR u.role_id = $3)
		  AND NOT (u.role_id = ANY($4))
		ORDER BY u.%s %s, u.id ASC
		LIMIT $5 OFFSET $6`, filter.Filter.SortColumn(), filter.Filter.SortDirection())

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	excluded := filter.ExcludeRoles
	if excluded == nil {
		excluded = []int64{}
	}

	rows, err := m.DB.QueryContext(ctx, query,
		filter.Name,
		filter.Email,
		filter.Role,
		pq.Array(excluded),
		filter.Filter.Limit(),
		filter.Filter.Offset(),
	)
	if err != nil {
		return nil, MetaData{}, err
	}
	defer rows.Close()

	users := []*User{}
	totalRecords := int64(0)

	for rows.Next() {
		user := &User{}
		var lastActivity, expiredAt, started sql.NullTime
		err := scanUser(&prefixScanner{rows: rows, prefix: &totalRecords}, user, &lastActivity, &expiredAt, &started)
		if err != nil {
			return nil, MetaData{}, err
		}
		user.LastActivity = nullTime(lastActivity)
		user.ExpiredAt = nullTime(expiredAt)
		user.SessionStarted = nullTime(started)
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, MetaData{}, err
	}

	meta := CalculateMetaData(totalRecords, filter.Filter.Page, filter.Filter.PageSize)

	return users, meta, nil
}

// TouchLastLogin records a successful login.
func (m UserModel) TouchLastLogin(ctx context.Context, id int64) error {
	query := `
		UPDATE users
		SET last_login = NOW()
		WHERE id = $1`

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := m.DB.ExecContext(ctx, query, id)
	return err
}

// GetForToken resolves an unexpired session token to its user and records the activity.
func (m UserModel) GetForToken(ctx context.Context, tokenPlaintext string) (*User, error) {
	query := `
		WITH s AS (
			UPDATE user_sessions
			SET last_activity = NOW()
			WHERE hash = $1 AND expired_at > NOW()
			RETURNING user_id
		)
		SELECT ` + userColumns + `
		FROM users u
		INNER JOIN s ON s.user_id = u.id
		INNER JOIN roles r ON r.id = u.role_id
		WHERE u.deleted IS NULL`

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	user := &User{}
	err := scanUser(m.DB.QueryRowContext(ctx, query, HashToken(tokenPlaintext)), user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return user, nil
}

// prefixScanner scans a leading window-count column before the user columns.
type prefixScanner struct {
	rows   *sql.Rows
	prefix *int64
}

func (p *prefixScanner) Scan(dest ...any) error {
	return p.rows.Scan(append([]any{p.prefix}, dest...)...)
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
