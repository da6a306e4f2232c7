// File: internal/data/sessions.go
package data

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"time"

	"github.com/pedroarca/censoapi/internal/validator"
)

// ----------------------------------------------------------------------
//
//	Definitions
//
// ----------------------------------------------------------------------

// tokenLength is the length of a base64url encoded 32 byte token.
const tokenLength = 43

// Session is a login session. Only the SHA-256 hash of the token is stored.
type Session struct {
	Plaintext string    `json:"token"`
	Hash      []byte    `json:"-"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionModel wraps a sql.DB connection pool.
type SessionModel struct {
	DB *sql.DB
}

// ----------------------------------------------------------------------
//
//	Methods
//
// ----------------------------------------------------------------------

// GenerateSession creates a random session token for the user that expires after ttl.
func GenerateSession(userID int64, ttl time.Duration) (*Session, error) {
	session := &Session{
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl),
	}

	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, err
	}
	session.Plaintext = base64.RawURLEncoding.EncodeToString(randomBytes)
	session.Hash = HashToken(session.Plaintext)

	return session, nil
}

// HashToken returns the stored form of a plaintext token.
func HashToken(plaintext string) []byte {
	hash := sha256.Sum256([]byte(plaintext))
	return hash[:]
}

// ValidateTokenPlaintext checks the shape of a presented token.
func ValidateTokenPlaintext(v *validator.Validator, plaintext string) {
	v.Check(plaintext != "", "token", "must be provided")
	v.Check(len(plaintext) == tokenLength, "token", "must be 43 bytes long")
}

// ----------------------------------------------------------------------
//
//	Database Operations
//
// ----------------------------------------------------------------------

// New creates a session, inserts it into the database, and returns it.
func (m SessionModel) New(ctx context.Context, userID int64, ttl time.Duration) (*Session, error) {
	session, err := GenerateSession(userID, ttl)
	if err != nil {
		return nil, err
	}
	err = m.Insert(ctx, session)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Insert inserts a session into the database.
func (m SessionModel) Insert(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO user_sessions (hash, user_id, expired_at, last_activity, created_at)
		VALUES ($1, $2, $3, NOW(), NOW())`

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := m.DB.ExecContext(ctx, query, session.Hash, session.UserID, session.ExpiresAt)
	return err
}

// Delete removes the session identified by its plaintext token.
func (m SessionModel) Delete(ctx context.Context, plaintext string) error {
	query := `
		DELETE FROM user_sessions
		WHERE hash = $1`

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := m.DB.ExecContext(ctx, query, HashToken(plaintext))
	return err
}

// DeleteAllForUser revokes every session of a user.
func (m SessionModel) DeleteAllForUser(ctx context.Context, userID int64) error {
	query := `
		DELETE FROM user_sessions
		WHERE user_id = $1`

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := m.DB.ExecContext(ctx, query, userID)
	return err
}

// DeleteExpired purges sessions past their expiry and returns how many were removed.
func (m SessionModel) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM user_sessions
		WHERE expired_at <= NOW()`

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
