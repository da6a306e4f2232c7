// File: internal/data/testutils.go
// Description: Database helpers for the Postgres integration tests

package data

import (
	"database/sql"
	"fmt"
)

// TestUtils provides utility functions for testing database operations
type TestUtils struct {
	DB *sql.DB
}

// NewTestUtils creates a new TestUtils instance
func NewTestUtils(db *sql.DB) *TestUtils {
	return &TestUtils{DB: db}
}

// TruncateAllTables removes all rows in dependency order.
func (tu *TestUtils) TruncateAllTables() error {
	tables := []string{
		"export_history",
		"user_sessions",
		"users",
		"monitoreo_rpa",
	}

	for _, table := range tables {
		query := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)
		if _, err := tu.DB.Exec(query); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// SeedRoles makes sure the well-known roles exist.
func (tu *TestUtils) SeedRoles() error {
	roles := map[int64]string{
		RoleUser:       "Usuario",
		RoleSupervisor: "Supervisor",
		RoleAdmin:      "Administrador",
	}

	for id, name := range roles {
		query := `INSERT INTO roles (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`
		if _, err := tu.DB.Exec(query, id, name); err != nil {
			return fmt.Errorf("failed to seed role %d: %w", id, err)
		}
	}

	return nil
}

// CleanDatabase truncates all tables and seeds the roles.
func (tu *TestUtils) CleanDatabase() error {
	if err := tu.TruncateAllTables(); err != nil {
		return err
	}
	return tu.SeedRoles()
}

// SeedTestUser creates a user with the given bcrypt hash and returns its id.
func (tu *TestUtils) SeedTestUser(name, email string, role int64, passwordHash []byte) (int64, error) {
	query := `
		INSERT INTO users (name, email, password_hash, role_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	var userID int64
	err := tu.DB.QueryRow(query, name, email, passwordHash, role).Scan(&userID)
	if err != nil {
		return 0, fmt.Errorf("failed to seed test user: %w", err)
	}

	return userID, nil
}

// SeedExtraction records an RPA run.
func (tu *TestUtils) SeedExtraction() error {
	if _, err := tu.DB.Exec(`INSERT INTO monitoreo_rpa (fechainsert) VALUES (NOW())`); err != nil {
		return fmt.Errorf("failed to seed extraction: %w", err)
	}
	return nil
}
