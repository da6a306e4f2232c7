// Filename: internal/data/roles.go
package data

import (
	"context"
	"database/sql"
	"slices"
)

// Well-known role ids. The roles table may hold more.
const (
	RoleUser       int64 = 1
	RoleSupervisor int64 = 2
	RoleAdmin      int64 = 4
)

// Role is a row of the roles table.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Roles is the list returned to the user administration screen.
type Roles []Role

// Includes reports whether a role with the given id exists.
func (r Roles) Includes(id int64) bool {
	return slices.ContainsFunc(r, func(role Role) bool { return role.ID == id })
}

// CanManageUsers reports whether the role may open the user administration screens.
func CanManageUsers(role int64) bool {
	return role == RoleAdmin || role == RoleSupervisor
}

// VisibleRoles returns the roles an actor may see and assign.
// Supervisors never see administrators.
func VisibleRoles(actorRole int64, roles Roles) Roles {
	if actorRole == RoleAdmin {
		return roles
	}
	visible := make(Roles, 0, len(roles))
	for _, role := range roles {
		if role.ID != RoleAdmin {
			visible = append(visible, role)
		}
	}
	return visible
}

// CanManage reports whether actor may modify an account holding targetRole.
func CanManage(actorRole, targetRole int64) bool {
	if !CanManageUsers(actorRole) {
		return false
	}
	return actorRole == RoleAdmin || targetRole != RoleAdmin
}

// RoleModel wraps a sql.DB connection pool.
type RoleModel struct {
	DB *sql.DB
}

// GetAll returns every role ordered by id.
func (m RoleModel) GetAll(ctx context.Context) (Roles, error) {
	query := `
		SELECT id, name
		FROM roles
		ORDER BY id`

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := Roles{}
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}
