// File: internal/data/models.go
package data

import (
	"context"
	"database/sql"
	"time"
)

// UserStore is the user persistence used by the handlers.
type UserStore interface {
	Insert(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetAll(ctx context.Context, filter UserFilter) ([]*User, MetaData, error)
	TouchLastLogin(ctx context.Context, id int64) error
	GetForToken(ctx context.Context, tokenPlaintext string) (*User, error)
}

// RoleStore lists roles.
type RoleStore interface {
	GetAll(ctx context.Context) (Roles, error)
}

// SessionStore manages login sessions.
type SessionStore interface {
	New(ctx context.Context, userID int64, ttl time.Duration) (*Session, error)
	Delete(ctx context.Context, plaintext string) error
	DeleteAllForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// CensoStore calls the censo procedures.
type CensoStore interface {
	GetAll(ctx context.Context) ([]*Ingreso, error)
	Documents(ctx context.Context, ainid int64) ([]*CensoDocument, error)
	Reprocess(ctx context.Context, ainid int64) error
}

// MetricsStore runs the dashboard metric queries.
type MetricsStore interface {
	Docs(ctx context.Context) ([]MetricDoc, error)
	General(ctx context.Context) ([]MetricGeneral, error)
	ByMonth(ctx context.Context) ([]MetricMonth, error)
	IA(ctx context.Context) ([]MetricIA, error)
}

// ExtractionStore reads RPA monitoring data.
type ExtractionStore interface {
	Latest(ctx context.Context) (*time.Time, error)
}

// ExportStore records spreadsheet exports.
type ExportStore interface {
	Insert(ctx context.Context, export *ExportHistory) error
	Update(ctx context.Context, export *ExportHistory) error
	GetAll(ctx context.Context, filter ExportFilter) ([]*ExportHistory, MetaData, error)
}

// Models wraps all data models.
type Models struct {
	Users      UserStore
	Roles      RoleStore
	Sessions   SessionStore
	Censo      CensoStore
	Metrics    MetricsStore
	Extraction ExtractionStore
	Exports    ExportStore
}

// NewModels initializes the Models struct with a given database connection.
func NewModels(db *sql.DB) Models {
	return Models{
		Users:      UserModel{DB: db},
		Roles:      RoleModel{DB: db},
		Sessions:   SessionModel{DB: db},
		Censo:      CensoModel{DB: db},
		Metrics:    MetricsModel{DB: db},
		Extraction: ExtractionModel{DB: db},
		Exports:    ExportHistoryModel{DB: db},
	}
}
