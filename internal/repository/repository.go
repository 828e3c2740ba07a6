package repository

import (
	"context"
	"database/sql"
	"time"

	cronus "github.com/E3dvis/cronustraining"
	"github.com/E3dvis/cronustraining/internal/repository/db"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*cronus.User, error)
}

// EventRepo is the append-only run-event journal.
type EventRepo interface {
	Append(ctx context.Context, e cronus.RunEvent) error
	List(ctx context.Context, from, to time.Time, typ string, channel int) ([]cronus.RunEvent, error)
}

// RunRepo persists finished-run summaries for report collaborators.
type RunRepo interface {
	Insert(ctx context.Context, r cronus.RunRecord) error
	Latest(ctx context.Context, channel int) (cronus.RunRecord, error)
}

type Repository struct {
	EventRepo EventRepo
	RunRepo   RunRepo
	Auth      Authorization
}

func NewRepository(database *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(database),
		RunRepo:   NewRunSQLite(database),
		Auth:      NewUserRepository(database),
	}
}

// InitDB opens the SQLite file and ensures the schema exists.
func InitDB(path string) (*sql.DB, error) {
	return db.InitDB(path)
}
