package models

import (
	"context"
	"database/sql"
)

// * This interface defines all store operations needed by the pipeline and
// * the analyzer. Lookup methods return (nil, nil) when no row matches.
type Database interface {
	// * Repository operations
	GetRepositoryByFullName(ctx context.Context, fullName string) (*Repository, error)
	GetRepositoryByFullNameTx(ctx context.Context, tx *sql.Tx, fullName string) (*Repository, error)
	InsertRepositoryTx(ctx context.Context, tx *sql.Tx, repo *Repository) error

	// * Person operations (role selects the authors or committers table)
	FindPersonTx(ctx context.Context, tx *sql.Tx, role PersonRole, login, email *string) (*Person, error)
	InsertPersonTx(ctx context.Context, tx *sql.Tx, role PersonRole, person *Person) error

	// * Commit operations
	CommitExistsTx(ctx context.Context, tx *sql.Tx, sha string) (bool, error)
	InsertCommitTx(ctx context.Context, tx *sql.Tx, commit *Commit) error

	// * Read-only analytics
	GetTopAuthors(ctx context.Context, limit int) ([]PersonCommitCount, error)
	GetTopCommitters(ctx context.Context, limit int) ([]PersonCommitCount, error)
	GetLongestStreak(ctx context.Context) (*Streak, error)
	GetHeatmapCounts(ctx context.Context) ([]HeatmapCell, error)

	// * Transaction support
	WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error

	Close() error
}
