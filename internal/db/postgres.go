package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/pkg/errors"
	"github.com/gitpulse/gitpulse/pkg/logger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

type PostgresDB struct {
	db *sql.DB
}

func NewPostgresDB(url string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, errors.New(
			"DB_CONNECTION_ERROR",
			"Failed to open database connection",
			"Could not initialize database connection",
			err,
			errors.LevelError,
		)
	}

	// * Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// * Verify connection
	if err := db.Ping(); err != nil {
		return nil, errors.New(
			"DB_CONNECTION_ERROR",
			"Failed to verify database connection",
			"Database ping failed",
			err,
			errors.LevelError,
		)
	}

	logger.Info("connected to database successfully")
	return &PostgresDB{db: db}, nil
}

func (p *PostgresDB) Migrate() error {
	driver, err := postgres.WithInstance(p.db, &postgres.Config{})
	if err != nil {
		return errors.New(
			"DB_MIGRATION_ERROR",
			"Failed to create migration driver",
			"Could not initialize migration driver instance",
			err,
			errors.LevelError,
		)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return errors.New(
			"DB_MIGRATION_ERROR",
			"Failed to create migration instance",
			"Could not create migration instance with database",
			err,
			errors.LevelError,
		)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.New(
			"DB_MIGRATION_ERROR",
			"Failed to run migrations",
			"Migration up operation failed",
			err,
			errors.LevelError,
		)
	}

	return nil
}

func (p *PostgresDB) Close() error {
	if err := p.db.Close(); err != nil {
		return errors.New(
			"DB_CONNECTION_ERROR",
			"Failed to close database connection",
			"Error while closing database connection",
			err,
			errors.LevelWarning,
		)
	}
	return nil
}

func (p *PostgresDB) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(
			"DB_TRANSACTION_ERROR",
			"Failed to begin transaction",
			"Could not start database transaction",
			err,
			errors.LevelError,
		)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.New(
				"DB_TRANSACTION_ERROR",
				"Transaction failed and rollback encountered error",
				"Transaction error with additional rollback failure",
				fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr),
				errors.LevelError,
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.New(
			"DB_TRANSACTION_ERROR",
			"Failed to commit transaction",
			"Error while committing transaction",
			err,
			errors.LevelError,
		)
	}

	return nil
}

const repositoryColumns = "id, name, owner, full_name, description, url, created_at"

func scanRepository(row *sql.Row) (*models.Repository, error) {
	var repo models.Repository
	err := row.Scan(
		&repo.ID, &repo.Name, &repo.Owner, &repo.FullName,
		&repo.Description, &repo.URL, &repo.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &repo, nil
}

func (p *PostgresDB) GetRepositoryByFullName(ctx context.Context, fullName string) (*models.Repository, error) {
	query := fmt.Sprintf(`SELECT %s FROM repositories WHERE full_name = $1`, repositoryColumns)

	repo, err := scanRepository(p.db.QueryRowContext(ctx, query, fullName))
	if err != nil {
		return nil, errors.New(
			"DB_QUERY_ERROR",
			"Failed to fetch repository",
			fmt.Sprintf("Could not fetch repository '%s'", fullName),
			err,
			errors.LevelError,
		)
	}
	return repo, nil
}

func (p *PostgresDB) GetRepositoryByFullNameTx(ctx context.Context, tx *sql.Tx, fullName string) (*models.Repository, error) {
	query := fmt.Sprintf(`SELECT %s FROM repositories WHERE full_name = $1`, repositoryColumns)

	repo, err := scanRepository(tx.QueryRowContext(ctx, query, fullName))
	if err != nil {
		return nil, errors.New(
			"DB_QUERY_ERROR",
			"Failed to fetch repository in transaction",
			fmt.Sprintf("Could not fetch repository '%s'", fullName),
			err,
			errors.LevelError,
		)
	}
	return repo, nil
}

func (p *PostgresDB) InsertRepositoryTx(ctx context.Context, tx *sql.Tx, repo *models.Repository) error {
	query := `
		INSERT INTO repositories (name, owner, full_name, description, url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := tx.QueryRowContext(ctx, query,
		repo.Name, repo.Owner, repo.FullName, repo.Description, repo.URL, repo.CreatedAt,
	).Scan(&repo.ID)
	if err != nil {
		return errors.New(
			"DB_QUERY_ERROR",
			"Failed to insert repository",
			fmt.Sprintf("Could not insert repository '%s'", repo.FullName),
			err,
			errors.LevelError,
		)
	}

	return nil
}

// FindPersonTx looks up a person in the role's table by login when present,
// else by email. Identity resolution must stay deterministic across runs, so
// the lookup key mirrors the dedup key used at transform time.
func (p *PostgresDB) FindPersonTx(ctx context.Context, tx *sql.Tx, role models.PersonRole, login, email *string) (*models.Person, error) {
	var query string
	var arg any

	if login != nil && *login != "" {
		query = fmt.Sprintf(`SELECT id, login, name, email, avatar_url FROM %s WHERE login = $1`, role)
		arg = *login
	} else if email != nil && *email != "" {
		query = fmt.Sprintf(`SELECT id, login, name, email, avatar_url FROM %s WHERE email = $1`, role)
		arg = *email
	} else {
		return nil, nil
	}

	var person models.Person
	err := tx.QueryRowContext(ctx, query, arg).Scan(
		&person.ID, &person.Login, &person.Name, &person.Email, &person.AvatarURL,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.New(
			"DB_QUERY_ERROR",
			"Failed to look up person",
			fmt.Sprintf("Could not look up %s row", role),
			err,
			errors.LevelError,
		)
	}

	return &person, nil
}

func (p *PostgresDB) InsertPersonTx(ctx context.Context, tx *sql.Tx, role models.PersonRole, person *models.Person) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (login, name, email, avatar_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, role)

	err := tx.QueryRowContext(ctx, query,
		person.Login, person.Name, person.Email, person.AvatarURL,
	).Scan(&person.ID)
	if err != nil {
		return errors.New(
			"DB_QUERY_ERROR",
			"Failed to insert person",
			fmt.Sprintf("Could not insert %s row", role),
			err,
			errors.LevelError,
		)
	}

	return nil
}

func (p *PostgresDB) CommitExistsTx(ctx context.Context, tx *sql.Tx, sha string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM commits WHERE sha = $1)`, sha,
	).Scan(&exists)
	if err != nil {
		return false, errors.New(
			"DB_QUERY_ERROR",
			"Failed to check commit existence",
			fmt.Sprintf("Could not check commit '%s'", sha),
			err,
			errors.LevelError,
		)
	}
	return exists, nil
}

func (p *PostgresDB) InsertCommitTx(ctx context.Context, tx *sql.Tx, commit *models.Commit) error {
	query := `
		INSERT INTO commits (sha, message, committed_at, authored_at, repository_id, committer_id, author_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := tx.QueryRowContext(ctx, query,
		commit.SHA, commit.Message, commit.CommittedAt, commit.AuthoredAt,
		commit.RepositoryID, commit.CommitterID, commit.AuthorID,
	).Scan(&commit.ID)
	if err != nil {
		return errors.New(
			"DB_QUERY_ERROR",
			"Failed to insert commit",
			fmt.Sprintf("Could not insert commit '%s' for repository '%d'", commit.SHA, commit.RepositoryID),
			err,
			errors.LevelError,
		)
	}

	return nil
}

func (p *PostgresDB) GetTopAuthors(ctx context.Context, limit int) ([]models.PersonCommitCount, error) {
	query := `
		SELECT COALESCE(a.login, a.name, a.email, 'Unknown') AS identity,
			COUNT(cm.id) AS commit_count
		FROM commits cm
		JOIN authors a ON cm.author_id = a.id
		GROUP BY a.id
		ORDER BY commit_count DESC, identity ASC
		LIMIT $1
	`
	return p.queryCommitCounts(ctx, query, limit)
}

func (p *PostgresDB) GetTopCommitters(ctx context.Context, limit int) ([]models.PersonCommitCount, error) {
	query := `
		SELECT COALESCE(c.login, c.name, c.email, 'Unknown') AS identity,
			COUNT(cm.id) AS commit_count
		FROM commits cm
		JOIN committers c ON cm.committer_id = c.id
		GROUP BY c.id
		ORDER BY commit_count DESC, identity ASC
		LIMIT $1
	`
	return p.queryCommitCounts(ctx, query, limit)
}

func (p *PostgresDB) queryCommitCounts(ctx context.Context, query string, limit int) ([]models.PersonCommitCount, error) {
	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.New(
			"DB_QUERY_ERROR",
			"Failed to query commit counts",
			"Could not fetch per-person commit counts",
			err,
			errors.LevelError,
		)
	}
	defer rows.Close()

	var results []models.PersonCommitCount
	for rows.Next() {
		var row models.PersonCommitCount
		if err := rows.Scan(&row.Identity, &row.CommitCount); err != nil {
			return nil, errors.New(
				"DB_QUERY_ERROR",
				"Failed to scan commit count",
				"Error while scanning commit count row",
				err,
				errors.LevelError,
			)
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.New(
			"DB_QUERY_ERROR",
			"Failed to process commit counts",
			"Error while processing commit count rows",
			err,
			errors.LevelError,
		)
	}

	return results, nil
}

// GetLongestStreak finds the longest run of consecutive UTC calendar days
// containing at least one commit for a single author. Consecutive days share
// a group anchor: subtracting each day's row number from its date collapses a
// run into one constant value. Ties are broken by identity so the result is
// deterministic across runs.
func (p *PostgresDB) GetLongestStreak(ctx context.Context) (*models.Streak, error) {
	query := `
		WITH daily_commits AS (
			SELECT a.id AS author_id,
				COALESCE(a.login, a.name, a.email, 'Unknown') AS identity,
				DATE(cm.authored_at AT TIME ZONE 'UTC') AS commit_date
			FROM commits cm
			JOIN authors a ON cm.author_id = a.id
			WHERE cm.authored_at IS NOT NULL
			GROUP BY a.id, DATE(cm.authored_at AT TIME ZONE 'UTC')
		),
		numbered_days AS (
			SELECT author_id, identity, commit_date,
				commit_date - (ROW_NUMBER() OVER (PARTITION BY author_id ORDER BY commit_date))::int AS group_anchor
			FROM daily_commits
		),
		streaks AS (
			SELECT author_id, identity,
				MIN(commit_date) AS streak_start,
				MAX(commit_date) AS streak_end,
				COUNT(*) AS streak_length
			FROM numbered_days
			GROUP BY author_id, identity, group_anchor
		)
		SELECT identity, streak_start, streak_end, streak_length
		FROM streaks
		ORDER BY streak_length DESC, identity ASC
		LIMIT 1
	`

	var streak models.Streak
	err := p.db.QueryRowContext(ctx, query).Scan(
		&streak.Identity, &streak.Start, &streak.End, &streak.Length,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.New(
			"DB_QUERY_ERROR",
			"Failed to query longest streak",
			"Could not compute commit streaks",
			err,
			errors.LevelError,
		)
	}

	return &streak, nil
}

func (p *PostgresDB) GetHeatmapCounts(ctx context.Context) ([]models.HeatmapCell, error) {
	query := `
		SELECT EXTRACT(DOW FROM authored_at AT TIME ZONE 'UTC')::int AS weekday,
			EXTRACT(HOUR FROM authored_at AT TIME ZONE 'UTC')::int AS hour,
			COUNT(*) AS commit_count
		FROM commits
		WHERE authored_at IS NOT NULL
		GROUP BY 1, 2
		ORDER BY 1, 2
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.New(
			"DB_QUERY_ERROR",
			"Failed to query heatmap counts",
			"Could not fetch commit counts by weekday and hour",
			err,
			errors.LevelError,
		)
	}
	defer rows.Close()

	var cells []models.HeatmapCell
	for rows.Next() {
		var cell models.HeatmapCell
		if err := rows.Scan(&cell.Weekday, &cell.Hour, &cell.Count); err != nil {
			return nil, errors.New(
				"DB_QUERY_ERROR",
				"Failed to scan heatmap cell",
				"Error while scanning heatmap row",
				err,
				errors.LevelError,
			)
		}
		cells = append(cells, cell)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.New(
			"DB_QUERY_ERROR",
			"Failed to process heatmap counts",
			"Error while processing heatmap rows",
			err,
			errors.LevelError,
		)
	}

	return cells, nil
}
