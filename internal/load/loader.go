package load

import (
	"context"
	"database/sql"

	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/internal/transform"
	"github.com/gitpulse/gitpulse/pkg/errors"
	"github.com/gitpulse/gitpulse/pkg/logger"
)

// progressInterval bounds how often commit progress is reported. The original
// store flushed its session at this cadence; with write-through transactions
// it survives as a progress checkpoint only.
const progressInterval = 100

// Result reports what one load did, with per-reason skip counts. Record-level
// skips never fail the load; only repository resolution failure or a storage
// fault does.
type Result struct {
	RepositoryID    int
	NewCommitters   int
	NewAuthors      int
	NewCommits      int
	ExistingCommits int
	MissingPersons  int
}

type Loader struct {
	db models.Database
}

func New(db models.Database) *Loader {
	return &Loader{db: db}
}

// Load upserts one transformed batch into the store as a single transaction:
// either every successfully processed record is committed, or none are.
func (l *Loader) Load(ctx context.Context, batch *transform.Batch) (*Result, error) {
	if batch.Repository == nil {
		return nil, errors.New(
			"LOAD_ERROR",
			"No repository data to load",
			"A load requires repository metadata; the batch carried none",
			nil,
			errors.LevelError,
		)
	}

	result := &Result{}

	err := l.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		repo, err := l.loadRepository(ctx, tx, batch.Repository)
		if err != nil {
			return err
		}
		result.RepositoryID = repo.ID

		committerIDs, newCommitters, err := l.loadPersons(ctx, tx, models.RoleCommitter, batch.Committers)
		if err != nil {
			return err
		}
		result.NewCommitters = newCommitters

		authorIDs, newAuthors, err := l.loadPersons(ctx, tx, models.RoleAuthor, batch.Authors)
		if err != nil {
			return err
		}
		result.NewAuthors = newAuthors

		return l.loadCommits(ctx, tx, batch.Commits, repo.ID, committerIDs, authorIDs, result)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Successfully loaded data: %d new commits, %d already present, %d skipped for unresolvable identity",
		result.NewCommits, result.ExistingCommits, result.MissingPersons)
	return result, nil
}

func (l *Loader) loadRepository(ctx context.Context, tx *sql.Tx, repo *models.Repository) (*models.Repository, error) {
	existing, err := l.db.GetRepositoryByFullNameTx(ctx, tx, repo.FullName)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		logger.Info("Repository %s already exists in database", repo.FullName)
		return existing, nil
	}

	if err := l.db.InsertRepositoryTx(ctx, tx, repo); err != nil {
		return nil, err
	}

	logger.Info("Added repository %s to database", repo.FullName)
	return repo, nil
}

// loadPersons resolves each incoming person against existing rows by login
// when present, else email; misses are inserted. The returned map holds
// identity key to stored row id for the duration of this load.
func (l *Loader) loadPersons(ctx context.Context, tx *sql.Tx, role models.PersonRole, persons []models.Person) (map[string]int, int, error) {
	idsByKey := make(map[string]int, len(persons))
	inserted := 0

	for i := range persons {
		person := persons[i]
		key := person.IdentityKey()
		if key == "" {
			continue
		}

		existing, err := l.db.FindPersonTx(ctx, tx, role, person.Login, person.Email)
		if err != nil {
			return nil, 0, err
		}

		if existing != nil {
			idsByKey[key] = existing.ID
			continue
		}

		if err := l.db.InsertPersonTx(ctx, tx, role, &person); err != nil {
			return nil, 0, err
		}
		idsByKey[key] = person.ID
		inserted++
	}

	logger.Info("Processed %d %s", len(idsByKey), role)
	return idsByKey, inserted, nil
}

func (l *Loader) loadCommits(ctx context.Context, tx *sql.Tx, commits []models.TransformedCommit, repositoryID int, committerIDs, authorIDs map[string]int, result *Result) error {
	for _, commit := range commits {
		exists, err := l.db.CommitExistsTx(ctx, tx, commit.SHA)
		if err != nil {
			return err
		}
		if exists {
			result.ExistingCommits++
			continue
		}

		committerID, ok := committerIDs[commit.CommitterKey]
		if !ok {
			logger.Warn("Could not find committer for commit %s", commit.SHA)
			result.MissingPersons++
			continue
		}

		authorID, ok := authorIDs[commit.AuthorKey]
		if !ok {
			logger.Warn("Could not find author for commit %s", commit.SHA)
			result.MissingPersons++
			continue
		}

		err = l.db.InsertCommitTx(ctx, tx, &models.Commit{
			SHA:          commit.SHA,
			Message:      commit.Message,
			CommittedAt:  commit.CommittedAt,
			AuthoredAt:   commit.AuthoredAt,
			RepositoryID: repositoryID,
			CommitterID:  committerID,
			AuthorID:     authorID,
		})
		if err != nil {
			return err
		}

		result.NewCommits++
		if result.NewCommits%progressInterval == 0 {
			logger.Info("Loaded %d commits so far", result.NewCommits)
		}
	}

	logger.Info("Added %d new commits to database", result.NewCommits)
	return nil
}
