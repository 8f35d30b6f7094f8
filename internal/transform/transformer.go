package transform

import (
	"github.com/gitpulse/gitpulse/internal/github"
	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/pkg/logger"
)

// SkipCounts reports how many records were excluded from a batch, by reason.
type SkipCounts struct {
	InvalidCommits    int
	KeylessCommitters int
	KeylessAuthors    int
}

// Batch is the normalized output of one transformation run: the repository,
// the deduplicated person sets for both roles, and the commits carrying
// identity keys for load-time resolution.
type Batch struct {
	Repository *models.Repository
	Committers []models.Person
	Authors    []models.Person
	Commits    []models.TransformedCommit
	Skipped    SkipCounts
}

type Transformer struct{}

func New() *Transformer {
	return &Transformer{}
}

// Transform normalizes raw records into the three entity shapes. People are
// deduplicated by identity key (login else email) within the batch;
// first-seen wins and later duplicates are discarded without field merging.
// Person slices keep first-appearance order so runs are deterministic.
func (t *Transformer) Transform(repo *github.RepositoryInfo, commits []github.RawCommit) *Batch {
	batch := &Batch{
		Repository: transformRepository(repo),
	}

	committersByKey := make(map[string]struct{})
	authorsByKey := make(map[string]struct{})

	for _, commit := range commits {
		// The extractor enforces this already; applied again in case a
		// collaborator hands us an unvalidated batch.
		if commit.SHA == "" || commit.CommittedAt.IsZero() {
			batch.Skipped.InvalidCommits++
			continue
		}

		committer := transformPerson(commit.Committer)
		committerKey := committer.IdentityKey()
		if committerKey == "" {
			batch.Skipped.KeylessCommitters++
		} else if _, seen := committersByKey[committerKey]; !seen {
			committersByKey[committerKey] = struct{}{}
			batch.Committers = append(batch.Committers, committer)
		}

		author := transformPerson(commit.Author)
		authorKey := author.IdentityKey()
		if authorKey == "" {
			batch.Skipped.KeylessAuthors++
		} else if _, seen := authorsByKey[authorKey]; !seen {
			authorsByKey[authorKey] = struct{}{}
			batch.Authors = append(batch.Authors, author)
		}

		batch.Commits = append(batch.Commits, models.TransformedCommit{
			SHA:          commit.SHA,
			Message:      commit.Message,
			CommittedAt:  commit.CommittedAt,
			AuthoredAt:   commit.AuthoredAt,
			CommitterKey: committerKey,
			AuthorKey:    authorKey,
		})
	}

	logger.Info("Transformed 1 repository, %d committers, %d authors, and %d commits",
		len(batch.Committers), len(batch.Authors), len(batch.Commits))

	return batch
}

func transformRepository(repo *github.RepositoryInfo) *models.Repository {
	if repo == nil {
		return nil
	}

	return &models.Repository{
		Name:        repo.Name,
		Owner:       repo.Owner,
		FullName:    repo.FullName,
		Description: repo.Description,
		URL:         repo.URL,
		CreatedAt:   repo.CreatedAt,
	}
}

func transformPerson(raw github.RawPerson) models.Person {
	return models.Person{
		Login:     raw.Login,
		Name:      raw.Name,
		Email:     raw.Email,
		AvatarURL: raw.AvatarURL,
	}
}
