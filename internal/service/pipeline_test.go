package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitpulse/gitpulse/internal/github"
	"github.com/gitpulse/gitpulse/internal/load"
	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/internal/transform"
	"github.com/gitpulse/gitpulse/pkg/errors"
)

type fakeExtractor struct {
	repo        *github.RepositoryInfo
	repoErr     error
	commits     []github.RawCommit
	commitsErr  error
	listedSince time.Time
}

func (f *fakeExtractor) GetRepository(ctx context.Context, owner, repo string) (*github.RepositoryInfo, error) {
	return f.repo, f.repoErr
}

func (f *fakeExtractor) ListCommits(ctx context.Context, owner, repo string, opts github.CommitListOptions) ([]github.RawCommit, error) {
	f.listedSince = opts.Since
	return f.commits, f.commitsErr
}

// fakeStore is an in-memory models.Database for exercising the full
// transform and load path without Postgres.
type fakeStore struct {
	nextID  int
	repos   map[string]*models.Repository
	persons map[models.PersonRole][]*models.Person
	commits map[string]*models.Commit
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		persons: make(map[models.PersonRole][]*models.Person),
		repos:   make(map[string]*models.Repository),
		commits: make(map[string]*models.Commit),
	}
}

func (s *fakeStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) GetRepositoryByFullName(ctx context.Context, fullName string) (*models.Repository, error) {
	return s.repos[fullName], nil
}

func (s *fakeStore) GetRepositoryByFullNameTx(ctx context.Context, tx *sql.Tx, fullName string) (*models.Repository, error) {
	return s.repos[fullName], nil
}

func (s *fakeStore) InsertRepositoryTx(ctx context.Context, tx *sql.Tx, repo *models.Repository) error {
	repo.ID = s.id()
	s.repos[repo.FullName] = repo
	return nil
}

func (s *fakeStore) FindPersonTx(ctx context.Context, tx *sql.Tx, role models.PersonRole, login, email *string) (*models.Person, error) {
	for _, p := range s.persons[role] {
		if login != nil && *login != "" && p.Login != nil && *p.Login == *login {
			return p, nil
		}
		if (login == nil || *login == "") && email != nil && *email != "" && p.Email != nil && *p.Email == *email {
			return p, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) InsertPersonTx(ctx context.Context, tx *sql.Tx, role models.PersonRole, person *models.Person) error {
	person.ID = s.id()
	s.persons[role] = append(s.persons[role], person)
	return nil
}

func (s *fakeStore) CommitExistsTx(ctx context.Context, tx *sql.Tx, sha string) (bool, error) {
	_, ok := s.commits[sha]
	return ok, nil
}

func (s *fakeStore) InsertCommitTx(ctx context.Context, tx *sql.Tx, commit *models.Commit) error {
	commit.ID = s.id()
	s.commits[commit.SHA] = commit
	return nil
}

func (s *fakeStore) GetTopAuthors(ctx context.Context, limit int) ([]models.PersonCommitCount, error) {
	return nil, nil
}

func (s *fakeStore) GetTopCommitters(ctx context.Context, limit int) ([]models.PersonCommitCount, error) {
	return nil, nil
}

func (s *fakeStore) GetLongestStreak(ctx context.Context) (*models.Streak, error) {
	return nil, nil
}

func (s *fakeStore) GetHeatmapCounts(ctx context.Context) ([]models.HeatmapCell, error) {
	return nil, nil
}

func (s *fakeStore) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(&sql.Tx{})
}

func (s *fakeStore) Close() error { return nil }

func ptr(v string) *string { return &v }

func personLogins(persons []*models.Person) []string {
	logins := make([]string, 0, len(persons))
	for _, p := range persons {
		if p.Login != nil {
			logins = append(logins, *p.Login)
		}
	}
	return logins
}

func sampleCommits(n int) []github.RawCommit {
	authors := []github.RawPerson{
		{Login: ptr("alice"), Email: ptr("alice@x.io")},
		{Login: ptr("bob"), Email: ptr("bob@x.io")},
		{Login: ptr("carol"), Email: ptr("carol@x.io")},
	}
	// alice commits under a separate automation account, so her authoring
	// and committing identities must stay distinct rows in their role tables.
	committers := []github.RawPerson{
		{Login: ptr("alice-ci"), Email: ptr("alice@x.io")},
		{Login: ptr("web-flow"), Email: ptr("noreply@github.com")},
	}

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	commits := make([]github.RawCommit, 0, n)
	for i := 0; i < n; i++ {
		committed := base.Add(time.Duration(i) * time.Hour)
		authored := committed.Add(-time.Minute)
		commits = append(commits, github.RawCommit{
			SHA:         fmt.Sprintf("%040d", i),
			Message:     fmt.Sprintf("change %d", i),
			CommittedAt: committed,
			AuthoredAt:  &authored,
			Committer:   committers[i%len(committers)],
			Author:      authors[i%len(authors)],
		})
	}
	return commits
}

func newTestPipeline(store *fakeStore, extractor Extractor) *Pipeline {
	return NewPipeline(extractor, transform.New(), load.New(store), nil, "owner", "repo", 6)
}

func TestPipelineRunEndToEnd(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{
		repo:    &github.RepositoryInfo{Name: "repo", Owner: "owner", FullName: "owner/repo", URL: "https://github.com/owner/repo"},
		commits: sampleCommits(150),
	}

	err := newTestPipeline(store, extractor).Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.repos, 1)
	assert.Len(t, store.persons[models.RoleAuthor], 3)
	assert.Len(t, store.persons[models.RoleCommitter], 2)
	assert.Len(t, store.commits, 150)

	// alice's authoring login and committing login resolve independently.
	authorLogins := personLogins(store.persons[models.RoleAuthor])
	committerLogins := personLogins(store.persons[models.RoleCommitter])
	assert.Contains(t, authorLogins, "alice")
	assert.NotContains(t, authorLogins, "alice-ci")
	assert.Contains(t, committerLogins, "alice-ci")
	assert.NotContains(t, committerLogins, "alice")

	// The lookback window is 6 months of 30 days each.
	wantSince := time.Now().AddDate(0, 0, -180)
	assert.WithinDuration(t, wantSince, extractor.listedSince, time.Minute)
}

func TestPipelineRunIsIdempotent(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{
		repo:    &github.RepositoryInfo{Name: "repo", Owner: "owner", FullName: "owner/repo", URL: "https://github.com/owner/repo"},
		commits: sampleCommits(150),
	}
	pipeline := newTestPipeline(store, extractor)

	require.NoError(t, pipeline.Run(context.Background()))
	require.NoError(t, pipeline.Run(context.Background()))

	assert.Len(t, store.repos, 1)
	assert.Len(t, store.persons[models.RoleAuthor], 3)
	assert.Len(t, store.persons[models.RoleCommitter], 2)
	assert.Len(t, store.commits, 150)
}

func TestPipelineRunNoCommits(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{
		repo: &github.RepositoryInfo{Name: "repo", Owner: "owner", FullName: "owner/repo"},
	}

	err := newTestPipeline(store, extractor).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasReference(err, "GITHUB_API_ERROR"))
	assert.Empty(t, store.repos)
}

func TestPipelineRunRepositoryLookupFails(t *testing.T) {
	store := newFakeStore()
	notFound := errors.New("REPOSITORY_NOT_FOUND", "Repository not found", "", nil, errors.LevelInfo)
	extractor := &fakeExtractor{repoErr: notFound}

	err := newTestPipeline(store, extractor).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasReference(err, "REPOSITORY_NOT_FOUND"))
	assert.True(t, extractor.listedSince.IsZero())
}

func TestAnalyzeWithoutAnalyzer(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{}

	err := newTestPipeline(store, extractor).Analyze(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasReference(err, "ANALYSIS_ERROR"))
}
