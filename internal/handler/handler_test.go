package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/pkg/errors"
)

type stubDatabase struct {
	repo       *models.Repository
	topAuthors []models.PersonCommitCount
	authorsErr error
	streak     *models.Streak
	cells      []models.HeatmapCell
}

func (s *stubDatabase) GetRepositoryByFullName(ctx context.Context, fullName string) (*models.Repository, error) {
	return s.repo, nil
}

func (s *stubDatabase) GetRepositoryByFullNameTx(ctx context.Context, tx *sql.Tx, fullName string) (*models.Repository, error) {
	return s.repo, nil
}

func (s *stubDatabase) InsertRepositoryTx(ctx context.Context, tx *sql.Tx, repo *models.Repository) error {
	return nil
}

func (s *stubDatabase) FindPersonTx(ctx context.Context, tx *sql.Tx, role models.PersonRole, login, email *string) (*models.Person, error) {
	return nil, nil
}

func (s *stubDatabase) InsertPersonTx(ctx context.Context, tx *sql.Tx, role models.PersonRole, person *models.Person) error {
	return nil
}

func (s *stubDatabase) CommitExistsTx(ctx context.Context, tx *sql.Tx, sha string) (bool, error) {
	return false, nil
}

func (s *stubDatabase) InsertCommitTx(ctx context.Context, tx *sql.Tx, commit *models.Commit) error {
	return nil
}

func (s *stubDatabase) GetTopAuthors(ctx context.Context, limit int) ([]models.PersonCommitCount, error) {
	return s.topAuthors, s.authorsErr
}

func (s *stubDatabase) GetTopCommitters(ctx context.Context, limit int) ([]models.PersonCommitCount, error) {
	return s.topAuthors, s.authorsErr
}

func (s *stubDatabase) GetLongestStreak(ctx context.Context) (*models.Streak, error) {
	return s.streak, nil
}

func (s *stubDatabase) GetHeatmapCounts(ctx context.Context) ([]models.HeatmapCell, error) {
	return s.cells, nil
}

func (s *stubDatabase) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(&sql.Tx{})
}

func (s *stubDatabase) Close() error { return nil }

type fakePublisher struct {
	err   error
	owner string
	repo  string
	calls int
}

func (f *fakePublisher) PublishSyncRequest(ctx context.Context, owner, repo string) error {
	f.calls++
	f.owner = owner
	f.repo = repo
	return f.err
}

func serveRequest(db models.Database, method, path string) *httptest.ResponseRecorder {
	return serveRequestWithQueue(db, nil, method, path)
}

func serveRequestWithQueue(db models.Database, q SyncPublisher, method, path string) *httptest.ResponseRecorder {
	h := NewReportsHandler(db, q, "owner", "repo")
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestGetRepository(t *testing.T) {
	db := &stubDatabase{
		repo: &models.Repository{ID: 1, Name: "repo", Owner: "owner", FullName: "owner/repo"},
	}

	rec := serveRequest(db, http.MethodGet, "/repository")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "owner/repo", data["full_name"])
}

func TestGetRepositoryNotLoaded(t *testing.T) {
	rec := serveRequest(&stubDatabase{}, http.MethodGet, "/repository")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp errors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "REPOSITORY_NOT_FOUND", resp.ErrorRef)
}

func TestGetTopAuthors(t *testing.T) {
	db := &stubDatabase{
		topAuthors: []models.PersonCommitCount{
			{Identity: "alice", CommitCount: 42},
			{Identity: "bob", CommitCount: 17},
		},
	}

	rec := serveRequest(db, http.MethodGet, "/reports/top-authors")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	data, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, data, 2)
}

func TestGetTopAuthorsStoreFailure(t *testing.T) {
	db := &stubDatabase{
		authorsErr: errors.New("DB_QUERY_ERROR", "Failed to query commit counts", "", nil, errors.LevelError),
	}

	rec := serveRequest(db, http.MethodGet, "/reports/top-authors")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLongestStreakEmptyStore(t *testing.T) {
	rec := serveRequest(&stubDatabase{}, http.MethodGet, "/reports/longest-streak")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "no commit streaks found", resp.Message)
	assert.Nil(t, resp.Data)
}

func TestGetLongestStreak(t *testing.T) {
	db := &stubDatabase{
		streak: &models.Streak{
			Identity: "alice",
			Start:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:      time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
			Length:   5,
		},
	}

	rec := serveRequest(db, http.MethodGet, "/reports/longest-streak")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", data["identity"])
	assert.Equal(t, float64(5), data["streak_length"])
}

func TestGetHeatmap(t *testing.T) {
	db := &stubDatabase{
		cells: []models.HeatmapCell{{Weekday: 1, Hour: 10, Count: 4}},
	}

	rec := serveRequest(db, http.MethodGet, "/reports/heatmap")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)

	days, ok := data["days"].([]any)
	require.True(t, ok)
	assert.Len(t, days, 7)
	assert.Equal(t, "Mon", days[0])

	counts, ok := data["counts"].([]any)
	require.True(t, ok)
	require.Len(t, counts, 7)

	monday, ok := counts[0].([]any)
	require.True(t, ok)
	require.Len(t, monday, 8)
	assert.Equal(t, float64(4), monday[3])
}

func TestTriggerSync(t *testing.T) {
	pub := &fakePublisher{}

	rec := serveRequestWithQueue(&stubDatabase{}, pub, http.MethodPost, "/sync")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "sync request queued", resp.Message)

	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, "owner", pub.owner)
	assert.Equal(t, "repo", pub.repo)
}

func TestTriggerSyncPublishFailure(t *testing.T) {
	pub := &fakePublisher{
		err: errors.New("GITHUB_API_ERROR", "queue unavailable", "", nil, errors.LevelError),
	}

	rec := serveRequestWithQueue(&stubDatabase{}, pub, http.MethodPost, "/sync")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerSyncWithoutQueue(t *testing.T) {
	rec := serveRequest(&stubDatabase{}, http.MethodPost, "/sync")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CONFIG_ERROR", resp.ErrorRef)
}
