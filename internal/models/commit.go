package models

import "time"

// Commit is a stored commit row. Rows are immutable once written; a sha is
// stored at most once regardless of how many times the pipeline runs.
type Commit struct {
	ID           int        `json:"id"`
	SHA          string     `json:"sha"`
	Message      string     `json:"message"`
	CommittedAt  time.Time  `json:"committed_at"`
	AuthoredAt   *time.Time `json:"authored_at,omitempty"`
	RepositoryID int        `json:"repository_id"`
	CommitterID  int        `json:"committer_id"`
	AuthorID     int        `json:"author_id"`
}

// TransformedCommit carries identity keys instead of person references, so
// the loader can resolve them against persisted state rather than the
// in-memory batch.
type TransformedCommit struct {
	SHA          string
	Message      string
	CommittedAt  time.Time
	AuthoredAt   *time.Time
	CommitterKey string
	AuthorKey    string
}
