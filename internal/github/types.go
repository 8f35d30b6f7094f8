package github

import "time"

// repositoryResponse is the raw /repos/{owner}/{repo} payload.
type repositoryResponse struct {
	Name        string  `json:"name"`
	FullName    string  `json:"full_name"`
	Description *string `json:"description"`
	HTMLURL     string  `json:"html_url"`
	CreatedAt   string  `json:"created_at"`
}

// gitIdentity is the name/email/date block nested under commit.author and
// commit.committer.
type gitIdentity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"`
}

// accountIdentity is the top-level GitHub account attached to a commit. It is
// null when the identity could not be mapped to an account.
type accountIdentity struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// commitItem is one element of a raw commits page.
type commitItem struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message   string       `json:"message"`
		Author    *gitIdentity `json:"author"`
		Committer *gitIdentity `json:"committer"`
	} `json:"commit"`
	Author    *accountIdentity `json:"author"`
	Committer *accountIdentity `json:"committer"`
}

// RepositoryInfo is repository metadata parsed into a structured record.
type RepositoryInfo struct {
	Name        string
	Owner       string
	FullName    string
	Description *string
	URL         string
	CreatedAt   *time.Time
}

// RawPerson is one of a commit's two identities with all fields optional.
type RawPerson struct {
	Login     *string
	Name      *string
	Email     *string
	AvatarURL *string
}

// RawCommit is a commit record validated at the extraction boundary: SHA and
// CommittedAt are always set.
type RawCommit struct {
	SHA         string
	Message     string
	CommittedAt time.Time
	AuthoredAt  *time.Time
	Committer   RawPerson
	Author      RawPerson
}

type CommitListOptions struct {
	Since time.Time
}
