package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gitpulse/gitpulse/pkg/errors"
	"github.com/gitpulse/gitpulse/pkg/logger"
)

var (
	baseURL = "https://api.github.com"
)

const perPage = 100

type Client struct {
	httpClient *http.Client
	token      string
	pageDelay  time.Duration
	sleep      func(time.Duration)
}

func NewClient(token string) *Client {
	rl := NewRateLimiter()

	client := &http.Client{
		Timeout:   30 * time.Second,
		Transport: rl.Middleware(http.DefaultTransport),
	}

	return &Client{
		httpClient: client,
		token:      token,
		pageDelay:  500 * time.Millisecond,
		sleep:      time.Sleep,
	}
}

func (c *Client) makeRequest(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	return resp, nil
}

// GetRepository fetches repository metadata and parses it into a structured
// record. A remote 404 is reported as REPOSITORY_NOT_FOUND.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*RepositoryInfo, error) {
	resp, err := c.makeRequest(ctx, "GET", fmt.Sprintf("/repos/%s/%s", owner, repo))
	if err != nil {
		return nil, errors.New(
			"GITHUB_API_ERROR",
			"Failed to fetch repository from GitHub",
			fmt.Sprintf("Could not retrieve repository %s/%s from GitHub API", owner, repo),
			err,
			errors.LevelError,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.New(
			"REPOSITORY_NOT_FOUND",
			"Repository not found on GitHub",
			fmt.Sprintf("The repository %s/%s does not exist or you don't have access to it", owner, repo),
			nil,
			errors.LevelInfo,
		)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(
			"GITHUB_API_ERROR",
			"Unexpected response from GitHub API",
			fmt.Sprintf("GitHub API returned status %d when fetching repository %s/%s", resp.StatusCode, owner, repo),
			nil,
			errors.LevelError,
		)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(
			"GITHUB_API_ERROR",
			"Failed to read GitHub API response",
			"Could not read the response body from GitHub API",
			err,
			errors.LevelError,
		)
	}

	var raw repositoryResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.New(
			"GITHUB_API_ERROR",
			"Failed to parse GitHub API response",
			"Could not understand the response from GitHub API",
			err,
			errors.LevelError,
		)
	}

	info := &RepositoryInfo{
		Name:        raw.Name,
		Owner:       owner,
		FullName:    raw.FullName,
		Description: raw.Description,
		URL:         raw.HTMLURL,
	}

	if raw.CreatedAt != "" {
		createdAt, err := time.Parse(time.RFC3339, raw.CreatedAt)
		if err != nil {
			logger.Warn("Unparseable repository creation time %q for %s/%s", raw.CreatedAt, owner, repo)
		} else {
			info.CreatedAt = &createdAt
		}
	}

	return info, nil
}

// ListCommits pages through the repository's commit history from the since
// boundary forward. Pagination stops at the first short page or the first
// failed page request; whatever was collected so far is returned. Malformed
// commit records are logged and dropped without aborting the fetch.
func (c *Client) ListCommits(ctx context.Context, owner, repo string, opts CommitListOptions) ([]RawCommit, error) {
	path := fmt.Sprintf("/repos/%s/%s/commits", owner, repo)

	queryParams := make(url.Values)
	queryParams.Set("per_page", strconv.Itoa(perPage))
	if !opts.Since.IsZero() {
		queryParams.Set("since", opts.Since.UTC().Format(time.RFC3339))
	}

	var allCommits []RawCommit
	var dropped int
	page := 1
	totalPages := 0

	for {
		queryParams.Set("page", strconv.Itoa(page))
		currentPath := path + "?" + queryParams.Encode()
		logger.Debug("GET %s", currentPath)

		resp, err := c.makeRequest(ctx, "GET", currentPath)
		if err != nil {
			logger.Error("Failed to fetch page %d of commits for %s/%s: %v", page, owner, repo, err)
			break
		}

		if resp.StatusCode != http.StatusOK {
			logger.Error("GitHub API returned status %d when fetching page %d of commits for %s/%s",
				resp.StatusCode, page, owner, repo)
			resp.Body.Close()
			break
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			logger.Error("Failed to read page %d of commits for %s/%s: %v", page, owner, repo, err)
			break
		}

		var items []commitItem
		if err := json.Unmarshal(body, &items); err != nil {
			logger.Error("Failed to parse page %d of commits for %s/%s: %v", page, owner, repo, err)
			break
		}

		for _, item := range items {
			commit, err := parseCommit(item)
			if err != nil {
				dropped++
				logger.Warn("Dropping malformed commit %q: %v", item.SHA, err)
				continue
			}
			allCommits = append(allCommits, *commit)
		}

		if len(items) < perPage {
			break
		}

		if totalPages == 0 {
			if last := parseLastPage(resp.Header.Get("Link")); last > 0 {
				totalPages = last
			}
		}
		if totalPages > 0 {
			logger.Info("Fetched page %d/%d of commits for %s/%s", page, totalPages, owner, repo)
		} else {
			logger.Info("Fetched page %d of commits for %s/%s", page, owner, repo)
		}

		page++
		c.sleep(c.pageDelay)
	}

	if dropped > 0 {
		logger.Warn("Dropped %d malformed commits for %s/%s", dropped, owner, repo)
	}
	logger.Info("Successfully fetched %d commits from GitHub", len(allCommits))
	return allCommits, nil
}

// parseCommit validates one raw commit item. A commit without a sha or a
// committer date never leaves the extraction boundary.
func parseCommit(item commitItem) (*RawCommit, error) {
	if item.SHA == "" {
		return nil, fmt.Errorf("missing sha")
	}

	if item.Commit.Committer == nil || item.Commit.Committer.Date == "" {
		return nil, fmt.Errorf("missing committer date")
	}

	committedAt, err := time.Parse(time.RFC3339, item.Commit.Committer.Date)
	if err != nil {
		return nil, fmt.Errorf("unparseable committer date %q: %w", item.Commit.Committer.Date, err)
	}

	commit := &RawCommit{
		SHA:         item.SHA,
		Message:     item.Commit.Message,
		CommittedAt: committedAt,
		Committer:   mergeIdentity(item.Committer, item.Commit.Committer),
		Author:      mergeIdentity(item.Author, item.Commit.Author),
	}

	if item.Commit.Author != nil && item.Commit.Author.Date != "" {
		authoredAt, err := time.Parse(time.RFC3339, item.Commit.Author.Date)
		if err != nil {
			return nil, fmt.Errorf("unparseable author date %q: %w", item.Commit.Author.Date, err)
		}
		commit.AuthoredAt = &authoredAt
	}

	return commit, nil
}

// mergeIdentity combines the GitHub account identity (login, avatar) with the
// git identity (name, email) into one optional-field person record.
func mergeIdentity(account *accountIdentity, git *gitIdentity) RawPerson {
	var person RawPerson
	if account != nil {
		person.Login = optString(account.Login)
		person.AvatarURL = optString(account.AvatarURL)
	}
	if git != nil {
		person.Name = optString(git.Name)
		person.Email = optString(git.Email)
	}
	return person
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// parseLastPage extracts the rel="last" page number from a Link header.
// Returns 0 when the header carries no usable last page.
func parseLastPage(linkHeader string) int {
	if linkHeader == "" {
		return 0
	}

	for _, link := range strings.Split(linkHeader, ",") {
		if !strings.Contains(link, `rel="last"`) {
			continue
		}
		rawURL := strings.Trim(strings.TrimSpace(strings.Split(link, ";")[0]), "<>")
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return 0
		}
		page, err := strconv.Atoi(parsed.Query().Get("page"))
		if err != nil {
			return 0
		}
		return page
	}

	return 0
}
