package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ============================================================================
// GITHUB PULL REQUEST TOOLS
// ============================================================================

const githubAPIBase = "https://api.github.com"

// githubClient is the shared REST client behind the GitHub tools.
type githubClient struct {
	client *http.Client
	token  string
	owner  string
	repo   string
}

func (c *githubClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, githubAPIBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GitHub API error %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// resolveRepo applies per-call owner/repo overrides over the configured defaults.
func (c *githubClient) resolveRepo(owner, repo string) (string, string) {
	if owner == "" {
		owner = c.owner
	}
	if repo == "" {
		repo = c.repo
	}
	return owner, repo
}

type pullRequest struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	State     string `json:"state"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	User      struct {
		Login string `json:"login"`
	} `json:"user"`
}

type pullRequestFile struct {
	Filename string `json:"filename"`
	Patch    string `json:"patch"`
}

// --- Fetch Pull Request ---

// FetchPRArgs are the arguments for fetch_pull_request.
type FetchPRArgs struct {
	PRNumber int    `json:"pr_number" jsonschema:"required,description=The pull request number"`
	Owner    string `json:"owner,omitempty" jsonschema:"description=Repository owner/org (optional; defaults to GITHUB_ORG)"`
	Repo     string `json:"repo,omitempty" jsonschema:"description=Repository name (optional; defaults to GITHUB_REPO)"`
}

// FetchPRResult is the tool's JSON payload.
type FetchPRResult struct {
	Number    int      `json:"number"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	State     string   `json:"state"`
	Author    string   `json:"author"`
	Files     []string `json:"files"`
	Additions int      `json:"additions"`
	Deletions int      `json:"deletions"`
}

// FetchPRTool fetches pull request details.
type FetchPRTool struct {
	client *githubClient
	schema map[string]interface{}
}

func (t *FetchPRTool) GetName() string {
	return "fetch_pull_request"
}

func (t *FetchPRTool) GetDescription() string {
	return "Fetches a pull request by number. Returns PR details including title, body, description, and changed files. Can optionally specify owner/repo."
}

func (t *FetchPRTool) GetSchema() map[string]interface{} {
	return t.schema
}

func (t *FetchPRTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var parsed FetchPRArgs
	if err := decodeArgs(args, &parsed); err != nil {
		return nil, err
	}
	owner, repo := t.client.resolveRepo(parsed.Owner, parsed.Repo)

	var pr pullRequest
	if err := t.client.get(ctx, fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, parsed.PRNumber), &pr); err != nil {
		return nil, err
	}

	var files []pullRequestFile
	if err := t.client.get(ctx, fmt.Sprintf("/repos/%s/%s/pulls/%d/files", owner, repo, parsed.PRNumber), &files); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Filename)
	}

	author := pr.User.Login
	if author == "" {
		author = "unknown"
	}

	return FetchPRResult{
		Number:    pr.Number,
		Title:     pr.Title,
		Body:      pr.Body,
		State:     pr.State,
		Author:    author,
		Files:     names,
		Additions: pr.Additions,
		Deletions: pr.Deletions,
	}, nil
}

// --- Get Pull Request Diff ---

// GetDiffArgs are the arguments for get_pull_request_diff.
type GetDiffArgs struct {
	PRNumber int    `json:"pr_number" jsonschema:"required,description=The pull request number"`
	Owner    string `json:"owner,omitempty" jsonschema:"description=Repository owner/org (optional)"`
	Repo     string `json:"repo,omitempty" jsonschema:"description=Repository name (optional)"`
}

// GetDiffResult is the tool's JSON payload.
type GetDiffResult struct {
	Diff string `json:"diff"`
}

// GetDiffTool returns the full per-file diff of a pull request.
type GetDiffTool struct {
	client *githubClient
	schema map[string]interface{}
}

func (t *GetDiffTool) GetName() string {
	return "get_pull_request_diff"
}

func (t *GetDiffTool) GetDescription() string {
	return "Gets the full diff for a pull request showing all code changes. Can optionally specify owner/repo."
}

func (t *GetDiffTool) GetSchema() map[string]interface{} {
	return t.schema
}

func (t *GetDiffTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var parsed GetDiffArgs
	if err := decodeArgs(args, &parsed); err != nil {
		return nil, err
	}
	owner, repo := t.client.resolveRepo(parsed.Owner, parsed.Repo)

	var files []pullRequestFile
	if err := t.client.get(ctx, fmt.Sprintf("/repos/%s/%s/pulls/%d/files", owner, repo, parsed.PRNumber), &files); err != nil {
		return nil, err
	}

	var diffs []string
	for _, f := range files {
		if f.Patch != "" {
			diffs = append(diffs, fmt.Sprintf("File: %s\n%s\n", f.Filename, f.Patch))
		}
	}

	return GetDiffResult{Diff: strings.Join(diffs, "\n---\n\n")}, nil
}

// --- Factory ---

// NewGitHubTools builds the GitHub tool set; requires GITHUB_TOKEN,
// GITHUB_ORG and GITHUB_REPO.
func NewGitHubTools() ([]Tool, error) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return nil, NewConfigMissingError("github", "GITHUB_TOKEN")
	}
	owner := os.Getenv("GITHUB_ORG")
	if owner == "" {
		return nil, NewConfigMissingError("github", "GITHUB_ORG")
	}
	repo := os.Getenv("GITHUB_REPO")
	if repo == "" {
		return nil, NewConfigMissingError("github", "GITHUB_REPO")
	}

	client := &githubClient{
		client: &http.Client{Timeout: 30 * time.Second},
		token:  token,
		owner:  owner,
		repo:   repo,
	}

	return []Tool{
		&FetchPRTool{client: client, schema: ReflectSchema(&FetchPRArgs{})},
		&GetDiffTool{client: client, schema: ReflectSchema(&GetDiffArgs{})},
	}, nil
}
