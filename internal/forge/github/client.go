package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/shojbahmed330/appify-backend/internal/forge/domain"
	projdomain "github.com/shojbahmed330/appify-backend/internal/projects/domain"
)

const defaultBaseURL = "https://api.github.com"

// Client talks to the GitHub REST API with a user-supplied bearer token.
// Writes use the contents API's conditional-SHA cycle so each file update
// is individually atomic.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(time.Duration)
}

func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// GitHub's secondary limits dislike bursts of content writes.
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		sleep:   time.Sleep,
	}
}

// NewClientForBase points the client at a non-default API base. Used by
// tests with httptest servers.
func NewClientForBase(baseURL string) *Client {
	c := NewClient()
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.sleep = func(time.Duration) {}
	return c
}

func (c *Client) do(ctx context.Context, method, url, token string, body any) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// EnsureRepo resolves the authenticated user and makes sure a repository
// with the given name exists under it, returning the owner login.
// Idempotent: an existing repository is returned untouched. After creating
// a fresh repository it tries to enable Pages publishing with bounded
// retries; Pages failures are logged, not returned, since the workflow's
// own deploy job re-establishes publishing.
func (c *Client) EnsureRepo(ctx context.Context, token, repoName string) (string, error) {
	userRes, err := c.do(ctx, http.MethodGet, c.baseURL+"/user", token, nil)
	if err != nil {
		return "", fmt.Errorf("resolve user: %w", err)
	}
	defer userRes.Body.Close()
	if userRes.StatusCode != http.StatusOK {
		return "", domain.ErrAuthentication
	}

	var user struct {
		Login string `json:"login"`
	}
	if err := json.NewDecoder(userRes.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("decode user: %w", err)
	}

	checkRes, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/repos/%s/%s", c.baseURL, user.Login, repoName), token, nil)
	if err != nil {
		return "", fmt.Errorf("check repo: %w", err)
	}
	io.Copy(io.Discard, checkRes.Body)
	checkRes.Body.Close()
	if checkRes.StatusCode == http.StatusOK {
		return user.Login, nil
	}

	createRes, err := c.do(ctx, http.MethodPost, c.baseURL+"/user/repos", token, map[string]any{
		"name":      repoName,
		"private":   false,
		"auto_init": true,
	})
	if err != nil {
		return "", fmt.Errorf("create repo: %w", err)
	}
	io.Copy(io.Discard, createRes.Body)
	createRes.Body.Close()
	// 422 means the name already exists, which is fine.
	if createRes.StatusCode >= 300 && createRes.StatusCode != http.StatusUnprocessableEntity {
		return "", fmt.Errorf("create repo: status %d", createRes.StatusCode)
	}

	// Give the fresh repository time to initialize its metadata before
	// touching Pages.
	c.sleep(3 * time.Second)

	for i := 0; i < 3; i++ {
		pagesRes, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/repos/%s/%s/pages", c.baseURL, user.Login, repoName), token, map[string]any{
			"build_type": "workflow",
		})
		if err == nil {
			io.Copy(io.Discard, pagesRes.Body)
			pagesRes.Body.Close()
			if pagesRes.StatusCode < 300 {
				return user.Login, nil
			}
		}
		c.sleep(2 * time.Second)
	}
	log.Printf("github: could not enable pages for %s/%s, deploy job will retry", user.Login, repoName)

	return user.Login, nil
}

// Push writes the workspace files plus the synthesized packaging manifest
// into the repository, one conditional write per file, and writes the
// workflow definition strictly last. The first failed write aborts the
// rest of the batch.
func (c *Client) Push(ctx context.Context, cfg domain.GithubConfig, files map[string]string, appCfg projdomain.ProjectConfig, message string) error {
	if message == "" {
		message = "Sync"
	}

	all := make(map[string]string, len(files)+2)
	for path, content := range files {
		all[path] = content
	}
	all["capacitor.config.json"] = capacitorConfigJSON(appCfg)
	if appCfg.Icon != "" {
		all["assets/icon-only.png"] = appCfg.Icon
	}

	paths := make([]string, 0, len(all))
	for path := range all {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := c.putFile(ctx, cfg, path, encodeContent(path, all[path]), fmt.Sprintf("%s [%s]", message, path)); err != nil {
			return &domain.PushError{Path: path, Err: err}
		}
	}

	// The workflow file goes last: it is the trigger, and it must observe
	// the complete file-set.
	if err := c.putFile(ctx, cfg, WorkflowPath, base64Encode(WorkflowYAML(appCfg)), fmt.Sprintf("Trigger Build Engine [%s]", WorkflowPath)); err != nil {
		return &domain.PushError{Path: WorkflowPath, Err: err}
	}
	return nil
}

// putFile runs one read-current-SHA / conditional-write cycle.
func (c *Client) putFile(ctx context.Context, cfg domain.GithubConfig, path, contentB64, message string) error {
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, cfg.Owner, cfg.Repo, path)

	var sha string
	getRes, err := c.do(ctx, http.MethodGet, url, cfg.Token, nil)
	if err != nil {
		return err
	}
	if getRes.StatusCode == http.StatusOK {
		var current struct {
			SHA string `json:"sha"`
		}
		if err := json.NewDecoder(getRes.Body).Decode(&current); err == nil {
			sha = current.SHA
		}
	}
	io.Copy(io.Discard, getRes.Body)
	getRes.Body.Close()

	body := map[string]any{
		"message": message,
		"content": contentB64,
	}
	if sha != "" {
		body["sha"] = sha
	}

	putRes, err := c.do(ctx, http.MethodPut, url, cfg.Token, body)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, putRes.Body)
	putRes.Body.Close()
	if putRes.StatusCode >= 300 {
		return fmt.Errorf("write failed: status %d", putRes.StatusCode)
	}
	return nil
}

// encodeContent prepares file content for the contents API. Data-URL and
// asset entries already hold base64 payloads and are passed through
// undecoded; text content is base64-encoded here.
func encodeContent(path, content string) string {
	if strings.HasPrefix(content, "data:image") || strings.HasPrefix(path, "assets/") {
		if idx := strings.IndexByte(content, ','); idx >= 0 {
			return content[idx+1:]
		}
		return content
	}
	return base64Encode(content)
}

func base64Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
