package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shojbahmed330/appify-backend/internal/forge/domain"
)

// LatestRun reports the most recent workflow run and the flattened step
// statuses across its jobs. Returns (nil, nil) while no run exists yet;
// the poller just tries again.
func (c *Client) LatestRun(ctx context.Context, cfg domain.GithubConfig) (*domain.RunDetails, error) {
	run, err := c.latestRawRun(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}

	details := &domain.RunDetails{
		Status:     run.Status,
		Conclusion: run.Conclusion,
		RunURL:     run.HTMLURL,
	}

	jobsRes, err := c.do(ctx, http.MethodGet, run.JobsURL, cfg.Token, nil)
	if err != nil {
		return nil, err
	}
	defer jobsRes.Body.Close()

	var jobs struct {
		Jobs []struct {
			Steps []struct {
				Name       string `json:"name"`
				Status     string `json:"status"`
				Conclusion string `json:"conclusion"`
			} `json:"steps"`
		} `json:"jobs"`
	}
	if err := json.NewDecoder(jobsRes.Body).Decode(&jobs); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	for _, job := range jobs.Jobs {
		for _, step := range job.Steps {
			details.Steps = append(details.Steps, domain.BuildStep{
				Name:       step.Name,
				Status:     step.Status,
				Conclusion: step.Conclusion,
			})
		}
	}
	return details, nil
}

// LatestArtifact resolves the packaged binary of the latest run. Only a
// completed, successful run yields an artifact; a successful run without
// the named artifact is ErrArtifactNotFound.
func (c *Client) LatestArtifact(ctx context.Context, cfg domain.GithubConfig) (*domain.Artifact, error) {
	run, err := c.latestRawRun(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if run == nil || run.Status != domain.RunCompleted || run.Conclusion != domain.ConclusionSuccess {
		return nil, domain.ErrArtifactNotFound
	}

	res, err := c.do(ctx, http.MethodGet, run.ArtifactsURL, cfg.Token, nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var payload struct {
		Artifacts []struct {
			Name               string `json:"name"`
			ArchiveDownloadURL string `json:"archive_download_url"`
		} `json:"artifacts"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode artifacts: %w", err)
	}

	for _, a := range payload.Artifacts {
		if a.Name == ArtifactName {
			return &domain.Artifact{
				DownloadURL: a.ArchiveDownloadURL,
				WebURL:      fmt.Sprintf("https://%s.github.io/%s/", cfg.Owner, cfg.Repo),
				RunURL:      run.HTMLURL,
			}, nil
		}
	}
	return nil, domain.ErrArtifactNotFound
}

type rawRun struct {
	Status       string `json:"status"`
	Conclusion   string `json:"conclusion"`
	HTMLURL      string `json:"html_url"`
	JobsURL      string `json:"jobs_url"`
	ArtifactsURL string `json:"artifacts_url"`
}

func (c *Client) latestRawRun(ctx context.Context, cfg domain.GithubConfig) (*rawRun, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/actions/runs?per_page=1", c.baseURL, cfg.Owner, cfg.Repo)
	res, err := c.do(ctx, http.MethodGet, url, cfg.Token, nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return nil, domain.ErrAuthentication
	}
	if res.StatusCode != http.StatusOK {
		// Transient; the poller keeps going.
		return nil, nil
	}

	var payload struct {
		WorkflowRuns []rawRun `json:"workflow_runs"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode runs: %w", err)
	}
	if len(payload.WorkflowRuns) == 0 {
		return nil, nil
	}
	return &payload.WorkflowRuns[0], nil
}

// DownloadArtifact fetches the artifact archive with the stored token so
// the browser never sees the credential.
func (c *Client) DownloadArtifact(ctx context.Context, cfg domain.GithubConfig, url string) ([]byte, error) {
	res, err := c.do(ctx, http.MethodGet, url, cfg.Token, nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: status %d", res.StatusCode)
	}
	return io.ReadAll(res.Body)
}
