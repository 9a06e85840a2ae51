package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shojbahmed330/appify-backend/internal/forge/domain"
	projdomain "github.com/shojbahmed330/appify-backend/internal/projects/domain"
)

// Forge is the remote source-host + CI surface. Satisfied by
// github.Client; tests substitute fakes.
type Forge interface {
	EnsureRepo(ctx context.Context, token, repoName string) (string, error)
	Push(ctx context.Context, cfg domain.GithubConfig, files map[string]string, appCfg projdomain.ProjectConfig, message string) error
	LatestRun(ctx context.Context, cfg domain.GithubConfig) (*domain.RunDetails, error)
	LatestArtifact(ctx context.Context, cfg domain.GithubConfig) (*domain.Artifact, error)
	DownloadArtifact(ctx context.Context, cfg domain.GithubConfig, url string) ([]byte, error)
}

// RunStore is satisfied by repository.RunRepository.
type RunStore interface {
	Save(ctx context.Context, run *domain.BuildRun) error
	Get(ctx context.Context, projectID string) (*domain.BuildRun, error)
}

// CredentialStore loads and persists the user's forge credential and push
// target. Satisfied by users.Repo.
type CredentialStore interface {
	GithubConfig(ctx context.Context, userDBID string) (domain.GithubConfig, error)
	UpdateGithubConfig(ctx context.Context, userDBID string, cfg domain.GithubConfig) error
}

const defaultPollInterval = 5 * time.Second

type poller struct {
	cancel context.CancelFunc
}

// BuildService drives the build state machine:
// idle → pushing → building → success | error. A new trigger from any
// terminal state restarts at pushing. At most one poll loop runs per
// project; triggering again cancels the previous one first.
type BuildService struct {
	forge        Forge
	runs         RunStore
	creds        CredentialStore
	pollInterval time.Duration

	mu      sync.Mutex
	pollers map[string]*poller
}

func New(forge Forge, runs RunStore, creds CredentialStore) *BuildService {
	return &BuildService{
		forge:        forge,
		runs:         runs,
		creds:        creds,
		pollInterval: defaultPollInterval,
		pollers:      make(map[string]*poller),
	}
}

// Trigger starts a build for the project's current file-set. Without a
// stored token no state transition happens: the caller gets
// ErrCredentialRequired and routes the user to credential setup.
func (s *BuildService) Trigger(ctx context.Context, userID, projectID string, files map[string]string, appCfg projdomain.ProjectConfig) (*domain.BuildRun, error) {
	cfg, err := s.creds.GithubConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, domain.ErrCredentialRequired
	}

	run := &domain.BuildRun{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProjectID: projectID,
		Status:    domain.StatusPushing,
		Message:   "Syncing Workspace...",
	}
	if err := s.runs.Save(ctx, run); err != nil {
		return nil, err
	}

	// The background task closes over an immutable copy of the file-set
	// and config so edits after the trigger cannot leak into the push.
	filesCopy := make(map[string]string, len(files))
	for k, v := range files {
		filesCopy[k] = v
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p := &poller{cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.pollers[projectID]; ok {
		prev.cancel()
	}
	s.pollers[projectID] = p
	s.mu.Unlock()

	go s.execute(runCtx, p, run, cfg, filesCopy, appCfg)

	return run, nil
}

func (s *BuildService) execute(ctx context.Context, p *poller, run *domain.BuildRun, cfg domain.GithubConfig, files map[string]string, appCfg projdomain.ProjectConfig) {
	defer s.release(run.ProjectID, p)

	repoName := projdomain.RepoNameForApp(appCfg.AppName)
	owner, err := s.forge.EnsureRepo(ctx, cfg.Token, repoName)
	if err != nil {
		s.fail(run, "Failed to prepare repository: "+err.Error())
		return
	}
	cfg.Owner = owner
	cfg.Repo = repoName
	if err := s.creds.UpdateGithubConfig(ctx, run.UserID, cfg); err != nil {
		log.Printf("build %s: persist github config: %v", run.ID, err)
	}

	if err := s.forge.Push(ctx, cfg, files, appCfg, "Sync"); err != nil {
		s.fail(run, err.Error())
		return
	}

	run.Status = domain.StatusBuilding
	run.Message = "Workflow Started..."
	s.save(run)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Superseded by a newer build or shutting down.
			return
		case <-ticker.C:
			details, err := s.forge.LatestRun(ctx, cfg)
			if err != nil {
				if errors.Is(err, domain.ErrAuthentication) {
					s.fail(run, "GitHub rejected the stored token. Update it and retry.")
					return
				}
				log.Printf("build %s: poll: %v", run.ID, err)
				continue
			}
			if details == nil {
				continue
			}

			run.Steps = details.Steps
			if details.Status != domain.RunCompleted {
				s.save(run)
				continue
			}

			if details.Conclusion == domain.ConclusionSuccess {
				art, err := s.forge.LatestArtifact(ctx, cfg)
				if err != nil {
					if errors.Is(err, domain.ErrArtifactNotFound) {
						s.fail(run, "Build succeeded but no artifact was found.")
					} else {
						s.fail(run, "Failed to resolve artifact: "+err.Error())
					}
					return
				}
				run.Status = domain.StatusSuccess
				run.Message = "Build Complete!"
				run.ApkURL = art.DownloadURL
				run.WebURL = art.WebURL
				run.RunURL = art.RunURL
				s.save(run)
				return
			}

			s.fail(run, "Build Failed: "+strings.ToUpper(details.Conclusion))
			return
		}
	}
}

// Status returns the project's current build state, or an idle run when no
// build has ever been triggered.
func (s *BuildService) Status(ctx context.Context, projectID string) (*domain.BuildRun, error) {
	run, err := s.runs.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return &domain.BuildRun{ProjectID: projectID, Status: domain.StatusIdle}, nil
		}
		return nil, err
	}
	return run, nil
}

// DownloadArtifact proxies the artifact archive using the stored token.
func (s *BuildService) DownloadArtifact(ctx context.Context, userID, projectID string) ([]byte, error) {
	run, err := s.runs.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if run.ApkURL == "" {
		return nil, domain.ErrArtifactNotFound
	}
	cfg, err := s.creds.GithubConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.forge.DownloadArtifact(ctx, cfg, run.ApkURL)
}

// Close cancels every active poll loop.
func (s *BuildService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.pollers {
		p.cancel()
		delete(s.pollers, id)
	}
}

func (s *BuildService) fail(run *domain.BuildRun, message string) {
	run.Status = domain.StatusError
	run.Message = message
	s.save(run)
}

func (s *BuildService) save(run *domain.BuildRun) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.runs.Save(ctx, run); err != nil {
		log.Printf("build %s: save state: %v", run.ID, err)
	}
}

// release drops the poller registration if it is still ours.
func (s *BuildService) release(projectID string, p *poller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.pollers[projectID]; ok && cur == p {
		delete(s.pollers, projectID)
	}
}

func (s *BuildService) activePollers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pollers)
}
