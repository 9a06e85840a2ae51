package studio

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	forgedomain "github.com/shojbahmed330/appify-backend/internal/forge/domain"
	"github.com/shojbahmed330/appify-backend/internal/generation"
	projdomain "github.com/shojbahmed330/appify-backend/internal/projects/domain"
)

const (
	// healAttemptCap bounds the automatic fix loop per fault burst; the
	// counter resets on every user-initiated send.
	healAttemptCap = 4

	healedClearDelay = 2 * time.Second
	autosaveDelay    = 3 * time.Second
	sessionCacheSize = 256
)

// ProjectStore is the persistence surface the studio needs. Satisfied by
// the projects service.
type ProjectStore interface {
	Get(ctx context.Context, userDBID, publicID string) (*projdomain.Project, error)
	Update(ctx context.Context, userDBID, publicID string, files map[string]string, cfg projdomain.ProjectConfig) error
	CreateSnapshot(ctx context.Context, projectID string, files map[string]string, summary string) (*projdomain.Snapshot, error)
	SnapshotFiles(ctx context.Context, userDBID, publicID, snapshotID string) (map[string]string, error)
	Rollback(ctx context.Context, userDBID, publicID, snapshotID string) (map[string]string, error)
}

// Generator is satisfied by the generation client.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (generation.Result, error)
}

// Pusher is the best-effort background push to the forge. Satisfied by the
// github client.
type Pusher interface {
	Push(ctx context.Context, cfg forgedomain.GithubConfig, files map[string]string, appCfg projdomain.ProjectConfig, message string) error
}

// CredentialStore is satisfied by users.Repo.
type CredentialStore interface {
	GithubConfig(ctx context.Context, userDBID string) (forgedomain.GithubConfig, error)
}

// Manager owns the live studio sessions and coordinates generation,
// persistence, snapshotting, background pushes and the self-healing loop.
type Manager struct {
	store ProjectStore
	gen   Generator
	forge Pusher
	creds CredentialStore

	sessions *lru.Cache[string, *Session]

	// afterFunc is swapped for a manual trigger in tests.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

func NewManager(store ProjectStore, gen Generator, forge Pusher, creds CredentialStore) (*Manager, error) {
	m := &Manager{
		store:     store,
		gen:       gen,
		forge:     forge,
		creds:     creds,
		afterFunc: time.AfterFunc,
	}
	cache, err := lru.NewWithEvict[string, *Session](sessionCacheSize, func(_ string, s *Session) {
		m.flush(s)
	})
	if err != nil {
		return nil, err
	}
	m.sessions = cache
	return m, nil
}

func (m *Manager) session(ctx context.Context, userID, projectID string) (*Session, error) {
	key := userID + "/" + projectID
	if s, ok := m.sessions.Get(key); ok {
		return s, nil
	}

	p, err := m.store.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	s := newSession(userID, p)
	m.sessions.Add(key, s)
	return s, nil
}

// State returns the current session view, creating the session from
// persisted project state on first touch.
func (m *Manager) State(ctx context.Context, userID, projectID string) (View, error) {
	s, err := m.session(ctx, userID, projectID)
	if err != nil {
		return View{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(), nil
}

// Preview returns the file-set the preview pane should render: the live
// working files, or a point-in-time snapshot view when snapshotID is set.
// The snapshot view never touches the session's working files.
func (m *Manager) Preview(ctx context.Context, userID, projectID, snapshotID string) (map[string]string, error) {
	if snapshotID != "" {
		return m.store.SnapshotFiles(ctx, userID, projectID, snapshotID)
	}
	s, err := m.session(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyFiles(s.files), nil
}

// Send runs one generation round: user turn in, model patch merged, then
// persist → snapshot → best-effort background push. Only one generation
// may be in flight per session. Generation failures are rendered as an
// assistant transcript entry, never returned as an error.
func (m *Manager) Send(ctx context.Context, userID, projectID, prompt string, image *generation.Image, highTier bool) (View, error) {
	s, err := m.session(ctx, userID, projectID)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	if s.generating {
		s.mu.Unlock()
		return View{}, ErrGenerationInFlight
	}
	s.generating = true
	s.healAttempts = 0
	s.notice = ""
	s.fault = nil // superseded by a fresh user request
	s.cancelAutosaveLocked()
	// History is captured before the user turn is appended; the prompt
	// travels in its own slot, not as the last history entry.
	history := s.historyForModel()
	s.transcript = append(s.transcript, Message{
		ID:        uuid.NewString(),
		Role:      "user",
		Content:   prompt,
		CreatedAt: time.Now(),
	})
	req := generation.Request{
		Prompt:       prompt,
		CurrentFiles: copyFiles(s.files),
		History:      history,
		Image:        image,
		HighTier:     highTier,
		SupabaseURL:  s.config.SupabaseURL,
		SupabaseKey:  s.config.SupabaseKey,
	}
	s.mu.Unlock()

	res, genErr := m.gen.Generate(ctx, req)

	s.mu.Lock()
	s.generating = false

	if genErr != nil {
		s.transcript = append(s.transcript, Message{
			ID:        uuid.NewString(),
			Role:      "assistant",
			Content:   genErr.Error(),
			Error:     true,
			CreatedAt: time.Now(),
		})
		view := s.view()
		deferred := s.pendingFault
		s.pendingFault = nil
		s.mu.Unlock()

		if deferred != nil {
			if v, err := m.processFault(ctx, s, *deferred); err == nil {
				view = v
			}
		}
		return view, nil
	}

	if res.Thought != "" {
		s.lastThought = res.Thought
	}
	if res.Files != nil {
		s.mergePatch(res.Files)
	}
	s.transcript = append(s.transcript, Message{
		ID:        uuid.NewString(),
		Role:      "assistant",
		Content:   res.Answer,
		Questions: res.Questions,
		Files:     res.Files,
		CreatedAt: time.Now(),
	})
	files := copyFiles(s.files)
	cfg := s.config
	deferred := s.pendingFault
	s.pendingFault = nil
	view := s.view()
	s.mu.Unlock()

	// Local persistence is authoritative; snapshot and push depend on it.
	if err := m.store.Update(ctx, userID, projectID, files, cfg); err != nil {
		log.Printf("studio %s: persist after generation: %v", projectID, err)
		s.mu.Lock()
		s.notice = "Generated changes could not be saved."
		view = s.view()
		s.mu.Unlock()
		return view, nil
	}
	if _, err := m.store.CreateSnapshot(ctx, projectID, files, res.Summary); err != nil {
		log.Printf("studio %s: snapshot: %v", projectID, err)
	}
	m.pushAsync(userID, files, cfg)

	if deferred != nil {
		if v, err := m.processFault(ctx, s, *deferred); err == nil {
			view = v
		}
	}
	return view, nil
}

// ReportFault handles a runtime fault from the rendered preview. Faults
// arriving mid-generation are deferred, not dropped; otherwise the
// self-healing loop runs, bounded by healAttemptCap.
func (m *Manager) ReportFault(ctx context.Context, userID, projectID string, fault RuntimeFault) (View, error) {
	s, err := m.session(ctx, userID, projectID)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	if s.generating {
		s.pendingFault = &fault
		view := s.view()
		s.mu.Unlock()
		return view, nil
	}
	s.mu.Unlock()

	return m.processFault(ctx, s, fault)
}

func (m *Manager) processFault(ctx context.Context, s *Session, fault RuntimeFault) (View, error) {
	s.mu.Lock()
	s.fault = &fault

	if s.healing {
		view := s.view()
		s.mu.Unlock()
		return view, nil
	}
	if s.healAttempts >= healAttemptCap {
		s.notice = "Automatic fixes exhausted. Manual intervention needed."
		view := s.view()
		s.mu.Unlock()
		return view, nil
	}

	s.healAttempts++
	s.healing = true
	prompt := fmt.Sprintf("A runtime error was detected in %s at line %d: %s. Fix the affected files.", fault.Source, fault.Line, fault.Message)
	if fault.Stack != "" {
		prompt += "\nStack trace:\n" + fault.Stack
	}
	req := generation.Request{
		Prompt:       prompt,
		CurrentFiles: copyFiles(s.files),
		History:      s.historyForModel(),
		SupabaseURL:  s.config.SupabaseURL,
		SupabaseKey:  s.config.SupabaseKey,
	}
	userID, projectID := s.userID, s.projectID
	s.mu.Unlock()

	res, genErr := m.gen.Generate(ctx, req)

	s.mu.Lock()
	s.healing = false
	if genErr != nil {
		s.notice = "Automatic fix failed: " + genErr.Error()
		view := s.view()
		s.mu.Unlock()
		return view, nil
	}

	if res.Files != nil {
		s.mergePatch(res.Files)
	}
	s.fault = nil
	s.justHealed = true
	s.notice = "Runtime issue fixed automatically."
	m.afterFunc(healedClearDelay, func() {
		s.mu.Lock()
		s.justHealed = false
		s.mu.Unlock()
	})
	files := copyFiles(s.files)
	cfg := s.config
	view := s.view()
	s.mu.Unlock()

	if err := m.store.Update(ctx, userID, projectID, files, cfg); err != nil {
		log.Printf("studio %s: persist after auto-fix: %v", projectID, err)
	} else if _, err := m.store.CreateSnapshot(ctx, projectID, files, "Auto-fix: "+fault.Message); err != nil {
		log.Printf("studio %s: snapshot after auto-fix: %v", projectID, err)
	}
	return view, nil
}

// Rollback restores a snapshot into both the store and the live session.
// Store failures surface to the caller: a failed restore is a
// data-integrity problem the user must see.
func (m *Manager) Rollback(ctx context.Context, userID, projectID, snapshotID string) (View, error) {
	s, err := m.session(ctx, userID, projectID)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	if s.generating {
		s.mu.Unlock()
		return View{}, ErrGenerationInFlight
	}
	s.cancelAutosaveLocked()
	s.mu.Unlock()

	files, err := m.store.Rollback(ctx, userID, projectID, snapshotID)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = copyFiles(files)
	s.fault = nil
	return s.view(), nil
}

// pushAsync fires a best-effort background push over an immutable copy of
// the file-set. Failures are logged, never surfaced: local state is
// already durably saved.
func (m *Manager) pushAsync(userID string, files map[string]string, cfg projdomain.ProjectConfig) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		gh, err := m.creds.GithubConfig(ctx, userID)
		if err != nil || gh.Token == "" || gh.Owner == "" || gh.Repo == "" {
			return
		}
		if err := m.forge.Push(ctx, gh, files, cfg, "Sync"); err != nil {
			log.Printf("studio: background push: %v", err)
		}
	}()
}

// flush persists a session being evicted from the registry.
func (m *Manager) flush(s *Session) {
	s.mu.Lock()
	s.cancelAutosaveLocked()
	files := copyFiles(s.files)
	cfg := s.config
	userID, projectID := s.userID, s.projectID
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.Update(ctx, userID, projectID, files, cfg); err != nil {
		log.Printf("studio %s: flush on eviction: %v", projectID, err)
	}
}
