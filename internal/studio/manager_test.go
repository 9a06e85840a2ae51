package studio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	forgedomain "github.com/shojbahmed330/appify-backend/internal/forge/domain"
	"github.com/shojbahmed330/appify-backend/internal/generation"
	projdomain "github.com/shojbahmed330/appify-backend/internal/projects/domain"
)

type fakeStore struct {
	mu            sync.Mutex
	project       *projdomain.Project
	updates       []map[string]string
	snapshots     []string // summaries, in creation order
	rollbackFiles map[string]string
	rollbackErr   error
	snapshotFiles map[string]string
}

func (f *fakeStore) Get(_ context.Context, _, publicID string) (*projdomain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.project == nil || f.project.PublicID != publicID {
		return nil, projdomain.ErrProjectNotFound
	}
	p := *f.project
	return &p, nil
}

func (f *fakeStore) Update(_ context.Context, _, _ string, files map[string]string, cfg projdomain.ProjectConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.project.Files = files
	f.project.Config = cfg
	f.updates = append(f.updates, files)
	return nil
}

func (f *fakeStore) CreateSnapshot(_ context.Context, projectID string, files map[string]string, summary string) (*projdomain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, summary)
	return &projdomain.Snapshot{ID: "snap-1", ProjectID: projectID, Files: files, Summary: summary}, nil
}

func (f *fakeStore) SnapshotFiles(_ context.Context, _, _, _ string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshotFiles == nil {
		return nil, projdomain.ErrSnapshotNotFound
	}
	return f.snapshotFiles, nil
}

func (f *fakeStore) Rollback(_ context.Context, _, _, _ string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rollbackErr != nil {
		return nil, f.rollbackErr
	}
	return f.rollbackFiles, nil
}

func (f *fakeStore) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type fakeGen struct {
	mu      sync.Mutex
	results []generation.Result
	errs    []error
	calls   []generation.Request
	block   chan struct{} // when set, the first call blocks until closed
}

func (f *fakeGen) Generate(_ context.Context, req generation.Request) (generation.Result, error) {
	f.mu.Lock()
	idx := len(f.calls)
	f.calls = append(f.calls, req)
	block := f.block
	f.block = nil
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if idx < len(f.errs) && f.errs[idx] != nil {
		return generation.Result{}, f.errs[idx]
	}
	if idx < len(f.results) {
		return f.results[idx], nil
	}
	return generation.Result{Answer: "ok", Summary: "change"}, nil
}

func (f *fakeGen) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePusher struct {
	mu    sync.Mutex
	calls []map[string]string
}

func (f *fakePusher) Push(_ context.Context, _ forgedomain.GithubConfig, files map[string]string, _ projdomain.ProjectConfig, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, files)
	return nil
}

func (f *fakePusher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCreds struct {
	cfg forgedomain.GithubConfig
}

func (f *fakeCreds) GithubConfig(_ context.Context, _ string) (forgedomain.GithubConfig, error) {
	return f.cfg, nil
}

// fakeClock records scheduled callbacks instead of running them.
type fakeClock struct {
	mu    sync.Mutex
	durs  []time.Duration
	funcs []func()
}

func (f *fakeClock) afterFunc(d time.Duration, fn func()) *time.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durs = append(f.durs, d)
	f.funcs = append(f.funcs, fn)
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func (f *fakeClock) fireLast() {
	f.mu.Lock()
	fn := f.funcs[len(f.funcs)-1]
	f.mu.Unlock()
	fn()
}

func (f *fakeClock) scheduled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.funcs)
}

func newTestManager(t *testing.T) (*Manager, *fakeStore, *fakeGen, *fakePusher, *fakeClock) {
	store := &fakeStore{project: &projdomain.Project{
		PublicID: "appify-10000-0001",
		Name:     "My App",
		Files:    projdomain.DefaultFiles(),
		Config:   projdomain.DefaultConfig(),
	}}
	gen := &fakeGen{}
	pusher := &fakePusher{}
	clock := &fakeClock{}

	m, err := NewManager(store, gen, pusher, &fakeCreds{cfg: forgedomain.GithubConfig{
		Token: "tok", Owner: "octo", Repo: "my-app-studio",
	}})
	require.NoError(t, err)
	m.afterFunc = clock.afterFunc
	return m, store, gen, pusher, clock
}

const projID = "appify-10000-0001"

func TestSend_GenerateMergePersistPush(t *testing.T) {
	m, store, gen, pusher, _ := newTestManager(t)
	gen.results = []generation.Result{{
		Answer:  "Added a login page.",
		Summary: "Add login page",
		Files:   map[string]string{"app/login.html": "<form></form>"},
		Thought: "user wants auth",
	}}

	view, err := m.Send(context.Background(), "user-1", projID, "add a login page", nil, false)
	require.NoError(t, err)

	assert.Equal(t, "<form></form>", view.Files["app/login.html"])
	assert.Contains(t, view.Files, "app/index.html", "patch merge keeps untouched files")
	assert.Equal(t, "user wants auth", view.LastThought)
	assert.False(t, view.Generating)

	require.Len(t, view.Transcript, 2)
	assert.Equal(t, "user", view.Transcript[0].Role)
	assert.Equal(t, "assistant", view.Transcript[1].Role)
	assert.Equal(t, "Added a login page.", view.Transcript[1].Content)

	// Persisted and snapshotted with the model's summary.
	assert.Equal(t, 1, store.updateCount())
	assert.Equal(t, []string{"Add login page"}, store.snapshots)

	// Background push fires with the merged file-set.
	require.Eventually(t, func() bool { return pusher.callCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	pusher.mu.Lock()
	assert.Equal(t, "<form></form>", pusher.calls[0]["app/login.html"])
	pusher.mu.Unlock()
}

func TestSend_GenerationErrorBecomesTranscriptEntry(t *testing.T) {
	m, store, gen, pusher, _ := newTestManager(t)
	gen.errs = []error{errors.New("model unavailable")}

	view, err := m.Send(context.Background(), "user-1", projID, "do something", nil, false)
	require.NoError(t, err, "generation failures render in the transcript, not as transport errors")

	require.Len(t, view.Transcript, 2)
	assert.True(t, view.Transcript[1].Error)
	assert.Contains(t, view.Transcript[1].Content, "model unavailable")

	assert.Zero(t, store.updateCount(), "nothing persisted on failure")
	assert.Empty(t, store.snapshots)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, pusher.callCount(), "nothing pushed on failure")
}

func TestSend_PromptNotDuplicatedInHistory(t *testing.T) {
	m, _, gen, _, _ := newTestManager(t)

	_, err := m.Send(context.Background(), "user-1", projID, "first prompt", nil, false)
	require.NoError(t, err)
	_, err = m.Send(context.Background(), "user-1", projID, "second prompt", nil, false)
	require.NoError(t, err)

	require.Len(t, gen.calls, 2)
	assert.Empty(t, gen.calls[0].History, "first send carries no prior turns")

	second := gen.calls[1].History
	require.Len(t, second, 2, "previous user turn and assistant reply")
	assert.Equal(t, "first prompt", second[0].Content)
	for _, msg := range second {
		assert.NotEqual(t, "second prompt", msg.Content, "the current prompt travels in its own slot")
	}
}

func TestSend_RejectsConcurrentGeneration(t *testing.T) {
	m, _, gen, _, _ := newTestManager(t)
	release := make(chan struct{})
	gen.block = release

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Send(context.Background(), "user-1", projID, "first", nil, false)
	}()

	require.Eventually(t, func() bool {
		v, err := m.State(context.Background(), "user-1", projID)
		return err == nil && v.Generating
	}, 2*time.Second, 5*time.Millisecond)

	_, err := m.Send(context.Background(), "user-1", projID, "second", nil, false)
	assert.ErrorIs(t, err, ErrGenerationInFlight)

	close(release)
	<-done
}

func TestReportFault_HealsAndClearsIndicator(t *testing.T) {
	m, store, gen, _, clock := newTestManager(t)
	gen.results = []generation.Result{{
		Answer: "fixed",
		Files:  map[string]string{"app/index.html": "<h1>fixed</h1>"},
	}}

	view, err := m.ReportFault(context.Background(), "user-1", projID, RuntimeFault{
		Message: "x is not defined",
		Line:    12,
		Source:  "app/index.html",
	})
	require.NoError(t, err)

	assert.Nil(t, view.Fault, "fault cleared after successful fix")
	assert.True(t, view.JustHealed)
	assert.Equal(t, "<h1>fixed</h1>", view.Files["app/index.html"])
	assert.Equal(t, 1, store.updateCount())
	require.Len(t, store.snapshots, 1)
	assert.Contains(t, store.snapshots[0], "Auto-fix")

	// The fix prompt carries the fault context.
	require.Equal(t, 1, gen.callCount())
	assert.Contains(t, gen.calls[0].Prompt, "x is not defined")
	assert.Contains(t, gen.calls[0].Prompt, "app/index.html")

	// The healed indicator clears on the scheduled timer.
	require.Equal(t, 1, clock.scheduled())
	assert.Equal(t, healedClearDelay, clock.durs[0])
	clock.fireLast()

	after, err := m.State(context.Background(), "user-1", projID)
	require.NoError(t, err)
	assert.False(t, after.JustHealed)
}

func TestReportFault_AttemptCap(t *testing.T) {
	m, _, gen, _, _ := newTestManager(t)

	// Every fix attempt fails, burning through the budget.
	gen.errs = []error{
		errors.New("down"), errors.New("down"), errors.New("down"), errors.New("down"),
	}

	for i := 0; i < healAttemptCap; i++ {
		view, err := m.ReportFault(context.Background(), "user-1", projID, RuntimeFault{Message: "boom"})
		require.NoError(t, err)
		assert.NotNil(t, view.Fault)
	}
	assert.Equal(t, healAttemptCap, gen.callCount())

	// The next fault is suppressed: no further model call.
	view, err := m.ReportFault(context.Background(), "user-1", projID, RuntimeFault{Message: "boom"})
	require.NoError(t, err)
	assert.Equal(t, healAttemptCap, gen.callCount())
	assert.Contains(t, view.Notice, "Manual intervention")
}

func TestReportFault_CounterResetsOnSend(t *testing.T) {
	m, _, gen, _, _ := newTestManager(t)
	gen.errs = []error{
		errors.New("down"), errors.New("down"), errors.New("down"), errors.New("down"),
	}

	for i := 0; i < healAttemptCap; i++ {
		_, err := m.ReportFault(context.Background(), "user-1", projID, RuntimeFault{Message: "boom"})
		require.NoError(t, err)
	}

	// A user send resets the budget.
	_, err := m.Send(context.Background(), "user-1", projID, "try again", nil, false)
	require.NoError(t, err)
	callsAfterSend := gen.callCount()

	_, err = m.ReportFault(context.Background(), "user-1", projID, RuntimeFault{Message: "boom"})
	require.NoError(t, err)
	assert.Equal(t, callsAfterSend+1, gen.callCount(), "fault handling resumes after a user send")
}

func TestReportFault_DeferredDuringGeneration(t *testing.T) {
	m, _, gen, _, _ := newTestManager(t)
	release := make(chan struct{})
	gen.block = release

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Send(context.Background(), "user-1", projID, "build it", nil, false)
	}()

	require.Eventually(t, func() bool {
		v, err := m.State(context.Background(), "user-1", projID)
		return err == nil && v.Generating
	}, 2*time.Second, 5*time.Millisecond)

	// Mid-generation fault is recorded but not acted on yet.
	view, err := m.ReportFault(context.Background(), "user-1", projID, RuntimeFault{Message: "deferred boom"})
	require.NoError(t, err)
	assert.Nil(t, view.Fault)
	assert.Equal(t, 1, gen.callCount(), "no fix attempt while generating")

	close(release)
	<-done

	// The deferred fault triggered a fix round after the send completed.
	require.Eventually(t, func() bool { return gen.callCount() == 2 }, 2*time.Second, 5*time.Millisecond)
	gen.mu.Lock()
	assert.Contains(t, gen.calls[1].Prompt, "deferred boom")
	gen.mu.Unlock()
}

func TestAutosave_Debounce(t *testing.T) {
	m, store, _, _, clock := newTestManager(t)
	ctx := context.Background()

	_, err := m.UpdateFile(ctx, "user-1", projID, "app/index.html", "v1")
	require.NoError(t, err)
	_, err = m.UpdateFile(ctx, "user-1", projID, "app/index.html", "v2")
	require.NoError(t, err)

	// Each edit restarts the debounce window.
	require.Equal(t, 2, clock.scheduled())
	assert.Equal(t, autosaveDelay, clock.durs[0])
	assert.Zero(t, store.updateCount(), "nothing persisted until the window elapses")

	clock.fireLast()
	require.Equal(t, 1, store.updateCount())
	assert.Equal(t, "v2", store.updates[0]["app/index.html"], "latest content wins")
}

func TestAutosave_SuppressedWhileGenerating(t *testing.T) {
	m, _, gen, _, clock := newTestManager(t)
	release := make(chan struct{})
	gen.block = release

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Send(context.Background(), "user-1", projID, "build", nil, false)
	}()

	require.Eventually(t, func() bool {
		v, err := m.State(context.Background(), "user-1", projID)
		return err == nil && v.Generating
	}, 2*time.Second, 5*time.Millisecond)

	_, err := m.UpdateFile(context.Background(), "user-1", projID, "app/index.html", "mid-gen edit")
	require.NoError(t, err)
	assert.Zero(t, clock.scheduled(), "no autosave scheduled while generating")

	close(release)
	<-done
}

func TestFileOps(t *testing.T) {
	m, _, _, _, _ := newTestManager(t)
	ctx := context.Background()

	t.Run("add opens a tab", func(t *testing.T) {
		view, err := m.AddFile(ctx, "user-1", projID, "app/new.js")
		require.NoError(t, err)
		assert.Contains(t, view.Files, "app/new.js")
		assert.Equal(t, "app/new.js", view.Selected)
	})

	t.Run("rename carries tabs and selection", func(t *testing.T) {
		view, err := m.RenameFile(ctx, "user-1", projID, "app/new.js", "app/renamed.js")
		require.NoError(t, err)
		assert.NotContains(t, view.Files, "app/new.js")
		assert.Contains(t, view.Files, "app/renamed.js")
		assert.Equal(t, "app/renamed.js", view.Selected)
		assert.Contains(t, view.OpenTabs, "app/renamed.js")
	})

	t.Run("delete closes the tab", func(t *testing.T) {
		view, err := m.DeleteFile(ctx, "user-1", projID, "app/renamed.js")
		require.NoError(t, err)
		assert.NotContains(t, view.Files, "app/renamed.js")
		assert.NotContains(t, view.OpenTabs, "app/renamed.js")
	})

	t.Run("config update sanitizes package name", func(t *testing.T) {
		view, err := m.UpdateConfig(ctx, "user-1", projID, projdomain.ProjectConfig{
			AppName:     "My App",
			PackageName: "Com.Bad Name!",
		})
		require.NoError(t, err)
		assert.Equal(t, "com.badname", view.Config.PackageName)
	})
}

func TestRollback_UpdatesLiveSession(t *testing.T) {
	m, store, _, _, _ := newTestManager(t)
	store.rollbackFiles = map[string]string{"app/index.html": "<h1>restored</h1>"}

	view, err := m.Rollback(context.Background(), "user-1", projID, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, "<h1>restored</h1>", view.Files["app/index.html"])

	after, err := m.State(context.Background(), "user-1", projID)
	require.NoError(t, err)
	assert.Equal(t, "<h1>restored</h1>", after.Files["app/index.html"])
}

func TestPreview(t *testing.T) {
	t.Run("live files by default", func(t *testing.T) {
		m, _, _, _, _ := newTestManager(t)
		_, err := m.UpdateFile(context.Background(), "user-1", projID, "app/index.html", "<h1>live</h1>")
		require.NoError(t, err)

		files, err := m.Preview(context.Background(), "user-1", projID, "")
		require.NoError(t, err)
		assert.Equal(t, "<h1>live</h1>", files["app/index.html"])

		// the returned map is a copy, not the working set
		files["app/index.html"] = "mutated"
		after, err := m.State(context.Background(), "user-1", projID)
		require.NoError(t, err)
		assert.Equal(t, "<h1>live</h1>", after.Files["app/index.html"])
	})

	t.Run("snapshot view leaves working files alone", func(t *testing.T) {
		m, store, _, _, _ := newTestManager(t)
		store.snapshotFiles = map[string]string{"app/index.html": "<h1>old</h1>"}

		files, err := m.Preview(context.Background(), "user-1", projID, "snap-1")
		require.NoError(t, err)
		assert.Equal(t, "<h1>old</h1>", files["app/index.html"])

		live, err := m.State(context.Background(), "user-1", projID)
		require.NoError(t, err)
		assert.NotEqual(t, "<h1>old</h1>", live.Files["app/index.html"])
	})

	t.Run("unknown snapshot", func(t *testing.T) {
		m, _, _, _, _ := newTestManager(t)
		_, err := m.Preview(context.Background(), "user-1", projID, "snap-missing")
		assert.ErrorIs(t, err, projdomain.ErrSnapshotNotFound)
	})
}

func TestRollback_StoreErrorSurfaces(t *testing.T) {
	m, store, _, _, _ := newTestManager(t)
	store.rollbackErr = projdomain.ErrSnapshotNotFound

	_, err := m.Rollback(context.Background(), "user-1", projID, "snap-missing")
	assert.ErrorIs(t, err, projdomain.ErrSnapshotNotFound)
}
