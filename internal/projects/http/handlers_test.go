package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shojbahmed330/appify-backend/internal/auth"
	"github.com/shojbahmed330/appify-backend/internal/projects/domain"
	"github.com/shojbahmed330/appify-backend/internal/projects/service"
)

type memProjects struct {
	byID map[string]*domain.Project
	next int
}

func (m *memProjects) Create(_ context.Context, _ string, name string, files map[string]string, cfg domain.ProjectConfig) (*domain.Project, error) {
	m.next++
	p := &domain.Project{
		PublicID: fmt.Sprintf("appify-%05d-0001", 10000+m.next),
		Name:     name,
		Files:    files,
		Config:   cfg,
	}
	m.byID[p.PublicID] = p
	return p, nil
}

func (m *memProjects) Get(_ context.Context, _ string, publicID string) (*domain.Project, error) {
	if p, ok := m.byID[publicID]; ok {
		return p, nil
	}
	return nil, domain.ErrProjectNotFound
}

func (m *memProjects) Update(_ context.Context, _ string, publicID string, files map[string]string, cfg domain.ProjectConfig) error {
	p, ok := m.byID[publicID]
	if !ok {
		return domain.ErrProjectNotFound
	}
	p.Files = files
	p.Config = cfg
	return nil
}

func (m *memProjects) List(_ context.Context, _ string) ([]domain.Project, error) {
	out := make([]domain.Project, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memProjects) Rename(_ context.Context, _ string, publicID, newName string) (*domain.Project, error) {
	p, ok := m.byID[publicID]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	p.Name = newName
	return p, nil
}

func (m *memProjects) SoftDelete(_ context.Context, _ string, publicID string) (bool, error) {
	if _, ok := m.byID[publicID]; !ok {
		return false, nil
	}
	delete(m.byID, publicID)
	return true, nil
}

type memSnapshots struct {
	byProject map[string][]domain.Snapshot
}

func (m *memSnapshots) Create(_ context.Context, projectID string, files map[string]string, summary string) (*domain.Snapshot, error) {
	s := domain.Snapshot{
		ID:        fmt.Sprintf("snap-%d", len(m.byProject[projectID])+1),
		ProjectID: projectID,
		Files:     files,
		Summary:   summary,
	}
	m.byProject[projectID] = append(m.byProject[projectID], s)
	return &s, nil
}

func (m *memSnapshots) List(_ context.Context, projectID string) ([]domain.Snapshot, error) {
	return m.byProject[projectID], nil
}

func (m *memSnapshots) Get(_ context.Context, id string) (*domain.Snapshot, error) {
	for _, snaps := range m.byProject {
		for i := range snaps {
			if snaps[i].ID == id {
				return &snaps[i], nil
			}
		}
	}
	return nil, domain.ErrSnapshotNotFound
}

func (m *memSnapshots) Delete(_ context.Context, id string) error {
	for pid, snaps := range m.byProject {
		for i := range snaps {
			if snaps[i].ID == id {
				m.byProject[pid] = append(snaps[:i], snaps[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (m *memSnapshots) Count(_ context.Context, projectID string) (int, error) {
	return len(m.byProject[projectID]), nil
}

func (m *memSnapshots) DeleteOldest(_ context.Context, projectID string) error {
	if snaps := m.byProject[projectID]; len(snaps) > 0 {
		m.byProject[projectID] = snaps[1:]
	}
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *memProjects) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	projects := &memProjects{byID: make(map[string]*domain.Project)}
	snaps := &memSnapshots{byProject: make(map[string][]domain.Snapshot)}
	h := NewHandler(service.New(projects, snaps))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(auth.CtxUserDBID, "user-1")
	})
	h.Register(r.Group("/api/v1/projects"))
	h.RegisterSnapshots(r.Group("/api/v1/snapshots"))
	return r, projects
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateProject(t *testing.T) {
	r, _ := newTestRouter(t)

	t.Run("creates with defaults", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/v1/projects", `{"name":"My App"}`)
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			OK      bool           `json:"ok"`
			Project domain.Project `json:"project"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.OK)
		assert.Equal(t, "My App", resp.Project.Name)
		assert.Contains(t, resp.Project.Files, "app/index.html")
	})

	t.Run("rejects empty name", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/v1/projects", `{"name":"  "}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetProject(t *testing.T) {
	r, projects := newTestRouter(t)
	p, _ := projects.Create(context.Background(), "user-1", "My App", domain.DefaultFiles(), domain.DefaultConfig())

	t.Run("found", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/v1/projects/"+p.PublicID, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/v1/projects/appify-00000-0000", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRenameProject(t *testing.T) {
	r, projects := newTestRouter(t)
	p, _ := projects.Create(context.Background(), "user-1", "My App", nil, domain.DefaultConfig())

	w := doJSON(t, r, http.MethodPatch, "/api/v1/projects/"+p.PublicID, `{"name":"Renamed"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Renamed", projects.byID[p.PublicID].Name)
}

func TestDeleteProject(t *testing.T) {
	r, projects := newTestRouter(t)
	p, _ := projects.Create(context.Background(), "user-1", "My App", nil, domain.DefaultConfig())

	w := doJSON(t, r, http.MethodDelete, "/api/v1/projects/"+p.PublicID, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/v1/projects/"+p.PublicID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSnapshots_RequiresOwnedProject(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/projects/appify-00000-0000/snapshots", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSnapshot_UnknownID(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodDelete, "/api/v1/snapshots/snap-missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
