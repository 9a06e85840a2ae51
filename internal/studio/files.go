package studio

import (
	"context"
	"log"
	"time"

	projdomain "github.com/shojbahmed330/appify-backend/internal/projects/domain"
)

// UpdateFile replaces the content of one file and schedules an autosave.
func (m *Manager) UpdateFile(ctx context.Context, userID, projectID, path, content string) (View, error) {
	return m.mutate(ctx, userID, projectID, func(s *Session) {
		s.files[path] = content
	})
}

// AddFile creates an empty file and opens it in a tab.
func (m *Manager) AddFile(ctx context.Context, userID, projectID, path string) (View, error) {
	return m.mutate(ctx, userID, projectID, func(s *Session) {
		if _, ok := s.files[path]; !ok {
			s.files[path] = ""
		}
		s.openTab(path)
	})
}

// DeleteFile removes a file and closes its tab if open.
func (m *Manager) DeleteFile(ctx context.Context, userID, projectID, path string) (View, error) {
	return m.mutate(ctx, userID, projectID, func(s *Session) {
		delete(s.files, path)
		s.closeTab(path)
	})
}

// RenameFile moves a file's content to a new path, carrying open tabs and
// selection with it.
func (m *Manager) RenameFile(ctx context.Context, userID, projectID, oldPath, newPath string) (View, error) {
	return m.mutate(ctx, userID, projectID, func(s *Session) {
		content, ok := s.files[oldPath]
		if !ok {
			return
		}
		delete(s.files, oldPath)
		s.files[newPath] = content
		for i, t := range s.openTabs {
			if t == oldPath {
				s.openTabs[i] = newPath
			}
		}
		if s.selected == oldPath {
			s.selected = newPath
		}
	})
}

// UpdateConfig replaces the project configuration. The package name is
// sanitized immediately so the view never shows an invalid one.
func (m *Manager) UpdateConfig(ctx context.Context, userID, projectID string, cfg projdomain.ProjectConfig) (View, error) {
	return m.mutate(ctx, userID, projectID, func(s *Session) {
		cfg.PackageName = projdomain.SanitizePackageName(cfg.PackageName)
		s.config = cfg
	})
}

// OpenTab opens (or re-selects) a tab. Tab state is ephemeral and not
// autosaved.
func (m *Manager) OpenTab(ctx context.Context, userID, projectID, path string) (View, error) {
	s, err := m.session(ctx, userID, projectID)
	if err != nil {
		return View{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[path]; !ok {
		return s.view(), nil
	}
	s.openTab(path)
	return s.view(), nil
}

// CloseTab closes a tab; closing the selected one selects the
// most-recently-opened remaining tab.
func (m *Manager) CloseTab(ctx context.Context, userID, projectID, path string) (View, error) {
	s, err := m.session(ctx, userID, projectID)
	if err != nil {
		return View{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeTab(path)
	return s.view(), nil
}

// SelectTab switches the selected tab among the open ones.
func (m *Manager) SelectTab(ctx context.Context, userID, projectID, path string) (View, error) {
	s, err := m.session(ctx, userID, projectID)
	if err != nil {
		return View{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.openTabs {
		if t == path {
			s.selected = path
			break
		}
	}
	return s.view(), nil
}

// mutate applies an edit under the session lock and schedules a debounced
// autosave for it.
func (m *Manager) mutate(ctx context.Context, userID, projectID string, fn func(*Session)) (View, error) {
	s, err := m.session(ctx, userID, projectID)
	if err != nil {
		return View{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
	m.scheduleAutosaveLocked(s)
	return s.view(), nil
}

// scheduleAutosaveLocked restarts the debounce window: rapid edits
// collapse into one write. Autosave is suppressed while a generation is in
// flight; the generation's own persist covers those edits. Must be called
// with s.mu held.
func (m *Manager) scheduleAutosaveLocked(s *Session) {
	if s.generating {
		return
	}
	s.cancelAutosaveLocked()
	files := copyFiles(s.files)
	cfg := s.config
	userID, projectID := s.userID, s.projectID
	s.autosave = m.afterFunc(autosaveDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.store.Update(ctx, userID, projectID, files, cfg); err != nil {
			log.Printf("studio %s: autosave: %v", projectID, err)
		}
	})
}
