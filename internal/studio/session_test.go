package studio

import (
	"testing"

	"github.com/stretchr/testify/assert"

	projdomain "github.com/shojbahmed330/appify-backend/internal/projects/domain"
)

func newTestSession() *Session {
	return newSession("user-1", &projdomain.Project{
		PublicID: "appify-10000-0001",
		Name:     "My App",
		Files:    projdomain.DefaultFiles(),
		Config:   projdomain.DefaultConfig(),
	})
}

func TestNewSession_OpensDefaultTabs(t *testing.T) {
	s := newTestSession()
	assert.Equal(t, []string{"app/index.html", "admin/index.html"}, s.openTabs)
	assert.Equal(t, "app/index.html", s.selected)
}

func TestOpenTab(t *testing.T) {
	s := newTestSession()

	t.Run("new tab is appended and selected", func(t *testing.T) {
		s.files["app/style.css"] = "body{}"
		s.openTab("app/style.css")
		assert.Equal(t, []string{"app/index.html", "admin/index.html", "app/style.css"}, s.openTabs)
		assert.Equal(t, "app/style.css", s.selected)
	})

	t.Run("reopening selects without duplicating", func(t *testing.T) {
		s.openTab("app/index.html")
		assert.Len(t, s.openTabs, 3)
		assert.Equal(t, "app/index.html", s.selected)
	})
}

func TestCloseTab(t *testing.T) {
	t.Run("closing unselected tab keeps selection", func(t *testing.T) {
		s := newTestSession()
		s.closeTab("admin/index.html")
		assert.Equal(t, []string{"app/index.html"}, s.openTabs)
		assert.Equal(t, "app/index.html", s.selected)
	})

	t.Run("closing selected tab selects most recently opened", func(t *testing.T) {
		s := newTestSession()
		s.files["app/a.js"] = ""
		s.files["app/b.js"] = ""
		s.openTab("app/a.js")
		s.openTab("app/b.js")
		s.openTab("app/a.js") // reselect, does not reorder

		s.closeTab("app/a.js")
		assert.Equal(t, "app/b.js", s.selected)
	})

	t.Run("closing the last tab clears selection", func(t *testing.T) {
		s := newTestSession()
		s.closeTab("app/index.html")
		s.closeTab("admin/index.html")
		assert.Empty(t, s.openTabs)
		assert.Equal(t, "", s.selected)
	})

	t.Run("closing an unknown tab is a no-op", func(t *testing.T) {
		s := newTestSession()
		s.closeTab("app/missing.js")
		assert.Len(t, s.openTabs, 2)
	})
}

func TestMergePatch(t *testing.T) {
	s := newTestSession()
	s.files["app/keep.js"] = "original"

	s.mergePatch(map[string]string{
		"app/index.html": "<h1>updated</h1>",
		"app/new.js":     "fresh",
	})

	assert.Equal(t, "<h1>updated</h1>", s.files["app/index.html"])
	assert.Equal(t, "fresh", s.files["app/new.js"])
	assert.Equal(t, "original", s.files["app/keep.js"], "absent keys are never deleted")
	assert.Contains(t, s.files, "admin/index.html")
}

func TestView_IsACopy(t *testing.T) {
	s := newTestSession()
	v := s.view()

	v.Files["app/index.html"] = "mutated"
	v.OpenTabs[0] = "mutated"

	assert.Equal(t, "<h1>Mobile Client</h1>", s.files["app/index.html"])
	assert.Equal(t, "app/index.html", s.openTabs[0])
}
