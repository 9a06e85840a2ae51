package studio

import (
	"sync"
	"time"

	"github.com/shojbahmed330/appify-backend/internal/generation"
	projdomain "github.com/shojbahmed330/appify-backend/internal/projects/domain"
)

// Message is one transcript entry of a studio session.
type Message struct {
	ID        string                `json:"id"`
	Role      string                `json:"role"`
	Content   string                `json:"content"`
	Image     string                `json:"image,omitempty"`
	Questions []generation.Question `json:"questions,omitempty"`
	Files     map[string]string     `json:"files,omitempty"`
	Error     bool                  `json:"error,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

// RuntimeFault is a fault reported by the rendered preview.
type RuntimeFault struct {
	Message string `json:"message"`
	Line    int    `json:"line"`
	Source  string `json:"source"`
	Stack   string `json:"stack,omitempty"`
}

// Session is the ephemeral editing state of one user on one project. All
// mutation goes through Manager operations, which serialize on mu; the
// session is the sole writer of its own state.
type Session struct {
	mu sync.Mutex

	userID    string
	projectID string

	files  map[string]string
	config projdomain.ProjectConfig

	openTabs    []string
	selected    string
	transcript  []Message
	lastThought string

	generating   bool
	fault        *RuntimeFault
	pendingFault *RuntimeFault
	healAttempts int
	healing      bool
	justHealed   bool
	notice       string

	autosave *time.Timer
}

// View is an immutable copy of session state handed to the presentation
// layer.
type View struct {
	ProjectID   string                   `json:"project_id"`
	Files       map[string]string        `json:"files"`
	Config      projdomain.ProjectConfig `json:"config"`
	OpenTabs    []string                 `json:"open_tabs"`
	Selected    string                   `json:"selected"`
	Transcript  []Message                `json:"transcript"`
	LastThought string                   `json:"last_thought,omitempty"`
	Generating  bool                     `json:"generating"`
	Fault       *RuntimeFault            `json:"fault,omitempty"`
	JustHealed  bool                     `json:"just_healed,omitempty"`
	Notice      string                   `json:"notice,omitempty"`
}

func newSession(userID string, p *projdomain.Project) *Session {
	s := &Session{
		userID:    userID,
		projectID: p.PublicID,
		files:     copyFiles(p.Files),
		config:    p.Config,
	}
	for _, entry := range []string{"app/index.html", "admin/index.html"} {
		if _, ok := s.files[entry]; ok {
			s.openTabs = append(s.openTabs, entry)
		}
	}
	if len(s.openTabs) > 0 {
		s.selected = s.openTabs[0]
	}
	return s
}

// view must be called with mu held.
func (s *Session) view() View {
	v := View{
		ProjectID:   s.projectID,
		Files:       copyFiles(s.files),
		Config:      s.config,
		OpenTabs:    append([]string(nil), s.openTabs...),
		Selected:    s.selected,
		Transcript:  append([]Message(nil), s.transcript...),
		LastThought: s.lastThought,
		Generating:  s.generating,
		JustHealed:  s.justHealed,
		Notice:      s.notice,
	}
	if s.fault != nil {
		f := *s.fault
		v.Fault = &f
	}
	return v
}

// openTab appends the path if it is not already open and selects it.
// Must be called with mu held.
func (s *Session) openTab(path string) {
	for _, t := range s.openTabs {
		if t == path {
			s.selected = path
			return
		}
	}
	s.openTabs = append(s.openTabs, path)
	s.selected = path
}

// closeTab removes the path from the open list. Closing the selected tab
// selects the most-recently-opened remaining tab, or nothing if none
// remain. Must be called with mu held.
func (s *Session) closeTab(path string) {
	kept := s.openTabs[:0]
	for _, t := range s.openTabs {
		if t != path {
			kept = append(kept, t)
		}
	}
	s.openTabs = kept
	if s.selected == path {
		if len(s.openTabs) > 0 {
			s.selected = s.openTabs[len(s.openTabs)-1]
		} else {
			s.selected = ""
		}
	}
}

// mergePatch applies a partial file patch: present keys replace or add,
// absent keys stay, nothing is ever deleted. Must be called with mu held.
func (s *Session) mergePatch(patch map[string]string) {
	for path, content := range patch {
		s.files[path] = content
	}
}

// historyForModel converts the transcript tail into the generation wire
// shape. Must be called with mu held.
func (s *Session) historyForModel() []generation.ChatMessage {
	out := make([]generation.ChatMessage, 0, len(s.transcript))
	for _, m := range s.transcript {
		out = append(out, generation.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// cancelAutosaveLocked stops a pending autosave, if any. Must be called
// with mu held.
func (s *Session) cancelAutosaveLocked() {
	if s.autosave != nil {
		s.autosave.Stop()
		s.autosave = nil
	}
}

func copyFiles(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
