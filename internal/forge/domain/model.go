package domain

import "time"

// Build statuses. There is no automatic transition back to idle; a new
// trigger restarts at pushing.
const (
	StatusIdle     = "idle"
	StatusPushing  = "pushing"
	StatusBuilding = "building"
	StatusSuccess  = "success"
	StatusError    = "error"
)

// Remote run statuses and conclusions as reported by the CI provider.
const (
	RunCompleted        = "completed"
	ConclusionSuccess   = "success"
	ConclusionFailure   = "failure"
	ConclusionCancelled = "cancelled"
)

// GithubConfig is the user's stored credential and push target. The token
// is supplied by the user, never generated.
type GithubConfig struct {
	Token string `json:"token"`
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

// BuildStep is one step of one job in the remote pipeline's latest run.
type BuildStep struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion,omitempty"`
}

// BuildRun is the transient state of one build: pushed to the forge, then
// polled until the remote run terminates. Kept in Redis with a TTL, never
// in Postgres.
type BuildRun struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	ProjectID string      `json:"project_id"`
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	ApkURL    string      `json:"apk_url,omitempty"`
	WebURL    string      `json:"web_url,omitempty"`
	RunURL    string      `json:"run_url,omitempty"`
	Steps     []BuildStep `json:"steps,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunDetails is the most recent remote run: overall status, terminal
// conclusion when completed, and the flattened per-step statuses across
// all jobs.
type RunDetails struct {
	Status     string      `json:"status"`
	Conclusion string      `json:"conclusion"`
	RunURL     string      `json:"run_url"`
	Steps      []BuildStep `json:"steps"`
}

// Artifact references the packaged binary and published site of a
// successful run.
type Artifact struct {
	DownloadURL string `json:"download_url"`
	WebURL      string `json:"web_url"`
	RunURL      string `json:"run_url"`
}
