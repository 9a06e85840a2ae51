package domain

import "time"

// SnapshotCap is the maximum number of history snapshots kept per project.
// Creating a snapshot beyond the cap evicts the oldest one first.
const SnapshotCap = 10

// ProjectConfig holds the packaging settings the build pipeline consumes.
// Supabase credentials are opaque pass-through values; the backend never
// parses them.
type ProjectConfig struct {
	AppName     string `json:"app_name"`
	PackageName string `json:"package_name"`
	Icon        string `json:"icon,omitempty"`
	Splash      string `json:"splash,omitempty"`
	SupabaseURL string `json:"supabase_url,omitempty"`
	SupabaseKey string `json:"supabase_key,omitempty"`
}

// Project is a user-owned two-workspace web project: file paths under "app/"
// form the mobile bundle, paths under "admin/" the admin bundle. Binary
// assets are stored as data URLs.
type Project struct {
	PublicID  string            `json:"public_id"`
	Name      string            `json:"name"`
	Files     map[string]string `json:"files"`
	Config    ProjectConfig     `json:"config"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Snapshot is an immutable point-in-time copy of a project's file-set.
type Snapshot struct {
	ID        string            `json:"id"`
	ProjectID string            `json:"project_id"`
	Files     map[string]string `json:"files"`
	Summary   string            `json:"summary"`
	CreatedAt time.Time         `json:"created_at"`
}

// DefaultFiles is the workspace a brand-new project starts from.
func DefaultFiles() map[string]string {
	return map[string]string{
		"app/index.html":   "<h1>Mobile Client</h1>",
		"admin/index.html": "<h1>Admin Panel</h1>",
	}
}

// DefaultConfig returns the packaging defaults applied before the first
// user edit.
func DefaultConfig() ProjectConfig {
	return ProjectConfig{
		AppName:     "OneClickApp",
		PackageName: "com.oneclick.studio",
	}
}
