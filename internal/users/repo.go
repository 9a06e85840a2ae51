package users

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	forgedomain "github.com/shojbahmed330/appify-backend/internal/forge/domain"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

type UpsertUser struct {
	FirebaseUID string
	Email       string
	DisplayName string
	PhotoURL    string
}

func (r *Repo) EnsureUser(ctx context.Context, u UpsertUser) (string, error) {
	if u.FirebaseUID == "" {
		return "", fmt.Errorf("firebase_uid required")
	}

	const q = `
insert into users (firebase_uid, email, display_name, photo_url, updated_at)
values ($1, nullif($2,''), nullif($3,''), nullif($4,''), now())
on conflict (firebase_uid) do update
set
  email = coalesce(excluded.email, users.email),
  display_name = coalesce(excluded.display_name, users.display_name),
  photo_url = coalesce(excluded.photo_url, users.photo_url),
  updated_at = now()
returning id::text;
`
	var id string
	if err := r.db.QueryRow(ctx, q, u.FirebaseUID, u.Email, u.DisplayName, u.PhotoURL).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// GithubConfig loads the user's stored forge credential and push target.
// Missing values come back as empty strings, never as an error.
func (r *Repo) GithubConfig(ctx context.Context, userDBID string) (forgedomain.GithubConfig, error) {
	const q = `
select coalesce(github_token, ''), coalesce(github_owner, ''), coalesce(github_repo, '')
from users
where id = $1::uuid;
`
	var cfg forgedomain.GithubConfig
	if err := r.db.QueryRow(ctx, q, userDBID).Scan(&cfg.Token, &cfg.Owner, &cfg.Repo); err != nil {
		return forgedomain.GithubConfig{}, err
	}
	return cfg, nil
}

// UpdateGithubConfig persists the credential and the derived owner/repo
// target so later builds and pushes reuse them.
func (r *Repo) UpdateGithubConfig(ctx context.Context, userDBID string, cfg forgedomain.GithubConfig) error {
	const q = `
update users
set github_token = nullif($2,''), github_owner = nullif($3,''), github_repo = nullif($4,''), updated_at = now()
where id = $1::uuid;
`
	_, err := r.db.Exec(ctx, q, userDBID, cfg.Token, cfg.Owner, cfg.Repo)
	return err
}
