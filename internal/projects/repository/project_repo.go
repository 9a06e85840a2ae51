package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shojbahmed330/appify-backend/internal/projects/domain"
)

type ProjectRepo struct {
	db *pgxpool.Pool
}

func NewProjectRepo(db *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{db: db}
}

// Create inserts a new project for the given user. Files and config are
// stored as JSONB.
func (r *ProjectRepo) Create(ctx context.Context, userDBID, name string, files map[string]string, cfg domain.ProjectConfig) (*domain.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("name required")
	}

	for i := 0; i < 5; i++ {
		publicID, err := domain.NewPublicID("appify")
		if err != nil {
			return nil, err
		}

		const q = `
insert into projects (public_id, user_id, name, files, config)
values ($1, $2::uuid, $3, $4, $5)
returning public_id, name, files, config, created_at, updated_at;
`
		var p domain.Project
		err = r.db.QueryRow(ctx, q, publicID, userDBID, name, files, cfg).
			Scan(&p.PublicID, &p.Name, &p.Files, &p.Config, &p.CreatedAt, &p.UpdatedAt)

		if err == nil {
			return &p, nil
		}

		// unique violation on public_id → retry
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("failed to generate unique project id")
}

// Get returns a project owned by the given user.
func (r *ProjectRepo) Get(ctx context.Context, userDBID, publicID string) (*domain.Project, error) {
	const q = `
select public_id, name, files, config, created_at, updated_at
from projects
where user_id = $1::uuid and public_id = $2 and deleted_at is null;
`
	var p domain.Project
	err := r.db.QueryRow(ctx, q, userDBID, publicID).
		Scan(&p.PublicID, &p.Name, &p.Files, &p.Config, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Update replaces the full file-set and config of an owned project.
func (r *ProjectRepo) Update(ctx context.Context, userDBID, publicID string, files map[string]string, cfg domain.ProjectConfig) error {
	const q = `
update projects
set files = $3, config = $4, updated_at = now()
where user_id = $1::uuid and public_id = $2 and deleted_at is null;
`
	ct, err := r.db.Exec(ctx, q, userDBID, publicID, files, cfg)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepo) List(ctx context.Context, userDBID string) ([]domain.Project, error) {
	const q = `
select public_id, name, files, config, created_at, updated_at
from projects
where user_id = $1::uuid and deleted_at is null
order by updated_at desc;
`
	rows, err := r.db.Query(ctx, q, userDBID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.PublicID, &p.Name, &p.Files, &p.Config, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProjectRepo) Rename(ctx context.Context, userDBID, publicID, newName string) (*domain.Project, error) {
	const q = `
update projects
set name = $3, updated_at = now()
where user_id = $1::uuid and public_id = $2 and deleted_at is null
returning public_id, name, files, config, created_at, updated_at;
`
	var p domain.Project
	err := r.db.QueryRow(ctx, q, userDBID, publicID, newName).
		Scan(&p.PublicID, &p.Name, &p.Files, &p.Config, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepo) SoftDelete(ctx context.Context, userDBID, publicID string) (bool, error) {
	const q = `
update projects
set deleted_at = now(), updated_at = now()
where user_id = $1::uuid and public_id = $2 and deleted_at is null;
`
	ct, err := r.db.Exec(ctx, q, userDBID, publicID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
