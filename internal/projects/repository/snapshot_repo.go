package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shojbahmed330/appify-backend/internal/projects/domain"
)

type SnapshotRepo struct {
	db *pgxpool.Pool
}

func NewSnapshotRepo(db *pgxpool.Pool) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Create appends a snapshot. Cap enforcement (evict-oldest) is the
// service's responsibility; the repo only stores what it is given.
func (r *SnapshotRepo) Create(ctx context.Context, projectID string, files map[string]string, summary string) (*domain.Snapshot, error) {
	const q = `
insert into project_snapshots (id, project_public_id, files, summary)
values ($1, $2, $3, $4)
returning id, project_public_id, files, summary, created_at;
`
	var s domain.Snapshot
	err := r.db.QueryRow(ctx, q, uuid.NewString(), projectID, files, summary).
		Scan(&s.ID, &s.ProjectID, &s.Files, &s.Summary, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns snapshots newest first.
func (r *SnapshotRepo) List(ctx context.Context, projectID string) ([]domain.Snapshot, error) {
	const q = `
select id, project_public_id, files, summary, created_at
from project_snapshots
where project_public_id = $1
order by created_at desc, id desc;
`
	rows, err := r.db.Query(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Snapshot, 0, domain.SnapshotCap)
	for rows.Next() {
		var s domain.Snapshot
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Files, &s.Summary, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SnapshotRepo) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	const q = `
select id, project_public_id, files, summary, created_at
from project_snapshots
where id = $1;
`
	var s domain.Snapshot
	err := r.db.QueryRow(ctx, q, id).
		Scan(&s.ID, &s.ProjectID, &s.Files, &s.Summary, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Delete removes a snapshot. Idempotent: deleting a missing ID is not an
// error.
func (r *SnapshotRepo) Delete(ctx context.Context, id string) error {
	const q = `delete from project_snapshots where id = $1;`
	_, err := r.db.Exec(ctx, q, id)
	return err
}

func (r *SnapshotRepo) Count(ctx context.Context, projectID string) (int, error) {
	const q = `select count(*) from project_snapshots where project_public_id = $1;`
	var n int
	if err := r.db.QueryRow(ctx, q, projectID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteOldest drops the single oldest snapshot of a project.
func (r *SnapshotRepo) DeleteOldest(ctx context.Context, projectID string) error {
	const q = `
delete from project_snapshots
where id = (
  select id from project_snapshots
  where project_public_id = $1
  order by created_at asc, id asc
  limit 1
);
`
	_, err := r.db.Exec(ctx, q, projectID)
	return err
}
