package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shojbahmed330/appify-backend/internal/projects/domain"
)

// ProjectStore is the persistence surface the service needs. Satisfied by
// repository.ProjectRepo; tests substitute fakes.
type ProjectStore interface {
	Create(ctx context.Context, userDBID, name string, files map[string]string, cfg domain.ProjectConfig) (*domain.Project, error)
	Get(ctx context.Context, userDBID, publicID string) (*domain.Project, error)
	Update(ctx context.Context, userDBID, publicID string, files map[string]string, cfg domain.ProjectConfig) error
	List(ctx context.Context, userDBID string) ([]domain.Project, error)
	Rename(ctx context.Context, userDBID, publicID, newName string) (*domain.Project, error)
	SoftDelete(ctx context.Context, userDBID, publicID string) (bool, error)
}

// SnapshotStore is satisfied by repository.SnapshotRepo.
type SnapshotStore interface {
	Create(ctx context.Context, projectID string, files map[string]string, summary string) (*domain.Snapshot, error)
	List(ctx context.Context, projectID string) ([]domain.Snapshot, error)
	Get(ctx context.Context, id string) (*domain.Snapshot, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, projectID string) (int, error)
	DeleteOldest(ctx context.Context, projectID string) error
}

// ProjectService owns project and snapshot persistence policy: ownership
// checks, package-name sanitization on every write, and the snapshot cap.
type ProjectService struct {
	projects  ProjectStore
	snapshots SnapshotStore
}

func New(projects ProjectStore, snapshots SnapshotStore) *ProjectService {
	return &ProjectService{projects: projects, snapshots: snapshots}
}

func (s *ProjectService) Get(ctx context.Context, userDBID, publicID string) (*domain.Project, error) {
	return s.projects.Get(ctx, userDBID, publicID)
}

func (s *ProjectService) Save(ctx context.Context, userDBID, name string, files map[string]string, cfg domain.ProjectConfig) (*domain.Project, error) {
	if files == nil {
		files = domain.DefaultFiles()
	}
	cfg.PackageName = domain.SanitizePackageName(cfg.PackageName)
	return s.projects.Create(ctx, userDBID, name, files, cfg)
}

func (s *ProjectService) Update(ctx context.Context, userDBID, publicID string, files map[string]string, cfg domain.ProjectConfig) error {
	cfg.PackageName = domain.SanitizePackageName(cfg.PackageName)
	return s.projects.Update(ctx, userDBID, publicID, files, cfg)
}

func (s *ProjectService) List(ctx context.Context, userDBID string) ([]domain.Project, error) {
	return s.projects.List(ctx, userDBID)
}

func (s *ProjectService) Rename(ctx context.Context, userDBID, publicID, newName string) (*domain.Project, error) {
	return s.projects.Rename(ctx, userDBID, publicID, newName)
}

func (s *ProjectService) Delete(ctx context.Context, userDBID, publicID string) error {
	ok, err := s.projects.SoftDelete(ctx, userDBID, publicID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrProjectNotFound
	}
	return nil
}

// CreateSnapshot appends a history snapshot, evicting the oldest entry
// first when the project is at the cap. The count/evict/create sequence is
// not transactional: two racing callers can transiently exceed the cap or
// double-evict. Callers inside one session are serialized by the studio
// session lock, which is the only place snapshots are created from.
func (s *ProjectService) CreateSnapshot(ctx context.Context, projectID string, files map[string]string, summary string) (*domain.Snapshot, error) {
	n, err := s.snapshots.Count(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("count snapshots: %w", err)
	}
	if n >= domain.SnapshotCap {
		if err := s.snapshots.DeleteOldest(ctx, projectID); err != nil {
			return nil, fmt.Errorf("evict oldest snapshot: %w", err)
		}
	}
	return s.snapshots.Create(ctx, projectID, files, summary)
}

func (s *ProjectService) ListSnapshots(ctx context.Context, userDBID, publicID string) ([]domain.Snapshot, error) {
	// Ownership gate: listing goes through the project row first.
	if _, err := s.projects.Get(ctx, userDBID, publicID); err != nil {
		return nil, err
	}
	return s.snapshots.List(ctx, publicID)
}

// DeleteSnapshot removes a snapshot after verifying the caller owns the
// project it belongs to. Snapshots of other users' projects are reported as
// not found.
func (s *ProjectService) DeleteSnapshot(ctx context.Context, userDBID, id string) error {
	snap, err := s.snapshots.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.projects.Get(ctx, userDBID, snap.ProjectID); err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			return domain.ErrSnapshotNotFound
		}
		return err
	}
	return s.snapshots.Delete(ctx, id)
}

// SnapshotFiles returns a snapshot's file-set without touching the working
// files, so the preview can render a point-in-time view.
func (s *ProjectService) SnapshotFiles(ctx context.Context, userDBID, publicID, snapshotID string) (map[string]string, error) {
	if _, err := s.projects.Get(ctx, userDBID, publicID); err != nil {
		return nil, err
	}
	snap, err := s.snapshots.Get(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if snap.ProjectID != publicID {
		return nil, domain.ErrSnapshotNotFound
	}
	return snap.Files, nil
}

// Rollback restores a snapshot's file-set into the project and records the
// rollback itself as a new snapshot. The restored files are returned so the
// live session can adopt them.
func (s *ProjectService) Rollback(ctx context.Context, userDBID, publicID, snapshotID string) (map[string]string, error) {
	snap, err := s.snapshots.Get(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if snap.ProjectID != publicID {
		return nil, domain.ErrSnapshotNotFound
	}

	p, err := s.projects.Get(ctx, userDBID, publicID)
	if err != nil {
		return nil, err
	}
	if err := s.projects.Update(ctx, userDBID, publicID, snap.Files, p.Config); err != nil {
		return nil, fmt.Errorf("persist rollback: %w", err)
	}
	if _, err := s.CreateSnapshot(ctx, publicID, snap.Files, "Rollback to "+snap.CreatedAt.Format("2006-01-02 15:04")); err != nil {
		return nil, fmt.Errorf("record rollback snapshot: %w", err)
	}
	return snap.Files, nil
}
