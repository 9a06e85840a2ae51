package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shojbahmed330/appify-backend/internal/forge/domain"
)

const (
	runKeyPrefix     = "forge:build:" // Key for build state: forge:build:{project_id}
	userRunSetPrefix = "forge:user:"  // Set of project IDs with builds for a user: forge:user:{user_id}
	runTTL           = 24 * time.Hour // Build state is transient
)

// RunRepository keeps the transient BuildRun state in Redis. One build per
// project; a new trigger overwrites the previous state.
type RunRepository struct {
	client *redis.Client
}

func NewRunRepository(client *redis.Client) *RunRepository {
	return &RunRepository{client: client}
}

// Save writes the run state and refreshes its TTL.
func (r *RunRepository) Save(ctx context.Context, run *domain.BuildRun) error {
	run.UpdatedAt = time.Now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = run.UpdatedAt
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal build run: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.runKey(run.ProjectID), data, runTTL)
	pipe.SAdd(ctx, r.userRunSetKey(run.UserID), run.ProjectID)
	pipe.Expire(ctx, r.userRunSetKey(run.UserID), runTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save build run: %w", err)
	}
	return nil
}

// Get returns the current build state for a project.
func (r *RunRepository) Get(ctx context.Context, projectID string) (*domain.BuildRun, error) {
	data, err := r.client.Get(ctx, r.runKey(projectID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get build run: %w", err)
	}

	var run domain.BuildRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("unmarshal build run: %w", err)
	}
	return &run, nil
}

// ListProjectsByUser returns the project IDs a user has build state for.
func (r *RunRepository) ListProjectsByUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.userRunSetKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list build runs: %w", err)
	}
	return ids, nil
}

// Delete drops the build state for a project.
func (r *RunRepository) Delete(ctx context.Context, projectID string) error {
	return r.client.Del(ctx, r.runKey(projectID)).Err()
}

func (r *RunRepository) runKey(projectID string) string {
	return runKeyPrefix + projectID
}

func (r *RunRepository) userRunSetKey(userID string) string {
	return userRunSetPrefix + userID
}
