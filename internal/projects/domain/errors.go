package domain

import "errors"

var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)
