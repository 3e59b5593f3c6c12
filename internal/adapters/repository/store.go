// Package repository persists teams, judges and assignments and applies
// generation plans atomically.
package repository

import (
	"context"

	"github.com/okian/judgeflow/internal/domain/model"
)

// Store provides read/write access to the judging state.
type Store interface {
	// Snapshot returns the floor's teams, every judge and every assignment.
	// Judges from other floors are included so the engine can tell an
	// off-floor judge from an unknown one.
	Snapshot(ctx context.Context, floorID string) (model.Snapshot, error)

	// Commit creates one unsubmitted assignment per planned block and points
	// each judge at it. The whole plan is rejected with ErrCommitConflict if
	// any planned team became locked or paused, or any judge became busy,
	// since the snapshot was taken.
	Commit(ctx context.Context, plan model.GeneratePlan) ([]model.Assignment, error)

	// Submit records scores for every team in the assignment, marks it
	// submitted and frees the judge. Missing scores are stored as 0.
	Submit(ctx context.Context, assignmentID string, scores map[string]int) (model.Assignment, error)

	// Cancel removes an unsubmitted assignment and frees the judge.
	Cancel(ctx context.Context, assignmentID string) error
}
