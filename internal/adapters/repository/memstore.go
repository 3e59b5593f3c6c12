package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/judgeflow/internal/domain/model"
)

// MemoryStore is a mutex-guarded, in-memory Store. Teams, judges and
// assignments keep their insertion order so snapshots are deterministic.
type MemoryStore struct {
	mu   sync.RWMutex
	opts options

	teams       map[string]*model.Team
	teamOrder   []string
	judges      map[string]*model.Judge
	judgeOrder  []string
	assignments map[string]*model.Assignment
	assignOrder []string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		opts:        o,
		teams:       make(map[string]*model.Team),
		judges:      make(map[string]*model.Judge),
		assignments: make(map[string]*model.Assignment),
	}
}

// Seed replaces the store's content with snap after validating it.
func (s *MemoryStore) Seed(snap model.Snapshot) error {
	if err := ValidateSnapshot(snap); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.teams = make(map[string]*model.Team, len(snap.Teams))
	s.teamOrder = s.teamOrder[:0]
	for _, t := range snap.Teams {
		t := cloneTeam(t)
		s.teams[t.ID] = &t
		s.teamOrder = append(s.teamOrder, t.ID)
	}
	s.judges = make(map[string]*model.Judge, len(snap.Judges))
	s.judgeOrder = s.judgeOrder[:0]
	for _, j := range snap.Judges {
		j := j
		s.judges[j.ID] = &j
		s.judgeOrder = append(s.judgeOrder, j.ID)
	}
	s.assignments = make(map[string]*model.Assignment, len(snap.Assignments))
	s.assignOrder = s.assignOrder[:0]
	for _, a := range snap.Assignments {
		a := cloneAssignment(a)
		s.assignments[a.ID] = &a
		s.assignOrder = append(s.assignOrder, a.ID)
	}
	return nil
}

// Snapshot implements Store.
func (s *MemoryStore) Snapshot(ctx context.Context, floorID string) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap model.Snapshot
	for _, id := range s.teamOrder {
		t := s.teams[id]
		if floorID != "" && t.FloorID != floorID {
			continue
		}
		snap.Teams = append(snap.Teams, cloneTeam(*t))
	}
	for _, id := range s.judgeOrder {
		snap.Judges = append(snap.Judges, *s.judges[id])
	}
	for _, id := range s.assignOrder {
		snap.Assignments = append(snap.Assignments, cloneAssignment(*s.assignments[id]))
	}
	return snap, nil
}

// Commit implements Store.
func (s *MemoryStore) Commit(ctx context.Context, plan model.GeneratePlan) ([]model.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(plan.Created) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := planConflict(plan, s.team, s.judge, s.lockedLocked())
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	created := make([]model.Assignment, 0, len(plan.Created))
	for _, c := range plan.Created {
		a := model.Assignment{
			ID:        s.opts.newID(),
			JudgeID:   c.JudgeID,
			TeamIDs:   slices.Clone(c.TeamIDs),
			FloorID:   plan.FloorID,
			CreatedAt: now,
		}
		stored := cloneAssignment(a)
		s.assignments[a.ID] = &stored
		s.assignOrder = append(s.assignOrder, a.ID)
		s.judges[c.JudgeID].CurrentAssignmentID = a.ID
		created = append(created, a)
	}
	return created, nil
}

// Submit implements Store.
func (s *MemoryStore) Submit(ctx context.Context, assignmentID string, scores map[string]int) (model.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return model.Assignment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[assignmentID]
	if !ok {
		return model.Assignment{}, fmt.Errorf("%w: %s", ErrNotFound, assignmentID)
	}
	if a.Submitted {
		return model.Assignment{}, fmt.Errorf("%w: %s", ErrAlreadySubmitted, assignmentID)
	}

	a.Submitted = true
	for _, id := range a.TeamIDs {
		if t, ok := s.teams[id]; ok {
			t.ReviewedBy = append(t.ReviewedBy, model.Review{JudgeID: a.JudgeID, Score: scores[id]})
		}
	}
	if j, ok := s.judges[a.JudgeID]; ok {
		if j.CurrentAssignmentID == a.ID {
			j.CurrentAssignmentID = ""
		}
		j.CompletedAssignments++
	}
	return cloneAssignment(*a), nil
}

// Cancel implements Store.
func (s *MemoryStore) Cancel(ctx context.Context, assignmentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[assignmentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, assignmentID)
	}
	if a.Submitted {
		return fmt.Errorf("%w: %s", ErrAlreadySubmitted, assignmentID)
	}

	delete(s.assignments, assignmentID)
	s.assignOrder = slices.DeleteFunc(s.assignOrder, func(id string) bool { return id == assignmentID })
	if j, ok := s.judges[a.JudgeID]; ok && j.CurrentAssignmentID == assignmentID {
		j.CurrentAssignmentID = ""
	}
	return nil
}

// Count returns how many teams, judges and assignments the store holds.
func (s *MemoryStore) Count() (teams, judges, assignments int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.teams), len(s.judges), len(s.assignments)
}

func (s *MemoryStore) team(id string) (model.Team, bool) {
	t, ok := s.teams[id]
	if !ok {
		return model.Team{}, false
	}
	return *t, true
}

func (s *MemoryStore) judge(id string) (model.Judge, bool) {
	j, ok := s.judges[id]
	if !ok {
		return model.Judge{}, false
	}
	return *j, true
}

// lockedLocked returns currently locked team ids. Caller holds s.mu.
func (s *MemoryStore) lockedLocked() map[string]struct{} {
	locked := make(map[string]struct{})
	for _, a := range s.assignments {
		if a.Submitted {
			continue
		}
		for _, id := range a.TeamIDs {
			locked[id] = struct{}{}
		}
	}
	return locked
}

func cloneTeam(t model.Team) model.Team {
	t.ReviewedBy = slices.Clone(t.ReviewedBy)
	return t
}

func cloneAssignment(a model.Assignment) model.Assignment {
	a.TeamIDs = slices.Clone(a.TeamIDs)
	return a
}
