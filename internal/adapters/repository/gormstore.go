package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/judgeflow/internal/domain/model"
)

type teamRow struct {
	ID       string `gorm:"column:id;primaryKey;size:64"`
	Name     string `gorm:"column:name;size:200"`
	Number   int    `gorm:"column:number;not null"`
	FloorID  string `gorm:"column:floor_id;size:64;index"`
	IsPaused bool   `gorm:"column:is_paused;not null;default:false"`
}

func (teamRow) TableName() string { return "teams" }

type reviewRow struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	TeamID    string    `gorm:"column:team_id;size:64;index;not null"`
	JudgeID   string    `gorm:"column:judge_id;size:64;not null"`
	Score     int       `gorm:"column:score;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (reviewRow) TableName() string { return "reviews" }

type judgeRow struct {
	ID                   string `gorm:"column:id;primaryKey;size:64"`
	Name                 string `gorm:"column:name;size:200"`
	FloorID              string `gorm:"column:floor_id;size:64;index"`
	HasSwitchedFloors    bool   `gorm:"column:has_switched_floors;not null;default:false"`
	CurrentAssignmentID  string `gorm:"column:current_assignment_id;size:64;not null;default:''"`
	CompletedAssignments int    `gorm:"column:completed_assignments;not null;default:0"`
}

func (judgeRow) TableName() string { return "judges" }

type assignmentRow struct {
	ID        string    `gorm:"column:id;primaryKey;size:64"`
	JudgeID   string    `gorm:"column:judge_id;size:64;index;not null"`
	TeamIDs   []string  `gorm:"column:team_ids;serializer:json;not null"`
	Submitted bool      `gorm:"column:submitted;index;not null;default:false"`
	FloorID   string    `gorm:"column:floor_id;size:64;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (assignmentRow) TableName() string { return "assignments" }

// GormStore is a Store backed by a SQL database through gorm. Commit, Submit
// and Cancel run in one transaction each and lock the rows they check.
type GormStore struct {
	db   *gorm.DB
	opts options
}

var _ Store = (*GormStore)(nil)

// OpenPostgres connects to PostgreSQL with gorm's postgres driver.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// NewGormStore wraps an open gorm handle.
func NewGormStore(db *gorm.DB, opts ...Option) *GormStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &GormStore{db: db, opts: o}
}

// Migrate creates or updates the tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&teamRow{}, &reviewRow{}, &judgeRow{}, &assignmentRow{})
}

// Seed inserts snap into an empty database. A database that already holds
// teams is left untouched.
func (s *GormStore) Seed(ctx context.Context, snap model.Snapshot) error {
	if err := ValidateSnapshot(snap); err != nil {
		return err
	}
	teams, reviews := teamRows(snap.Teams)
	judges := judgeRows(snap.Judges)
	assignments := assignmentRows(snap.Assignments)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&teamRow{}).Count(&existing).Error; err != nil {
			return fmt.Errorf("count teams: %w", err)
		}
		if existing > 0 {
			return nil
		}

		skip := clause.OnConflict{DoNothing: true}
		if len(teams) > 0 {
			if err := tx.Clauses(skip).Create(&teams).Error; err != nil {
				return fmt.Errorf("seed teams: %w", err)
			}
		}
		if len(reviews) > 0 {
			if err := tx.Create(&reviews).Error; err != nil {
				return fmt.Errorf("seed reviews: %w", err)
			}
		}
		if len(judges) > 0 {
			if err := tx.Clauses(skip).Create(&judges).Error; err != nil {
				return fmt.Errorf("seed judges: %w", err)
			}
		}
		if len(assignments) > 0 {
			if err := tx.Clauses(skip).Create(&assignments).Error; err != nil {
				return fmt.Errorf("seed assignments: %w", err)
			}
		}
		return nil
	})
}

// Snapshot implements Store.
func (s *GormStore) Snapshot(ctx context.Context, floorID string) (model.Snapshot, error) {
	db := s.db.WithContext(ctx)

	var teams []teamRow
	q := db.Order("number, id")
	if floorID != "" {
		q = q.Where("floor_id = ?", floorID)
	}
	if err := q.Find(&teams).Error; err != nil {
		return model.Snapshot{}, fmt.Errorf("load teams: %w", err)
	}

	var reviews []reviewRow
	if len(teams) > 0 {
		ids := make([]string, len(teams))
		for i, t := range teams {
			ids[i] = t.ID
		}
		if err := db.Where("team_id IN ?", ids).Order("id").Find(&reviews).Error; err != nil {
			return model.Snapshot{}, fmt.Errorf("load reviews: %w", err)
		}
	}

	var judges []judgeRow
	if err := db.Order("id").Find(&judges).Error; err != nil {
		return model.Snapshot{}, fmt.Errorf("load judges: %w", err)
	}

	var assignments []assignmentRow
	if err := db.Order("created_at, id").Find(&assignments).Error; err != nil {
		return model.Snapshot{}, fmt.Errorf("load assignments: %w", err)
	}

	return toSnapshot(teams, reviews, judges, assignments), nil
}

// Commit implements Store.
func (s *GormStore) Commit(ctx context.Context, plan model.GeneratePlan) ([]model.Assignment, error) {
	if len(plan.Created) == 0 {
		return nil, nil
	}

	judgeIDs := make([]string, 0, len(plan.Created))
	for _, c := range plan.Created {
		judgeIDs = append(judgeIDs, c.JudgeID)
	}
	teamIDs := plan.TeamIDs()

	var created []model.Assignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		forUpdate := clause.Locking{Strength: "UPDATE"}

		var judges []judgeRow
		if err := tx.Clauses(forUpdate).Where("id IN ?", judgeIDs).Order("id").Find(&judges).Error; err != nil {
			return fmt.Errorf("lock judges: %w", err)
		}
		var teams []teamRow
		if err := tx.Clauses(forUpdate).Where("id IN ?", teamIDs).Order("id").Find(&teams).Error; err != nil {
			return fmt.Errorf("lock teams: %w", err)
		}
		var active []assignmentRow
		if err := tx.Where("submitted = ?", false).Find(&active).Error; err != nil {
			return fmt.Errorf("load active assignments: %w", err)
		}

		teamByID := make(map[string]model.Team, len(teams))
		for _, t := range teams {
			teamByID[t.ID] = t.toModel(nil)
		}
		judgeByID := make(map[string]model.Judge, len(judges))
		for _, j := range judges {
			judgeByID[j.ID] = j.toModel()
		}
		locked := make(map[string]struct{})
		for _, a := range active {
			for _, id := range a.TeamIDs {
				locked[id] = struct{}{}
			}
		}

		err := planConflict(plan,
			func(id string) (model.Team, bool) { t, ok := teamByID[id]; return t, ok },
			func(id string) (model.Judge, bool) { j, ok := judgeByID[id]; return j, ok },
			locked,
		)
		if err != nil {
			return err
		}

		now := s.opts.now()
		rows := make([]assignmentRow, 0, len(plan.Created))
		for _, c := range plan.Created {
			rows = append(rows, assignmentRow{
				ID:        s.opts.newID(),
				JudgeID:   c.JudgeID,
				TeamIDs:   append([]string(nil), c.TeamIDs...),
				FloorID:   plan.FloorID,
				CreatedAt: now,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("create assignments: %w", err)
		}
		for _, r := range rows {
			res := tx.Model(&judgeRow{}).Where("id = ?", r.JudgeID).Update("current_assignment_id", r.ID)
			if res.Error != nil {
				return fmt.Errorf("point judge %s at assignment: %w", r.JudgeID, res.Error)
			}
			created = append(created, r.toModel())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Submit implements Store.
func (s *GormStore) Submit(ctx context.Context, assignmentID string, scores map[string]int) (model.Assignment, error) {
	var out model.Assignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockAssignment(tx, assignmentID)
		if err != nil {
			return err
		}

		if err := tx.Model(&assignmentRow{}).Where("id = ?", row.ID).Update("submitted", true).Error; err != nil {
			return fmt.Errorf("mark submitted: %w", err)
		}
		reviews := make([]reviewRow, 0, len(row.TeamIDs))
		for _, id := range row.TeamIDs {
			reviews = append(reviews, reviewRow{TeamID: id, JudgeID: row.JudgeID, Score: scores[id]})
		}
		if len(reviews) > 0 {
			if err := tx.Create(&reviews).Error; err != nil {
				return fmt.Errorf("record reviews: %w", err)
			}
		}
		if err := tx.Model(&judgeRow{}).Where("id = ?", row.JudgeID).
			Update("completed_assignments", gorm.Expr("completed_assignments + 1")).Error; err != nil {
			return fmt.Errorf("count completed: %w", err)
		}
		if err := releaseJudge(tx, row); err != nil {
			return err
		}

		row.Submitted = true
		out = row.toModel()
		return nil
	})
	if err != nil {
		return model.Assignment{}, err
	}
	return out, nil
}

// Cancel implements Store.
func (s *GormStore) Cancel(ctx context.Context, assignmentID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockAssignment(tx, assignmentID)
		if err != nil {
			return err
		}
		if err := tx.Delete(&assignmentRow{}, "id = ?", row.ID).Error; err != nil {
			return fmt.Errorf("delete assignment: %w", err)
		}
		return releaseJudge(tx, row)
	})
}

// lockAssignment loads an unsubmitted assignment FOR UPDATE.
func lockAssignment(tx *gorm.DB, id string) (assignmentRow, error) {
	var row assignmentRow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return row, fmt.Errorf("load assignment: %w", err)
	}
	if row.Submitted {
		return row, fmt.Errorf("%w: %s", ErrAlreadySubmitted, id)
	}
	return row, nil
}

func releaseJudge(tx *gorm.DB, row assignmentRow) error {
	err := tx.Model(&judgeRow{}).
		Where("id = ? AND current_assignment_id = ?", row.JudgeID, row.ID).
		Update("current_assignment_id", "").Error
	if err != nil {
		return fmt.Errorf("release judge %s: %w", row.JudgeID, err)
	}
	return nil
}

func (r teamRow) toModel(reviews []model.Review) model.Team {
	return model.Team{
		ID:         r.ID,
		Name:       r.Name,
		Number:     r.Number,
		FloorID:    r.FloorID,
		ReviewedBy: reviews,
		IsPaused:   r.IsPaused,
	}
}

func (r judgeRow) toModel() model.Judge {
	return model.Judge{
		ID:                   r.ID,
		Name:                 r.Name,
		FloorID:              r.FloorID,
		HasSwitchedFloors:    r.HasSwitchedFloors,
		CurrentAssignmentID:  r.CurrentAssignmentID,
		CompletedAssignments: r.CompletedAssignments,
	}
}

func (r assignmentRow) toModel() model.Assignment {
	return model.Assignment{
		ID:        r.ID,
		JudgeID:   r.JudgeID,
		TeamIDs:   append([]string(nil), r.TeamIDs...),
		Submitted: r.Submitted,
		FloorID:   r.FloorID,
		CreatedAt: r.CreatedAt,
	}
}

func toSnapshot(teams []teamRow, reviews []reviewRow, judges []judgeRow, assignments []assignmentRow) model.Snapshot {
	byTeam := make(map[string][]model.Review)
	for _, r := range reviews {
		byTeam[r.TeamID] = append(byTeam[r.TeamID], model.Review{JudgeID: r.JudgeID, Score: r.Score})
	}

	snap := model.Snapshot{
		Teams:       make([]model.Team, 0, len(teams)),
		Judges:      make([]model.Judge, 0, len(judges)),
		Assignments: make([]model.Assignment, 0, len(assignments)),
	}
	for _, t := range teams {
		snap.Teams = append(snap.Teams, t.toModel(byTeam[t.ID]))
	}
	for _, j := range judges {
		snap.Judges = append(snap.Judges, j.toModel())
	}
	for _, a := range assignments {
		snap.Assignments = append(snap.Assignments, a.toModel())
	}
	return snap
}

func teamRows(teams []model.Team) ([]teamRow, []reviewRow) {
	rows := make([]teamRow, 0, len(teams))
	var reviews []reviewRow
	for _, t := range teams {
		rows = append(rows, teamRow{
			ID:       t.ID,
			Name:     t.Name,
			Number:   t.Number,
			FloorID:  t.FloorID,
			IsPaused: t.IsPaused,
		})
		for _, r := range t.ReviewedBy {
			reviews = append(reviews, reviewRow{TeamID: t.ID, JudgeID: r.JudgeID, Score: r.Score})
		}
	}
	return rows, reviews
}

func judgeRows(judges []model.Judge) []judgeRow {
	rows := make([]judgeRow, 0, len(judges))
	for _, j := range judges {
		rows = append(rows, judgeRow{
			ID:                   j.ID,
			Name:                 j.Name,
			FloorID:              j.FloorID,
			HasSwitchedFloors:    j.HasSwitchedFloors,
			CurrentAssignmentID:  j.CurrentAssignmentID,
			CompletedAssignments: j.CompletedAssignments,
		})
	}
	return rows
}

func assignmentRows(assignments []model.Assignment) []assignmentRow {
	rows := make([]assignmentRow, 0, len(assignments))
	for _, a := range assignments {
		rows = append(rows, assignmentRow{
			ID:        a.ID,
			JudgeID:   a.JudgeID,
			TeamIDs:   append([]string(nil), a.TeamIDs...),
			Submitted: a.Submitted,
			FloorID:   a.FloorID,
			CreatedAt: a.CreatedAt,
		})
	}
	return rows
}
