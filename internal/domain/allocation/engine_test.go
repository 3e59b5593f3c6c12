package allocation_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/okian/judgeflow/internal/domain/allocation"
	"github.com/okian/judgeflow/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const floorID = "floor-1"

// teamsNumbered builds unpaused, unreviewed teams numbered from..to.
func teamsNumbered(from, to int) []model.Team {
	teams := make([]model.Team, 0, to-from+1)
	for n := from; n <= to; n++ {
		teams = append(teams, model.Team{
			ID:      fmt.Sprintf("t%02d", n),
			Name:    fmt.Sprintf("Team %d", n),
			Number:  n,
			FloorID: floorID,
		})
	}
	return teams
}

func judges(names ...string) []model.Judge {
	out := make([]model.Judge, len(names))
	for i, name := range names {
		out[i] = model.Judge{ID: "j-" + name, Name: name, FloorID: floorID}
	}
	return out
}

func judgeIDs(js []model.Judge) []string {
	ids := make([]string, len(js))
	for i, j := range js {
		ids[i] = j.ID
	}
	return ids
}

func numbers(ids []string) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		_, _ = fmt.Sscanf(id, "t%02d", &out[i])
	}
	return out
}

func TestEngine_New(t *testing.T) {
	Convey("Given a new engine with default options", t, func() {
		e := allocation.New()

		Convey("Then it should hand out blocks of five with a closeness cap of 15", func() {
			So(e.BlockSize(), ShouldEqual, 5)
			So(e.ClosenessCap(), ShouldEqual, 15)
		})
	})

	Convey("Given an engine with custom options", t, func() {
		e := allocation.New(allocation.WithBlockSize(3), allocation.WithClosenessCap(4))

		Convey("Then the options should apply", func() {
			So(e.BlockSize(), ShouldEqual, 3)
			So(e.ClosenessCap(), ShouldEqual, 4)
		})
	})

	Convey("Given invalid option values", t, func() {
		e := allocation.New(allocation.WithBlockSize(0), allocation.WithClosenessCap(-1))

		Convey("Then defaults should be kept", func() {
			So(e.BlockSize(), ShouldEqual, allocation.DefaultBlockSize)
			So(e.ClosenessCap(), ShouldEqual, allocation.DefaultClosenessCap)
		})
	})
}

func TestEngine_InvalidRequest(t *testing.T) {
	Convey("Given an engine and a snapshot", t, func() {
		e := allocation.New()
		snap := model.Snapshot{Teams: teamsNumbered(1, 12), Judges: judges("Alice")}

		Convey("When no floor is selected", func() {
			_, err := e.Generate(snap, model.GenerateRequest{JudgeIDs: []string{"j-Alice"}})

			Convey("Then it should reject the request", func() {
				So(errors.Is(err, allocation.ErrInvalidRequest), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "no floor selected")
			})
		})

		Convey("When the judge list is empty or blank", func() {
			_, err := e.Generate(snap, model.GenerateRequest{FloorID: floorID, JudgeIDs: []string{" ", ""}})

			Convey("Then it should reject the request", func() {
				So(errors.Is(err, allocation.ErrInvalidRequest), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "no judges selected")
			})
		})
	})
}

func TestEngine_ExclusiveMode(t *testing.T) {
	Convey("Given teams 1-12 with no reviews and two judges", t, func() {
		e := allocation.New()
		js := judges("Alice", "Bob")
		snap := model.Snapshot{Teams: teamsNumbered(1, 12), Judges: js}

		plan, err := e.Generate(snap, model.GenerateRequest{FloorID: floorID, JudgeIDs: judgeIDs(js)})
		So(err, ShouldBeNil)

		Convey("Then the batch runs in exclusive mode", func() {
			So(plan.Summary.OverlapMode, ShouldBeFalse)
			So(plan.Summary.AvailableTeams, ShouldEqual, 12)
			So(plan.Summary.Created, ShouldEqual, 2)
			So(plan.Failures, ShouldBeEmpty)
		})

		Convey("Then the first judge gets the first tight window", func() {
			So(numbers(plan.Created[0].TeamIDs), ShouldResemble, []int{1, 2, 3, 4, 5})
			So(plan.Created[0].Closeness, ShouldEqual, 4)
			So(plan.Created[0].Pressure, ShouldEqual, 0)
			So(plan.Created[0].JudgeName, ShouldEqual, "Alice")
		})

		Convey("Then the second judge gets the next disjoint window", func() {
			So(numbers(plan.Created[1].TeamIDs), ShouldResemble, []int{6, 7, 8, 9, 10})
			So(plan.Created[1].TeamNumbers, ShouldResemble, []int{6, 7, 8, 9, 10})
			So(plan.Created[1].Reversed, ShouldBeFalse)
		})
	})
}

func TestEngine_OverlapMode(t *testing.T) {
	Convey("Given only teams 1-7 and two judges", t, func() {
		e := allocation.New()
		js := judges("Alice", "Bob")
		snap := model.Snapshot{Teams: teamsNumbered(1, 7), Judges: js}

		plan, err := e.Generate(snap, model.GenerateRequest{FloorID: floorID, JudgeIDs: judgeIDs(js)})
		So(err, ShouldBeNil)

		Convey("Then overlap mode is triggered", func() {
			So(plan.Summary.OverlapMode, ShouldBeTrue)
			So(plan.Summary.Created, ShouldEqual, 2)
		})

		Convey("Then the second judge prefers the least pressured window", func() {
			So(numbers(plan.Created[0].TeamIDs), ShouldResemble, []int{1, 2, 3, 4, 5})
			So(numbers(plan.Created[1].TeamIDs), ShouldResemble, []int{3, 4, 5, 6, 7})
			So(plan.Created[1].Pressure, ShouldEqual, 3)
		})
	})

	Convey("Given exactly five teams and two judges", t, func() {
		e := allocation.New()
		js := judges("Alice", "Bob")
		snap := model.Snapshot{Teams: teamsNumbered(1, 5), Judges: js}

		plan, err := e.Generate(snap, model.GenerateRequest{FloorID: floorID, JudgeIDs: judgeIDs(js)})
		So(err, ShouldBeNil)

		Convey("Then the identical block is handed out reversed", func() {
			So(numbers(plan.Created[0].TeamIDs), ShouldResemble, []int{1, 2, 3, 4, 5})
			So(numbers(plan.Created[1].TeamIDs), ShouldResemble, []int{5, 4, 3, 2, 1})
			So(plan.Created[1].Reversed, ShouldBeTrue)
			So(plan.Summary.Reversed, ShouldEqual, 1)
		})
	})

	Convey("Given exactly five teams and three judges", t, func() {
		e := allocation.New()
		js := judges("Alice", "Bob", "Cara")
		snap := model.Snapshot{Teams: teamsNumbered(1, 5), Judges: js}

		plan, err := e.Generate(snap, model.GenerateRequest{FloorID: floorID, JudgeIDs: judgeIDs(js)})
		So(err, ShouldBeNil)

		Convey("Then each holder walks the block opposite to the one before", func() {
			So(plan.Created, ShouldHaveLength, 3)
			So(numbers(plan.Created[0].TeamIDs), ShouldResemble, []int{1, 2, 3, 4, 5})
			So(numbers(plan.Created[1].TeamIDs), ShouldResemble, []int{5, 4, 3, 2, 1})
			So(numbers(plan.Created[2].TeamIDs), ShouldResemble, []int{1, 2, 3, 4, 5})
			So(plan.Created[1].Reversed, ShouldBeTrue)
			So(plan.Created[2].Reversed, ShouldBeFalse)
			So(plan.Summary.Reversed, ShouldEqual, 1)
		})
	})
}

func TestEngine_InsufficientCandidates(t *testing.T) {
	Convey("Given a judge who already reviewed teams 1-10 of 12", t, func() {
		e := allocation.New()
		js := judges("Alice")
		snap := model.Snapshot{
			Teams:  teamsNumbered(1, 12),
			Judges: js,
			Assignments: []model.Assignment{
				{ID: "a1", JudgeID: "j-Alice", FloorID: floorID, Submitted: true, TeamIDs: []string{"t01", "t02", "t03", "t04", "t05"}},
				{ID: "a2", JudgeID: "j-Alice", FloorID: floorID, Submitted: true, TeamIDs: []string{"t06", "t07", "t08", "t09", "t10"}},
			},
		}

		plan, err := e.Generate(snap, model.GenerateRequest{FloorID: floorID, JudgeIDs: judgeIDs(js)})
		So(err, ShouldBeNil)

		Convey("Then the judge fails because of history", func() {
			So(plan.Created, ShouldBeEmpty)
			So(plan.Failures, ShouldHaveLength, 1)
			So(plan.Failures[0].Reason, ShouldEqual, allocation.ReasonJudgedNearlyAll)
			So(plan.Failures[0].Kind, ShouldEqual, "insufficient_candidates")
			So(errors.Is(plan.Failures[0].Err, allocation.ErrInsufficientCandidates), ShouldBeTrue)
		})
	})

	Convey("Given teams locked by another judge's active assignment", t, func() {
		e := allocation.New()
		js := judges("Alice")
		snap := model.Snapshot{
			Teams:  teamsNumbered(1, 8),
			Judges: append(js, model.Judge{ID: "j-Carol", Name: "Carol", FloorID: floorID, CurrentAssignmentID: "a9"}),
			Assignments: []model.Assignment{
				{ID: "a9", JudgeID: "j-Carol", FloorID: floorID, TeamIDs: []string{"t01", "t02", "t03", "t04", "t05"}},
			},
		}

		plan, err := e.Generate(snap, model.GenerateRequest{FloorID: floorID, JudgeIDs: judgeIDs(js)})
		So(err, ShouldBeNil)

		Convey("Then the judge fails because of locking", func() {
			So(plan.Summary.AvailableTeams, ShouldEqual, 3)
			So(plan.Failures, ShouldHaveLength, 1)
			So(plan.Failures[0].Reason, ShouldEqual, allocation.ReasonNoFreeTeams)
		})
	})

	Convey("Given a floor with fewer teams than a block and no history", t, func() {
		e := allocation.New()
		js := judges("Alice")
		snap := model.Snapshot{Teams: teamsNumbered(1, 3), Judges: js}

		plan, err := e.Generate(snap, model.GenerateRequest{FloorID: floorID, JudgeIDs: judgeIDs(js)})
		So(err, ShouldBeNil)

		Convey("Then the shortage is blamed on free teams", func() {
			So(plan.Failures[0].Reason, ShouldEqual, allocation.ReasonNoFreeTeams)
		})
	})
}

func TestEngine_PoolFiltering(t *testing.T) {
	Convey("Given paused teams, other floors and unsorted input", t, func() {
		e := allocation.New()
		teams := teamsNumbered(1, 8)
		teams[0].IsPaused = true // team 1
		teams = append(teams, model.Team{ID: "x1", Number: 0, FloorID: "floor-2"})
		// Shuffle the input order; number order must still win.
		teams[1], teams[6] = teams[6], teams[1]
		js := judges("Alice")
		snap := model.Snapshot{Teams: teams, Judges: js}

		plan, err := e.Generate(snap, model.GenerateRequest{FloorID: floorID, JudgeIDs: judgeIDs(js)})
		So(err, ShouldBeNil)

		Convey("Then the paused and off-floor teams are never used", func() {
			So(numbers(plan.Created[0].TeamIDs), ShouldResemble, []int{2, 3, 4, 5, 6})
			So(plan.Summary.AvailableTeams, ShouldEqual, 7)
		})
	})

	Convey("Given a request with unknown, busy, off-floor and repeated judges", t, func() {
		e := allocation.New()
		js := judges("Alice", "Bob")
		busy := model.Judge{ID: "j-Busy", Name: "Busy", FloorID: floorID, CurrentAssignmentID: "a1"}
		away := model.Judge{ID: "j-Away", Name: "Away", FloorID: "floor-2"}
		snap := model.Snapshot{
			Teams:       teamsNumbered(1, 20),
			Judges:      append(js, busy, away),
			Assignments: []model.Assignment{{ID: "a1", JudgeID: "j-Busy", FloorID: floorID, TeamIDs: []string{"t16", "t17", "t18", "t19", "t20"}}},
		}
		req := model.GenerateRequest{
			FloorID:  floorID,
			JudgeIDs: []string{"j-Ghost", "j-Alice", "j-Busy", "j-Alice", "j-Away", "j-Bob"},
		}

		plan, err := e.Generate(snap, req)
		So(err, ShouldBeNil)

		Convey("Then ineligible judges are reported in request order", func() {
			So(plan.Failures, ShouldHaveLength, 3)
			So(plan.Failures[0].JudgeName, ShouldEqual, "j-Ghost")
			So(plan.Failures[0].Reason, ShouldEqual, allocation.ReasonJudgeNotFound)
			So(plan.Failures[1].JudgeName, ShouldEqual, "Busy")
			So(plan.Failures[1].Reason, ShouldEqual, allocation.ReasonJudgeBusy)
			So(plan.Failures[2].JudgeName, ShouldEqual, "Away")
			So(plan.Failures[2].Reason, ShouldEqual, allocation.ReasonJudgeOffFloor)
		})

		Convey("Then repeated ids are processed once and only eligible judges count", func() {
			So(plan.Summary.Requested, ShouldEqual, 5)
			So(plan.Summary.Processed, ShouldEqual, 2)
			So(plan.Created, ShouldHaveLength, 2)
			So(plan.Created[0].JudgeID, ShouldEqual, "j-Alice")
			So(plan.Created[1].JudgeID, ShouldEqual, "j-Bob")
			So(plan.Summary.OverlapMode, ShouldBeFalse)
		})
	})
}

func TestEngine_Pressure(t *testing.T) {
	Convey("Given reviews concentrated on the first teams", t, func() {
		e := allocation.New()
		teams := teamsNumbered(1, 10)
		for i := 0; i < 5; i++ {
			teams[i].ReviewedBy = []model.Review{{JudgeID: "someone", Score: 5}}
		}
		js := judges("Alice")
		snap := model.Snapshot{Teams: teams, Judges: js}

		plan, err := e.Generate(snap, model.GenerateRequest{FloorID: floorID, JudgeIDs: judgeIDs(js)})
		So(err, ShouldBeNil)

		Convey("Then the judge is sent to the unreviewed teams", func() {
			So(numbers(plan.Created[0].TeamIDs), ShouldResemble, []int{6, 7, 8, 9, 10})
			So(plan.Created[0].Pressure, ShouldEqual, 0)
		})
	})

	Convey("Given teams reviewed by the judge through review history only", t, func() {
		e := allocation.New()
		teams := teamsNumbered(1, 10)
		for i := 5; i < 10; i++ {
			teams[i].ReviewedBy = []model.Review{{JudgeID: "j-Alice", Score: 5}}
		}
		js := judges("Alice")
		snap := model.Snapshot{Teams: teams, Judges: js}

		plan, err := e.Generate(snap, model.GenerateRequest{FloorID: floorID, JudgeIDs: judgeIDs(js)})
		So(err, ShouldBeNil)

		Convey("Then those teams are excluded", func() {
			So(numbers(plan.Created[0].TeamIDs), ShouldResemble, []int{1, 2, 3, 4, 5})
		})
	})
}

func TestEngine_RelaxedPass(t *testing.T) {
	Convey("Given teams spread far apart", t, func() {
		e := allocation.New()
		teams := []model.Team{}
		for i, n := range []int{1, 10, 20, 30, 40, 50} {
			teams = append(teams, model.Team{ID: fmt.Sprintf("t%02d", i+1), Number: n, FloorID: floorID})
		}
		teams[0].ReviewedBy = []model.Review{{JudgeID: "x"}}
		js := judges("Alice")
		snap := model.Snapshot{Teams: teams, Judges: js}

		plan, err := e.Generate(snap, model.GenerateRequest{FloorID: floorID, JudgeIDs: judgeIDs(js)})
		So(err, ShouldBeNil)

		Convey("Then the relaxed pass picks the lowest pressure window", func() {
			So(plan.Created[0].Relaxed, ShouldBeTrue)
			So(plan.Created[0].TeamNumbers, ShouldResemble, []int{10, 20, 30, 40, 50})
			So(plan.Created[0].Closeness, ShouldEqual, 40)
		})
	})

	Convey("Given a tight low-balance window and a loose perfect-balance window", t, func() {
		e := allocation.New()
		teams := teamsNumbered(1, 5)
		for i := range teams {
			teams[i].ReviewedBy = []model.Review{{JudgeID: "x"}}
		}
		for i, n := range []int{30, 40, 50, 60, 70} {
			teams = append(teams, model.Team{ID: fmt.Sprintf("f%d", i), Number: n, FloorID: floorID})
		}
		js := judges("Alice")
		snap := model.Snapshot{Teams: teams, Judges: js}

		plan, err := e.Generate(snap, model.GenerateRequest{FloorID: floorID, JudgeIDs: judgeIDs(js)})
		So(err, ShouldBeNil)

		Convey("Then the strict pass wins while any window is close enough", func() {
			So(plan.Created[0].Relaxed, ShouldBeFalse)
			So(plan.Created[0].TeamNumbers, ShouldResemble, []int{1, 2, 3, 4, 5})
		})
	})
}

func TestEngine_Determinism(t *testing.T) {
	Convey("Given the same snapshot and judge order", t, func() {
		e := allocation.New()
		teams := teamsNumbered(1, 23)
		for i := range teams {
			for k := 0; k < i%4; k++ {
				teams[i].ReviewedBy = append(teams[i].ReviewedBy, model.Review{JudgeID: "x"})
			}
		}
		js := judges("A", "B", "C", "D", "E", "F")
		snap := model.Snapshot{Teams: teams, Judges: js}
		req := model.GenerateRequest{FloorID: floorID, JudgeIDs: judgeIDs(js)}

		first, err1 := e.Generate(snap, req)
		second, err2 := e.Generate(snap, req)

		Convey("Then both runs produce identical plans", func() {
			So(err1, ShouldBeNil)
			So(err2, ShouldBeNil)
			So(second, ShouldResemble, first)
		})

		Convey("Then the snapshot is left untouched", func() {
			So(snap.Teams[3].ReviewCount(), ShouldEqual, 3)
			So(snap.Assignments, ShouldBeEmpty)
		})
	})
}
