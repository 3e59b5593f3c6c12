package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/judgeflow/internal/domain/model"
)

const floorYAML = `teams:
  - {id: t1, name: Alpha, number: 1, floor_id: f1}
  - {id: t2, name: Bravo, number: 2, floor_id: f1}
  - {id: t3, name: Charlie, number: 3, floor_id: f1, reviewed_by: [{judge_id: carol, score: 7}]}
  - {id: t4, name: Delta, number: 4, floor_id: f1}
  - {id: t5, name: Echo, number: 5, floor_id: f1}
  - {id: t6, name: Foxtrot, number: 6, floor_id: f1}
  - {id: t7, name: Golf, number: 7, floor_id: f1, is_paused: true}
judges:
  - {id: alice, name: Alice, floor_id: f1}
  - {id: bob, name: Bob, floor_id: f1}
  - {id: carol, name: Carol, floor_id: f1, current_assignment_id: a1}
assignments:
  - {id: a1, judge_id: carol, team_ids: [t6], floor_id: f1}
`

func writeFloor(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "floor.yaml")
	if err := os.WriteFile(path, []byte(floorYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(args ...string) (string, error) {
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	Convey("Given the judgeplan root command", t, func() {
		root := NewRootCommand()

		Convey("Then it exposes plan, coverage and simulate", func() {
			names := map[string]bool{}
			for _, c := range root.Commands() {
				names[c.Name()] = true
			}
			So(names["plan"], ShouldBeTrue)
			So(names["coverage"], ShouldBeTrue)
			So(names["simulate"], ShouldBeTrue)
		})

		Convey("Then a bad log level is rejected", func() {
			_, err := execute("simulate", "--rounds", "1", "--log-level", "loud")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestPlanCommand(t *testing.T) {
	Convey("Given a floor snapshot on disk", t, func() {
		path := writeFloor(t)

		Convey("When planning for two idle judges and a busy one", func() {
			out, err := execute("plan", "--snapshot", path, "--floor", "f1", "--judge", "alice,carol", "--judge", "bob")

			Convey("Then the shared block is walked both ways and the busy judge reported", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Plan for floor f1")
				So(out, ShouldContainSubstring, "overlap mode")
				So(out, ShouldContainSubstring, "1 2 3 4 5")
				So(out, ShouldContainSubstring, "5 4 3 2 1")
				So(out, ShouldContainSubstring, "reversed")
				So(out, ShouldContainSubstring, "! Carol: already has an active assignment")
				So(out, ShouldContainSubstring, "2 assignments created. Could not assign: Carol")
			})
		})

		Convey("When asking for JSON", func() {
			out, err := execute("plan", "--snapshot", path, "--floor", "f1", "--judge", "alice", "--json")

			Convey("Then the plan decodes", func() {
				So(err, ShouldBeNil)
				var plan model.GeneratePlan
				So(json.Unmarshal([]byte(out), &plan), ShouldBeNil)
				So(plan.Created, ShouldHaveLength, 1)
				So(plan.Created[0].TeamIDs, ShouldResemble, []string{"t1", "t2", "t3", "t4", "t5"})
			})
		})

		Convey("When a required flag is missing", func() {
			_, err := execute("plan", "--snapshot", path, "--judge", "alice")
			So(err, ShouldNotBeNil)
		})

		Convey("When the snapshot does not exist", func() {
			_, err := execute("plan", "--snapshot", filepath.Join(t.TempDir(), "none.yaml"), "--floor", "f1", "--judge", "alice")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestCoverageCommand(t *testing.T) {
	Convey("Given a floor snapshot on disk", t, func() {
		path := writeFloor(t)

		Convey("When rendering coverage", func() {
			out, err := execute("coverage", "--snapshot", path, "--floor", "f1")

			Convey("Then counts and least reviewed teams are shown", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Coverage for floor f1")
				So(out, ShouldContainSubstring, "teams 6  paused 1  locked 1")
				So(out, ShouldContainSubstring, "skew 1")
				So(out, ShouldContainSubstring, "Alpha")
			})
		})

		Convey("When the floor is empty", func() {
			out, err := execute("coverage", "--snapshot", path, "--floor", "f9")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "no active teams")
		})
	})
}

func TestSimulateCommand(t *testing.T) {
	Convey("Given a small simulation", t, func() {
		out, err := execute("simulate", "--teams", "20", "--judges", "3", "--rounds", "3", "--seed", "4")

		Convey("Then every round is listed and verified", func() {
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Simulation: 20 teams, 3 judges, 3 rounds, seed 4")
			So(out, ShouldContainSubstring, "all plans verified")
		})
	})

	Convey("Given an impossible simulation", t, func() {
		_, err := execute("simulate", "--teams", "0")
		So(err, ShouldNotBeNil)
	})
}
