package simulate

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/okian/judgeflow/internal/domain/allocation"
	"github.com/okian/judgeflow/internal/domain/model"
)

// ErrPropertyViolated marks a plan that breaks an allocation guarantee.
var ErrPropertyViolated = errors.New("allocation property violated")

// Property names reported in a Violation.
const (
	PropBlockSize     = "block_size"
	PropDistinctTeams = "distinct_teams"
	PropUnknownTeam   = "unknown_team"
	PropNoSelfRepeat  = "no_self_repeat"
	PropExclusivity   = "exclusivity"
	PropReversal      = "reversal"
	PropLockedTeam    = "locked_team"
	PropPausedTeam    = "paused_team"
	PropDeterminism   = "determinism"
)

// Violation is one broken guarantee in a plan.
type Violation struct {
	Property string
	JudgeID  string
	Detail   string
}

func (v *Violation) Error() string {
	if v.JudgeID == "" {
		return fmt.Sprintf("%s: %s", v.Property, v.Detail)
	}
	return fmt.Sprintf("%s: judge %s: %s", v.Property, v.JudgeID, v.Detail)
}

func (v *Violation) Unwrap() error { return ErrPropertyViolated }

// VerifyOption configures Verify.
type VerifyOption func(*verifier)

// WithBlockSize sets the expected block length.
func WithBlockSize(n int) VerifyOption {
	return func(v *verifier) {
		if n > 0 {
			v.blockSize = n
		}
	}
}

type verifier struct {
	blockSize int
	out       []error
}

func (v *verifier) fail(prop, judgeID, format string, args ...any) {
	v.out = append(v.out, &Violation{Property: prop, JudgeID: judgeID, Detail: fmt.Sprintf(format, args...)})
}

// Verify checks plan against the snapshot it was generated from. It returns
// nil or the joined violations, each matching ErrPropertyViolated.
func Verify(before model.Snapshot, plan model.GeneratePlan, opts ...VerifyOption) error {
	v := &verifier{blockSize: allocation.DefaultBlockSize}
	for _, opt := range opts {
		opt(v)
	}

	teams := make(map[string]model.Team, len(before.Teams))
	for _, t := range before.Teams {
		teams[t.ID] = t
	}
	locked := before.LockedTeamIDs()
	taken := make(map[string]string)
	last := make(map[string][]string)

	for _, pa := range plan.Created {
		if len(pa.TeamIDs) != v.blockSize {
			v.fail(PropBlockSize, pa.JudgeID, "got %d teams, want %d", len(pa.TeamIDs), v.blockSize)
		}

		history := judged(before, pa.JudgeID)
		seen := make(map[string]struct{}, len(pa.TeamIDs))
		for _, id := range pa.TeamIDs {
			if _, dup := seen[id]; dup {
				v.fail(PropDistinctTeams, pa.JudgeID, "team %s appears twice", id)
			}
			seen[id] = struct{}{}

			t, ok := teams[id]
			switch {
			case !ok || t.FloorID != plan.FloorID:
				v.fail(PropUnknownTeam, pa.JudgeID, "team %s is not on floor %s", id, plan.FloorID)
			case t.IsPaused:
				v.fail(PropPausedTeam, pa.JudgeID, "team %s is paused", id)
			}
			if _, ok := locked[id]; ok {
				v.fail(PropLockedTeam, pa.JudgeID, "team %s is locked by an active assignment", id)
			}
			if _, ok := history[id]; ok {
				v.fail(PropNoSelfRepeat, pa.JudgeID, "team %s was already judged", id)
			}
			if !plan.Summary.OverlapMode {
				if other, ok := taken[id]; ok && other != pa.JudgeID {
					v.fail(PropExclusivity, pa.JudgeID, "team %s also given to judge %s", id, other)
				}
				taken[id] = pa.JudgeID
			}
		}

		sig := setKey(pa.TeamIDs)
		if earlier, ok := last[sig]; ok {
			want := slices.Clone(earlier)
			slices.Reverse(want)
			if !slices.Equal(pa.TeamIDs, want) {
				v.fail(PropReversal, pa.JudgeID, "order %v is not the reverse of %v", pa.TeamIDs, earlier)
			}
		}
		last[sig] = pa.TeamIDs
	}

	return errors.Join(v.out...)
}

// judged is the judge's review history in snap.
func judged(snap model.Snapshot, judgeID string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, a := range snap.Assignments {
		if a.Submitted && a.JudgeID == judgeID {
			for _, id := range a.TeamIDs {
				out[id] = struct{}{}
			}
		}
	}
	for _, t := range snap.Teams {
		if t.ReviewedByJudge(judgeID) {
			out[t.ID] = struct{}{}
		}
	}
	return out
}

func setKey(ids []string) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return strings.Join(sorted, ",")
}
