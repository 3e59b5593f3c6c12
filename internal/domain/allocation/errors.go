package allocation

import (
	"errors"
	"fmt"
)

// Sentinel kinds for allocation errors. Only ErrInvalidRequest is returned
// from Generate; the others surface as per-judge failures in the plan.
var (
	ErrInvalidRequest         = errors.New("invalid generate request")
	ErrInsufficientCandidates = errors.New("insufficient candidates")
	ErrNoSuitableWindow       = errors.New("no suitable window")
	ErrJudgeNotFound          = errors.New("judge not found")
	ErrJudgeBusy              = errors.New("judge has an active assignment")
	ErrJudgeOffFloor          = errors.New("judge is on a different floor")
)

// User-facing failure reasons.
const (
	ReasonJudgedNearlyAll = "has judged nearly all teams"
	ReasonNoFreeTeams     = "not enough free teams available"
	ReasonNoWindow        = "no suitable group of teams found"
	ReasonJudgeNotFound   = "judge not found"
	ReasonJudgeBusy       = "already has an active assignment"
	ReasonJudgeOffFloor   = "is on a different floor"
)

// judgeError pairs a sentinel kind with the reason shown to users.
type judgeError struct {
	kind   error
	reason string
}

func newJudgeError(kind error, reason string) error {
	return &judgeError{kind: kind, reason: reason}
}

func (e *judgeError) Error() string { return fmt.Sprintf("%s: %s", e.kind, e.reason) }

func (e *judgeError) Unwrap() error { return e.kind }

// Reason extracts the user-facing reason from a per-judge error.
func Reason(err error) string {
	var je *judgeError
	if errors.As(err, &je) {
		return je.reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Kind maps an allocation error to a stable label for metrics and JSON.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrInsufficientCandidates):
		return "insufficient_candidates"
	case errors.Is(err, ErrNoSuitableWindow):
		return "no_suitable_window"
	case errors.Is(err, ErrJudgeNotFound):
		return "judge_not_found"
	case errors.Is(err, ErrJudgeBusy):
		return "judge_busy"
	case errors.Is(err, ErrJudgeOffFloor):
		return "judge_off_floor"
	default:
		return "unknown"
	}
}
