// Package simulate drives the allocation engine over a synthetic floor for
// many rounds and checks every plan against the engine's guarantees.
package simulate

import (
	"errors"
	"fmt"

	"github.com/okian/judgeflow/internal/domain/allocation"
)

// SimFloorID is the floor every synthetic team and judge lives on.
const SimFloorID = "sim"

// Config holds the parameters of one simulation.
type Config struct {
	Teams        int   // Teams on the floor
	Judges       int   // Judges on the floor
	Rounds       int   // Generate/submit cycles
	Paused       int   // Teams paused before the first round
	Seed         int64 // Seed for ids, pauses, judge order and scores
	BlockSize    int
	ClosenessCap int
}

// DefaultConfig is a small hackathon floor.
func DefaultConfig() Config {
	return Config{
		Teams:        40,
		Judges:       6,
		Rounds:       10,
		Seed:         1,
		BlockSize:    allocation.DefaultBlockSize,
		ClosenessCap: allocation.DefaultClosenessCap,
	}
}

// ErrInvalidConfig is returned for a simulation that cannot run.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Validate checks the parameters.
func (c Config) Validate() error {
	switch {
	case c.Teams < 1:
		return fmt.Errorf("%w: teams must be at least 1", ErrInvalidConfig)
	case c.Judges < 1:
		return fmt.Errorf("%w: judges must be at least 1", ErrInvalidConfig)
	case c.Rounds < 1:
		return fmt.Errorf("%w: rounds must be at least 1", ErrInvalidConfig)
	case c.Paused < 0 || c.Paused > c.Teams:
		return fmt.Errorf("%w: paused must be between 0 and teams", ErrInvalidConfig)
	case c.BlockSize < 1:
		return fmt.Errorf("%w: block size must be at least 1", ErrInvalidConfig)
	case c.ClosenessCap < 0:
		return fmt.Errorf("%w: closeness cap must not be negative", ErrInvalidConfig)
	}
	return nil
}
