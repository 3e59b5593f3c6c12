package allocation

// Default engine parameters.
const (
	DefaultBlockSize    = 5
	DefaultClosenessCap = 15
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithBlockSize sets how many teams a judge receives per assignment.
func WithBlockSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.blockSize = size
		}
	}
}

// WithClosenessCap sets the largest number spread a window may have in the
// strict scoring pass.
func WithClosenessCap(limit int) Option {
	return func(e *Engine) {
		if limit >= 0 {
			e.closenessCap = limit
		}
	}
}
