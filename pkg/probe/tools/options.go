package tools

import "time"

// Option configures the executor behind a tool
type Option func(*Executor)

// WithTimeout bounds each invocation of the tool
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.Timeout = d
		}
	}
}
