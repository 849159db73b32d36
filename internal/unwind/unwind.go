// Package unwind implements a LIFO teardown stack. Each acquired external
// resource (service process, NBD attachment, pool, dataset, bucket state)
// pushes a release closure; Run drains the stack in reverse-acquisition
// order on every exit path, whether the run succeeded or failed.
package unwind

import (
	"context"

	"pkt.systems/pslog"
)

type entry struct {
	name    string
	release func(context.Context) error
}

// Stack is a LIFO list of teardown actions. Not safe for concurrent use;
// the single orchestrating goroutine owns it.
type Stack struct {
	logger  pslog.Logger
	entries []entry
	drained bool
}

// New returns an empty stack logging teardown progress through logger.
func New(logger pslog.Logger) *Stack {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	return &Stack{logger: logger}
}

// Push registers a teardown action under a human-readable name.
func (s *Stack) Push(name string, release func(context.Context) error) {
	s.entries = append(s.entries, entry{name: name, release: release})
}

// Len returns the number of pending teardown actions.
func (s *Stack) Len() int { return len(s.entries) }

// Run drains the stack from most recently acquired to first acquired.
// Teardown is best-effort: a failing release is logged and the drain
// continues, so one stuck resource cannot leak the rest. The first error is
// returned after the drain completes. Run is idempotent.
func (s *Stack) Run(ctx context.Context) error {
	if s.drained {
		return nil
	}
	s.drained = true
	var firstErr error
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		s.logger.Debug("teardown.begin", "resource", e.name)
		if err := e.release(ctx); err != nil {
			s.logger.Warn("teardown.failed", "resource", e.name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.logger.Debug("teardown.done", "resource", e.name)
	}
	s.entries = nil
	return firstErr
}
