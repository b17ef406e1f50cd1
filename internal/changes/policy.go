// Package changes follows the registry change log from a persisted cursor
// and turns every change into a deduplicated sync job.
package changes

import (
	"math"
	"time"
)

// Phase is the poller's position in its idle, polling, backoff cycle
type Phase string

const (
	// PhaseIdle is the state before the first poll
	PhaseIdle Phase = "idle"
	// PhasePolling means the next page is fetched without waiting
	PhasePolling Phase = "polling"
	// PhaseBackoff means the poller waits State.Delay before polling again
	PhaseBackoff Phase = "backoff"
)

// State is the poller's scheduling state
type State struct {
	Phase Phase
	// Cursor is the sequence to poll from next
	Cursor string
	// EmptyPolls counts consecutive polls that returned nothing
	EmptyPolls int
	// Delay is the wait before the next poll
	Delay time.Duration
}

// Policy holds the scheduling parameters. Its transition functions are pure.
type Policy struct {
	Limit           int
	Interval        time.Duration
	MaxInterval     time.Duration
	Growth          float64
	ErrorMultiplier int
}

// Start returns the initial state for a cursor
func (p Policy) Start(cursor string) State {
	return State{Phase: PhaseIdle, Cursor: cursor}
}

// AfterPoll returns the state following a successful poll that returned
// fetched rows and advanced the cursor to next.
//
// A full page means the feed is behind, so polling continues at once. A
// partial page waits one interval. Consecutive empty pages grow the wait
// geometrically up to MaxInterval.
func (p Policy) AfterPoll(s State, fetched int, next string) State {
	if next != "" {
		s.Cursor = next
	}
	switch {
	case fetched >= p.Limit:
		s.Phase = PhasePolling
		s.EmptyPolls = 0
		s.Delay = 0
	case fetched > 0:
		s.Phase = PhaseBackoff
		s.EmptyPolls = 0
		s.Delay = p.Interval
	default:
		s.Phase = PhaseBackoff
		s.Delay = p.emptyDelay(s.EmptyPolls)
		s.EmptyPolls++
	}
	return s
}

// AfterError returns the state following a failed poll. The cursor does not
// move, so the same page is requested again.
func (p Policy) AfterError(s State) State {
	s.Phase = PhaseBackoff
	s.Delay = time.Duration(p.ErrorMultiplier) * p.Interval
	return s
}

func (p Policy) emptyDelay(emptyPolls int) time.Duration {
	d := float64(p.Interval) * math.Pow(p.Growth, float64(emptyPolls))
	if d > float64(p.MaxInterval) || math.IsInf(d, 1) {
		return p.MaxInterval
	}
	return time.Duration(d)
}
