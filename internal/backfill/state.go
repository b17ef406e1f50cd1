// Package backfill drives a one-time, resumable sync of every package in
// the registry through the bulk sync queue.
package backfill

import (
	"errors"
	"fmt"
	"time"
)

// Keys of the persisted backfill data in the key-value store
const (
	StateKey    = "backfill:state"
	PackagesKey = "backfill:packages"
	SyncedKey   = "backfill:synced"
	FailedKey   = "backfill:failed"
)

// Status is the lifecycle state of the backfill
type Status string

// Backfill statuses
const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Verbs of the control plane
const (
	VerbStart  = "start"
	VerbPause  = "pause"
	VerbResume = "resume"
)

// ErrInvalidTransition is wrapped by every rejected state transition
var ErrInvalidTransition = errors.New("invalid backfill transition")

// TransitionError reports a verb that is not valid in the current status
type TransitionError struct {
	Verb string
	From Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s backfill while %s", e.Verb, e.From)
}

// Unwrap makes errors.Is(err, ErrInvalidTransition) hold
func (*TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// State is the single persisted backfill record. Synced and Failed are kept
// in separate counters and merged in when the state is read.
type State struct {
	Status    Status     `json:"status"`
	Offset    int        `json:"offset"`
	Total     int        `json:"total"`
	Synced    int        `json:"synced"`
	Failed    int        `json:"failed"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	// Rate is processed packages per second since StartedAt
	Rate  float64 `json:"rate"`
	Error string  `json:"error,omitempty"`
	// Phase numbers backfill runs so jobs of an earlier run are told apart
	Phase int `json:"phase"`
}

// canStart reports whether a new run may begin from s
func (s State) canStart() bool {
	switch s.Status {
	case StatusIdle, StatusCompleted, StatusError, "":
		return true
	default:
		return false
	}
}

// computeRate returns processed packages per second since StartedAt
func (s State) computeRate(now time.Time) float64 {
	if s.StartedAt == nil {
		return 0
	}
	elapsed := now.Sub(*s.StartedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.Synced+s.Failed) / elapsed
}
