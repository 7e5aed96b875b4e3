package manager

import (
	"context"
	"time"
)

// State represents the admission state of the manager.
type State int

const (
	StateIdle State = iota
	StateGenerating
	StateBusy
	StateResetting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateBusy:
		return "busy"
	case StateResetting:
		return "resetting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State         State
	MemoryEntries int
	Sessions      int
	LastError     string
}

// job is one admitted streaming request.
type job struct {
	id      uint64
	reqID   string
	ctx     context.Context
	cancel  context.CancelFunc
	stream  *Stream
	prompt  string
	image   []byte
	started time.Time
	done    chan struct{}
}

func (j *job) kind() string {
	if j.image != nil {
		return "vision"
	}
	return "text"
}
