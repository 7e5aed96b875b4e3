package manager

import "sync"

// stateMachine replaces loose generating/busy flags. Every transition is a
// single critical section; job ids make completions of superseded jobs no-ops.
type stateMachine struct {
	mu     sync.Mutex
	state  State
	seq    uint64
	owner  uint64 // id holding Generating or Busy
	active *job   // streaming job when state == StateGenerating
}

func (s *stateMachine) current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// admitStreaming admits a streaming job. Vision requests are rejected while
// anything runs; text requests preempt a streaming job and are rejected only
// while a blocking call holds Busy. The preempted job, if any, is returned
// for the caller to cancel.
func (s *stateMachine) admitStreaming(vision bool, mk func(id uint64) *job) (j, preempted *job, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosed:
		return nil, nil, ErrClosed
	case StateBusy, StateResetting:
		return nil, nil, ErrBusy
	case StateGenerating:
		if vision {
			return nil, nil, ErrBusy
		}
		preempted = s.active
	}
	s.seq++
	j = mk(s.seq)
	s.state, s.owner, s.active = StateGenerating, s.seq, j
	return j, preempted, nil
}

// admitBlocking enters Busy, preempting any streaming job.
func (s *stateMachine) admitBlocking() (id uint64, preempted *job, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosed:
		return 0, nil, ErrClosed
	case StateBusy, StateResetting:
		return 0, nil, ErrBusy
	case StateGenerating:
		preempted = s.active
	}
	s.seq++
	s.state, s.owner, s.active = StateBusy, s.seq, nil
	return s.seq, preempted, nil
}

// release returns to Idle if id still owns the state. commit runs inside the
// critical section only when the release wins.
func (s *stateMachine) release(id uint64, commit func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != id || (s.state != StateGenerating && s.state != StateBusy) {
		return false
	}
	if commit != nil {
		commit()
	}
	s.state, s.owner, s.active = StateIdle, 0, nil
	return true
}

// cancelActive moves a streaming job back to Idle and returns it. Busy is
// left untouched: a blocking call releases itself.
func (s *stateMachine) cancelActive() *job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateGenerating {
		return nil
	}
	j := s.active
	s.state, s.owner, s.active = StateIdle, 0, nil
	return j
}

// beginReset moves Idle to Resetting. Admission rejects requests until
// endReset, so nothing can take the session between the check and the reset.
func (s *stateMachine) beginReset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdle:
		s.state = StateResetting
		return nil
	case StateClosed:
		return ErrClosed
	default:
		return ErrGenerationInFlight
	}
}

// endReset returns to Idle unless the manager was closed meanwhile.
func (s *stateMachine) endReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateResetting {
		s.state = StateIdle
	}
}

// close enters the terminal state and returns the streaming job to cancel.
func (s *stateMachine) close() (*job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, false
	}
	j := s.active
	s.state, s.owner, s.active = StateClosed, 0, nil
	return j, true
}
