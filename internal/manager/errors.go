package manager

import (
	"errors"
	"strings"
)

// User-visible notices delivered on the terminal event of a stream.
const (
	BusyNotice      = "[Busy: wait for current task to finish.]"
	OverflowNotice  = "[Context too long, please retry.]"
	TimeoutNotice   = "[Still processing: timed out, please retry.]"
	CancelledNotice = "[Cancelled.]"

	// BusySentinel is returned by GenerateBlocking while another blocking call runs.
	BusySentinel = "[Busy]"
	// ErrorSentinel is returned by GenerateBlocking when the engine failed.
	ErrorSentinel = "[LLM session error. Try again.]"
	// EmptySentinel is returned by GenerateBlocking when the engine produced no text.
	EmptySentinel = "No response"
)

var (
	// ErrContextOverflow is the structured overflow signal adapters should wrap
	// when the engine reports that the prompt exceeded its context window.
	ErrContextOverflow = errors.New("context window exceeded")
	// ErrTimeoutExpired marks a generation stopped by the watchdog.
	ErrTimeoutExpired = errors.New("generation watchdog expired")
	// ErrGenerationInFlight rejects Reset while a generation is active.
	ErrGenerationInFlight = errors.New("generation in progress")
	// ErrBusy rejects admission under the single-flight policy.
	ErrBusy = errors.New("busy")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("manager closed")
	// ErrTooManyImages is returned by sessions when a second image is added to one query.
	ErrTooManyImages = errors.New("at most one image per request")
	// ErrNoSession is returned when the previous recreate left no live session.
	ErrNoSession = errors.New("no live session")
)

// EngineInitError reports that the model or a session could not be created.
// It is fatal to manager construction.
type EngineInitError struct {
	ModelPath string
	Err       error
}

func (e *EngineInitError) Error() string {
	return "engine init " + e.ModelPath + ": " + e.Err.Error()
}

func (e *EngineInitError) Unwrap() error { return e.Err }

// IsEngineInit reports whether err is an EngineInitError.
func IsEngineInit(err error) bool {
	var ie *EngineInitError
	return errors.As(err, &ie)
}

// EngineError is an opaque generation failure other than overflow.
type EngineError struct{ Err error }

func (e *EngineError) Error() string { return "engine: " + e.Err.Error() }

func (e *EngineError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a watchdog expiry.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeoutExpired) }

// IsBusy reports whether err indicates a single-flight rejection.
func IsBusy(err error) bool { return errors.Is(err, ErrBusy) }

// dependencyUnavailableError signals a missing external dependency (e.g., llama.cpp)
// so the HTTP layer can return 503 Service Unavailable instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var de dependencyUnavailableError
	return errors.As(err, &de)
}

// OverflowPredicate classifies a generation error as a context overflow.
type OverflowPredicate func(error) bool

// DefaultOverflowMarkers are substrings engines are known to put in overflow
// failures. String matching is a compatibility shim for engines that do not
// wrap ErrContextOverflow.
var DefaultOverflowMarkers = []string{
	"OUT_OF_RANGE",
	"exceeds the available context size",
	"exceed_context_size",
	"context length exceeded",
	"n_ctx_slot",
}

// OverflowMarkers builds a predicate that accepts ErrContextOverflow and any
// error whose message contains one of markers (case-insensitive).
func OverflowMarkers(markers ...string) OverflowPredicate {
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" {
			lowered = append(lowered, strings.ToLower(m))
		}
	}
	return func(err error) bool {
		if err == nil {
			return false
		}
		if errors.Is(err, ErrContextOverflow) {
			return true
		}
		msg := strings.ToLower(err.Error())
		for _, m := range lowered {
			if strings.Contains(msg, m) {
				return true
			}
		}
		return false
	}
}
