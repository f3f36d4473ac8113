// Package safehost wraps calls into the host-capability boundary (spec
// §4.9's safe_call / §7's propagation rule): host callbacks are untrusted,
// so every call into them goes through Call, which records a diagnostic on
// failure and returns a caller-supplied default instead of propagating,
// unless the policy says to raise. Core pipeline functions themselves still
// return ordinary (value, error) results; safehost exists only to tame the
// host boundary, not to replace normal control flow (spec §9).
package safehost

import (
	"fmt"

	"github.com/beetlebugorg/rasteroccl/internal/diag"
)

// Policy controls what Call does when fn fails.
type Policy int

const (
	// PolicyDefault records the failure and returns the caller-supplied
	// default value with a nil error.
	PolicyDefault Policy = iota
	// PolicyRaise records the failure and returns the error to the caller.
	PolicyRaise
)

// Options parameterizes a Call.
type Options struct {
	Recorder  *diag.Recorder
	Phase     diag.Phase
	Callsite  string
	ViewID    int64
	ElemID    int64
	DedupeKey string
	Policy    Policy
	// Level is the severity to record on failure. Callers should set this
	// explicitly (diag.LevelWarn is the common case for a recoverable
	// host-API failure per spec §7.1); it is never inferred.
	Level diag.Level
}

// Call invokes fn, translating a returned error into a recorded diagnostic.
// On success it returns fn's value unmodified. On failure:
//   - PolicyDefault (the common case): returns def, nil.
//   - PolicyRaise: returns def, err (err is non-nil; def is the zero value
//     the caller should ignore).
func Call[T any](fn func() (T, error), def T, opts Options) (T, error) {
	val, err := fn()
	if err == nil {
		return val, nil
	}

	if opts.Recorder != nil {
		opts.Recorder.Record(diag.Event{
			Phase:     opts.Phase,
			Callsite:  opts.Callsite,
			Level:     opts.Level,
			ViewID:    opts.ViewID,
			ElemID:    opts.ElemID,
			ExcType:   fmt.Sprintf("%T", err),
			ExcMsg:    err.Error(),
			DedupeKey: opts.DedupeKey,
		})
	}

	if opts.Policy == PolicyRaise {
		return def, err
	}
	return def, nil
}
