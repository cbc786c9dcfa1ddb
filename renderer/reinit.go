// SPDX-License-Identifier: EPL-2.0

package renderer

import "fmt"

// ReinitializationState tracks a pending decoder swap.
type ReinitializationState int

const (
	// ReinitNone means no swap is pending.
	ReinitNone ReinitializationState = iota
	// ReinitSignalEndOfStream means the next input buffer must carry end of
	// stream so the old decoder drains.
	ReinitSignalEndOfStream
	// ReinitWaitEndOfStream means feeding is suspended until the old decoder
	// outputs end of stream.
	ReinitWaitEndOfStream
)

func (s ReinitializationState) String() string {
	switch s {
	case ReinitNone:
		return "none"
	case ReinitSignalEndOfStream:
		return "signal-end-of-stream"
	case ReinitWaitEndOfStream:
		return "wait-end-of-stream"
	default:
		return "unknown"
	}
}

var reinitTransitions = map[ReinitializationState]ReinitializationState{
	ReinitNone:              ReinitSignalEndOfStream,
	ReinitSignalEndOfStream: ReinitWaitEndOfStream,
	ReinitWaitEndOfStream:   ReinitNone,
}

// CanTransitionTo reports whether next follows s in the swap sequence.
func (s ReinitializationState) CanTransitionTo(next ReinitializationState) bool {
	to, ok := reinitTransitions[s]
	return ok && to == next
}

func (s ReinitializationState) transition(next ReinitializationState) (ReinitializationState, error) {
	if !s.CanTransitionTo(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}
