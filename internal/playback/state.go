// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

// State is the session lifecycle state.
type State string

const (
	StateAttaching State = "attaching"
	StateReady     State = "ready"
	StateBuffering State = "buffering"
	StateEnded     State = "ended"
	StateError     State = "error"
	StateDetached  State = "detached"
)

// transitions lists the allowed edges. Detached is reachable from anywhere
// and is terminal.
var transitions = map[State][]State{
	StateAttaching: {StateReady, StateError},
	StateReady:     {StateBuffering, StateEnded, StateAttaching, StateError},
	StateBuffering: {StateReady, StateEnded, StateAttaching, StateError},
	StateEnded:     {StateReady, StateAttaching},
	StateError:     {StateAttaching},
}

func canTransition(from, to State) bool {
	if to == StateDetached {
		return from != StateDetached
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// playing reports whether the player is producing a timeline.
func (s State) playing() bool {
	return s == StateReady || s == StateBuffering
}
