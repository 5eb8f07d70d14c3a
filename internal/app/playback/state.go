// Package playback provides the playback controller: the playlist cursor,
// the single media engine handle and the advance policy.
package playback

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // No media loaded
	StateStopped              // Media loaded, stopped at position 0
	StatePlaying              // Media is playing
	StatePaused               // Media is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Direction selects the neighbour track for Advance.
type Direction int

const (
	Next Direction = iota
	Previous
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case Next:
		return "next"
	case Previous:
		return "previous"
	default:
		return "unknown"
	}
}
