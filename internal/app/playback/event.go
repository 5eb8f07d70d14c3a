package playback

import (
	"time"

	"github.com/osa030/musicbox/internal/domain/track"
)

// EventType represents a playback event type.
type EventType int

const (
	EventTrackChanged    EventType = iota // A new source was loaded (or unloaded)
	EventStateChanged                     // Playback state changed
	EventPositionChanged                  // Reported position changed
	EventDurationChanged                  // Duration of the loaded media became known
	EventPlaylistChanged                  // Playlist contents or selection changed
	EventWarning                          // Non-fatal failure to show to the user
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventPositionChanged:
		return "position_changed"
	case EventDurationChanged:
		return "duration_changed"
	case EventPlaylistChanged:
		return "playlist_changed"
	case EventWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type     EventType
	Track    *track.Track  // Loaded track (nil when nothing is loaded)
	Index    int           // Playlist index of the loaded track, -1 if not from the playlist
	State    State         // Current playback state
	Position time.Duration // Current position
	Duration time.Duration // Current duration
	Err      error         // EventWarning only
}

// Status is a consistent snapshot of the controller.
type Status struct {
	State    State
	Track    *track.Track
	Index    int
	Position time.Duration
	Duration time.Duration
	Volume   float64
	Tracks   []track.Track
}
