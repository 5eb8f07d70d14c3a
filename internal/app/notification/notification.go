package notification

import "time"

// Type identifies what a notification reports.
type Type string

const (
	TypeTrackChanged    Type = "track_changed"
	TypeStateChanged    Type = "state_changed"
	TypePositionChanged Type = "position_changed"
	TypeDurationChanged Type = "duration_changed"
	TypePlaylistChanged Type = "playlist_changed"
	TypeWarning         Type = "warning"
)

// Notification is a presentation update broadcast to subscribers.
type Notification struct {
	SequenceNo   uint64
	Type         Type
	TrackName    string // Display name of the loaded track, empty if none
	TrackPath    string
	Index        int // Selected playlist index, -1 if none
	State        string
	Position     time.Duration
	Duration     time.Duration
	PlaylistName string
	TrackCount   int
	Message      string // Warning text
}
