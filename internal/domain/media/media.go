// Package media defines the media engine capability consumed by the player
// and the events an engine reports back.
package media

import (
	"time"

	"github.com/cockroachdb/errors"
)

// ErrEngine marks errors reported by a media engine.
var ErrEngine = errors.New("media engine error")

// Engine is a single playback engine handle.
// Implementations report progress and completion through Events.
type Engine interface {
	// Load sets the media source. Playback does not start until Play.
	Load(uri string) error
	Play() error
	Pause() error
	// Stop halts playback and rewinds; the media stays loaded.
	Stop() error
	SetPosition(pos time.Duration) error
	// SetVolume sets the output volume as a fraction in [0, 1].
	SetVolume(volume float64) error
	Events() <-chan Event
	Close() error
}

// Status represents the media status reported by an engine.
type Status int

const (
	StatusNoMedia    Status = iota // Nothing loaded
	StatusLoading                  // Source is being opened
	StatusLoaded                   // Source is ready
	StatusEndOfMedia               // Playback reached the end of the source
	StatusInvalid                  // Source cannot be played
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusNoMedia:
		return "no_media"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusEndOfMedia:
		return "end_of_media"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// EventKind identifies an engine event.
type EventKind int

const (
	EventPositionChanged EventKind = iota
	EventDurationChanged
	EventStatusChanged
	EventErrorOccurred
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventPositionChanged:
		return "position_changed"
	case EventDurationChanged:
		return "duration_changed"
	case EventStatusChanged:
		return "status_changed"
	case EventErrorOccurred:
		return "error_occurred"
	default:
		return "unknown"
	}
}

// Event is a signal emitted by an engine.
// Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind
	Position time.Duration // EventPositionChanged
	Duration time.Duration // EventDurationChanged
	Status   Status        // EventStatusChanged
	Code     int           // EventErrorOccurred
	Message  string        // EventErrorOccurred
}

// PositionChanged builds a position event.
func PositionChanged(pos time.Duration) Event {
	return Event{Kind: EventPositionChanged, Position: pos}
}

// DurationChanged builds a duration event.
func DurationChanged(d time.Duration) Event {
	return Event{Kind: EventDurationChanged, Duration: d}
}

// StatusChanged builds a status event.
func StatusChanged(s Status) Event {
	return Event{Kind: EventStatusChanged, Status: s}
}

// ErrorOccurred builds an error event.
func ErrorOccurred(code int, message string) Event {
	return Event{Kind: EventErrorOccurred, Code: code, Message: message}
}

// Err converts an error event into an error marked with ErrEngine.
// It returns nil for other kinds.
func (e Event) Err() error {
	if e.Kind != EventErrorOccurred {
		return nil
	}
	return errors.Mark(errors.Newf("engine error %d: %s", e.Code, e.Message), ErrEngine)
}
