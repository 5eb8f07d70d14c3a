// Package playlist provides the Playlist domain entity: an ordered list of
// tracks plus the selection cursor.
package playlist

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/musicbox/internal/domain/track"
)

// NoSelection is the cursor value when no track is selected.
const NoSelection = -1

// Errors
var (
	ErrEmptyPlaylist = errors.New("playlist is empty")
	ErrOutOfRange    = errors.New("track index out of range")
)

// Store holds the ordered track list and the index of the selected track.
// Store is not safe for concurrent use; the playback controller serializes access.
type Store struct {
	tracks []track.Track
	index  int
}

// NewStore creates an empty store with no selection.
func NewStore() *Store {
	return &Store{
		tracks: make([]track.Track, 0),
		index:  NoSelection,
	}
}

// Replace discards the current list and installs a copy of paths.
// The selection is reset. Paths are not validated.
func (s *Store) Replace(paths []string) {
	s.tracks = track.FromPaths(paths)
	s.index = NoSelection
}

// Clear empties the store.
func (s *Store) Clear() {
	s.Replace(nil)
}

// Select moves the cursor to index.
// The cursor is left unchanged on error.
func (s *Store) Select(index int) error {
	if index < 0 || index >= len(s.tracks) {
		return errors.Wrapf(ErrOutOfRange, "select %d (len %d)", index, len(s.tracks))
	}
	s.index = index
	return nil
}

// Next returns the index after the current one, wrapping to 0.
func (s *Store) Next() (int, error) {
	if len(s.tracks) == 0 {
		return NoSelection, ErrEmptyPlaylist
	}
	return NextIndex(s.index, len(s.tracks)), nil
}

// Previous returns the index before the current one, wrapping to the last track.
func (s *Store) Previous() (int, error) {
	if len(s.tracks) == 0 {
		return NoSelection, ErrEmptyPlaylist
	}
	return PreviousIndex(s.index, len(s.tracks)), nil
}

// Len returns the number of tracks.
func (s *Store) Len() int {
	return len(s.tracks)
}

// IsEmpty returns true if the store holds no tracks.
func (s *Store) IsEmpty() bool {
	return len(s.tracks) == 0
}

// Index returns the selected index, or NoSelection.
func (s *Store) Index() int {
	return s.index
}

// Current returns the selected track.
func (s *Store) Current() (track.Track, bool) {
	return s.At(s.index)
}

// At returns the track at index.
func (s *Store) At(index int) (track.Track, bool) {
	if index < 0 || index >= len(s.tracks) {
		return track.Track{}, false
	}
	return s.tracks[index], true
}

// Tracks returns a copy of the tracks.
func (s *Store) Tracks() []track.Track {
	result := make([]track.Track, len(s.tracks))
	copy(result, s.tracks)
	return result
}

// Paths returns the track paths in play order.
func (s *Store) Paths() []string {
	return track.Paths(s.tracks)
}

// NextIndex returns (i+1) mod n. A cursor without selection moves to 0.
func NextIndex(i, n int) int {
	if n <= 0 {
		return NoSelection
	}
	if i+1 >= n || i < 0 {
		return 0
	}
	return i + 1
}

// PreviousIndex returns (i-1+n) mod n. A cursor without selection moves to n-1.
func PreviousIndex(i, n int) int {
	if n <= 0 {
		return NoSelection
	}
	if i <= 0 || i >= n {
		return n - 1
	}
	return i - 1
}
