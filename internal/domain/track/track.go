// Package track provides the Track domain entity.
package track

import (
	"path/filepath"
	"strings"
)

// Track represents a playable audio file referenced by its file-system path.
// No metadata is read from the file; everything else is derived from the path.
type Track struct {
	Path string // File-system path
}

// New creates a track for the given path.
func New(path string) Track {
	return Track{Path: path}
}

// FromPaths converts a list of paths into tracks, preserving order.
func FromPaths(paths []string) []Track {
	tracks := make([]Track, len(paths))
	for i, p := range paths {
		tracks[i] = New(p)
	}
	return tracks
}

// Paths converts a list of tracks back into their paths.
func Paths(tracks []Track) []string {
	paths := make([]string, len(tracks))
	for i, t := range tracks {
		paths[i] = t.Path
	}
	return paths
}

// DisplayName returns the final path segment, used as the song name.
func (t Track) DisplayName() string {
	if t.Path == "" {
		return ""
	}
	return filepath.Base(t.Path)
}

// Extension returns the lower-cased file extension including the dot.
func (t Track) Extension() string {
	return strings.ToLower(filepath.Ext(t.Path))
}

// IsZero reports whether the track has no path.
func (t Track) IsZero() bool {
	return t.Path == ""
}
