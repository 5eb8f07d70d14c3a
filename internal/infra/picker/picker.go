// Package picker implements the interactive file selection used by the
// session manager, built on charmbracelet/huh forms.
package picker

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicbox/internal/infra/m3u"
)

// prompter asks the user single questions. Cancelling returns huh.ErrUserAborted.
type prompter interface {
	pickFile(ctx context.Context, title, dir string, types []string) (string, error)
	confirm(ctx context.Context, title string) (bool, error)
	input(ctx context.Context, title, value string) (string, error)
}

// Picker selects audio files, playlists and save locations in the terminal.
type Picker struct {
	mu         sync.Mutex
	dir        string
	audioTypes []string
	prompt     prompter
}

// New creates a picker starting in dir and offering files with audioTypes
// extensions.
func New(dir string, audioTypes []string) *Picker {
	return newPicker(dir, audioTypes, huhPrompter{})
}

func newPicker(dir string, audioTypes []string, prompt prompter) *Picker {
	if dir == "" {
		dir = "."
	}
	return &Picker{
		dir:        dir,
		audioTypes: audioTypes,
		prompt:     prompt,
	}
}

// PickTrack asks for one audio file.
func (p *Picker) PickTrack(ctx context.Context) (string, error) {
	return p.pick(ctx, "Choose a track", p.audioTypes)
}

// PickTracks asks for audio files until the user declines to add another.
func (p *Picker) PickTracks(ctx context.Context) ([]string, error) {
	var paths []string
	for {
		path, err := p.pick(ctx, "Add a track to the new playlist", p.audioTypes)
		if err != nil {
			return nil, err
		}
		if path == "" {
			return paths, nil
		}
		paths = append(paths, path)

		more, err := p.prompt.confirm(ctx, "Add another track?")
		if errors.Is(err, huh.ErrUserAborted) {
			return paths, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to ask for more tracks")
		}
		if !more {
			return paths, nil
		}
	}
}

// PickPlaylist asks for a playlist file.
func (p *Picker) PickPlaylist(ctx context.Context) (string, error) {
	return p.pick(ctx, "Choose a playlist", []string{m3u.Extension})
}

// PickSavePath asks where to save a playlist, proposing defaultPath.
func (p *Picker) PickSavePath(ctx context.Context, defaultPath string) (string, error) {
	path, err := p.prompt.input(ctx, "Save playlist as", defaultPath)
	if errors.Is(err, huh.ErrUserAborted) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to ask for a save path")
	}
	return strings.TrimSpace(path), nil
}

// pick runs the file picker and remembers the directory of the chosen file
// for the next prompt.
func (p *Picker) pick(ctx context.Context, title string, types []string) (string, error) {
	p.mu.Lock()
	dir := p.dir
	p.mu.Unlock()

	path, err := p.prompt.pickFile(ctx, title, dir, types)
	if errors.Is(err, huh.ErrUserAborted) {
		zlog.Debug().Msgf("picker: cancelled: %s", title)
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to pick a file")
	}
	if path == "" {
		return "", nil
	}

	p.mu.Lock()
	p.dir = filepath.Dir(path)
	p.mu.Unlock()
	return path, nil
}

// huhPrompter renders prompts as huh forms.
type huhPrompter struct{}

func (huhPrompter) pickFile(ctx context.Context, title, dir string, types []string) (string, error) {
	var path string
	field := huh.NewFilePicker().
		Title(title).
		CurrentDirectory(dir).
		AllowedTypes(types).
		FileAllowed(true).
		DirAllowed(false).
		Height(15).
		Value(&path)

	if err := huh.NewForm(huh.NewGroup(field)).RunWithContext(ctx); err != nil {
		return "", err
	}
	return path, nil
}

func (huhPrompter) confirm(ctx context.Context, title string) (bool, error) {
	var ok bool
	field := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok)

	if err := huh.NewForm(huh.NewGroup(field)).RunWithContext(ctx); err != nil {
		return false, err
	}
	return ok, nil
}

func (huhPrompter) input(ctx context.Context, title, value string) (string, error) {
	field := huh.NewInput().
		Title(title).
		Value(&value)

	if err := huh.NewForm(huh.NewGroup(field)).RunWithContext(ctx); err != nil {
		return "", err
	}
	return value, nil
}
