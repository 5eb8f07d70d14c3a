package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicbox/internal/domain/media"
	"github.com/osa030/musicbox/internal/domain/playlist"
	"github.com/osa030/musicbox/internal/domain/track"
)

// Errors
var (
	ErrNoTrack = errors.New("no track loaded")
)

// TrackPicker asks the user for a single audio file.
// An empty path means the user cancelled.
type TrackPicker interface {
	PickTrack(ctx context.Context) (string, error)
}

// Config holds controller configuration.
type Config struct {
	Volume      float64 // Initial volume in [0, 1]
	EventBuffer int     // Capacity of the event channel
}

// Controller bridges the playlist store and a single media engine.
// All operations are serialized; the engine is only driven from here.
type Controller struct {
	mu sync.Mutex

	engine media.Engine
	picker TrackPicker
	store  *playlist.Store

	// Loaded media state
	source   *track.Track
	state    State
	position time.Duration
	duration time.Duration
	volume   float64

	// Events
	eventCh chan Event
	closed  bool
}

// NewController creates a new playback controller owning engine.
// picker may be nil, in which case Play with nothing to play is a no-op.
func NewController(engine media.Engine, picker TrackPicker, config Config) *Controller {
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}
	return &Controller{
		engine:  engine,
		picker:  picker,
		store:   playlist.NewStore(),
		state:   StateIdle,
		volume:  clampVolume(config.Volume),
		eventCh: make(chan Event, config.EventBuffer),
	}
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Play starts playback.
// Playing is a no-op, paused or stopped media resumes. With nothing loaded the
// selected playlist track is played (the first one if none is selected); with an
// empty playlist the picker is asked for a file.
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	needsPick := c.source == nil && c.store.IsEmpty()
	c.mu.Unlock()

	if needsPick {
		return c.playPicked(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StatePlaying:
		return nil
	case StatePaused, StateStopped:
		return c.startLocked()
	}

	if c.store.IsEmpty() {
		return nil
	}
	index := c.store.Index()
	if index == playlist.NoSelection {
		index = 0
	}
	return c.playIndexLocked(index)
}

// playPicked asks the picker for a file and plays it outside the playlist.
func (c *Controller) playPicked(ctx context.Context) error {
	if c.picker == nil {
		zlog.Debug().Msg("playback: nothing to play and no picker configured")
		return nil
	}

	path, err := c.picker.PickTrack(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to pick track")
	}
	if path == "" {
		zlog.Debug().Msg("playback: track selection cancelled")
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadAndStartLocked(track.New(path))
}

// Pause pauses playback. It is a no-op unless playing.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePlaying {
		return nil
	}

	if err := c.engine.Pause(); err != nil {
		return c.warnLocked(errors.Wrap(err, "failed to pause"))
	}

	c.setStateLocked(StatePaused)
	return nil
}

// Stop stops playback and rewinds the reported position to 0.
// It is a no-op when nothing is loaded.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source == nil {
		return nil
	}

	if err := c.engine.Stop(); err != nil {
		return c.warnLocked(errors.Wrap(err, "failed to stop"))
	}

	c.setStateLocked(StateStopped)
	c.setPositionLocked(0)
	return nil
}

// Seek moves the playback position, clamped to [0, duration].
// The playback state does not change.
func (c *Controller) Seek(pos time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source == nil {
		return ErrNoTrack
	}

	pos = c.clampPositionLocked(pos)
	if err := c.engine.SetPosition(pos); err != nil {
		return c.warnLocked(errors.Wrap(err, "failed to seek"))
	}

	c.setPositionLocked(pos)
	return nil
}

// SetVolume sets the output volume, clamped to [0, 1].
func (c *Controller) SetVolume(volume float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	volume = clampVolume(volume)
	if err := c.engine.SetVolume(volume); err != nil {
		return c.warnLocked(errors.Wrap(err, "failed to set volume"))
	}
	c.volume = volume
	return nil
}

// SelectTrack loads the playlist track at index and starts playing it,
// whatever the current state.
func (c *Controller) SelectTrack(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.playIndexLocked(index)
}

// Advance plays the next or previous playlist track, wrapping at both ends.
// It is a no-op on an empty playlist.
func (c *Controller) Advance(direction Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.advanceLocked(direction)
}

func (c *Controller) advanceLocked(direction Direction) error {
	var (
		index int
		err   error
	)
	if direction == Previous {
		index, err = c.store.Previous()
	} else {
		index, err = c.store.Next()
	}
	if errors.Is(err, playlist.ErrEmptyPlaylist) {
		zlog.Debug().Msgf("playback: %s ignored, playlist is empty", direction)
		return nil
	}
	if err != nil {
		return err
	}

	return c.playIndexLocked(index)
}

// HandleEvent applies a media engine event.
// This is the only way engine signals reach the controller.
func (c *Controller) HandleEvent(ev media.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case media.EventPositionChanged:
		if c.source == nil {
			return
		}
		c.setPositionLocked(c.clampPositionLocked(ev.Position))

	case media.EventDurationChanged:
		if c.source == nil {
			return
		}
		d := ev.Duration
		if d < 0 {
			d = 0
		}
		c.duration = d
		c.sendEventLocked(c.eventLocked(EventDurationChanged))
		if d > 0 && c.position > d {
			c.setPositionLocked(d)
		}

	case media.EventStatusChanged:
		if ev.Status == media.StatusEndOfMedia {
			c.onEndOfMediaLocked()
		}

	case media.EventErrorOccurred:
		// Errors are reported only; the state is left as-is and nothing is skipped.
		_ = c.warnLocked(ev.Err())
	}
}

// onEndOfMediaLocked advances to the next track, or stops when the playlist
// is empty.
func (c *Controller) onEndOfMediaLocked() {
	if c.source == nil {
		return
	}

	zlog.Debug().Msgf("playback: end of media: track=%s", c.source.DisplayName())

	if !c.store.IsEmpty() {
		_ = c.advanceLocked(Next)
		return
	}

	if err := c.engine.Stop(); err != nil {
		zlog.Warn().Err(err).Msg("playback: failed to rewind finished track")
	}
	c.setStateLocked(StateStopped)
	c.setPositionLocked(0)
}

// ReplacePlaylist installs a new playlist. The selection is reset; the loaded
// track keeps playing. Replacing with an empty list clears the playlist.
func (c *Controller) ReplacePlaylist(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(paths) == 0 {
		c.clearLocked()
		return
	}

	c.store.Replace(paths)
	zlog.Info().Msgf("playback: playlist replaced: tracks=%d", c.store.Len())
	c.sendEventLocked(c.eventLocked(EventPlaylistChanged))
}

// ClearPlaylist empties the playlist and unloads the current track.
func (c *Controller) ClearPlaylist() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLocked()
}

func (c *Controller) clearLocked() {
	c.store.Clear()

	if c.source != nil {
		if err := c.engine.Stop(); err != nil {
			zlog.Warn().Err(err).Msg("playback: failed to stop engine on clear")
		}
		c.source = nil
		c.position = 0
		c.duration = 0
		c.sendEventLocked(c.eventLocked(EventTrackChanged))
	}
	c.setStateLocked(StateIdle)

	zlog.Info().Msg("playback: playlist cleared")
	c.sendEventLocked(c.eventLocked(EventPlaylistChanged))
}

// Tracks returns a copy of the playlist.
func (c *Controller) Tracks() []track.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Tracks()
}

// Snapshot returns a consistent copy of the controller state.
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Status{
		State:    c.state,
		Track:    c.copySourceLocked(),
		Index:    c.store.Index(),
		Position: c.position,
		Duration: c.duration,
		Volume:   c.volume,
		Tracks:   c.store.Tracks(),
	}
}

// GetState returns the current playback state.
func (c *Controller) GetState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close closes the event channel. The engine is not closed; its owner does that.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.eventCh)
}

// playIndexLocked selects index and plays that track.
// Must be called with lock held.
func (c *Controller) playIndexLocked(index int) error {
	if err := c.store.Select(index); err != nil {
		// The presentation layer offered an index the playlist does not have.
		zlog.Error().Err(err).Msg("playback: invalid track selection")
		return err
	}

	t, _ := c.store.Current()
	c.sendEventLocked(c.eventLocked(EventPlaylistChanged))
	return c.loadAndStartLocked(t)
}

// loadAndStartLocked loads t into the engine and starts it from position 0.
// Must be called with lock held.
func (c *Controller) loadAndStartLocked(t track.Track) error {
	if err := c.engine.Load(t.Path); err != nil {
		return c.warnLocked(errors.Wrapf(err, "failed to load %s", t.DisplayName()))
	}

	c.source = &t
	c.position = 0
	c.duration = 0
	c.state = StateStopped
	zlog.Info().Msgf("playback: loaded track=%s index=%d", t.DisplayName(), c.store.Index())
	c.sendEventLocked(c.eventLocked(EventTrackChanged))

	return c.startLocked()
}

// startLocked starts the engine on the loaded media.
// Must be called with lock held.
func (c *Controller) startLocked() error {
	if err := c.engine.Play(); err != nil {
		return c.warnLocked(errors.Wrap(err, "failed to start playback"))
	}
	c.setStateLocked(StatePlaying)
	return nil
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.sendEventLocked(c.eventLocked(EventStateChanged))
}

func (c *Controller) setPositionLocked(pos time.Duration) {
	c.position = pos
	c.sendEventLocked(c.eventLocked(EventPositionChanged))
}

func (c *Controller) clampPositionLocked(pos time.Duration) time.Duration {
	if pos < 0 {
		return 0
	}
	if c.duration > 0 && pos > c.duration {
		return c.duration
	}
	return pos
}

// warnLocked logs err and forwards it to the presentation layer.
// It returns err so callers can propagate it.
func (c *Controller) warnLocked(err error) error {
	if err == nil {
		return nil
	}
	zlog.Warn().Err(err).Msg("playback: operation failed")
	ev := c.eventLocked(EventWarning)
	ev.Err = err
	c.sendEventLocked(ev)
	return err
}

func (c *Controller) eventLocked(t EventType) Event {
	return Event{
		Type:     t,
		Track:    c.copySourceLocked(),
		Index:    c.store.Index(),
		State:    c.state,
		Position: c.position,
		Duration: c.duration,
	}
}

func (c *Controller) copySourceLocked() *track.Track {
	if c.source == nil {
		return nil
	}
	t := *c.source
	return &t
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(e Event) {
	if c.closed {
		return
	}
	select {
	case c.eventCh <- e:
	default:
		// Channel full, drop event
		zlog.Debug().Msgf("playback: event dropped: type=%s", e.Type)
	}
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
