// Package session provides the session manager: it wires the playback
// controller to the media engine, the playlist files, the file picker and the
// notification manager.
package session

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicbox/internal/app/filter"
	"github.com/osa030/musicbox/internal/app/notification"
	"github.com/osa030/musicbox/internal/app/playback"
	"github.com/osa030/musicbox/internal/domain/media"
	"github.com/osa030/musicbox/internal/domain/playlist"
	"github.com/osa030/musicbox/internal/infra/config"
	"github.com/osa030/musicbox/internal/infra/m3u"
)

// PlaylistNameLayout names playlists created from the picker.
const PlaylistNameLayout = "20060102-150405"

// Picker is the file selection collaborator.
// Every method returns an empty result when the user cancels.
type Picker interface {
	playback.TrackPicker
	PickTracks(ctx context.Context) ([]string, error)
	PickPlaylist(ctx context.Context) (string, error)
	PickSavePath(ctx context.Context, defaultPath string) (string, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithBackground sets the engine used for the muted looping background video.
func WithBackground(engine media.Engine) Option {
	return func(m *Manager) {
		m.background = engine
	}
}

// WithClock overrides the clock used to name new playlists.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager manages the player session.
type Manager struct {
	mu sync.RWMutex

	// Configuration
	config *config.Config

	// Components
	engine       media.Engine
	background   media.Engine
	playback     *playback.Controller
	picker       Picker
	codec        *m3u.Codec
	notification *notification.Manager

	// Playlist identity
	playlistName string
	playlistPath string

	now func() time.Time

	// Lifecycle
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewManager creates a new session manager. The manager owns engine (and the
// background engine, if any) and closes them on Close.
func NewManager(cfg *config.Config, engine media.Engine, picker Picker, opts ...Option) (*Manager, error) {
	chain, err := filter.NewChainFromConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create load filters")
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		config: cfg,
		engine: engine,
		playback: playback.NewController(engine, picker, playback.Config{
			Volume:      cfg.Player.Volume,
			EventBuffer: cfg.Player.EventBuffer,
		}),
		picker:       picker,
		codec:        m3u.NewCodec(chain),
		notification: notification.NewManager(),
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Start applies the initial volume, starts the background loop and begins
// pumping engine events into the controller and controller events out as
// notifications. It does not block.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.playback.SetVolume(m.config.Player.Volume); err != nil {
		zlog.Warn().Err(err).Msg("session: failed to apply initial volume")
	}

	m.startBackground()

	m.wg.Add(2)
	go m.engineLoop(ctx)
	go m.playbackLoop()

	zlog.Info().Msg("session: started")
	return nil
}

// startBackground plays the configured background video, muted and looping.
// Failures are logged only.
func (m *Manager) startBackground() {
	source := m.config.Background.Source
	if m.background == nil || source == "" {
		return
	}

	if err := m.background.Load(source); err != nil {
		zlog.Warn().Err(err).Msgf("session: failed to load background: %s", source)
		return
	}
	if err := m.background.SetVolume(0); err != nil {
		zlog.Warn().Err(err).Msg("session: failed to mute background")
	}
	if err := m.background.Play(); err != nil {
		zlog.Warn().Err(err).Msg("session: failed to start background")
		return
	}
	zlog.Info().Msgf("session: background loop started: %s", source)
}

// engineLoop feeds engine signals to the controller.
func (m *Manager) engineLoop(ctx context.Context) {
	defer m.wg.Done()

	events := m.engine.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				zlog.Warn().Msg("session: media engine event stream closed")
				return
			}
			m.playback.HandleEvent(ev)
		}
	}
}

// playbackLoop broadcasts controller events until the controller is closed.
func (m *Manager) playbackLoop() {
	defer m.wg.Done()

	for ev := range m.playback.Events() {
		m.notification.Broadcast(m.toNotification(ev))
	}
}

// Done returns a channel that is closed when the manager is closed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Notifications returns the notification manager.
func (m *Manager) Notifications() *notification.Manager {
	return m.notification
}

// Play starts or resumes playback.
func (m *Manager) Play(ctx context.Context) error {
	return m.playback.Play(ctx)
}

// Pause pauses playback.
func (m *Manager) Pause() error {
	return m.playback.Pause()
}

// Stop stops playback.
func (m *Manager) Stop() error {
	return m.playback.Stop()
}

// Next plays the next playlist track.
func (m *Manager) Next() error {
	return m.playback.Advance(playback.Next)
}

// Previous plays the previous playlist track.
func (m *Manager) Previous() error {
	return m.playback.Advance(playback.Previous)
}

// Select plays the playlist track at index.
func (m *Manager) Select(index int) error {
	return m.playback.SelectTrack(index)
}

// Seek moves the playback position.
func (m *Manager) Seek(pos time.Duration) error {
	return m.playback.Seek(pos)
}

// SetVolume sets the output volume in [0, 1].
func (m *Manager) SetVolume(volume float64) error {
	return m.playback.SetVolume(volume)
}

// Status returns the current playback status.
func (m *Manager) Status() playback.Status {
	return m.playback.Snapshot()
}

// PlaylistName returns the name of the current playlist.
func (m *Manager) PlaylistName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.playlistName
}

// PlaylistPath returns the file the current playlist was loaded from or saved
// to, empty if it has never been on disk.
func (m *Manager) PlaylistPath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.playlistPath
}

// NewPlaylist replaces the playlist with files chosen in the picker.
func (m *Manager) NewPlaylist(ctx context.Context) error {
	paths, err := m.picker.PickTracks(ctx)
	if err != nil {
		return m.warn(errors.Wrap(err, "failed to pick tracks"))
	}
	if len(paths) == 0 {
		return nil
	}

	name := m.now().Format(PlaylistNameLayout)
	m.setPlaylist(name, "")
	m.playback.ReplacePlaylist(paths)

	zlog.Info().Msgf("session: new playlist: name=%s tracks=%d", name, len(paths))
	return nil
}

// LoadPlaylist replaces the playlist with the contents of a playlist file.
// Entries whose file no longer exists are dropped. On read failure the current
// playlist is kept.
func (m *Manager) LoadPlaylist(ctx context.Context) error {
	path, err := m.picker.PickPlaylist(ctx)
	if err != nil {
		return m.warn(errors.Wrap(err, "failed to pick playlist"))
	}
	if path == "" {
		return nil
	}

	return m.LoadPlaylistFile(ctx, path)
}

// LoadPlaylistFile loads path without asking the picker.
func (m *Manager) LoadPlaylistFile(ctx context.Context, path string) error {
	paths, err := m.codec.Load(ctx, path)
	if err != nil {
		return m.warn(err)
	}

	name := baseName(path)
	m.setPlaylist(name, path)
	m.playback.ReplacePlaylist(paths)

	zlog.Info().Msgf("session: loaded playlist: name=%s tracks=%d", name, len(paths))
	return nil
}

// SavePlaylist writes the playlist to a file chosen in the picker.
// Saving an empty playlist is refused.
func (m *Manager) SavePlaylist(ctx context.Context) error {
	if len(m.playback.Tracks()) == 0 {
		return m.warn(errors.Wrap(playlist.ErrEmptyPlaylist, "cannot save"))
	}

	name := m.PlaylistName()
	if name == "" {
		name = m.now().Format(PlaylistNameLayout)
	}
	defaultPath := filepath.Join(m.config.Playlists.Directory, m3u.WithExtension(name))

	path, err := m.picker.PickSavePath(ctx, defaultPath)
	if err != nil {
		return m.warn(errors.Wrap(err, "failed to pick save path"))
	}
	if path == "" {
		return nil
	}

	return m.SavePlaylistFile(m3u.WithExtension(path))
}

// SavePlaylistFile writes the playlist to path without asking the picker.
func (m *Manager) SavePlaylistFile(path string) error {
	tracks := m.playback.Tracks()
	if len(tracks) == 0 {
		return m.warn(errors.Wrap(playlist.ErrEmptyPlaylist, "cannot save"))
	}

	if err := m.codec.Save(path, tracks); err != nil {
		return m.warn(err)
	}

	m.setPlaylist(baseName(path), path)
	zlog.Info().Msgf("session: saved playlist: path=%s tracks=%d", path, len(tracks))
	return nil
}

// ClearPlaylist empties the playlist and stops playback.
func (m *Manager) ClearPlaylist() {
	m.setPlaylist("", "")
	m.playback.ClearPlaylist()
}

// Close stops the event loops and releases the engines.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.cancel()
		m.playback.Close()
		m.wg.Wait()
		m.notification.Close()

		if m.background != nil {
			if err := m.background.Close(); err != nil {
				zlog.Warn().Err(err).Msg("session: failed to close background engine")
			}
		}
		if err := m.engine.Close(); err != nil {
			zlog.Warn().Err(err).Msg("session: failed to close media engine")
		}

		close(m.done)
		zlog.Info().Msg("session: closed")
	})
}

func (m *Manager) setPlaylist(name, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playlistName = name
	m.playlistPath = path
}

// warn logs err and broadcasts it as a warning. It returns err.
func (m *Manager) warn(err error) error {
	zlog.Warn().Err(err).Msg("session: operation failed")
	m.notification.Broadcast(&notification.Notification{
		Type:         notification.TypeWarning,
		Index:        playlist.NoSelection,
		PlaylistName: m.PlaylistName(),
		Message:      err.Error(),
	})
	return err
}

// toNotification converts a controller event into a notification.
func (m *Manager) toNotification(ev playback.Event) *notification.Notification {
	n := &notification.Notification{
		Type:         notificationType(ev.Type),
		Index:        ev.Index,
		State:        ev.State.String(),
		Position:     ev.Position,
		Duration:     ev.Duration,
		PlaylistName: m.PlaylistName(),
	}
	if ev.Track != nil {
		n.TrackName = ev.Track.DisplayName()
		n.TrackPath = ev.Track.Path
	}
	if ev.Type == playback.EventPlaylistChanged {
		n.TrackCount = len(m.playback.Tracks())
	}
	if ev.Err != nil {
		n.Message = ev.Err.Error()
	}
	return n
}

func notificationType(t playback.EventType) notification.Type {
	switch t {
	case playback.EventTrackChanged:
		return notification.TypeTrackChanged
	case playback.EventStateChanged:
		return notification.TypeStateChanged
	case playback.EventPositionChanged:
		return notification.TypePositionChanged
	case playback.EventDurationChanged:
		return notification.TypeDurationChanged
	case playback.EventPlaylistChanged:
		return notification.TypePlaylistChanged
	default:
		return notification.TypeWarning
	}
}

// baseName returns the file name without directory and extension.
func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
