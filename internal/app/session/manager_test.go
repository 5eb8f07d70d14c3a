package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musicbox/internal/app/notification"
	"github.com/osa030/musicbox/internal/app/playback"
	"github.com/osa030/musicbox/internal/domain/media"
	"github.com/osa030/musicbox/internal/domain/playlist"
	"github.com/osa030/musicbox/internal/infra/config"
	"github.com/osa030/musicbox/internal/infra/m3u"
)

// fakeEngine is a goroutine-safe media engine that records commands.
type fakeEngine struct {
	mu     sync.Mutex
	calls  []string
	loaded string
	closed bool
	events chan media.Event
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: make(chan media.Event, 16)}
}

func (e *fakeEngine) record(call string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
	return nil
}

func (e *fakeEngine) Load(uri string) error {
	e.mu.Lock()
	e.loaded = uri
	e.mu.Unlock()
	return e.record("load")
}

func (e *fakeEngine) Play() error                     { return e.record("play") }
func (e *fakeEngine) Pause() error                    { return e.record("pause") }
func (e *fakeEngine) Stop() error                     { return e.record("stop") }
func (e *fakeEngine) SetPosition(time.Duration) error { return e.record("seek") }
func (e *fakeEngine) SetVolume(float64) error         { return e.record("volume") }
func (e *fakeEngine) Events() <-chan media.Event      { return e.events }

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *fakeEngine) snapshot() ([]string, string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...), e.loaded, e.closed
}

// fakePicker answers every question with a preset value.
type fakePicker struct {
	track    string
	tracks   []string
	playlist string
	savePath string
	err      error

	saveDefault string
	saveCalls   int
}

func (p *fakePicker) PickTrack(context.Context) (string, error) { return p.track, p.err }

func (p *fakePicker) PickTracks(context.Context) ([]string, error) { return p.tracks, p.err }

func (p *fakePicker) PickPlaylist(context.Context) (string, error) { return p.playlist, p.err }

func (p *fakePicker) PickSavePath(_ context.Context, defaultPath string) (string, error) {
	p.saveCalls++
	p.saveDefault = defaultPath
	return p.savePath, p.err
}

type recordingStream struct {
	mu       sync.Mutex
	received []*notification.Notification
}

func (s *recordingStream) Send(n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, n)
	return nil
}

func (s *recordingStream) has(typ notification.Type) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.received {
		if n.Type == typ {
			return true
		}
	}
	return false
}

func (s *recordingStream) last(typ notification.Type) *notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.received) - 1; i >= 0; i-- {
		if s.received[i].Type == typ {
			return s.received[i]
		}
	}
	return nil
}

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestManager(t *testing.T, picker *fakePicker, opts ...Option) (*Manager, *fakeEngine) {
	t.Helper()
	cfg := config.Default()
	cfg.Playlists.Directory = t.TempDir()

	engine := newFakeEngine()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	m, err := NewManager(cfg, engine, picker, opts...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, engine
}

// audioFiles creates empty files named names in a temp directory.
func audioFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, nil, 0o644))
		paths = append(paths, p)
	}
	return paths
}

func TestNewManager_UnknownFilter(t *testing.T) {
	cfg := config.Default()
	cfg.Filters = map[string]config.FilterConfig{
		"no_such_filter": {Enabled: true},
	}

	_, err := NewManager(cfg, newFakeEngine(), &fakePicker{})
	assert.Error(t, err)
}

func TestManager_NewPlaylist(t *testing.T) {
	paths := []string{"/music/a.mp3", "/music/b.mp3"}
	m, _ := newTestManager(t, &fakePicker{tracks: paths})

	require.NoError(t, m.NewPlaylist(context.Background()))

	status := m.Status()
	assert.Len(t, status.Tracks, 2)
	assert.Equal(t, playback.StateIdle, status.State)
	assert.Equal(t, "20250102-030405", m.PlaylistName())
	assert.Empty(t, m.PlaylistPath())
}

func TestManager_NewPlaylist_Cancelled(t *testing.T) {
	m, _ := newTestManager(t, &fakePicker{})

	require.NoError(t, m.NewPlaylist(context.Background()))

	assert.Empty(t, m.Status().Tracks)
	assert.Empty(t, m.PlaylistName())
}

func TestManager_SaveAndLoad(t *testing.T) {
	paths := audioFiles(t, "a.mp3", "b.mp3", "c.mp3")
	dir := t.TempDir()
	picker := &fakePicker{
		tracks:   paths,
		savePath: filepath.Join(dir, "mine"),
		playlist: filepath.Join(dir, "mine.m3u"),
	}
	m, _ := newTestManager(t, picker)
	ctx := context.Background()

	require.NoError(t, m.NewPlaylist(ctx))
	require.NoError(t, m.SavePlaylist(ctx))

	assert.Equal(t, filepath.Join(m.config.Playlists.Directory, "20250102-030405.m3u"), picker.saveDefault)
	assert.Equal(t, "mine", m.PlaylistName())
	assert.FileExists(t, picker.playlist)

	m.ClearPlaylist()
	require.Empty(t, m.Status().Tracks)
	require.Empty(t, m.PlaylistName())

	require.NoError(t, m.LoadPlaylist(ctx))

	status := m.Status()
	require.Len(t, status.Tracks, 3)
	for i, tr := range status.Tracks {
		assert.Equal(t, paths[i], tr.Path)
	}
	assert.Equal(t, "mine", m.PlaylistName())
	assert.Equal(t, picker.playlist, m.PlaylistPath())
}

func TestManager_LoadPlaylist_DropsMissingEntries(t *testing.T) {
	paths := audioFiles(t, "a.mp3", "b.mp3")
	file := filepath.Join(t.TempDir(), "list.m3u")
	content := paths[0] + "\n/does/not/exist.mp3\n" + paths[1] + "\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	m, _ := newTestManager(t, &fakePicker{playlist: file})

	require.NoError(t, m.LoadPlaylist(context.Background()))

	status := m.Status()
	require.Len(t, status.Tracks, 2)
	assert.Equal(t, paths[0], status.Tracks[0].Path)
	assert.Equal(t, paths[1], status.Tracks[1].Path)
	assert.Equal(t, "list", m.PlaylistName())
}

func TestManager_LoadPlaylist_ReadErrorKeepsPlaylist(t *testing.T) {
	picker := &fakePicker{
		tracks:   []string{"/music/a.mp3"},
		playlist: filepath.Join(t.TempDir(), "missing.m3u"),
	}
	m, _ := newTestManager(t, picker)
	ctx := context.Background()
	require.NoError(t, m.NewPlaylist(ctx))

	err := m.LoadPlaylist(ctx)

	require.Error(t, err)
	assert.True(t, errors.Is(err, m3u.ErrIO))
	assert.Len(t, m.Status().Tracks, 1)
	assert.Equal(t, "20250102-030405", m.PlaylistName())
}

func TestManager_SavePlaylist_Empty(t *testing.T) {
	picker := &fakePicker{savePath: "/tmp/never.m3u"}
	m, _ := newTestManager(t, picker)
	stream := &recordingStream{}
	m.Notifications().Subscribe(stream)

	err := m.SavePlaylist(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, playlist.ErrEmptyPlaylist))
	assert.Zero(t, picker.saveCalls, "picker is not asked for an empty playlist")
	assert.True(t, stream.has(notification.TypeWarning))
}

func TestManager_SavePlaylist_Cancelled(t *testing.T) {
	picker := &fakePicker{tracks: []string{"/music/a.mp3"}}
	m, _ := newTestManager(t, picker)
	ctx := context.Background()
	require.NoError(t, m.NewPlaylist(ctx))

	require.NoError(t, m.SavePlaylist(ctx))

	assert.Equal(t, 1, picker.saveCalls)
	assert.Empty(t, m.PlaylistPath())
}

func TestManager_ForwardsNotifications(t *testing.T) {
	m, _ := newTestManager(t, &fakePicker{tracks: []string{"/music/a.mp3", "/music/b.mp3"}})
	stream := &recordingStream{}
	m.Notifications().Subscribe(stream)
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))

	require.NoError(t, m.NewPlaylist(ctx))
	require.NoError(t, m.Play(ctx))

	require.Eventually(t, func() bool {
		return stream.has(notification.TypeTrackChanged) && stream.has(notification.TypeStateChanged)
	}, time.Second, 10*time.Millisecond)

	changed := stream.last(notification.TypeTrackChanged)
	assert.Equal(t, "a.mp3", changed.TrackName)
	assert.Equal(t, "/music/a.mp3", changed.TrackPath)
	assert.Equal(t, "20250102-030405", changed.PlaylistName)

	listed := stream.last(notification.TypePlaylistChanged)
	require.NotNil(t, listed)
	assert.Equal(t, 2, listed.TrackCount)
}

func TestManager_PumpsEngineEvents(t *testing.T) {
	m, engine := newTestManager(t, &fakePicker{tracks: []string{"/music/a.mp3", "/music/b.mp3"}})
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.NewPlaylist(ctx))
	require.NoError(t, m.Play(ctx))
	require.Equal(t, 0, m.Status().Index)

	engine.events <- media.DurationChanged(3 * time.Minute)
	engine.events <- media.PositionChanged(time.Minute)
	engine.events <- media.StatusChanged(media.StatusEndOfMedia)

	require.Eventually(t, func() bool {
		return m.Status().Index == 1
	}, time.Second, 10*time.Millisecond)

	_, loaded, _ := engine.snapshot()
	assert.Equal(t, "/music/b.mp3", loaded)
	assert.Equal(t, playback.StatePlaying, m.Status().State)
}

func TestManager_Passthroughs(t *testing.T) {
	m, engine := newTestManager(t, &fakePicker{tracks: []string{"/music/a.mp3", "/music/b.mp3", "/music/c.mp3"}})
	ctx := context.Background()
	require.NoError(t, m.NewPlaylist(ctx))

	require.NoError(t, m.Select(2))
	assert.Equal(t, 2, m.Status().Index)

	require.NoError(t, m.Next())
	assert.Equal(t, 0, m.Status().Index)

	require.NoError(t, m.Previous())
	assert.Equal(t, 2, m.Status().Index)

	require.NoError(t, m.Pause())
	assert.Equal(t, playback.StatePaused, m.Status().State)

	require.NoError(t, m.Stop())
	assert.Equal(t, playback.StateStopped, m.Status().State)

	require.NoError(t, m.SetVolume(0.25))
	assert.InDelta(t, 0.25, m.Status().Volume, 1e-9)

	require.NoError(t, m.Seek(0))

	calls, _, _ := engine.snapshot()
	assert.Contains(t, calls, "pause")
	assert.Contains(t, calls, "stop")
}

func TestManager_Background(t *testing.T) {
	background := newFakeEngine()
	m, _ := newTestManager(t, &fakePicker{}, WithBackground(background))
	m.config.Background.Source = "/videos/loop.mp4"

	require.NoError(t, m.Start(context.Background()))

	calls, loaded, _ := background.snapshot()
	assert.Equal(t, []string{"load", "volume", "play"}, calls)
	assert.Equal(t, "/videos/loop.mp4", loaded)
}

func TestManager_BackgroundNotConfigured(t *testing.T) {
	background := newFakeEngine()
	m, _ := newTestManager(t, &fakePicker{}, WithBackground(background))

	require.NoError(t, m.Start(context.Background()))

	calls, _, _ := background.snapshot()
	assert.Empty(t, calls)
}

func TestManager_Close(t *testing.T) {
	background := newFakeEngine()
	m, engine := newTestManager(t, &fakePicker{}, WithBackground(background))
	require.NoError(t, m.Start(context.Background()))

	m.Close()
	m.Close()

	select {
	case <-m.Done():
	default:
		t.Fatal("done channel not closed")
	}
	_, _, engineClosed := engine.snapshot()
	_, _, backgroundClosed := background.snapshot()
	assert.True(t, engineClosed)
	assert.True(t, backgroundClosed)
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/lists/evening.m3u", want: "evening"},
		{path: "morning", want: "morning"},
		{path: "/a/b.c/d.m3u", want: "d"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, baseName(tt.path))
		})
	}
}
