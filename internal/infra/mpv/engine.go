// Package mpv implements the media engine by driving an mpv process over its
// JSON IPC socket.
package mpv

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dexterlb/mpvipc"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicbox/internal/domain/media"
)

// Observed property IDs.
const (
	propTimePos = iota + 1
	propDuration
	propEOFReached
)

// Numeric end-file reasons sent by older mpv releases.
const (
	endFileEOF   = 0
	endFileError = 3
)

// Config holds mpv engine configuration.
type Config struct {
	Executable     string
	SocketPath     string // Generated in the temp directory when empty
	StartTimeout   time.Duration
	CommandTimeout time.Duration
	ExtraArgs      []string
	Loop           bool // Repeat the loaded file forever
	Video          bool // Open a video window
	Name           string
}

// Engine is a media.Engine backed by one mpv process.
type Engine struct {
	config Config

	mu     sync.Mutex
	cmd    *exec.Cmd
	conn   *mpvipc.Connection
	exited chan struct{}

	events    chan media.Event
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ media.Engine = (*Engine)(nil)

// New creates an engine. Start must be called before any other method.
func New(config Config) *Engine {
	if config.Executable == "" {
		config.Executable = "mpv"
	}
	if config.StartTimeout <= 0 {
		config.StartTimeout = 5 * time.Second
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = 2 * time.Second
	}
	if config.Name == "" {
		config.Name = "player"
	}
	if config.SocketPath == "" {
		config.SocketPath = filepath.Join(os.TempDir(), "musicbox-"+config.Name+"-"+uuid.NewString()[:8]+".sock")
	}
	return &Engine{
		config: config,
		events: make(chan media.Event, 64),
		done:   make(chan struct{}),
	}
}

// args returns the mpv command line.
func (e *Engine) args() []string {
	args := []string{
		"--idle=yes",
		"--no-terminal",
		"--keep-open=yes",
		"--pause=yes",
		"--input-ipc-server=" + e.config.SocketPath,
	}
	if e.config.Loop {
		args = append(args, "--loop-file=inf")
	}
	if e.config.Video {
		args = append(args, "--force-window=yes")
	} else {
		args = append(args, "--no-video")
	}
	return append(args, e.config.ExtraArgs...)
}

// Start launches mpv, connects to its IPC socket and subscribes to the
// properties the engine reports.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd != nil {
		return errors.New("mpv engine already started")
	}

	// A stale socket from a crashed run would make the wait below succeed early.
	_ = os.Remove(e.config.SocketPath)

	cmd := exec.Command(e.config.Executable, e.args()...)
	if err := cmd.Start(); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to start %s", e.config.Executable), media.ErrEngine)
	}
	e.cmd = cmd
	e.exited = make(chan struct{})
	go func() {
		err := cmd.Wait()
		zlog.Debug().Err(err).Msgf("mpv: %s process exited", e.config.Name)
		close(e.exited)
	}()
	zlog.Info().Msgf("mpv: started %s engine: pid=%d socket=%s", e.config.Name, cmd.Process.Pid, e.config.SocketPath)

	conn, err := e.dial(ctx)
	if err != nil {
		_ = cmd.Process.Kill()
		return err
	}

	if err := e.attach(conn, e.exited); err != nil {
		_ = conn.Close()
		_ = cmd.Process.Kill()
		return err
	}
	return nil
}

// dial waits for the IPC socket to accept connections.
func (e *Engine) dial(ctx context.Context) (*mpvipc.Connection, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.StartTimeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		conn := mpvipc.NewConnection(e.config.SocketPath)
		err := conn.Open()
		if err == nil {
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Mark(errors.Wrapf(err, "mpv socket %s not ready", e.config.SocketPath), media.ErrEngine)
		case <-e.exited:
			return nil, errors.Mark(errors.New("mpv exited before its socket was ready"), media.ErrEngine)
		case <-ticker.C:
		}
	}
}

// attach observes the reported properties on conn and starts translating its
// events. The listener stops when the engine closes or exited fires.
// The caller holds e.mu.
func (e *Engine) attach(conn *mpvipc.Connection, exited <-chan struct{}) error {
	for _, p := range []struct {
		id   int
		name string
	}{
		{propTimePos, "time-pos"},
		{propDuration, "duration"},
		{propEOFReached, "eof-reached"},
	} {
		err := e.withTimeout("observe_property", func() error {
			_, err := conn.Call("observe_property", p.id, p.name)
			return err
		})
		if err != nil {
			return errors.Wrapf(err, "failed to observe %s", p.name)
		}
	}

	events, stop := conn.NewEventListener()
	go func() {
		select {
		case <-e.done:
		case <-exited:
		}
		close(stop)
	}()

	e.conn = conn
	e.wg.Add(1)
	go e.translateLoop(events)

	return nil
}

// translateLoop converts mpv events into media events until the listener
// stops.
func (e *Engine) translateLoop(events <-chan *mpvipc.Event) {
	defer e.wg.Done()
	defer close(e.events)

	for raw := range events {
		ev, ok := translate(raw)
		if !ok {
			continue
		}
		select {
		case e.events <- ev:
		case <-e.done:
			// Drain so the listener can be closed.
			for range events {
			}
			return
		}
	}
}

// translate maps an mpv event onto a media event.
func translate(ev *mpvipc.Event) (media.Event, bool) {
	switch ev.Name {
	case "property-change":
		name, _ := ev.ExtraData["name"].(string)
		switch name {
		case "time-pos":
			if secs, ok := decodeSeconds(ev.Data); ok {
				return media.PositionChanged(secs), true
			}
		case "duration":
			if secs, ok := decodeSeconds(ev.Data); ok {
				return media.DurationChanged(secs), true
			}
		case "eof-reached":
			if reached, _ := ev.Data.(bool); reached {
				return media.StatusChanged(media.StatusEndOfMedia), true
			}
		}

	case "start-file":
		return media.StatusChanged(media.StatusLoading), true

	case "file-loaded":
		return media.StatusChanged(media.StatusLoaded), true

	case "idle":
		return media.StatusChanged(media.StatusNoMedia), true

	case "end-file":
		switch endReason(ev) {
		case "eof":
			return media.StatusChanged(media.StatusEndOfMedia), true
		case "error":
			text, _ := ev.ExtraData["file_error"].(string)
			if text == "" {
				text = "playback failed"
			}
			return media.ErrorOccurred(endFileError, text), true
		}
	}
	return media.Event{}, false
}

// endReason returns the end-file reason, which mpv reports either by name or
// by number depending on its version.
func endReason(ev *mpvipc.Event) string {
	switch r := ev.ExtraData["reason"].(type) {
	case string:
		return r
	case float64:
		switch int(r) {
		case endFileEOF:
			return "eof"
		case endFileError:
			return "error"
		}
	}
	return ""
}

// decodeSeconds decodes a numeric property value. Unavailable properties are
// reported as null.
func decodeSeconds(data any) (time.Duration, bool) {
	secs, ok := data.(float64)
	if !ok {
		return 0, false
	}
	if secs < 0 {
		return 0, true
	}
	return time.Duration(secs * float64(time.Second)), true
}

func (e *Engine) connection() (*mpvipc.Connection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return nil, errors.Mark(errors.New("mpv engine not running"), media.ErrEngine)
	}
	return e.conn, nil
}

// withTimeout runs an IPC exchange, giving up after the command timeout.
func (e *Engine) withTimeout(name string, fn func() error) error {
	result := make(chan error, 1)
	go func() { result <- fn() }()

	timer := time.NewTimer(e.config.CommandTimeout)
	defer timer.Stop()

	select {
	case err := <-result:
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "mpv %s failed", name), media.ErrEngine)
		}
		return nil
	case <-timer.C:
		return errors.Mark(errors.Newf("mpv %s timed out after %s", name, e.config.CommandTimeout), media.ErrEngine)
	}
}

func (e *Engine) command(args ...any) error {
	conn, err := e.connection()
	if err != nil {
		return err
	}
	name, _ := args[0].(string)
	return e.withTimeout(name, func() error {
		_, err := conn.Call(args...)
		return err
	})
}

func (e *Engine) set(property string, value any) error {
	conn, err := e.connection()
	if err != nil {
		return err
	}
	return e.withTimeout("set "+property, func() error {
		return conn.Set(property, value)
	})
}

// Load replaces the current file. The file stays paused until Play.
func (e *Engine) Load(uri string) error {
	if err := e.set("pause", true); err != nil {
		return err
	}
	if err := e.command("loadfile", uri, "replace"); err != nil {
		return errors.Wrapf(err, "failed to load %s", uri)
	}
	zlog.Debug().Msgf("mpv: %s loaded %s", e.config.Name, uri)
	return nil
}

// Play resumes playback.
func (e *Engine) Play() error {
	return e.set("pause", false)
}

// Pause pauses playback.
func (e *Engine) Pause() error {
	return e.set("pause", true)
}

// Stop pauses and rewinds, keeping the file loaded.
func (e *Engine) Stop() error {
	if err := e.set("pause", true); err != nil {
		return err
	}
	return e.SetPosition(0)
}

// SetPosition seeks to an absolute position.
func (e *Engine) SetPosition(pos time.Duration) error {
	return e.command("seek", pos.Seconds(), "absolute")
}

// SetVolume sets the volume from a fraction in [0, 1].
func (e *Engine) SetVolume(volume float64) error {
	return e.set("volume", volume*100)
}

// Events returns the media event channel. It is closed when the engine closes.
func (e *Engine) Events() <-chan media.Event {
	return e.events
}

// Close quits mpv and releases the socket.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		conn, cmd, exited := e.conn, e.cmd, e.exited
		e.conn = nil
		e.mu.Unlock()

		if conn != nil {
			// mpv may already be gone.
			_ = e.withTimeout("quit", func() error {
				_, err := conn.Call("quit")
				return err
			})
		}

		close(e.done)

		if conn != nil {
			_ = conn.Close()
			e.wg.Wait()
		} else {
			close(e.events)
		}

		if cmd != nil {
			select {
			case <-exited:
			case <-time.After(e.config.CommandTimeout):
				_ = cmd.Process.Kill()
				<-exited
			}
		}

		_ = os.Remove(e.config.SocketPath)
		zlog.Info().Msgf("mpv: closed %s engine", e.config.Name)
	})
	return nil
}
