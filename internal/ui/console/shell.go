package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicbox/internal/app/playback"
)

// Session is the player surface driven by the shell.
type Session interface {
	Play(ctx context.Context) error
	Pause() error
	Stop() error
	Next() error
	Previous() error
	Select(index int) error
	Seek(pos time.Duration) error
	SetVolume(volume float64) error
	Status() playback.Status
	PlaylistName() string

	NewPlaylist(ctx context.Context) error
	LoadPlaylist(ctx context.Context) error
	SavePlaylist(ctx context.Context) error
	ClearPlaylist()
}

// Prompt is printed before every command line.
const Prompt = "musicbox> "

// Shell reads commands line by line and runs them against a session.
type Shell struct {
	session Session
	in      io.Reader
	out     io.Writer
}

// NewShell creates a shell reading from in and writing to out.
func NewShell(session Session, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		session: session,
		in:      in,
		out:     out,
	}
}

// commands is the parsed grammar of one command line.
type commands struct {
	app *kingpin.Application

	play, pause, stop, next, prev *kingpin.CmdClause
	status, list                  *kingpin.CmdClause
	newList, load, save, clear    *kingpin.CmdClause
	quit                          *kingpin.CmdClause

	selectCmd    *kingpin.CmdClause
	selectNumber *int

	seek         *kingpin.CmdClause
	seekPosition *string

	volume      *kingpin.CmdClause
	volumeLevel *int
}

// newCommands builds a fresh grammar. Arguments keep their values between
// parses, so every line gets its own.
func newCommands(out io.Writer) *commands {
	app := kingpin.New("musicbox", "Playlist player commands").
		Terminate(nil).
		UsageWriter(out).
		ErrorWriter(out)
	app.HelpFlag.Short('h')

	c := &commands{app: app}
	c.play = app.Command("play", "Start or resume playback")
	c.pause = app.Command("pause", "Pause playback")
	c.stop = app.Command("stop", "Stop and rewind")
	c.next = app.Command("next", "Play the next track").Alias("n")
	c.prev = app.Command("prev", "Play the previous track").Alias("p")
	c.selectCmd = app.Command("select", "Play a playlist entry by number")
	c.selectNumber = c.selectCmd.Arg("number", "Entry number as shown by list").Required().Int()
	c.seek = app.Command("seek", "Jump to a position")
	c.seekPosition = c.seek.Arg("position", "Position as mm:ss or seconds").Required().String()
	c.volume = app.Command("volume", "Set the volume")
	c.volumeLevel = c.volume.Arg("level", "Volume from 0 to 100").Required().Int()
	c.status = app.Command("status", "Show what is playing")
	c.list = app.Command("list", "Show the playlist").Alias("ls")
	c.newList = app.Command("new", "Create a playlist from picked files")
	c.load = app.Command("load", "Load a playlist file")
	c.save = app.Command("save", "Save the playlist to a file")
	c.clear = app.Command("clear", "Empty the playlist")
	c.quit = app.Command("quit", "Leave the player").Alias("exit")
	return c
}

// Run executes commands until quit, end of input or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(s.out, Prompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return errors.Wrap(scanner.Err(), "failed to read command")
		}

		quit, err := s.Execute(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// Execute runs one command line. It reports whether the shell should exit.
func (s *Shell) Execute(ctx context.Context, line string) (bool, error) {
	args, err := shellquote.Split(line)
	if err != nil {
		return false, errors.Wrap(err, "invalid command line")
	}
	if len(args) == 0 {
		return false, nil
	}

	c := newCommands(s.out)
	command, err := c.app.Parse(args)
	if err != nil {
		return false, err
	}

	zlog.Debug().Msgf("console: command %s", command)

	switch command {
	case "":
		// --help was printed.
		return false, nil
	case c.play.FullCommand():
		return false, s.session.Play(ctx)
	case c.pause.FullCommand():
		return false, s.session.Pause()
	case c.stop.FullCommand():
		return false, s.session.Stop()
	case c.next.FullCommand():
		return false, s.session.Next()
	case c.prev.FullCommand():
		return false, s.session.Previous()
	case c.selectCmd.FullCommand():
		return false, s.session.Select(*c.selectNumber - 1)
	case c.seek.FullCommand():
		pos, err := ParseClock(*c.seekPosition)
		if err != nil {
			return false, err
		}
		return false, s.session.Seek(pos)
	case c.volume.FullCommand():
		level := *c.volumeLevel
		if level < 0 || level > 100 {
			return false, errors.Newf("volume must be between 0 and 100, got %d", level)
		}
		return false, s.session.SetVolume(float64(level) / 100)
	case c.status.FullCommand():
		s.printStatus()
		return false, nil
	case c.list.FullCommand():
		s.printList()
		return false, nil
	case c.newList.FullCommand():
		return false, s.session.NewPlaylist(ctx)
	case c.load.FullCommand():
		return false, s.session.LoadPlaylist(ctx)
	case c.save.FullCommand():
		return false, s.session.SavePlaylist(ctx)
	case c.clear.FullCommand():
		s.session.ClearPlaylist()
		return false, nil
	case c.quit.FullCommand():
		return true, nil
	}
	return false, errors.Newf("unhandled command %q", command)
}

func (s *Shell) printStatus() {
	st := s.session.Status()

	track := "nothing loaded"
	if st.Track != nil {
		track = st.Track.DisplayName()
		if st.Index >= 0 {
			track = fmt.Sprintf("%s [%d/%d]", track, st.Index+1, len(st.Tracks))
		}
	}

	fmt.Fprintf(s.out, "%s: %s  %s / %s  volume %d%%\n",
		st.State, track, FormatClock(st.Position), FormatClock(st.Duration), int(st.Volume*100+0.5))
}

func (s *Shell) printList() {
	st := s.session.Status()
	name := s.session.PlaylistName()
	if name == "" {
		name = "(unsaved)"
	}

	if len(st.Tracks) == 0 {
		fmt.Fprintf(s.out, "%s: empty\n", name)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d tracks\n", name, len(st.Tracks))
	for i, t := range st.Tracks {
		marker := " "
		if i == st.Index {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s %3d. %s\n", marker, i+1, t.DisplayName())
	}
	fmt.Fprint(s.out, b.String())
}
