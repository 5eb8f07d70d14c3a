// Package console provides the terminal presentation: a notification printer
// and an interactive command shell.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/osa030/musicbox/internal/app/notification"
)

// Printer writes notifications as human readable lines.
// Position ticks are not printed.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Send implements notification.Stream.
func (p *Printer) Send(n *notification.Notification) error {
	line := formatNotification(n)
	if line == "" {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.out, line)
	return err
}

func formatNotification(n *notification.Notification) string {
	switch n.Type {
	case notification.TypeTrackChanged:
		if n.TrackName == "" {
			return "■ nothing loaded"
		}
		if n.Index >= 0 {
			return fmt.Sprintf("♪ %s [%d]", n.TrackName, n.Index+1)
		}
		return fmt.Sprintf("♪ %s", n.TrackName)

	case notification.TypeStateChanged:
		return fmt.Sprintf("state: %s", n.State)

	case notification.TypeDurationChanged:
		if n.Duration <= 0 {
			return ""
		}
		return fmt.Sprintf("length: %s", FormatClock(n.Duration))

	case notification.TypePlaylistChanged:
		name := n.PlaylistName
		if name == "" {
			name = "(unsaved)"
		}
		return fmt.Sprintf("playlist: %s, %d tracks", name, n.TrackCount)

	case notification.TypeWarning:
		return fmt.Sprintf("warning: %s", n.Message)

	default:
		return ""
	}
}
