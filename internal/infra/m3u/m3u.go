// Package m3u reads and writes playlist files: plain text, one file-system
// path per line, no header and no directives.
package m3u

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicbox/internal/app/filter"
	"github.com/osa030/musicbox/internal/domain/track"
)

// Extension is the conventional playlist file extension.
const Extension = ".m3u"

// ErrIO marks playlist files that cannot be read or written.
var ErrIO = errors.New("playlist file i/o")

// LineTerminator is the platform line terminator used when saving.
var LineTerminator = lineTerminator(runtime.GOOS)

func lineTerminator(goos string) string {
	if goos == "windows" {
		return "\r\n"
	}
	return "\n"
}

// Codec loads and saves playlist files.
type Codec struct {
	filters *filter.Chain
}

// NewCodec creates a codec that runs loaded entries through filters.
// A nil chain only drops entries whose file is missing.
func NewCodec(filters *filter.Chain) *Codec {
	if filters == nil {
		filters = filter.DefaultChain()
	}
	return &Codec{filters: filters}
}

// Save writes one path per line, overwriting path.
// An empty playlist produces an empty file.
func (c *Codec) Save(path string, tracks []track.Track) error {
	var buf bytes.Buffer
	for _, t := range tracks {
		buf.WriteString(t.Path)
		buf.WriteString(LineTerminator)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to save playlist %s", path), ErrIO)
	}

	zlog.Debug().Msgf("m3u: saved %d tracks to %s", len(tracks), path)
	return nil
}

// Load reads path and returns the accepted entries in file order.
// Lines are trimmed, blank lines skipped, and entries rejected by the filter
// chain (missing files at least) are dropped without error.
func (c *Codec) Load(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to open playlist %s", path), ErrIO)
	}
	defer f.Close()

	paths := make([]string, 0)
	dropped := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		result := c.filters.Execute(ctx, track.New(line))
		if !result.Accepted {
			dropped++
			zlog.Debug().Msgf("m3u: dropping entry: path=%s code=%s", line, result.Code)
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to read playlist %s", path), ErrIO)
	}

	if dropped > 0 {
		zlog.Info().Msgf("m3u: loaded %s: kept=%d dropped=%d", path, len(paths), dropped)
	}
	return paths, nil
}

// WithExtension appends the playlist extension when path has none.
func WithExtension(path string) string {
	if strings.HasSuffix(strings.ToLower(path), Extension) {
		return path
	}
	return path + Extension
}
