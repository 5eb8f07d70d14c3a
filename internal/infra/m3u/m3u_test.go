package m3u

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musicbox/internal/app/filter"
	"github.com/osa030/musicbox/internal/domain/track"
)

// touch creates empty audio files in dir and returns their paths.
func touch(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(paths[i], nil, 0644))
	}
	return paths
}

func TestCodec_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	paths := touch(t, dir, "a.mp3", "b song.ogg", "c.wav")
	paths = append(paths, paths[0]) // duplicates are kept
	playlistPath := filepath.Join(dir, "list.m3u")
	codec := NewCodec(nil)

	require.NoError(t, codec.Save(playlistPath, track.FromPaths(paths)))
	loaded, err := codec.Load(context.Background(), playlistPath)

	require.NoError(t, err)
	assert.Equal(t, paths, loaded)
}

func TestCodec_Save_Format(t *testing.T) {
	dir := t.TempDir()
	playlistPath := filepath.Join(dir, "list.m3u")
	codec := NewCodec(nil)

	require.NoError(t, codec.Save(playlistPath, track.FromPaths([]string{"/music/a.mp3", "/music/b.mp3"})))

	data, err := os.ReadFile(playlistPath)
	require.NoError(t, err)
	assert.Equal(t, "/music/a.mp3"+LineTerminator+"/music/b.mp3"+LineTerminator, string(data))
	assert.NotContains(t, string(data), "#EXTM3U")
}

func TestCodec_Save_EmptyPlaylist(t *testing.T) {
	playlistPath := filepath.Join(t.TempDir(), "empty.m3u")
	codec := NewCodec(nil)

	require.NoError(t, codec.Save(playlistPath, nil))

	info, err := os.Stat(playlistPath)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestCodec_Save_Overwrites(t *testing.T) {
	playlistPath := filepath.Join(t.TempDir(), "list.m3u")
	require.NoError(t, os.WriteFile(playlistPath, []byte(strings.Repeat("old\n", 50)), 0644))
	codec := NewCodec(nil)

	require.NoError(t, codec.Save(playlistPath, track.FromPaths([]string{"new.mp3"})))

	data, err := os.ReadFile(playlistPath)
	require.NoError(t, err)
	assert.Equal(t, "new.mp3"+LineTerminator, string(data))
}

func TestCodec_Save_Error(t *testing.T) {
	playlistPath := filepath.Join(t.TempDir(), "missing-dir", "list.m3u")
	codec := NewCodec(nil)

	err := codec.Save(playlistPath, track.FromPaths([]string{"a.mp3"}))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIO))
}

func TestCodec_Load_DropsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	paths := touch(t, dir, "one.mp3", "two.mp3", "three.mp3")
	playlistPath := filepath.Join(dir, "list.m3u")
	codec := NewCodec(nil)
	require.NoError(t, codec.Save(playlistPath, track.FromPaths(paths)))

	require.NoError(t, os.Remove(paths[1]))
	loaded, err := codec.Load(context.Background(), playlistPath)

	require.NoError(t, err)
	assert.Equal(t, []string{paths[0], paths[2]}, loaded)
}

func TestCodec_Load_TrimsAndSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	paths := touch(t, dir, "a.mp3", "b.mp3")
	content := "\n   " + paths[0] + "  \r\n\t\n" + paths[1] + "\r\n\n"
	playlistPath := filepath.Join(dir, "list.m3u")
	require.NoError(t, os.WriteFile(playlistPath, []byte(content), 0644))

	loaded, err := NewCodec(nil).Load(context.Background(), playlistPath)

	require.NoError(t, err)
	assert.Equal(t, paths, loaded)
}

func TestCodec_Load_AllMissing(t *testing.T) {
	dir := t.TempDir()
	playlistPath := filepath.Join(dir, "list.m3u")
	require.NoError(t, os.WriteFile(playlistPath, []byte("/nowhere/a.mp3\n/nowhere/b.mp3\n"), 0644))

	loaded, err := NewCodec(nil).Load(context.Background(), playlistPath)

	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestCodec_Load_WithExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	paths := touch(t, dir, "a.mp3", "cover.jpg", "b.ogg")
	playlistPath := filepath.Join(dir, "list.m3u")
	chain := filter.NewChain(&filter.MissingFileFilter{}, filter.NewAudioExtensionFilter(".mp3", ".ogg"))
	codec := NewCodec(chain)
	require.NoError(t, codec.Save(playlistPath, track.FromPaths(paths)))

	loaded, err := codec.Load(context.Background(), playlistPath)

	require.NoError(t, err)
	assert.Equal(t, []string{paths[0], paths[2]}, loaded)
}

func TestCodec_Load_Error(t *testing.T) {
	_, err := NewCodec(nil).Load(context.Background(), filepath.Join(t.TempDir(), "nope.m3u"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIO))
}

func TestLineTerminator(t *testing.T) {
	assert.Equal(t, "\r\n", lineTerminator("windows"))
	assert.Equal(t, "\n", lineTerminator("linux"))
	assert.Equal(t, lineTerminator(runtime.GOOS), LineTerminator)
}

func TestWithExtension(t *testing.T) {
	assert.Equal(t, "mix.m3u", WithExtension("mix"))
	assert.Equal(t, "mix.m3u", WithExtension("mix.m3u"))
	assert.Equal(t, "MIX.M3U", WithExtension("MIX.M3U"))
}
