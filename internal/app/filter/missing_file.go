package filter

import (
	"context"
	"os"

	"github.com/osa030/musicbox/internal/domain/track"
)

// MissingFileFilter drops entries whose file no longer exists.
type MissingFileFilter struct{}

func (f *MissingFileFilter) Name() string {
	return "missing_file_filter"
}

func (f *MissingFileFilter) Description() string {
	return "Drops playlist entries that do not point to an existing file"
}

func (f *MissingFileFilter) ReturnCodes() []string {
	return []string{"missing_file"}
}

func (f *MissingFileFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *MissingFileFilter) Check(ctx context.Context, t track.Track) Result {
	info, err := os.Stat(t.Path)
	if err != nil || info.IsDir() {
		return Reject("missing_file")
	}
	return Accept()
}

func init() {
	Register("missing_file_filter", func() Filter {
		return &MissingFileFilter{}
	})
}
