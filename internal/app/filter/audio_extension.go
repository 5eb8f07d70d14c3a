package filter

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicbox/internal/domain/track"
)

// AudioExtensionConfig represents the configuration for AudioExtensionFilter.
type AudioExtensionConfig struct {
	AllowedTypes []string `yaml:"allowed_types" mapstructure:"allowed_types" default:"[\".mp3\",\".wav\",\".ogg\"]" validate:"min=1,dive,startswith=."`
}

// AudioExtensionFilter keeps only entries with an allowed audio extension.
type AudioExtensionFilter struct {
	allowed map[string]bool
}

// NewAudioExtensionFilter creates a filter accepting the given extensions.
func NewAudioExtensionFilter(types ...string) *AudioExtensionFilter {
	f := &AudioExtensionFilter{}
	f.setAllowed(types)
	return f
}

func (f *AudioExtensionFilter) Name() string {
	return "audio_extension_filter"
}

func (f *AudioExtensionFilter) Description() string {
	return "Drops playlist entries that are not audio files (by extension)"
}

func (f *AudioExtensionFilter) ReturnCodes() []string {
	return []string{"unsupported_type"}
}

func (f *AudioExtensionFilter) ValidateConfig(settings map[string]any) error {
	var config AudioExtensionConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &config,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	f.setAllowed(config.AllowedTypes)
	zlog.Debug().Msgf("audio extension filter config: %+v", config)
	return nil
}

func (f *AudioExtensionFilter) Check(ctx context.Context, t track.Track) Result {
	if f.allowed == nil || !f.allowed[t.Extension()] {
		return Reject("unsupported_type")
	}
	return Accept()
}

func (f *AudioExtensionFilter) setAllowed(types []string) {
	f.allowed = make(map[string]bool, len(types))
	for _, ext := range types {
		f.allowed[strings.ToLower(ext)] = true
	}
}

func init() {
	Register("audio_extension_filter", func() Filter {
		return NewAudioExtensionFilter(".mp3", ".wav", ".ogg")
	})
}
