package filter

import (
	"sort"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicbox/internal/infra/config"
)

// NewChainFromConfig creates a load filter chain from configuration.
// The missing file filter is always first; enabled filters follow in name order.
func NewChainFromConfig(cfg *config.Config) (*Chain, error) {
	chain := DefaultChain()

	names := make([]string, 0, len(cfg.Filters))
	for name := range cfg.Filters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !cfg.IsFilterEnabled(name) || name == "missing_file_filter" {
			continue
		}

		factory, ok := registry[name]
		if !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}

		f := factory()
		if err := f.ValidateConfig(cfg.Filters[name].Settings); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		chain.Add(f)

		zlog.Info().Msgf("registered load filter: %s", name)
	}

	return chain, nil
}
