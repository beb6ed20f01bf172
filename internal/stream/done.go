package stream

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Norgate-AV/packstream/internal/bundler"
	"github.com/Norgate-AV/packstream/internal/config"
)

// DebounceWindow is how long the default handler stays quiet after logging in watch mode
const DebounceWindow = 500 * time.Millisecond

// DefaultHandler logs a summary of every cycle unless opts are silent.
// Errors are not logged; they reach the caller through the adapter.
func DefaultHandler(opts *config.Options, logger zerolog.Logger) bundler.Handler {
	var (
		mu      sync.Mutex
		pending bool
	)

	return func(stats *bundler.Stats, err error) {
		if err != nil || stats == nil || opts.IsSilent() {
			return
		}

		mu.Lock()
		if pending {
			mu.Unlock()
			return
		}

		if opts.Watch {
			pending = true
			time.AfterFunc(DebounceWindow, func() {
				mu.Lock()
				pending = false
				mu.Unlock()
			})
		}
		mu.Unlock()

		statsOpts := opts.Stats
		if opts.Verbose {
			statsOpts.Preset = bundler.PresetVerbose
		}

		if summary := stats.String(statsOpts); summary != "" {
			logger.Info().Msg(summary)
		}
	}
}
