// Package scroll implements the bounded incremental collection loop shared
// by every platform adapter: repeatedly collect newly discovered items and
// advance the surface until a termination condition holds.
package scroll

import (
	"context"
	"fmt"
	"time"

	"github.com/Fernandogf021207/Scr4per-sub000/pkg/logger"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/models"
)

// Config controls loop termination
type Config struct {
	// MaxIterations caps the number of collect passes
	MaxIterations int
	// Pause is slept between advance and the next collect
	Pause time.Duration
	// StagnationLimit is the number of consecutive zero-yield passes
	// tolerated before stopping
	StagnationLimit int
	// EmptyLimit is the number of consecutive zero-yield passes tolerated
	// when nothing has ever been collected
	EmptyLimit int
	// Timeout is the wall-clock budget for the whole loop
	Timeout time.Duration

	// Adaptive shrinks the iteration cap on sparse surfaces
	Adaptive bool
	// AdaptiveDecayThreshold is the average yield per pass below which the
	// cap is shrunk
	AdaptiveDecayThreshold float64
	// MinScrollsAfterDecay is how many passes remain once the cap is shrunk
	MinScrollsAfterDecay int

	// MinScrollsForDirectBottom and MinTotalForDirectBottom gate immediate
	// acceptance of a bottom signal; below either threshold a positive
	// signal must be confirmed by a second, unchanged observation.
	MinScrollsForDirectBottom int
	MinTotalForDirectBottom   int
}

// Steps supplies the caller's collect/advance behavior
type Steps struct {
	// Collect returns the count of newly discovered items this pass
	Collect func(ctx context.Context) (int, error)
	// Advance performs one unit of forward progress (e.g. a scroll)
	Advance func(ctx context.Context) error
	// Bottom optionally reports whether the surface is exhausted, together
	// with a surface-size metric used to confirm candidate signals
	Bottom func(ctx context.Context) (reached bool, surface int, err error)
}

// Run drives the loop until termination and reports what happened.
// Termination conditions are evaluated in order after each collect pass:
// empty, stagnation, max, bottom, timeout.
func Run(ctx context.Context, cfg Config, steps Steps, log logger.Logger) (models.ScrollStats, error) {
	if steps.Collect == nil || steps.Advance == nil {
		return models.ScrollStats{}, fmt.Errorf("scroll: collect and advance steps are required")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	start := time.Now()
	stats := models.ScrollStats{}

	total := 0
	zeroRun := 0
	effectiveMax := cfg.MaxIterations

	// Candidate bottom signal awaiting confirmation
	bottomCandidate := false
	candidateTotal := 0
	candidateSurface := 0

	finish := func(reason models.ScrollReason) (models.ScrollStats, error) {
		stats.TotalNewItems = total
		stats.Reason = reason
		stats.Duration = time.Since(start)
		log.DebugWithFields("collection loop finished", map[string]interface{}{
			"reason":     string(reason),
			"total":      total,
			"iterations": stats.Iterations,
			"duration":   stats.Duration,
		})
		return stats, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			stats.TotalNewItems = total
			stats.Reason = models.ScrollReasonTimeout
			stats.Duration = time.Since(start)
			return stats, err
		}
		if cfg.Timeout > 0 && time.Since(start) >= cfg.Timeout {
			return finish(models.ScrollReasonTimeout)
		}

		newItems, err := steps.Collect(ctx)
		if err != nil {
			stats.TotalNewItems = total
			stats.Duration = time.Since(start)
			return stats, fmt.Errorf("collect failed: %w", err)
		}

		stats.Iterations++
		total += newItems
		if newItems == 0 {
			zeroRun++
		} else {
			zeroRun = 0
		}

		// 1. empty: the surface never produced anything
		if total == 0 && zeroRun >= cfg.EmptyLimit {
			return finish(models.ScrollReasonEmpty)
		}

		// 2. stagnation: yield dried up after some progress
		if zeroRun >= cfg.StagnationLimit {
			return finish(models.ScrollReasonStagnation)
		}

		// Adaptive cap shrink: once the average yield decays, give the
		// surface a few more passes and no more. The cap never grows back.
		if cfg.Adaptive && stats.Iterations >= 3 {
			average := float64(total) / float64(stats.Iterations)
			if average < cfg.AdaptiveDecayThreshold {
				shrunk := stats.Iterations + cfg.MinScrollsAfterDecay
				if shrunk < effectiveMax {
					log.DebugWithFields("yield decayed, shrinking iteration cap", map[string]interface{}{
						"average":       average,
						"effective_max": shrunk,
					})
					effectiveMax = shrunk
				}
			}
		}

		// 3. max iterations (possibly adaptively shrunk)
		if stats.Iterations >= effectiveMax {
			return finish(models.ScrollReasonMax)
		}

		// 4. bottom, with double-confirmation below the direct thresholds
		if steps.Bottom != nil {
			reached, surface, berr := steps.Bottom(ctx)
			if berr != nil {
				// Surface probing is flaky on async-injecting platforms;
				// a failed probe is never terminal.
				log.WithError(berr).Debug("bottom probe failed")
			} else if reached {
				direct := stats.Iterations >= cfg.MinScrollsForDirectBottom &&
					total >= cfg.MinTotalForDirectBottom
				confirmed := bottomCandidate &&
					total == candidateTotal &&
					surface == candidateSurface
				if direct || confirmed {
					return finish(models.ScrollReasonBottom)
				}
				bottomCandidate = true
				candidateTotal = total
				candidateSurface = surface
			}
		}

		// 5. timeout
		if cfg.Timeout > 0 && time.Since(start) >= cfg.Timeout {
			return finish(models.ScrollReasonTimeout)
		}

		if err := steps.Advance(ctx); err != nil {
			stats.TotalNewItems = total
			stats.Duration = time.Since(start)
			return stats, fmt.Errorf("advance failed: %w", err)
		}

		if cfg.Pause > 0 {
			select {
			case <-time.After(cfg.Pause):
			case <-ctx.Done():
				stats.TotalNewItems = total
				stats.Reason = models.ScrollReasonTimeout
				stats.Duration = time.Since(start)
				return stats, ctx.Err()
			}
		}
	}
}
