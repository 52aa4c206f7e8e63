package app

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// namedCloser holds a resource with its name for cleanup tracking
type namedCloser struct {
	name   string
	closer interface{ Close() error }
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

// Close releases every external resource concurrently and returns the
// aggregated error. It is safe to call on a partially built App.
func (a *App) Close() error {
	if len(a.closers) == 0 {
		return nil
	}

	start := time.Now()
	a.logger.Info().Msgf("Closing %d resources", len(a.closers))

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for _, c := range a.closers {
		g.Go(func() error {
			if err := a.shutdownResource(c); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	a.closers = nil

	a.logger.Info().Dur("duration", time.Since(start)).Msg("Resource closing completed")
	return errors.Join(errs...)
}

// shutdownResource closes one resource and logs the outcome
func (a *App) shutdownResource(c namedCloser) error {
	if err := c.closer.Close(); err != nil {
		a.logger.Error().Err(err).Msgf("Failed to close %s", c.name)
		return fmt.Errorf("%s: %w", c.name, err)
	}

	name := strings.TrimSpace(c.name)
	if name == "" {
		a.logger.Info().Msg("Resource closed successfully")
		return nil
	}
	a.logger.Info().Msgf("%s closed successfully", strings.ToUpper(name[:1])+name[1:])
	return nil
}
