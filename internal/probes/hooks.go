package probes

import (
	"context"
	"fmt"
	"time"

	"github.com/bft-labs/nodecycle/pkg/lifecycle"
	"github.com/bft-labs/nodecycle/pkg/log"
)

// WaitForDependencies returns a startup hook that blocks until every
// dependency marked WaitOnStart accepts a connection. Failed probes are
// retried with exponential backoff between initial and maxDelay until ctx ends.
func WaitForDependencies(deps []*TCPDependency, priority int, initial, maxDelay time.Duration, logger log.Logger) lifecycle.Hook {
	logger = log.OrNoop(logger)
	return lifecycle.HookFunc("wait-for-dependencies", priority, func(ctx context.Context) error {
		for _, dep := range deps {
			if !dep.Dependency().WaitOnStart {
				continue
			}
			if err := waitFor(ctx, dep, lifecycle.NewBackoff(initial, maxDelay), logger); err != nil {
				return err
			}
		}
		return nil
	})
}

func waitFor(ctx context.Context, dep *TCPDependency, backoff *lifecycle.Backoff, logger log.Logger) error {
	for attempt := 1; ; attempt++ {
		err := dep.Probe(ctx)
		if err == nil {
			logger.Info("dependency reachable",
				log.String("dependency", dep.Name()),
				log.Int("attempt", attempt),
			)
			return nil
		}
		logger.Warn("dependency not reachable yet",
			log.String("dependency", dep.Name()),
			log.Int("attempt", attempt),
			log.Duration("retry_in", backoff.Current()),
			log.Err(err),
		)
		if werr := backoff.Wait(ctx); werr != nil {
			return fmt.Errorf("waiting for dependency %s: %w (last error: %v)", dep.Name(), werr, err)
		}
	}
}
