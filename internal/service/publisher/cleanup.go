package publisher

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/logger"
)

// cleanup deletes every artifact uploaded by state and returns cause, or a
// CleanupError wrapping it when some deletions failed. It runs even when
// ctx was canceled.
func (s *Service) cleanup(ctx context.Context, state *run, cause error) error {
	state.mu.Lock()
	uploaded := state.uploaded
	state.uploaded = nil
	state.mu.Unlock()

	if len(uploaded) == 0 {
		return cause
	}

	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultCleanupTimeout
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var (
		failures *multierror.Error
		orphaned []string
	)

	for _, obj := range uploaded {
		if err := s.deps.Store.Delete(cleanupCtx, obj); err != nil {
			failures = multierror.Append(failures, err)
			orphaned = append(orphaned, obj.Key)

			continue
		}

		logger.InfoKV(ctx, "Removed uploaded artifact", "key", obj.Key)
	}

	if failures == nil {
		logger.InfoKV(ctx, "Cleanup complete", "removed", len(uploaded))

		return cause
	}

	logger.ErrorKV(ctx, "Cleanup incomplete, artifacts left in storage", "orphaned", orphaned, "error", failures)

	return &apperr.CleanupError{
		Cause:    cause,
		Failures: failures.ErrorOrNil(),
		Orphaned: orphaned,
	}
}
