package harvest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultAffordanceTimeout bounds how long one pass waits for a "load more" control.
const DefaultAffordanceTimeout = 300 * time.Millisecond

// ScrollDriver scrolls the list, waits for it to settle, and activates a "load more"
// control when one shows up.
type ScrollDriver struct {
	AffordanceTimeout time.Duration
	logger            *zap.Logger
}

// NewScrollDriver creates a driver with the given probe timeout. A non-positive timeout
// selects DefaultAffordanceTimeout.
func NewScrollDriver(affordanceTimeout time.Duration, logger *zap.Logger) *ScrollDriver {
	if affordanceTimeout <= 0 {
		affordanceTimeout = DefaultAffordanceTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScrollDriver{AffordanceTimeout: affordanceTimeout, logger: logger}
}

// Advance issues one scroll and settles. It reports whether a "load more" control was
// activated. Only connection loss and context cancellation are returned as errors.
func (d *ScrollDriver) Advance(ctx context.Context, list ListControl, wheelDistance int, settle time.Duration) (bool, error) {
	if err := list.Scroll(ctx, wheelDistance); err != nil {
		if fatal(ctx, err) {
			return false, err
		}
		d.logger.Warn("scroll failed, continuing", zap.Error(err))
	}
	if err := pause(ctx, settle); err != nil {
		return false, err
	}

	more, err := list.ProbeLoadMore(ctx, d.AffordanceTimeout)
	switch {
	case err == nil && more != nil:
	case err == nil, errors.Is(err, ErrAffordanceNotFound):
		return false, nil
	case fatal(ctx, err):
		return false, err
	default:
		d.logger.Debug("load-more probe failed", zap.Error(err))
		return false, nil
	}

	if err := more.Click(ctx); err != nil {
		if fatal(ctx, err) {
			return false, err
		}
		d.logger.Debug("load-more activation failed", zap.Error(err))
		return false, nil
	}
	if err := pause(ctx, settle); err != nil {
		return true, err
	}
	return true, nil
}

// fatal reports whether err must abort the harvest.
func fatal(ctx context.Context, err error) bool {
	if errors.Is(err, ErrConnectionLost) {
		return true
	}
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// pause blocks for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
