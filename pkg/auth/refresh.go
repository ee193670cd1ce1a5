package auth

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/supabase-go/pkg/observability"
)

// scheduleRefreshLocked arms the refresh timer for s. Caller holds c.mu.
func (c *Client) scheduleRefreshLocked(s *Session) {
	c.stopRefreshLocked()
	if !c.autoRefreshToken || c.closed || s == nil || s.RefreshToken == "" || s.ExpiresAt == 0 {
		return
	}
	delay := time.Until(s.ExpiryTime().Add(-c.refreshMargin))
	if delay < 0 {
		delay = 0
	}
	c.refreshTimer = time.AfterFunc(delay, c.refreshInBackground)
}

func (c *Client) stopRefreshLocked() {
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
}

func (c *Client) refreshInBackground() {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}

	_, err := c.refresh(context.Background(), "timer")
	if err != nil && !errors.Is(err, ErrSessionChanged) {
		c.metrics.Counter(observability.MetricAuthRefreshErrors, 1)
		c.logger.Warn("background token refresh failed", "error", err)
	}
}
