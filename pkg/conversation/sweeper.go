package conversation

import (
	"context"
	"time"
)

// ResetIdle returns users that have been inside a sub-flow longer than idleTimeout to the menu
// and clears their staging. Every session idle that long is then dropped from the table; the
// user's next event starts a fresh session in the menu. Sessions busy with an event are
// skipped until the next sweep. The result counts the sub-flow resets.
func (controller *Controller) ResetIdle(ctx context.Context, idleTimeout time.Duration) int {
	cutoff := controller.nowFn().Add(-idleTimeout)
	resetCount := 0
	for _, entry := range controller.sessions.entries() {
		if !entry.session.tryAcquire() {
			continue
		}
		if !entry.session.lastActivity.Before(cutoff) || entry.session.evicted {
			entry.session.release()
			continue
		}
		if entry.session.state != StateMenu {
			from := entry.session.state
			clearErr := controller.staging.Clear(ctx, entry.userID)
			entry.session.state = StateMenu
			resetCount++
			controller.logTransition(ctx, TransitionLog{
				Operation: operationIdleReset,
				UserID:    entry.userID,
				From:      from,
				To:        StateMenu,
				Error:     clearErr,
			})
		}
		controller.sessions.evict(entry.userID, entry.session)
		entry.session.release()
	}
	return resetCount
}

// RunIdleSweeper calls ResetIdle every interval until ctx is done.
func (controller *Controller) RunIdleSweeper(ctx context.Context, interval time.Duration, idleTimeout time.Duration) {
	if interval <= 0 || idleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			controller.ResetIdle(ctx, idleTimeout)
		}
	}
}
