package timing

import "time"

// TickerLimiter paces a loop with a time.Ticker. Missed ticks are dropped
// rather than queued.
type TickerLimiter struct {
	ticker *time.Ticker
	period time.Duration
}

func NewTickerLimiter(period time.Duration) *TickerLimiter {
	return &TickerLimiter{
		ticker: time.NewTicker(period),
		period: period,
	}
}

func (t *TickerLimiter) Wait() {
	<-t.ticker.C
}

// C exposes the tick channel for use in a select.
func (t *TickerLimiter) C() <-chan time.Time {
	return t.ticker.C
}

func (t *TickerLimiter) Reset() {
	t.ticker.Reset(t.period)
}

func (t *TickerLimiter) Stop() {
	t.ticker.Stop()
}
