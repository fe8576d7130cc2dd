package signal

import "golang.org/x/time/rate"

// eventLimiter is a per-connection token bucket over inbound events.
type eventLimiter struct {
	lim *rate.Limiter
}

func newEventLimiter(perSecond float64, burst int) *eventLimiter {
	return &eventLimiter{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *eventLimiter) Allow() bool {
	return l.lim.Allow()
}
