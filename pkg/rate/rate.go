// Package rate throttles noisy events such as per-path drop logging.
package rate

import (
	"sync"
	"time"
)

// Limiter is a token bucket that refills rate tokens per interval and
// holds at most rate tokens.
type Limiter struct {
	rate       float64
	interval   time.Duration
	lastUpdate time.Time
	allowance  float64
	mutex      sync.Mutex
}

func NewLimiter(rate float64, interval time.Duration) *Limiter {
	if interval <= 0 {
		interval = time.Second
	}
	return &Limiter{
		rate:       rate,
		interval:   interval,
		lastUpdate: time.Now(),
		allowance:  rate,
	}
}

func (l *Limiter) Allow() bool {
	return l.AllowAt(time.Now())
}

// AllowAt is Allow with an explicit clock reading.
func (l *Limiter) AllowAt(now time.Time) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	elapsed := now.Sub(l.lastUpdate)
	if elapsed > 0 {
		l.lastUpdate = now
		l.allowance += float64(elapsed) / float64(l.interval) * l.rate
		if l.allowance > l.rate {
			l.allowance = l.rate
		}
	}

	if l.allowance < 1.0 {
		return false
	}

	l.allowance -= 1.0
	return true
}
