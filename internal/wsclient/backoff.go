package wsclient

import (
	"math"
	"time"
)

// Backoff grows Base by Multiplier per attempt, capped at Max. There is no
// attempt limit.
type Backoff struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
}

var DefaultBackoff = Backoff{Base: time.Second, Multiplier: 2, Max: 30 * time.Second}

func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		b = DefaultBackoff
	}
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	d := float64(b.Base) * math.Pow(b.Multiplier, float64(attempt))
	if b.Max > 0 && (math.IsInf(d, 0) || d > float64(b.Max)) {
		return b.Max
	}
	return time.Duration(d)
}
