package conn

import "time"

// Backoff computes reconnect delays: min(Base*Multiplier^(n-1), Max).
// A Multiplier of 1 or less gives a fixed delay of Base.
type Backoff struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
}

func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Max: 30 * time.Second, Multiplier: 2}
}

// Delay returns the wait before reconnect attempt n (1-based). It is
// non-decreasing in n and never exceeds Max when Max is positive.
func (b Backoff) Delay(n int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if n < 1 {
		n = 1
	}

	d := b.Base
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	if b.Multiplier <= 1 {
		return d
	}

	for i := 1; i < n; i++ {
		next := time.Duration(float64(d) * b.Multiplier)
		if b.Max > 0 && next >= b.Max {
			return b.Max
		}
		// overflow
		if next < d {
			if b.Max > 0 {
				return b.Max
			}
			return d
		}
		d = next
	}
	return d
}
