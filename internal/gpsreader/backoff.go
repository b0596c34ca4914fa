package gpsreader

import "time"

// backoffBase / backoffCap implement the exponential backoff schedule:
// delay = min(base * 2^n, cap).
const (
	backoffBase = 5 * time.Second
	backoffCap  = 60 * time.Second
)

// backoffDelay returns the wait before the (n+1)th reconnect attempt,
// where n is the number of consecutive failures so far.
func backoffDelay(n int) time.Duration {
	d := backoffBase
	for i := 0; i < n; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	return d
}
