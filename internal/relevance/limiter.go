package relevance

import (
	"fmt"
	"sync"
	"time"
)

// limiter caps how often announcements reach the user: a sliding window
// with a total ceiling, plus per-(source,type) deduplication. The clock
// is injectable so tests control time.
type limiter struct {
	mu          sync.Mutex
	window      time.Duration
	dedupWindow time.Duration
	ceiling     int
	announced   []time.Time
	lastByKey   map[string]time.Time
	now         func() time.Time
}

func newLimiter(window, dedupWindow time.Duration, ceiling int) *limiter {
	if ceiling <= 0 {
		ceiling = 10
	}
	return &limiter{
		window:      window,
		dedupWindow: dedupWindow,
		ceiling:     ceiling,
		lastByKey:   make(map[string]time.Time),
		now:         time.Now,
	}
}

// allow decides whether one more announcement may go out and, if so,
// records it. Expired window entries are purged on every call.
func (l *limiter) allow(source, eventType string) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.purge(now)

	key := source + "/" + eventType
	if last, ok := l.lastByKey[key]; ok && now.Sub(last) < l.dedupWindow {
		return false, fmt.Sprintf("duplicate %s within %s", key, l.dedupWindow)
	}
	if len(l.announced) >= l.ceiling {
		return false, fmt.Sprintf("announcement ceiling %d reached", l.ceiling)
	}

	l.announced = append(l.announced, now)
	l.lastByKey[key] = now
	return true, ""
}

func (l *limiter) purge(now time.Time) {
	cutoff := now.Add(-l.window)
	kept := l.announced[:0]
	for _, ts := range l.announced {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.announced = kept

	for key, ts := range l.lastByKey {
		if !ts.After(now.Add(-l.dedupWindow)) {
			delete(l.lastByKey, key)
		}
	}
}
