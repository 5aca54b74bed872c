package dedup

import (
	"sync"
	"time"
)

// Deduper remembers keys for a TTL. It holds at most max live keys; when
// full, expired keys are swept first and then the key closest to expiry.
type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	now  func() time.Time
	seen map[string]time.Time
}

func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Deduper{ttl: ttl, max: max, now: time.Now, seen: make(map[string]time.Time)}
}

// WithClock replaces the time source.
func (d *Deduper) WithClock(now func() time.Time) *Deduper {
	d.now = now
	return d
}

// First reports whether key was not seen within the TTL and marks it seen.
// The empty key is never suppressed.
func (d *Deduper) First(key string) bool {
	if key == "" {
		return true
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.seen[key]; ok && now.Before(exp) {
		return false
	}
	if len(d.seen) >= d.max {
		d.evict(now)
	}
	d.seen[key] = now.Add(d.ttl)
	return true
}

// Forget drops key so the next First for it succeeds.
func (d *Deduper) Forget(key string) {
	d.mu.Lock()
	delete(d.seen, key)
	d.mu.Unlock()
}

func (d *Deduper) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *Deduper) evict(now time.Time) {
	var oldest string
	var oldestExp time.Time
	for k, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, k)
			continue
		}
		if oldest == "" || exp.Before(oldestExp) {
			oldest, oldestExp = k, exp
		}
	}
	if len(d.seen) >= d.max && oldest != "" {
		delete(d.seen, oldest)
	}
}
