package ratelimit

import (
	"sync"
	"time"
)

// Limiter - rate limiter на пользователя бота (sliding window).
// Каждая команда расходует вес: поиск 1, запуск research дороже.
type Limiter struct {
	mu       sync.Mutex
	requests map[int64][]stamp
	limit    int
	window   time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type stamp struct {
	at     time.Time
	weight int
}

type Config struct {
	RequestsPerMinute int
	Window            time.Duration
}

func New(cfg Config) *Limiter {
	limit := cfg.RequestsPerMinute
	if limit <= 0 {
		limit = 10
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}

	l := &Limiter{
		requests: make(map[int64][]stamp),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *Limiter) Allow(userID int64) bool {
	return l.AllowN(userID, 1)
}

// AllowN spends weight units of the user's budget if they are available.
func (l *Limiter) AllowN(userID int64, weight int) bool {
	if weight <= 0 {
		weight = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	fresh, used := l.freshLocked(userID, now)

	if used+weight > l.limit {
		l.requests[userID] = fresh
		return false
	}

	l.requests[userID] = append(fresh, stamp{at: now, weight: weight})
	return true
}

func (l *Limiter) RemainingRequests(userID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, used := l.freshLocked(userID, l.now())
	if rem := l.limit - used; rem > 0 {
		return rem
	}
	return 0
}

// ResetTime - когда освободится самый старый слот (приблизительно)
func (l *Limiter) ResetTime(userID int64) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	fresh, _ := l.freshLocked(userID, now)
	if len(fresh) == 0 {
		return now
	}
	// stamps append-only, первый самый старый
	return fresh[0].at.Add(l.window)
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) freshLocked(userID int64, now time.Time) ([]stamp, int) {
	cutoff := now.Add(-l.window)
	old := l.requests[userID]
	fresh := old[:0]
	used := 0
	for _, s := range old {
		if s.at.After(cutoff) {
			fresh = append(fresh, s)
			used += s.weight
		}
	}
	return fresh, used
}

func (l *Limiter) cleanup() {
	tick := time.NewTicker(5 * time.Minute)
	defer tick.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-tick.C:
			l.mu.Lock()
			now := l.now()
			for uid := range l.requests {
				fresh, _ := l.freshLocked(uid, now)
				if len(fresh) == 0 {
					delete(l.requests, uid)
				} else {
					l.requests[uid] = fresh
				}
			}
			l.mu.Unlock()
		}
	}
}
