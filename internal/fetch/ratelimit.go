package fetch

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const slidingWindow = 10 * time.Second

// APILimiter throttles calls against one partner API. It combines a
// header-fed budget (remaining requests + reset seconds) with a local
// sliding window of N requests per 10 seconds. State is shared by every
// provider task using the API, so all mutation happens under one mutex.
type APILimiter struct {
	mu        sync.Mutex
	name      string
	remaining int // -1 until the first header update
	resetAt   time.Time
	calls     []time.Time // call timestamps inside the sliding window
	maxCalls  int
	log       *logrus.Entry
}

// NewAPILimiter creates a limiter allowing maxPer10s local calls per
// 10-second window. Construct one per API and inject it at every call site.
func NewAPILimiter(name string, maxPer10s int) *APILimiter {
	if maxPer10s <= 0 {
		maxPer10s = 5
	}
	return &APILimiter{
		name:      name,
		remaining: -1,
		maxCalls:  maxPer10s,
		log:       logrus.WithField("component", "fetch").WithField("api", name),
	}
}

// Acquire blocks until a request slot is available or ctx is cancelled.
func (l *APILimiter) Acquire(ctx context.Context) error {
	for {
		wait := l.reserve()
		if wait <= 0 {
			return nil
		}
		l.log.WithField("wait", wait.Round(time.Millisecond)).Debug("rate limit budget exhausted, sleeping")
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

// reserve either records a call and returns 0, or returns how long to wait.
func (l *APILimiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	// Server-declared budget wins over the local window.
	if l.remaining == 0 && now.Before(l.resetAt) {
		return l.resetAt.Sub(now)
	}

	// Trim the local window, then check it.
	cutoff := now.Add(-slidingWindow)
	kept := l.calls[:0]
	for _, t := range l.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.calls = kept
	if len(l.calls) >= l.maxCalls {
		return l.calls[0].Add(slidingWindow).Sub(now)
	}

	l.calls = append(l.calls, now)
	if l.remaining > 0 {
		l.remaining--
	}
	return 0
}

// Update feeds the limiter from response headers. remaining < 0 leaves the
// budget untouched.
func (l *APILimiter) Update(remaining, resetSeconds int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if remaining >= 0 {
		l.remaining = remaining
	}
	if resetSeconds > 0 {
		l.resetAt = time.Now().Add(time.Duration(resetSeconds) * time.Second)
	}
}

// UpdateFromHeaders reads the conventional X-RateLimit-* headers.
func (l *APILimiter) UpdateFromHeaders(h http.Header) {
	remaining := headerInt(h, "X-RateLimit-Remaining")
	reset := headerInt(h, "X-RateLimit-Reset")
	if remaining >= 0 || reset > 0 {
		l.Update(remaining, reset)
	}
}

func headerInt(h http.Header, name string) int {
	v := h.Get(name)
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

// sleepCtx is a cancellable sleep. No wait in this package may block past
// its context.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
