package handlers

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Buckets are namespaced so a seller UID can never collide with a buyer address.
const (
	buyerKeyPrefix  = "ip:"
	sellerKeyPrefix = "seller:"
	anonymousBucket = "anonymous"
)

// buyerKey buckets anonymous storefront callers by remote address. IPv6 spellings of the same
// address share a bucket.
func buyerKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(strings.TrimSpace(host)); ip != nil {
		host = ip.String()
	}
	return buyerKeyPrefix + strings.TrimSpace(host)
}

// sellerKey buckets signed-in sellers by UID.
func sellerKey(uid string) string {
	return sellerKeyPrefix + strings.TrimSpace(uid)
}

// normalizeLimitKey folds blank subjects into the anonymous bucket of their namespace.
func normalizeLimitKey(key string) string {
	key = strings.TrimSpace(key)
	for _, prefix := range []string{buyerKeyPrefix, sellerKeyPrefix} {
		if rest, ok := strings.CutPrefix(key, prefix); ok && strings.TrimSpace(rest) == "" {
			return prefix + anonymousBucket
		}
	}
	if key == "" {
		return anonymousBucket
	}
	return key
}

type rateLimiter interface {
	Allow(key string) bool
}

// windowLimiter is a fixed window counter keyed by buyerKey or sellerKey. Expired windows are
// pruned lazily.
type windowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	store  map[string]rateEntry
}

type rateEntry struct {
	count int
	reset time.Time
}

// newWindowLimiter returns nil when limiting is disabled; a nil limiter allows everything.
func newWindowLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &windowLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		store:  make(map[string]rateEntry),
	}
}

func (l *windowLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = normalizeLimitKey(key)
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.store[key]
	if !ok || !now.Before(entry.reset) {
		l.pruneExpiredLocked(now)
		l.store[key] = rateEntry{count: 1, reset: now.Add(l.window)}
		return true
	}
	if entry.count >= l.limit {
		return false
	}
	entry.count++
	l.store[key] = entry
	return true
}

func (l *windowLimiter) pruneExpiredLocked(now time.Time) {
	for key, entry := range l.store {
		if !now.Before(entry.reset) {
			delete(l.store, key)
		}
	}
}

func allow(l rateLimiter, key string) bool {
	if l == nil {
		return true
	}
	return l.Allow(key)
}
