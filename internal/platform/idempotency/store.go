package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"
)

// DefaultTTL is how long completed responses stay replayable.
const DefaultTTL = 24 * time.Hour

// State is the outcome of reserving a key.
type State int

const (
	// StateNew means the caller owns the key and must run the handler.
	StateNew State = iota
	// StateCompleted means a stored response exists and must be replayed.
	StateCompleted
	// StatePending means another request holds the key right now.
	StatePending
)

// Record is a reserved or completed key.
type Record struct {
	Key         string
	Fingerprint string
	Completed   bool
	Status      int
	Headers     map[string][]string
	Body        []byte
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func (r Record) expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

func (r Record) state() State {
	if r.Completed {
		return StateCompleted
	}
	return StatePending
}

// Response is the HTTP response stored for replays.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists reservations and responses.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (State, Record, error)
	Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch is returned when a key is reused for a different request.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for a different request")

func documentID(key string) string {
	return sha256Hex([]byte(key))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// replayableHeaders drops hop-by-hop headers that must not be replayed verbatim.
func replayableHeaders(header http.Header) map[string][]string {
	out := make(map[string][]string, len(header))
	for name, values := range header {
		switch http.CanonicalHeaderKey(name) {
		case "Content-Length", "Date", "Connection", "Keep-Alive", "Transfer-Encoding", "Upgrade", "Set-Cookie":
			continue
		}
		out[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func newRecord(key, fingerprint string, now time.Time, ttl time.Duration) Record {
	return Record{Key: key, Fingerprint: fingerprint, CreatedAt: now, ExpiresAt: now.Add(ttl)}
}

func completeRecord(record Record, resp Response, now time.Time, ttl time.Duration) Record {
	record.Completed = true
	record.Status = resp.Status
	record.Headers = replayableHeaders(resp.Headers)
	record.Body = append([]byte(nil), resp.Body...)
	record.ExpiresAt = now.Add(ttl)
	return record
}
