package trace

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSuperseded is the cancellation cause of a request replaced by a newer
// one for the same key.
var ErrSuperseded = errors.New("superseded by a newer request")

type inflight struct {
	id     string
	cancel context.CancelCauseFunc
}

// Latest implements last-request-wins: beginning a request for a key
// cancels the request previously begun for that key, so results of a stale
// filter selection never overwrite fresher ones.
type Latest struct {
	mu       sync.Mutex
	requests map[string]inflight
}

// NewLatest creates an empty tracker.
func NewLatest() *Latest {
	return &Latest{requests: make(map[string]inflight)}
}

// Begin derives a request context for key and cancels the previous request
// for key with cause ErrSuperseded. The returned request ID identifies the
// new request. done must be called when the request finishes; it releases
// the context and forgets key unless a newer request has replaced it.
func (l *Latest) Begin(ctx context.Context, key string) (reqCtx context.Context, requestID string, done func()) {
	reqCtx, cancel := context.WithCancelCause(ctx)
	id := uuid.NewString()

	l.mu.Lock()
	if prev, ok := l.requests[key]; ok {
		prev.cancel(ErrSuperseded)
	}
	l.requests[key] = inflight{id: id, cancel: cancel}
	l.mu.Unlock()

	done = func() {
		l.mu.Lock()
		if cur, ok := l.requests[key]; ok && cur.id == id {
			delete(l.requests, key)
		}
		l.mu.Unlock()
		cancel(context.Canceled)
	}
	return reqCtx, id, done
}

// InFlight returns the number of keys with a running request.
func (l *Latest) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

// Superseded reports whether ctx was canceled because a newer request for
// the same key began.
func Superseded(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrSuperseded)
}
