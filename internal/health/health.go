// Package health serves the liveness and readiness probes.
package health

import (
	"net/http"

	"github.com/jakifasty/orbiteye/internal/catalog"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readiness reports ready once a catalog dataset has been loaded.
type Readiness struct {
	store *catalog.Store
}

// NewReadiness creates a readiness probe backed by store.
func NewReadiness(store *catalog.Store) *Readiness {
	return &Readiness{store: store}
}

// Ready reports whether a catalog is loaded.
func (rd *Readiness) Ready() bool {
	return rd.store.Get() != nil
}

// Readyz returns 200 "ready\n" when a catalog is loaded, 503 otherwise.
func (rd *Readiness) Readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !rd.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("catalog not loaded\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}
