package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jakifasty/orbiteye/internal/catalog"
)

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Errorf("Healthz = %d %q", w.Code, w.Body.String())
	}
}

func TestReadyzFollowsCatalog(t *testing.T) {
	store := catalog.NewStore()
	rd := NewReadiness(store)

	w := httptest.NewRecorder()
	rd.Readyz(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("before load: status = %d, want 503", w.Code)
	}

	store.Set(catalog.NewDataset("test", time.Now(), nil))

	w = httptest.NewRecorder()
	rd.Readyz(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ready\n" {
		t.Errorf("after load: Readyz = %d %q", w.Code, w.Body.String())
	}
}
