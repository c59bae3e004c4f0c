package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Query parameter bounds.
const (
	MinStepMS = 100
	MaxStepMS = 3_600_000
	MaxLimit  = 500
)

// ParseStep reads step_ms. A missing parameter yields def. Zero is accepted
// and produces empty traces; any other value must lie in
// [MinStepMS, MaxStepMS].
func ParseStep(q url.Values, def time.Duration) (time.Duration, error) {
	v := q.Get("step_ms")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > MaxStepMS || (n > 0 && n < MinStepMS) {
		return 0, fmt.Errorf("invalid step_ms parameter, must be 0 or %d-%d", MinStepMS, MaxStepMS)
	}
	return time.Duration(n) * time.Millisecond, nil
}

// ParseLimit reads limit. A missing parameter yields def.
func ParseLimit(q url.Values, def int) (int, error) {
	v := q.Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > MaxLimit {
		return 0, fmt.Errorf("invalid limit parameter, must be 1-%d", MaxLimit)
	}
	return n, nil
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": msg} with the given status.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}
