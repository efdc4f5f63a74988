package handler

import (
	"math"
	"net/http"
	"strconv"
	"strings"
)

// floatParam parses an optional float query parameter. ok is false when the
// parameter is present but malformed or not finite.
func floatParam(r *http.Request, name string, fallback float64) (value float64, ok bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// intParam parses an optional integer query parameter, falling back on absence or error.
func intParam(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func queryParam(r *http.Request, name string) string {
	return strings.TrimSpace(r.URL.Query().Get(name))
}
