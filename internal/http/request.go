package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tresor/internal/core"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// decodeJSON parses the request body into dst, rejecting unknown fields
// and oversized payloads.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}

// monthParam reads the month query parameter (YYYY-MM), defaulting to
// the current month.
func monthParam(r *http.Request) (core.MonthKey, error) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		return core.MonthKeyOf(time.Now()), nil
	}
	return core.ParseMonthKey(v)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
