package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Service interface {
	// Resolve returns the cached coordinate or fetches and caches it.
	Resolve(ctx context.Context, address string) (Coordinate, error)
	// ResolveBatch resolves distinct addresses with one bulk store lookup and
	// one provider call per miss.
	ResolveBatch(ctx context.Context, addresses []string) map[string]Resolution
}

type Resolution struct {
	Coordinate Coordinate
	Err        error
}

var (
	ErrGeocodeUnavailable = errors.New("geocode_unavailable")
	ErrStoreConflict      = errors.New("store_conflict")
	// ErrNoCandidates is returned by providers when the address matched nothing.
	ErrNoCandidates = errors.New("no_candidates")
	ErrEmptyAddress = errors.New("empty_address")
)

// StatusError is a non-success HTTP response from a provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("geocoder responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("geocoder responded %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether a retry may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError
}
