// Package storage defines the persistence contract for per-user datasets.
// Backends live in the sqlite, file and objectstore subpackages.
package storage

import (
	"context"
	"errors"
	"fmt"

	"protodash/internal/metrics"
)

// ErrUnavailable marks failures of the backend itself, as opposed to a
// dataset that simply has not been stored yet.
var ErrUnavailable = errors.New("storage unavailable")

// Store loads and saves whole datasets keyed by user identity. Load returns
// an empty dataset, not an error, when nothing was stored for the identity.
// Save overwrites; the last writer wins.
type Store interface {
	Load(ctx context.Context, user string) (metrics.Dataset, error)
	Save(ctx context.Context, user string, ds metrics.Dataset) error
}

type BackendError struct {
	Backend string
	Op      string
	User    string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s for %q: %v", e.Backend, e.Op, e.User, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool { return target == ErrUnavailable }

func Unavailable(backend, op, user string, err error) error {
	return &BackendError{Backend: backend, Op: op, User: user, Err: err}
}
