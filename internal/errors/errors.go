// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrNotFound signals a missing entity in the store. Callers branch on it
// with errors.Is.
var ErrNotFound = errors.New("not found")

// ErrInvalidRepoFormat is returned when a repository string is not in
// 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// FetchError wraps a failure from the external history provider, keyed to
// the repository and operation that produced it.
type FetchError struct {
	Owner string
	Name  string
	Op    string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s for %s/%s: %v", e.Op, e.Owner, e.Name, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
