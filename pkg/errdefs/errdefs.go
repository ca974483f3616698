// Package errdefs holds the error classes shared by registries, providers and
// exporters. Callers match them with errors.Is; concrete failures wrap them.
package errdefs

import "errors"

var (
	// ErrInvalidArgument marks a missing or malformed required input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound marks an unregistered provider, a missing file or container.
	ErrNotFound = errors.New("not found")
	// ErrConnection marks a backing store that could not be reached.
	ErrConnection = errors.New("connection error")
	// ErrUnsupported marks an operation a provider or asset cannot serve.
	ErrUnsupported = errors.New("unsupported")
)

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
