package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery reports a query the registry cannot satisfy: unknown or
	// private fields, malformed arguments, disallowed sort keys. Conflicting
	// field options are reported with it as well.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidType reports a field type declaration outside the closed set
	// of recognized shapes.
	ErrInvalidType = errors.New("invalid type")
	// ErrConfiguration reports references to undefined named preloaders or
	// attributes at registration time.
	ErrConfiguration = errors.New("configuration error")
)

func invalidQuery(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}

func invalidType(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidType, fmt.Sprintf(format, args...))
}

func configurationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// InvalidQuery builds an ErrInvalidQuery error for callers outside the
// package, such as resolvers validating their own arguments.
func InvalidQuery(format string, args ...any) error {
	return invalidQuery(format, args...)
}
