package catalog

import (
	"errors"
	"fmt"
)

var ErrCatalogUnavailable = errors.New("catalog unavailable")

// UnavailableError is returned when the menu could not be fetched. StatusCode is zero
// when no response was received.
type UnavailableError struct {
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog unavailable: status %d", e.StatusCode)
	}
	return fmt.Sprintf("catalog unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrCatalogUnavailable }
