package health

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateName is returned when two contributors of the same kind
	// share a name.
	ErrDuplicateName = errors.New("health: duplicate contributor name")

	// ErrContributorPanic marks a contributor that panicked during a check.
	ErrContributorPanic = errors.New("health: contributor panicked")
)

func recovered(r interface{}) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrContributorPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrContributorPanic, r)
}
