package domain

import "errors"

// Error kinds surfaced by the booking engine. Wrap with fmt.Errorf("%w: ...")
// and classify with errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("not authorized")
	ErrInvalidState = errors.New("invalid state")
)

// ErrDuplicate marks a write rejected because the recurring-rule instance
// already exists. It is also a conflict.
var ErrDuplicate = &duplicateError{}

type duplicateError struct{}

func (*duplicateError) Error() string { return "duplicate recurring booking" }

func (*duplicateError) Is(target error) bool {
	return target == ErrConflict
}
