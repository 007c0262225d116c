package console

import (
	"errors"
	"fmt"

	"github.com/example/stockroom/internal/domain/product"
)

var (
	// ErrBackend wraps every failed gateway call.
	ErrBackend = errors.New("backend request failed")
	// ErrForbidden is returned when the access state does not permit an operation.
	ErrForbidden = errors.New("operation not permitted")

	// ErrSessionEnded stops a listener whose session was signed out or expired.
	ErrSessionEnded = errors.New("session ended")

	ErrNegativeStock   = fmt.Errorf("%w: stock cannot go below zero", product.ErrValidation)
	ErrInvalidCategory = fmt.Errorf("%w: invalid category", product.ErrValidation)
)

func backendErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrBackend, op, err)
}
