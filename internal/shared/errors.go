package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("record not found")
	// ErrValidation indicates the caller supplied input outside the accepted shape or range.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock indicates a requested quantity exceeds the available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOverpayment indicates a payment would push paid_amount past the installment amount.
	ErrOverpayment = errors.New("payment exceeds installment balance")
	// ErrPersistence indicates a storage failure; the whole unit of work was rolled back
	// and may be retried.
	ErrPersistence = errors.New("storage failure")
)

// AsPersistence classifies an error coming back from a unit of work. Domain
// errors pass through untouched; anything else is a storage failure.
func AsPersistence(err error) error {
	if err == nil {
		return nil
	}
	for _, domain := range []error{ErrNotFound, ErrValidation, ErrInsufficientStock, ErrOverpayment} {
		if errors.Is(err, domain) {
			return err
		}
	}
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
