package orders

import "errors"

var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrInvalidItem        = errors.New("invalid item")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidCoupon      = errors.New("invalid coupon")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrTransactionAborted = errors.New("transaction aborted")
)

// AbortError hides a storage failure behind a generic message. The cause is
// kept for logs.
type AbortError struct{ Err error }

func (e *AbortError) Error() string { return ErrTransactionAborted.Error() }

func (e *AbortError) Unwrap() error { return e.Err }

func (e *AbortError) Is(target error) bool { return target == ErrTransactionAborted }

var businessErrs = []error{
	ErrValidation, ErrNotFound, ErrInvalidItem, ErrInsufficientStock,
	ErrInvalidCoupon, ErrInvalidTransition, ErrTransactionAborted,
}

// IsBusiness reports whether err belongs to the order error taxonomy.
func IsBusiness(err error) bool {
	for _, b := range businessErrs {
		if errors.Is(err, b) {
			return true
		}
	}
	return false
}

func abort(err error) error {
	if err == nil || IsBusiness(err) {
		return err
	}
	return &AbortError{Err: err}
}

// Cause returns the storage failure behind an AbortError, or err itself.
func Cause(err error) error {
	var ae *AbortError
	if errors.As(err, &ae) {
		return ae.Err
	}
	return err
}
