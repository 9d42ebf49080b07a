package calls

import (
	"errors"

	"callcenter/internal/apperr"
)

var (
	ErrCallNotFound           = apperr.NotFound("Call not found")
	ErrCustomerNotFound       = apperr.NotFound("Customer not found")
	ErrInvalidCallType        = apperr.InvalidInput("Invalid call type")
	ErrInvalidPhoneNumber     = apperr.InvalidInput("Invalid phone number format")
	ErrInvalidRecordingAction = apperr.InvalidInput("Invalid recording action")
	ErrInvalidHoldAction      = apperr.InvalidInput("Invalid hold action")
	ErrInvalidTransition      = apperr.InvalidInput("Call cannot change to the requested state")
	ErrEmptyNote              = apperr.InvalidInput("Note text is required")
	ErrNoTags                 = apperr.InvalidInput("At least one tag is required")

	// ErrStaleStatus is returned by Store.ChangeStatus when the call is no longer in
	// any of the expected statuses. Callers re-read and decide again.
	ErrStaleStatus = errors.New("calls: status changed concurrently")
)
