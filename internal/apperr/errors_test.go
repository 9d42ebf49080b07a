package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_WrappedSentinel(t *testing.T) {
	errCallNotFound := NotFound("Call not found")
	wrapped := fmt.Errorf("transfer: %w", errCallNotFound)

	if KindOf(wrapped) != KindNotFound {
		t.Fatalf("expected not_found, got %s", KindOf(wrapped))
	}
	if !errors.Is(wrapped, errCallNotFound) {
		t.Fatalf("expected errors.Is to match the sentinel")
	}
}

func TestKindOf_PlainErrorIsInternal(t *testing.T) {
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatalf("expected internal")
	}
}

func TestProvider_CarriesCode(t *testing.T) {
	cause := errors.New("21211 invalid to")
	err := fmt.Errorf("place call: %w", Provider("Error communicating with Twilio", 21211, cause))

	e, ok := As(err)
	if !ok {
		t.Fatalf("expected *Error")
	}
	if e.Kind != KindProvider || e.Code != 21211 {
		t.Fatalf("unexpected error: %+v", e)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause preserved")
	}
}

func TestDuplicate_Message(t *testing.T) {
	e := Duplicate("extension")
	if e.Kind != KindInvalidInput {
		t.Fatalf("expected invalid_input")
	}
	if e.Message != "Duplicate value for extension" {
		t.Fatalf("unexpected message %q", e.Message)
	}
}
