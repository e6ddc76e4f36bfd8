package serviceerr

import (
	"errors"
	"testing"
)

func TestNewComposesCodeAndWrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := New("cards.fetch", "request", cause)

	var coded *Error
	if !errors.As(err, &coded) || coded.Code() != "cards.fetch.request" {
		t.Fatalf("unexpected error %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be wrapped")
	}
	if err.Error() != "cards.fetch.request: boom" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestNewWithoutCauseUsesCodeAsMessage(t *testing.T) {
	err := New("tags.create", "invalid_name", nil)
	if err.Error() != "tags.create.invalid_name" || errors.Unwrap(err) != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
