package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapMsgKeepsCode(t *testing.T) {
	err := ErrMissingField.WrapMsg("room_id required", "type", "join_team")

	if !ErrMissingField.Is(err) {
		t.Fatalf("expected %v to match ErrMissingField", err)
	}
	if ErrUnknownFrame.Is(err) {
		t.Fatal("unexpected match against ErrUnknownFrame")
	}
	if !strings.Contains(err.Error(), "type=join_team") {
		t.Fatalf("error text = %q, want detail kv", err.Error())
	}
	if ErrMissingField.Detail != "" {
		t.Fatal("WrapMsg must not mutate the shared code error")
	}
}

func TestIsSurvivesFmtWrapping(t *testing.T) {
	err := fmt.Errorf("verify: %w", ErrTokenInvalid.Wrap())
	if !ErrTokenInvalid.Is(err) {
		t.Fatalf("expected wrapped error to match, got %v", err)
	}
	if !IsAuthFailure(err) {
		t.Fatal("expected auth failure range")
	}
	if IsProtocol(err) {
		t.Fatal("auth error must not be classified as protocol")
	}
}

func TestAsCodeOnPlainError(t *testing.T) {
	if _, ok := AsCode(errors.New("plain")); ok {
		t.Fatal("plain error must not yield a code")
	}
	if _, ok := AsCode(nil); ok {
		t.Fatal("nil must not yield a code")
	}
}

func TestErrPanic(t *testing.T) {
	if ErrPanic(nil) != nil {
		t.Fatal("nil recover value must produce nil error")
	}
	err := ErrPanic("boom")
	c, ok := AsCode(err)
	if !ok || c.Code != ServerInternalError || c.Detail != "boom" {
		t.Fatalf("unexpected panic error %+v", c)
	}
}
