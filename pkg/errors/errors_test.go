package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeFetchFailed, "fetch %s: empty series", "NVDA")

	if err.Code != ErrCodeFetchFailed {
		t.Errorf("Code = %s, want %s", err.Code, ErrCodeFetchFailed)
	}
	if err.Message != "fetch NVDA: empty series" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Cause != nil {
		t.Error("Cause should be nil for New")
	}

	want := "FETCH_FAILED: fetch NVDA: empty series"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, ErrCodeNetwork, "fetch series for %s", "NVDA")

	if err.Cause != cause {
		t.Error("Cause not preserved")
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}

	want := "NETWORK_ERROR: fetch series for NVDA: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIs(t *testing.T) {
	err := New(ErrCodeGenerationFailed, "inference timed out")

	if !Is(err, ErrCodeGenerationFailed) {
		t.Error("Is should match the error's code")
	}
	if Is(err, ErrCodeFetchFailed) {
		t.Error("Is should not match a different code")
	}
	if Is(stderrors.New("plain"), ErrCodeGenerationFailed) {
		t.Error("Is should not match plain errors")
	}
	if Is(nil, ErrCodeGenerationFailed) {
		t.Error("Is should not match nil")
	}
}

func TestIsThroughWrapping(t *testing.T) {
	inner := New(ErrCodeDimensionMismatch, "640x480 vs 512x512")
	outer := fmt.Errorf("transition setup: %w", inner)

	if !Is(outer, ErrCodeDimensionMismatch) {
		t.Error("Is should unwrap through fmt.Errorf chains")
	}
	if GetCode(outer) != ErrCodeDimensionMismatch {
		t.Errorf("GetCode = %s, want %s", GetCode(outer), ErrCodeDimensionMismatch)
	}
}

func TestGetCode(t *testing.T) {
	if GetCode(New(ErrCodeTimeout, "deadline exceeded")) != ErrCodeTimeout {
		t.Error("GetCode should return the error's code")
	}
	if GetCode(stderrors.New("plain")) != "" {
		t.Error("GetCode should return empty for plain errors")
	}
}

func TestUserMessage(t *testing.T) {
	err := New(ErrCodeFetchFailed, "data source unavailable")
	if got := UserMessage(err); got != "data source unavailable" {
		t.Errorf("UserMessage = %q", got)
	}

	plain := stderrors.New("something broke")
	if got := UserMessage(plain); got != "something broke" {
		t.Errorf("UserMessage for plain error = %q", got)
	}
}

func TestIsRecoverable(t *testing.T) {
	recoverable := []Code{
		ErrCodeFetchFailed,
		ErrCodeGenerationFailed,
		ErrCodeDimensionMismatch,
		ErrCodeEstimationFailed,
		ErrCodeNetwork,
		ErrCodeTimeout,
	}
	for _, code := range recoverable {
		if !IsRecoverable(New(code, "x")) {
			t.Errorf("%s should be recoverable", code)
		}
	}

	fatal := []Code{ErrCodeInvalidConfig, ErrCodeInternal}
	for _, code := range fatal {
		if IsRecoverable(New(code, "x")) {
			t.Errorf("%s should not be recoverable", code)
		}
	}
}
