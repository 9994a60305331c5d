package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("search: %w", E(KindRetryableTransport, "remote.multimodal", cause))

	if !errors.Is(err, ErrRetryableTransport) {
		t.Error("expected errors.Is to match ErrRetryableTransport")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to match wrapped cause")
	}
	if errors.Is(err, ErrTerminalRemote) {
		t.Error("did not expect ErrTerminalRemote match")
	}
}

func TestE_NilCauseUsesSentinel(t *testing.T) {
	err := E(KindValidation, "search.request", nil)
	if err.Error() != "search.request: validation failed" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"typed", E(KindQuota, "op", nil), KindQuota},
		{"wrapped typed", fmt.Errorf("x: %w", E(KindPersistence, "op", errors.New("boom"))), KindPersistence},
		{"quota error", &QuotaError{Required: 2}, KindQuota},
		{"bare sentinel", fmt.Errorf("x: %w", ErrNotFound), KindNotFound},
		{"unknown", errors.New("boom"), KindInternal},
		{"nil", nil, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuotaError_Message(t *testing.T) {
	err := &QuotaError{UserID: "u1", Operation: "search.multimodal", Required: 2, Available: 1}
	want := "insufficient credits: search.multimodal requires 2 units, 1 available"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Error("expected QuotaError to unwrap to ErrInsufficientCredits")
	}
}
