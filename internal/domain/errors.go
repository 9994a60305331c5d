package domain

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories the search pipeline reacts to.
type Kind uint8

// Error kinds.
const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAvailability
	KindQuota
	KindRetryableTransport
	KindTerminalRemote
	KindPersistence
)

var kindNames = [...]string{
	KindInternal:           "internal",
	KindValidation:         "validation",
	KindNotFound:           "not_found",
	KindAvailability:       "availability",
	KindQuota:              "quota",
	KindRetryableTransport: "retryable_transport",
	KindTerminalRemote:     "terminal_remote",
	KindPersistence:        "persistence",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

var (
	// ErrInternal signals an unexpected failure.
	ErrInternal = errors.New("internal error")
	// ErrValidation signals a request rejected before any work was done.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable signals that the remote search path cannot be reached.
	ErrUnavailable = errors.New("remote search unavailable")
	// ErrInsufficientCredits signals an exhausted metered balance.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrRetryableTransport signals a transient remote failure (network, 5xx, 429).
	ErrRetryableTransport = errors.New("retryable transport error")
	// ErrTerminalRemote signals a non-retryable remote failure.
	ErrTerminalRemote = errors.New("remote search failed")
	// ErrPersistence signals a failed best-effort write.
	ErrPersistence = errors.New("persistence failure")

	// ErrEmbeddingProviderError signals an encoder failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrVectorDimMismatch signals a vector of unexpected length.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrRateLimited signals a provider rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals an exhausted encoder token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
)

var kindSentinels = [...]error{
	KindInternal:           ErrInternal,
	KindValidation:         ErrValidation,
	KindNotFound:           ErrNotFound,
	KindAvailability:       ErrUnavailable,
	KindQuota:              ErrInsufficientCredits,
	KindRetryableTransport: ErrRetryableTransport,
	KindTerminalRemote:     ErrTerminalRemote,
	KindPersistence:        ErrPersistence,
}

// Error carries a Kind alongside the operation that failed.
// errors.Is matches both the wrapped cause and the sentinel of its Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E builds an *Error. A nil err is replaced by the kind sentinel.
func E(kind Kind, op string, err error) *Error {
	if err == nil && int(kind) < len(kindSentinels) {
		err = kindSentinels[kind]
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match against the kind's sentinel.
func (e *Error) Is(target error) bool {
	return int(e.Kind) < len(kindSentinels) && kindSentinels[e.Kind] == target
}

// KindOf returns the Kind of the first *Error in err's chain, falling back
// to sentinel matching and finally KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	for k, s := range kindSentinels {
		if errors.Is(err, s) {
			return Kind(k)
		}
	}
	return KindInternal
}

// QuotaError reports the balance shortfall for an operation.
type QuotaError struct {
	UserID    string
	Operation string
	Required  int64
	Available int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %s requires %d units, %d available",
		ErrInsufficientCredits.Error(), e.Operation, e.Required, e.Available)
}

func (e *QuotaError) Unwrap() error { return ErrInsufficientCredits }
