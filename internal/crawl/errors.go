package crawl

import (
	"errors"
	"fmt"
)

// Kind classifies a failure from an outbound call.
type Kind string

// Failure kinds. RateLimited, Network and Generic are retryable by
// default; AuthFailed and Parse are not, since retrying cannot fix them.
const (
	KindGeneric     Kind = "generic"
	KindRateLimited Kind = "rate_limited"
	KindAuthFailed  Kind = "auth_failed"
	KindNetwork     Kind = "network"
	KindParse       Kind = "parse"
)

// Error is the single failure type carried across the crawl core. Callers
// branch on Kind rather than on concrete error types.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a classified error.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapErr classifies an underlying error without losing it.
func WrapErr(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// FromStatus maps an HTTP status code to a classified error:
// 429 rate-limited, 401/403 auth, 5xx network, everything else generic.
func FromStatus(status int, message string) *Error {
	kind := KindGeneric
	switch {
	case status == 429:
		kind = KindRateLimited
	case status == 401 || status == 403:
		kind = KindAuthFailed
	case status >= 500 && status < 600:
		kind = KindNetwork
	}
	return &Error{Kind: kind, StatusCode: status, Message: message}
}

// KindOf extracts the failure kind from err. Unclassified errors are
// treated as generic.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindGeneric
}
