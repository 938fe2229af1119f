package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sony/gobreaker"
)

// Kind classifies a completion failure. The classification is advisory
// (logging and metrics only) and is never exposed to API callers.
type Kind string

const (
	KindUnauthorized  Kind = "unauthorized"
	KindUnreachable   Kind = "unreachable"
	KindRateLimited   Kind = "rate_limited"
	KindEmptyResponse Kind = "empty_response"
	KindUnknown       Kind = "unknown"
)

// Error is a classified completion failure.
type Error struct {
	Kind   Kind
	Status int
	err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("completion failed (%s, status %d): %v", e.Kind, e.Status, e.err)
	}
	return fmt.Sprintf("completion failed (%s): %v", e.Kind, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// KindOf extracts the failure kind from an error chain, defaulting to unknown.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

var statusKinds = map[int]Kind{
	401: KindUnauthorized,
	403: KindUnauthorized,
	408: KindUnreachable,
	429: KindRateLimited,
	502: KindUnreachable,
	503: KindUnreachable,
	504: KindUnreachable,
}

// messageKinds is the substring-to-category lookup used when the status code
// alone doesn't settle it. Checked in order; first match wins.
var messageKinds = []struct {
	substr string
	kind   Kind
}{
	{"rate limit", KindRateLimited},
	{"quota", KindRateLimited},
	{"too many requests", KindRateLimited},
	{"unauthorized", KindUnauthorized},
	{"invalid api key", KindUnauthorized},
	{"forbidden", KindUnauthorized},
	{"timeout", KindUnreachable},
	{"deadline exceeded", KindUnreachable},
	{"connection refused", KindUnreachable},
	{"no such host", KindUnreachable},
	{"connection reset", KindUnreachable},
}

// classify maps an upstream failure to a Kind. Status code wins over the
// message text; transport errors are inspected for network failure types.
func classify(status int, err error) Kind {
	if k, ok := statusKinds[status]; ok {
		return k
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return KindUnreachable
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return KindUnreachable
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return KindUnreachable
		}

		msg := strings.ToLower(err.Error())
		for _, m := range messageKinds {
			if strings.Contains(msg, m.substr) {
				return m.kind
			}
		}
	}

	return KindUnknown
}
