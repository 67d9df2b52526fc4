package github

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindQuotaExceeded
	KindForbidden
	KindNotFound
	KindUnexpectedStatus
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindQuotaExceeded:
		return "quota exceeded"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindUnexpectedStatus:
		return "unexpected status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is returned by every Client operation. Two errors match under
// errors.Is when their kinds are equal, so the sentinels below can be used
// to classify failures.
type Error struct {
	Kind    ErrorKind
	Message string
	URL     string
	Status  int
	Err     error
}

var (
	ErrTransient     = &Error{Kind: KindTransient}
	ErrQuotaExceeded = &Error{Kind: KindQuotaExceeded}
	ErrForbidden     = &Error{Kind: KindForbidden}
	ErrNotFound      = &Error{Kind: KindNotFound}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsNotFound reports whether err is a 404 from GitHub.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsQuotaExceeded reports whether err means the API quota ran out.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
