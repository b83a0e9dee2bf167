// Package errx is the error taxonomy shared by every firekit package.
//
// Callers branch on the Kind with errors.Is against the package sentinels,
// or on the stable Code string with HasCode when they need to tell an ID
// token failure apart from a session cookie failure.
package errx

import (
	"errors"
	"fmt"
)

// Kind groups errors that callers handle the same way.
type Kind string

const (
	KindInvalidCredential Kind = "invalid-credential"
	KindCredentialFetch   Kind = "credential-fetch"
	KindInvalidArgument   Kind = "invalid-argument"
	KindInvalidToken      Kind = "invalid-token"
	KindTokenExpired      Kind = "token-expired"
	KindTokenRevoked      Kind = "token-revoked"
	KindUserDisabled      Kind = "user-disabled"
	KindNotFound          Kind = "not-found"
	KindInternal          Kind = "internal"
)

// Stable error codes surfaced to callers.
const (
	CodeInvalidCredential    = "invalid-credential"
	CodeCredentialFetch      = "credential-fetch-failed"
	CodeArgument             = "argument-error"
	CodeInvalidIDToken       = "invalid-id-token"
	CodeIDTokenExpired       = "id-token-expired"
	CodeIDTokenRevoked       = "id-token-revoked"
	CodeInvalidSessionCookie = "invalid-session-cookie"
	CodeSessionCookieExpired = "session-cookie-expired"
	CodeSessionCookieRevoked = "session-cookie-revoked"
	CodeUserDisabled         = "user-disabled"
	CodeUserNotFound         = "user-not-found"
	CodeCertificateFetch     = "certificate-fetch-failed"
	CodeAppDeleted           = "app-deleted"
	CodeDuplicateApp         = "duplicate-app"
	CodeNoApp                = "no-app"
	CodeInternal             = "internal-error"
)

// Error is the concrete error type returned across the SDK.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind, so the package sentinels work with
// errors.Is regardless of the code or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidCredential = &Error{Kind: KindInvalidCredential, Code: CodeInvalidCredential}
	ErrCredentialFetch   = &Error{Kind: KindCredentialFetch, Code: CodeCredentialFetch}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument, Code: CodeArgument}
	ErrInvalidToken      = &Error{Kind: KindInvalidToken, Code: CodeInvalidIDToken}
	ErrTokenExpired      = &Error{Kind: KindTokenExpired, Code: CodeIDTokenExpired}
	ErrTokenRevoked      = &Error{Kind: KindTokenRevoked, Code: CodeIDTokenRevoked}
	ErrUserDisabled      = &Error{Kind: KindUserDisabled, Code: CodeUserDisabled}
	ErrNotFound          = &Error{Kind: KindNotFound, Code: CodeUserNotFound}
	ErrInternal          = &Error{Kind: KindInternal, Code: CodeInternal}
)

// New builds an Error with a formatted message.
func New(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around a cause.
func Wrap(err error, kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func InvalidCredential(format string, args ...any) *Error {
	return New(KindInvalidCredential, CodeInvalidCredential, format, args...)
}

func CredentialFetch(err error, format string, args ...any) *Error {
	return Wrap(err, KindCredentialFetch, CodeCredentialFetch, format, args...)
}

func InvalidArgument(format string, args ...any) *Error {
	return New(KindInvalidArgument, CodeArgument, format, args...)
}

func Internal(err error, format string, args ...any) *Error {
	return Wrap(err, KindInternal, CodeInternal, format, args...)
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code string) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsInvalidCredential(err error) bool { return errors.Is(err, ErrInvalidCredential) }
func IsCredentialFetch(err error) bool   { return errors.Is(err, ErrCredentialFetch) }
func IsInvalidArgument(err error) bool   { return errors.Is(err, ErrInvalidArgument) }
func IsInvalidToken(err error) bool      { return errors.Is(err, ErrInvalidToken) }
func IsTokenExpired(err error) bool      { return errors.Is(err, ErrTokenExpired) }
func IsTokenRevoked(err error) bool      { return errors.Is(err, ErrTokenRevoked) }
func IsUserDisabled(err error) bool      { return errors.Is(err, ErrUserDisabled) }
func IsNotFound(err error) bool          { return errors.Is(err, ErrNotFound) }
