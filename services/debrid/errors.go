package debrid

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the provider independent error classification.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotReady
	KindExpiredAPIKey
	KindNotPremium
	KindAccessDenied
	KindTwoFactorAuth
)

func (k Kind) String() string {
	switch k {
	case KindNotReady:
		return "not_ready"
	case KindExpiredAPIKey:
		return "expired_api_key"
	case KindNotPremium:
		return "not_premium"
	case KindAccessDenied:
		return "access_denied"
	case KindTwoFactorAuth:
		return "two_factor_auth"
	default:
		return "error"
	}
}

type Error struct {
	Kind     Kind
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%v: %v: %v", e.Provider, msg, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Provider, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(provider string, kind Kind, err error) *Error {
	return &Error{
		Kind:     kind,
		Provider: provider,
		Err:      err,
	}
}

func NotReady(provider string) *Error {
	return &Error{
		Kind:     KindNotReady,
		Provider: provider,
	}
}

// KindOf returns the Kind carried by err or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
