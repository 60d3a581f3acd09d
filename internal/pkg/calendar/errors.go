package calendar

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthExpired means the account's credentials are expired or revoked and
	// cannot be refreshed. The user has to reconnect the account.
	ErrAuthExpired = errors.New("calendar credentials expired")
	// ErrProviderError covers network failures, timeouts and non-auth API errors.
	ErrProviderError = errors.New("calendar provider error")
	// ErrEventNotFound means a previously written remote event no longer exists.
	ErrEventNotFound = errors.New("calendar event not found")
)

// AccountError ties a failure to the account it happened on.
type AccountError struct {
	AccountID uint
	Kind      error
	Err       error
}

func (e *AccountError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("account %d: %v", e.AccountID, e.Kind)
	}
	return fmt.Sprintf("account %d: %v: %v", e.AccountID, e.Kind, e.Err)
}

func (e *AccountError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// classify wraps err as an AccountError of kind AuthExpired or ProviderError.
func classify(accountID uint, err error) error {
	var accErr *AccountError
	if errors.As(err, &accErr) {
		return err
	}
	kind := ErrProviderError
	if errors.Is(err, ErrAuthExpired) {
		kind = ErrAuthExpired
	}
	return &AccountError{AccountID: accountID, Kind: kind, Err: err}
}
