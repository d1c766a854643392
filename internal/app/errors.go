package app

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned before any network call when there is
// no signed-in user.
var ErrNotAuthenticated = errors.New("not signed in")

// FailureNotice is the user-facing message shown when at least one
// account failed to refresh.
const FailureNotice = "Some accounts could not be refreshed. Pull to retry."

// SignInNotice is shown when a refresh is attempted without a session.
const SignInNotice = "Sign in to refresh your mail."

// AccountError is a provider failure scoped to one account. It never
// affects other accounts in the same refresh.
type AccountError struct {
	Account string
	Err     error
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("account %s: %v", e.Account, e.Err)
}

func (e *AccountError) Unwrap() error {
	return e.Err
}
