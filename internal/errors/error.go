package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// common errors
	ErrConnectionTimeout = errors.New("connection timeout")

	// mail provider errors
	ErrAuthFailed      = errors.New("mail provider login failed")
	ErrProviderFailure = errors.New("mail provider request failed")
	ErrAccountNotFound = errors.New("account not found")
	ErrNoCodeEmail     = errors.New("no verification code email found")

	// browser session errors
	ErrVerificationTimeout = errors.New("verification code not received in time")

	// refresh errors
	ErrConfigMismatch = errors.New("login email does not match configured parent account")

	// pool errors
	ErrPoolAuthFailed = errors.New("pool service login failed")
)

// IncompleteTokenError reports a token extraction that produced fewer than
// the four required session fields. Callers never see a partial token set.
type IncompleteTokenError struct {
	Missing []string
}

func (e *IncompleteTokenError) Error() string {
	return fmt.Sprintf("incomplete session tokens, missing: %s", strings.Join(e.Missing, ", "))
}

// IsIncompleteToken reports whether err has an IncompleteTokenError in its chain.
func IsIncompleteToken(err error) bool {
	var target *IncompleteTokenError
	return errors.As(err, &target)
}
