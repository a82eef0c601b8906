package auth

import (
	"fmt"

	"github.com/go-faster/errors"
)

const (
	CodeInvalidCredential = "auth/invalid-credential"
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeWeakPassword      = "auth/weak-password"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeUserNotFound      = "auth/user-not-found"
	CodePopupClosed       = "auth/popup-closed-by-user"
	CodeProviderFailure   = "auth/provider-error"
	CodeNotAllowed        = "auth/operation-not-allowed"
)

// MinPasswordLength is enforced both client-side and by LocalProvider.
const MinPasswordLength = 6

// AuthError is shown inline on the login/register form.
type AuthError struct {
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func newAuthError(code, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

// AsAuthError reports whether err carries an *AuthError.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// ValidationError is raised before anything is sent to a provider.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateRegistration checks the confirmation first, then the length.
func ValidateRegistration(password, confirm string) error {
	if password != confirm {
		return &ValidationError{Field: "password_confirm", Message: "Passwords do not match"}
	}
	if len(password) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)}
	}
	return nil
}
