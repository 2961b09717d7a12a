package auth

import (
	"fmt"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password accepted at sign-up.
const MinPasswordLength = 6

// ValidationError describes the first sign-up rule that failed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// SignupRequest is the submitted sign-up form.
type SignupRequest struct {
	Username        string
	Password        string
	ConfirmPassword string
}

// ValidateSignup checks the sign-up rules in order and returns the first
// failure. exists reports whether a username is already taken; it is only
// consulted for non-empty usernames.
func ValidateSignup(req SignupRequest, exists func(username string) (bool, error)) error {
	if req.Username == "" {
		return &ValidationError{Field: "username", Message: "Username cannot be empty."}
	}

	taken, err := exists(req.Username)
	if err != nil {
		return err
	}
	if taken {
		return &ValidationError{Field: "username", Message: "Username already exists."}
	}

	if req.Password != req.ConfirmPassword {
		return &ValidationError{Field: "confirm_password", Message: "Passwords do not match."}
	}

	return ValidatePassword(req.Password)
}

// ValidatePassword enforces the minimum password length, counted in
// characters.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("Password must be at least %d characters long.", MinPasswordLength),
		}
	}
	return nil
}
