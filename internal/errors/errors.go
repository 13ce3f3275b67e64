package errors

import (
	"errors"
)

// UserError represents an error with both technical and user-friendly messages
type UserError struct {
	Err       error
	UserMsg   string
	Retryable bool
}

func (e *UserError) Error() string {
	return e.Err.Error()
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// Predefined errors
var (
	ErrUserExists = &UserError{
		Err:       errors.New("username already registered"),
		UserMsg:   "Username already exists.",
		Retryable: false,
	}

	ErrUserNotFound = &UserError{
		Err:       errors.New("user not found"),
		UserMsg:   "That user no longer exists.",
		Retryable: false,
	}

	ErrEmptyChapter = &UserError{
		Err:       errors.New("empty chapter name"),
		UserMsg:   "Usage: /start_batch <chapter>",
		Retryable: false,
	}

	ErrBatchInactive = &UserError{
		Err:       errors.New("batch mode is off"),
		UserMsg:   "Batch mode is off. Use /start_batch <chapter> before uploading.",
		Retryable: false,
	}

	ErrUnauthorized = &UserError{
		Err:       errors.New("unauthorized sender"),
		UserMsg:   "Sorry, only the admin can upload photos.",
		Retryable: false,
	}

	ErrFetchFailed = &UserError{
		Err:       errors.New("file download failed"),
		UserMsg:   "Could not download that photo from Telegram. Please resend it.",
		Retryable: true,
	}
)

// Wrap wraps a technical error with a user message
func Wrap(err error, userMsg string, retryable bool) *UserError {
	return &UserError{
		Err:       err,
		UserMsg:   userMsg,
		Retryable: retryable,
	}
}

// GetUserMessage extracts user-friendly message from error
func GetUserMessage(err error) string {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.UserMsg
	}
	// Default message for unexpected errors
	return "An unexpected error occurred. Please try again later."
}

// IsRetryable checks if an error can be retried
func IsRetryable(err error) bool {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Retryable
	}
	return false
}
