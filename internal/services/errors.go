package services

import "errors"

// Validation and authorization failures surfaced to handlers. Handlers
// map these to HTTP statuses; anything else is an internal error.
var (
	ErrMissingFields      = errors.New("please fill in all the required fields")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrBioTooLong         = errors.New("bio must not be more than 250 characters")
	ErrEmailExists        = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSelfFollow         = errors.New("you cannot follow yourself")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrNotPostAuthor      = errors.New("only the author can delete this post")
	ErrMailNotConfigured  = errors.New("mail is not configured")
)
