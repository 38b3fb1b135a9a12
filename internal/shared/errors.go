package shared

import "errors"

// Domain error kinds. Controllers translate storage failures into one of
// these before anything crosses the handler boundary.
var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure. The message never
	// distinguishes an unknown user from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPermissionDenied indicates the authorization check failed,
	// regardless of which sub-check (permission or ownership) did.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness constraint was violated.
	ErrConflict = errors.New("already exists")
	// ErrPrecondition indicates a business rule blocked the operation,
	// such as creating an event against an unsigned contract.
	ErrPrecondition = errors.New("precondition failed")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
