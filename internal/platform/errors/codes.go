// Package errors provides structured domain errors with HTTP status mapping.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unexpected internal failure.
	CodeUnknown Code = "UNKNOWN"

	// CodeValidation represents malformed or out-of-range input.
	CodeValidation Code = "VALIDATION"

	// CodeUnauthorized represents a missing or invalid credential.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeForbidden represents an authenticated principal lacking access.
	CodeForbidden Code = "FORBIDDEN"

	// CodeNotFound represents an absent or not-visible record.
	CodeNotFound Code = "NOT_FOUND"

	// CodeConflict represents a uniqueness-constrained record that already
	// exists, such as a duplicate registration email or repeated block.
	CodeConflict Code = "CONFLICT"

	// Auth errors
	CodeAuthEmailNotEdu       Code = "AUTH_EMAIL_NOT_EDU"
	CodeAuthEmailTaken        Code = "AUTH_EMAIL_TAKEN"
	CodeAuthInvalidCredential Code = "AUTH_INVALID_CREDENTIAL"
	CodeAuthEmailUnverified   Code = "AUTH_EMAIL_UNVERIFIED"
	CodeAuthInvalidCampus     Code = "AUTH_INVALID_CAMPUS"

	// Chat errors
	CodeChatSelfThread     Code = "CHAT_SELF_THREAD"
	CodeChatNotParticipant Code = "CHAT_NOT_PARTICIPANT"
	CodeChatBodyInvalid    Code = "CHAT_BODY_INVALID"
)

// HTTPStatus maps an error code to the status the REST surface reports.
//
// Conflicts map to 400 rather than 409 to preserve the API behavior
// clients already depend on for duplicate emails and repeated blocks.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation, CodeConflict, CodeAuthEmailNotEdu, CodeAuthEmailTaken,
		CodeAuthInvalidCampus, CodeChatSelfThread, CodeChatBodyInvalid:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeAuthInvalidCredential:
		return http.StatusUnauthorized
	case CodeForbidden, CodeAuthEmailUnverified, CodeChatNotParticipant:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
