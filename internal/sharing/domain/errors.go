package domain

import "errors"

var (
	// Authorization errors. Surfaced to the caller, never retried here.
	ErrUserNotAuthenticated = errors.New("no authenticated user")
	ErrPermissionDenied     = errors.New("location permission denied")
	ErrSharingDisabled      = errors.New("location sharing is disabled")

	// Validation error for outbound payloads. Wrapped with the offending codes.
	ErrInvalidLocation = errors.New("invalid location data")

	// Permission lifecycle errors.
	ErrRequestFailed          = errors.New("permission request failed")
	ErrPermissionUpdateFailed = errors.New("permission update failed")
	ErrInvalidTransition      = errors.New("invalid permission transition")

	// Read-path absence: the owner has no stored location at all.
	ErrNoLocation = errors.New("no location recorded")

	// Tracking lifecycle errors.
	ErrLocationDisabled = errors.New("location services disabled")
	ErrTimeout          = errors.New("timed out waiting for a location")
	ErrNotTracking      = errors.New("tracking is not active")
)
