package domain

import (
	"errors"
	"strings"
	"time"
)

// PermissionState is the consent state of a (self, friend) pair as stored in
// the `friendships` table.
type PermissionState string

const (
	PermissionNone      PermissionState = "NONE"
	PermissionRequested PermissionState = "REQUESTED"
	PermissionGranted   PermissionState = "GRANTED"
	PermissionDenied    PermissionState = "DENIED"
)

var ErrInvalidPermissionState = errors.New("invalid permission state")

// ParsePermissionState normalizes (uppercases+trims) and validates a
// permission state string.
func ParsePermissionState(in string) (PermissionState, error) {
	state := PermissionState(strings.ToUpper(strings.TrimSpace(in)))
	if state.Valid() {
		return state, nil
	}
	return "", ErrInvalidPermissionState
}

// Valid reports whether the state is one of the allowed constants.
func (state PermissionState) Valid() bool {
	switch state {
	case PermissionNone, PermissionRequested, PermissionGranted, PermissionDenied:
		return true
	default:
		return false
	}
}

// Active reports whether this state permits transmitting to, and accepting
// from, the friend. Only GRANTED does.
func (state PermissionState) Active() bool {
	return state == PermissionGranted
}

// CanTransitionTo enforces the consent lifecycle:
// NONE -> REQUESTED -> {GRANTED | DENIED}, and any non-NONE state -> NONE.
func (state PermissionState) CanTransitionTo(next PermissionState) bool {
	switch next {
	case PermissionRequested:
		return state == PermissionNone
	case PermissionGranted, PermissionDenied:
		return state == PermissionRequested
	case PermissionNone:
		return state != PermissionNone
	default:
		return false
	}
}

// String returns the string representation of the PermissionState.
func (state PermissionState) String() string {
	return string(state)
}

// Friendship is one directional consent record between two identities.
type Friendship struct {
	UserID    string
	FriendID  string
	State     PermissionState
	UpdatedAt time.Time
}
