package domain

// TrackingState is the per-device acquisition state.
type TrackingState string

const (
	TrackingStopped    TrackingState = "STOPPED"
	TrackingForeground TrackingState = "FOREGROUND"
	TrackingBackground TrackingState = "BACKGROUND"
)

// String returns the string representation of the TrackingState.
func (state TrackingState) String() string {
	return string(state)
}

// Authorization is the platform location grant held by the process.
// Background tracking needs AuthorizationAlways; foreground tracking is
// satisfied by AuthorizationWhileInUse.
type Authorization int

const (
	AuthorizationNone Authorization = iota
	AuthorizationWhileInUse
	AuthorizationAlways
)

// AllowsBackground reports whether this grant covers background acquisition.
func (a Authorization) AllowsBackground() bool {
	return a == AuthorizationAlways
}

// AllowsForeground reports whether this grant covers any acquisition at all.
func (a Authorization) AllowsForeground() bool {
	return a == AuthorizationWhileInUse || a == AuthorizationAlways
}
