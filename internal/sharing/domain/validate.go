package domain

import "time"

// ValidationCode identifies one failed validation rule. Rules are evaluated
// independently so a single reading can fail several at once.
type ValidationCode string

const (
	CodeInvalidLatitude  ValidationCode = "invalid_latitude"
	CodeInvalidLongitude ValidationCode = "invalid_longitude"
	CodeInvalidAccuracy  ValidationCode = "invalid_accuracy"
	CodeInvalidTimestamp ValidationCode = "invalid_timestamp"
	CodeInvalidAltitude  ValidationCode = "invalid_altitude"
	CodeNullIsland       ValidationCode = "null_island"
)

// String returns the string representation of the ValidationCode.
func (code ValidationCode) String() string {
	return string(code)
}

// ValidationResult is the outcome of validating one reading.
type ValidationResult struct {
	IsValid bool
	Errors  []ValidationCode
}

// InvalidLocation pairs a rejected reading with the rules it failed.
type InvalidLocation struct {
	Location Location
	Errors   []ValidationCode
}

// BatchValidationResult partitions a slice of readings and carries the
// aggregate counts. ValidationRate is 1.0 on empty input.
type BatchValidationResult struct {
	ValidCount     int
	InvalidCount   int
	ValidationRate float64
	Valid          []Location
	Invalid        []InvalidLocation
}

// ValidatorConfig holds the tunable validation thresholds. The staleness
// window and clock-skew tolerance differ between client platforms in the
// wild, so they are configuration rather than constants.
type ValidatorConfig struct {
	MaxAccuracyMeters float64
	MaxReadingAge     time.Duration
	MaxClockSkew      time.Duration
	MinAltitudeMeters float64
	MaxAltitudeMeters float64
}

// DefaultValidatorConfig returns the thresholds used when the config file
// does not override them.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxAccuracyMeters: 1000,
		MaxReadingAge:     time.Hour,
		MaxClockSkew:      5 * time.Minute,
		MinAltitudeMeters: -500,
		MaxAltitudeMeters: 10000,
	}
}

// Validator decides whether a reading is physically plausible and fresh
// enough to use or transmit. It is pure: no side effects, deterministic for
// a fixed clock, safe for concurrent use.
type Validator struct {
	cfg ValidatorConfig
	now func() time.Time
}

// NewValidator builds a Validator with the given thresholds.
func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{cfg: cfg, now: time.Now}
}

// NewValidatorAt builds a Validator with a fixed clock, for tests.
func NewValidatorAt(cfg ValidatorConfig, now func() time.Time) *Validator {
	return &Validator{cfg: cfg, now: now}
}

// ValidateCoordinates checks only the latitude/longitude ranges and the
// null-island sentinel. Used before a full Location is constructed.
func (v *Validator) ValidateCoordinates(latitude, longitude float64) ValidationResult {
	var codes []ValidationCode
	if latitude < -90 || latitude > 90 {
		codes = append(codes, CodeInvalidLatitude)
	}
	if longitude < -180 || longitude > 180 {
		codes = append(codes, CodeInvalidLongitude)
	}
	if latitude == 0 && longitude == 0 {
		codes = append(codes, CodeNullIsland)
	}
	return ValidationResult{IsValid: len(codes) == 0, Errors: codes}
}

// Validate evaluates every rule against the reading and returns all failed
// codes, not just the first.
func (v *Validator) Validate(loc Location) ValidationResult {
	codes := v.ValidateCoordinates(loc.Latitude, loc.Longitude).Errors

	if loc.AccuracyMeters <= 0 || loc.AccuracyMeters > v.cfg.MaxAccuracyMeters {
		codes = append(codes, CodeInvalidAccuracy)
	}

	now := v.now()
	if loc.Timestamp.Before(now.Add(-v.cfg.MaxReadingAge)) || loc.Timestamp.After(now.Add(v.cfg.MaxClockSkew)) {
		codes = append(codes, CodeInvalidTimestamp)
	}

	if loc.AltitudeMeters != nil {
		if *loc.AltitudeMeters < v.cfg.MinAltitudeMeters || *loc.AltitudeMeters > v.cfg.MaxAltitudeMeters {
			codes = append(codes, CodeInvalidAltitude)
		}
	}

	return ValidationResult{IsValid: len(codes) == 0, Errors: codes}
}

// ValidateBatch partitions readings into valid and invalid and computes the
// aggregate counts.
func (v *Validator) ValidateBatch(locations []Location) BatchValidationResult {
	out := BatchValidationResult{ValidationRate: 1}
	for _, loc := range locations {
		res := v.Validate(loc)
		if res.IsValid {
			out.ValidCount++
			out.Valid = append(out.Valid, loc)
			continue
		}
		out.InvalidCount++
		out.Invalid = append(out.Invalid, InvalidLocation{Location: loc, Errors: res.Errors})
	}
	if total := out.ValidCount + out.InvalidCount; total > 0 {
		out.ValidationRate = float64(out.ValidCount) / float64(total)
	}
	return out
}
