package domain

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testValidator() *Validator {
	return NewValidatorAt(DefaultValidatorConfig(), func() time.Time { return testNow })
}

func validReading() Location {
	return NewLocation(37.7749, -122.4194, 10, testNow.Add(-time.Minute))
}

func TestValidateAcceptsTypicalReading(t *testing.T) {
	res := testValidator().Validate(validReading())
	if !res.IsValid {
		t.Fatalf("expected valid, got codes %v", res.Errors)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("expected no codes, got %v", res.Errors)
	}
}

func TestValidateCoordinateRanges(t *testing.T) {
	v := testValidator()

	cases := []struct {
		name     string
		lat, lng float64
		want     ValidationCode
	}{
		{"lat too high", 90.01, 0.1, CodeInvalidLatitude},
		{"lat too low", -90.01, 0.1, CodeInvalidLatitude},
		{"lng too high", 0.1, 180.01, CodeInvalidLongitude},
		{"lng too low", 0.1, -180.01, CodeInvalidLongitude},
		{"null island", 0, 0, CodeNullIsland},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := v.ValidateCoordinates(tc.lat, tc.lng)
			if res.IsValid {
				t.Fatal("expected invalid")
			}
			if !hasCode(res.Errors, tc.want) {
				t.Fatalf("expected %s in %v", tc.want, res.Errors)
			}
		})
	}

	// boundary values are inside the range
	for _, c := range [][2]float64{{90, 180}, {-90, -180}, {90, -180}, {-90, 180}} {
		if res := v.ValidateCoordinates(c[0], c[1]); !res.IsValid {
			t.Fatalf("boundary (%v,%v) should be valid, got %v", c[0], c[1], res.Errors)
		}
	}
}

func TestValidateAccuracy(t *testing.T) {
	v := testValidator()

	loc := validReading()
	loc.AccuracyMeters = 0
	if res := v.Validate(loc); !hasCode(res.Errors, CodeInvalidAccuracy) {
		t.Fatalf("zero accuracy should fail, got %v", res.Errors)
	}

	loc.AccuracyMeters = -5
	if res := v.Validate(loc); !hasCode(res.Errors, CodeInvalidAccuracy) {
		t.Fatalf("negative accuracy should fail, got %v", res.Errors)
	}

	loc.AccuracyMeters = 1000.5
	if res := v.Validate(loc); !hasCode(res.Errors, CodeInvalidAccuracy) {
		t.Fatalf("accuracy above limit should fail, got %v", res.Errors)
	}

	loc.AccuracyMeters = 1000
	if res := v.Validate(loc); res.IsValid != true {
		t.Fatalf("accuracy at limit should pass, got %v", res.Errors)
	}
}

func TestValidateTimestampWindow(t *testing.T) {
	v := testValidator()

	stale := validReading()
	stale.Timestamp = testNow.Add(-time.Hour - time.Second)
	if res := v.Validate(stale); !hasCode(res.Errors, CodeInvalidTimestamp) {
		t.Fatalf("stale reading should fail, got %v", res.Errors)
	}

	future := validReading()
	future.Timestamp = testNow.Add(5*time.Minute + time.Second)
	if res := v.Validate(future); !hasCode(res.Errors, CodeInvalidTimestamp) {
		t.Fatalf("far-future reading should fail, got %v", res.Errors)
	}

	// small skew is tolerated
	skewed := validReading()
	skewed.Timestamp = testNow.Add(4 * time.Minute)
	if res := v.Validate(skewed); !res.IsValid {
		t.Fatalf("reading inside skew tolerance should pass, got %v", res.Errors)
	}
}

func TestValidateAltitude(t *testing.T) {
	v := testValidator()

	low := validReading().WithAltitude(-501)
	if res := v.Validate(low); !hasCode(res.Errors, CodeInvalidAltitude) {
		t.Fatalf("altitude below floor should fail, got %v", res.Errors)
	}

	high := validReading().WithAltitude(10001)
	if res := v.Validate(high); !hasCode(res.Errors, CodeInvalidAltitude) {
		t.Fatalf("altitude above ceiling should fail, got %v", res.Errors)
	}

	ok := validReading().WithAltitude(8848)
	if res := v.Validate(ok); !res.IsValid {
		t.Fatalf("plausible altitude should pass, got %v", res.Errors)
	}

	// readings without altitude skip the rule entirely
	if res := v.Validate(validReading()); !res.IsValid {
		t.Fatalf("missing altitude should pass, got %v", res.Errors)
	}
}

func TestValidateAccumulatesAllCodes(t *testing.T) {
	loc := NewLocation(91, 181, -1, testNow.Add(-2*time.Hour)).WithAltitude(20000)
	res := testValidator().Validate(loc)
	if res.IsValid {
		t.Fatal("expected invalid")
	}
	for _, want := range []ValidationCode{
		CodeInvalidLatitude, CodeInvalidLongitude, CodeInvalidAccuracy,
		CodeInvalidTimestamp, CodeInvalidAltitude,
	} {
		if !hasCode(res.Errors, want) {
			t.Errorf("missing code %s in %v", want, res.Errors)
		}
	}
}

func TestValidateBatch(t *testing.T) {
	v := testValidator()

	bad := validReading()
	bad.Latitude = 91

	res := v.ValidateBatch([]Location{validReading(), bad, validReading()})
	if res.ValidCount != 2 || res.InvalidCount != 1 {
		t.Fatalf("got %d valid, %d invalid", res.ValidCount, res.InvalidCount)
	}
	if got := res.ValidationRate; got < 0.66 || got > 0.67 {
		t.Fatalf("validation rate = %v, want 2/3", got)
	}
	if len(res.Valid) != 2 || len(res.Invalid) != 1 {
		t.Fatalf("partition sizes: %d valid, %d invalid", len(res.Valid), len(res.Invalid))
	}
	if !hasCode(res.Invalid[0].Errors, CodeInvalidLatitude) {
		t.Fatalf("invalid entry missing code, got %v", res.Invalid[0].Errors)
	}
}

func TestValidateBatchEmpty(t *testing.T) {
	res := testValidator().ValidateBatch(nil)
	if res.ValidationRate != 1 {
		t.Fatalf("empty batch rate = %v, want 1", res.ValidationRate)
	}
	if res.ValidCount != 0 || res.InvalidCount != 0 {
		t.Fatalf("empty batch counts: %d/%d", res.ValidCount, res.InvalidCount)
	}
}

func hasCode(codes []ValidationCode, want ValidationCode) bool {
	for _, c := range codes {
		if c == want {
			return true
		}
	}
	return false
}
