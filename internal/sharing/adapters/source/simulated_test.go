package source

import (
	"context"
	"math"
	"testing"
	"time"

	"locshare/internal/sharing/domain"
)

func TestSimulatedEmitsReadingsNearBase(t *testing.T) {
	src := NewSimulated(37.7749, -122.4194)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	readings, err := src.Readings(ctx, domain.AcquisitionOptions{Interval: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("Readings: %v", err)
	}

	for i := 0; i < 3; i++ {
		select {
		case loc := <-readings:
			if math.Abs(loc.Latitude-37.7749) > 0.01 || math.Abs(loc.Longitude+122.4194) > 0.01 {
				t.Fatalf("reading %d drifted too far from base: %v, %v", i, loc.Latitude, loc.Longitude)
			}
			if loc.AccuracyMeters < 5 || loc.AccuracyMeters > 25 {
				t.Fatalf("accuracy %v outside the simulated 5-25m band", loc.AccuracyMeters)
			}
		case <-time.After(time.Second):
			t.Fatalf("no reading %d within a second", i)
		}
	}
}

func TestSimulatedStopsOnCancel(t *testing.T) {
	src := NewSimulated(0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	readings, err := src.Readings(ctx, domain.AcquisitionOptions{Interval: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("Readings: %v", err)
	}
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-readings:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("readings channel not closed after cancel")
		}
	}
}

func TestSimulatedReportsAuthorizationChanges(t *testing.T) {
	src := NewSimulated(0, 0)
	ctx := context.Background()

	if got := src.Authorization(ctx); got != domain.AuthorizationAlways {
		t.Fatalf("default authorization = %v, want always", got)
	}
	if !src.ServicesEnabled(ctx) {
		t.Fatal("services should default to enabled")
	}

	src.SetAuthorization(domain.AuthorizationNone)
	src.SetServicesEnabled(false)

	if got := src.Authorization(ctx); got != domain.AuthorizationNone {
		t.Fatalf("authorization = %v, want none", got)
	}
	if src.ServicesEnabled(ctx) {
		t.Fatal("services should report disabled after the switch")
	}
}
