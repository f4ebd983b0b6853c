package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"locshare/internal/common/logger"
	"locshare/internal/observability"
	"locshare/internal/sharing/domain"
)

// Config carries the acquisition intervals. Background mode samples slower
// and asks the source for its coarse significant-change mode to bound
// battery cost; validation and emission behave identically in both modes.
type Config struct {
	ForegroundInterval time.Duration
	BackgroundInterval time.Duration
}

// DefaultConfig returns the intervals used when the config file does not
// override them.
func DefaultConfig() Config {
	return Config{
		ForegroundInterval: 10 * time.Second,
		BackgroundInterval: 2 * time.Minute,
	}
}

// ReadingError is emitted on the error stream for every reading the
// validator rejects. The reading itself is never emitted on the update
// stream.
type ReadingError struct {
	Reading domain.Location
	Codes   []domain.ValidationCode
}

// Error lists the rejection reasons, with the acquisition-specific names for
// the accuracy and staleness rules.
func (e *ReadingError) Error() string {
	reasons := make([]string, len(e.Codes))
	for i, c := range e.Codes {
		reasons[i] = reasonFor(c)
	}
	return "reading rejected: " + strings.Join(reasons, ", ")
}

func reasonFor(code domain.ValidationCode) string {
	switch code {
	case domain.CodeInvalidAccuracy:
		return "inaccurate_location"
	case domain.CodeInvalidTimestamp:
		return "outdated_location"
	default:
		return code.String()
	}
}

const emissionBuffer = 16

// Tracker owns the device location source. While tracking is active it
// emits validated positions on Updates and rejected readings on Errors.
// Exactly one acquisition session is live at a time: entering background
// mode swaps the full-rate foreground session for a single reduced-rate
// one, and leaving it swaps back.
type Tracker struct {
	src       domain.LocationSource
	validator *domain.Validator
	log       *logger.Logger
	cfg       Config

	mu       sync.Mutex
	state    domain.TrackingState
	fgCancel context.CancelFunc
	fgDone   chan struct{}
	bgCancel context.CancelFunc
	bgDone   chan struct{}

	updates chan domain.Location
	errs    chan ReadingError
}

// New builds a stopped Tracker.
func New(src domain.LocationSource, validator *domain.Validator, log *logger.Logger, cfg Config) *Tracker {
	if cfg.ForegroundInterval <= 0 {
		cfg.ForegroundInterval = DefaultConfig().ForegroundInterval
	}
	if cfg.BackgroundInterval <= 0 {
		cfg.BackgroundInterval = DefaultConfig().BackgroundInterval
	}
	return &Tracker{
		src:       src,
		validator: validator,
		log:       log,
		cfg:       cfg,
		state:     domain.TrackingStopped,
		updates:   make(chan domain.Location, emissionBuffer),
		errs:      make(chan ReadingError, emissionBuffer),
	}
}

// Updates is the stream of validated positions.
func (t *Tracker) Updates() <-chan domain.Location { return t.updates }

// Errors is the stream of rejected readings.
func (t *Tracker) Errors() <-chan ReadingError { return t.errs }

// State returns the current tracking state.
func (t *Tracker) State() domain.TrackingState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Start begins foreground tracking. Calling it while already tracking is a
// no-op success. Missing location permission or disabled platform location
// services fail without changing state.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != domain.TrackingStopped {
		return nil // idempotent
	}

	if !t.src.ServicesEnabled(ctx) {
		return domain.ErrLocationDisabled
	}
	if !t.src.Authorization(ctx).AllowsForeground() {
		return domain.ErrPermissionDenied
	}

	if err := t.startForegroundLocked(ctx); err != nil {
		return err
	}
	t.state = domain.TrackingForeground

	t.log.Info(ctx, "tracking_started", "Foreground tracking active", map[string]any{
		"interval": t.cfg.ForegroundInterval.String(),
	})
	return nil
}

// startForegroundLocked spins up the full-rate acquisition session. The
// acquisition lifetime is owned by the tracker, not by the caller's ctx.
func (t *Tracker) startForegroundLocked(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	readings, err := t.src.Readings(runCtx, domain.AcquisitionOptions{Interval: t.cfg.ForegroundInterval})
	if err != nil {
		cancel()
		return fmt.Errorf("start acquisition: %w", err)
	}

	t.fgCancel = cancel
	t.fgDone = make(chan struct{})
	go t.pump(runCtx, readings, t.fgDone)
	return nil
}

func (t *Tracker) stopForegroundLocked() {
	t.fgCancel()
	<-t.fgDone
	t.fgCancel = nil
	t.fgDone = nil
}

// Stop ends the tracking session. The live acquisition pump has fully
// exited before Stop returns, so no orphaned acquisition outlives the
// session.
func (t *Tracker) Stop(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case domain.TrackingStopped:
		return
	case domain.TrackingBackground:
		t.stopBackgroundLocked()
	case domain.TrackingForeground:
		t.stopForegroundLocked()
	}
	t.state = domain.TrackingStopped

	t.log.Info(ctx, "tracking_stopped", "Tracking session ended", nil)
}

// StartBackground swaps the full-rate foreground session for a single
// reduced-rate acquisition; only one session is live in background mode.
// It requires the platform's "always" grant; without it the call fails and
// the foreground session keeps running.
func (t *Tracker) StartBackground(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == domain.TrackingBackground {
		return nil // idempotent
	}
	if t.state != domain.TrackingForeground {
		return domain.ErrNotTracking
	}

	if !t.src.Authorization(ctx).AllowsBackground() {
		return domain.ErrPermissionDenied
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	readings, err := t.src.Readings(runCtx, domain.AcquisitionOptions{
		Interval:               t.cfg.BackgroundInterval,
		SignificantChangesOnly: true,
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start background acquisition: %w", err)
	}

	// the reduced-rate session is live; retire the full-rate one
	t.stopForegroundLocked()

	t.state = domain.TrackingBackground
	t.bgCancel = cancel
	t.bgDone = make(chan struct{})
	go t.pump(runCtx, readings, t.bgDone)

	t.log.Info(ctx, "background_tracking_started", "Background tracking active", map[string]any{
		"interval": t.cfg.BackgroundInterval.String(),
	})
	return nil
}

// StopBackground returns to plain foreground tracking. If the foreground
// acquisition cannot be restarted the tracker stops outright rather than
// reporting a foreground state with no live session.
func (t *Tracker) StopBackground(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != domain.TrackingBackground {
		return
	}
	t.stopBackgroundLocked()

	if err := t.startForegroundLocked(ctx); err != nil {
		t.state = domain.TrackingStopped
		t.log.Error(ctx, "foreground_restart_failed", "Tracking stopped; foreground acquisition did not restart", err, nil)
		return
	}
	t.state = domain.TrackingForeground

	t.log.Info(ctx, "background_tracking_stopped", "Background tracking ended", nil)
}

func (t *Tracker) stopBackgroundLocked() {
	t.bgCancel()
	<-t.bgDone
	t.bgCancel = nil
	t.bgDone = nil
}

// Current performs a single bounded-wait fetch. The caller supplies the
// timeout through ctx; expiry resolves as ErrTimeout. It resolves exactly
// once per call.
func (t *Tracker) Current(ctx context.Context) (domain.Location, error) {
	if !t.src.ServicesEnabled(ctx) {
		return domain.Location{}, domain.ErrLocationDisabled
	}
	if !t.src.Authorization(ctx).AllowsForeground() {
		return domain.Location{}, domain.ErrPermissionDenied
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	readings, err := t.src.Readings(fetchCtx, domain.AcquisitionOptions{Interval: t.cfg.ForegroundInterval})
	if err != nil {
		return domain.Location{}, fmt.Errorf("start acquisition: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return domain.Location{}, domain.ErrTimeout
		case reading, ok := <-readings:
			if !ok {
				return domain.Location{}, domain.ErrTimeout
			}
			if res := t.validator.Validate(reading); res.IsValid {
				return reading, nil
			}
			// keep waiting for a qualifying reading until the deadline
		}
	}
}

// pump validates raw readings and routes them to the update or error
// stream. Channel sends never block: when a consumer lags, the oldest
// buffered emission is dropped in favor of the newest.
func (t *Tracker) pump(ctx context.Context, readings <-chan domain.Location, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case reading, ok := <-readings:
			if !ok {
				return
			}

			res := t.validator.Validate(reading)
			if res.IsValid {
				observability.ReadingsValidated.Inc()
				emit(t.updates, reading)
				continue
			}

			for _, code := range res.Errors {
				observability.ReadingsDropped.WithLabelValues(code.String()).Inc()
			}
			emit(t.errs, ReadingError{Reading: reading, Codes: res.Errors})
		}
	}
}

// emit delivers newest-wins without ever blocking the acquisition loop.
func emit[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch: // shed the oldest buffered value
			default:
			}
		}
	}
}
