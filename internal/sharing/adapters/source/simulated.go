package source

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"locshare/internal/sharing/domain"
)

// Simulated is a device position source producing a random walk around a
// base coordinate. It stands in for a real platform source in the daemon
// and in tests.
type Simulated struct {
	mu       sync.Mutex
	auth     domain.Authorization
	enabled  bool
	lat, lng float64
	rng      *rand.Rand
}

func NewSimulated(lat, lng float64) *Simulated {
	return &Simulated{
		auth:    domain.AuthorizationAlways,
		enabled: true,
		lat:     lat,
		lng:     lng,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetAuthorization changes the reported platform authorization.
func (s *Simulated) SetAuthorization(a domain.Authorization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = a
}

// SetServicesEnabled flips the reported location services switch.
func (s *Simulated) SetServicesEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

func (s *Simulated) Authorization(_ context.Context) domain.Authorization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

func (s *Simulated) ServicesEnabled(_ context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Readings emits one position per interval until ctx is cancelled. The
// significant-changes option widens the step so successive readings differ
// enough to matter.
func (s *Simulated) Readings(ctx context.Context, opts domain.AcquisitionOptions) (<-chan domain.Location, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	out := make(chan domain.Location)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				loc := s.next(opts.SignificantChangesOnly)
				select {
				case out <- loc:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Simulated) next(significant bool) domain.Location {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := 0.0001 // roughly 10m
	if significant {
		step = 0.005 // roughly 500m
	}
	s.lat += (s.rng.Float64() - 0.5) * 2 * step
	s.lng += (s.rng.Float64() - 0.5) * 2 * step

	accuracy := 5 + s.rng.Float64()*20
	return domain.NewLocation(s.lat, s.lng, accuracy, time.Now().UTC())
}
