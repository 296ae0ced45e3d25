package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/applyflow/applyflow/internal/jobs"
	"github.com/applyflow/applyflow/internal/utils"
)

const (
	defaultFailureRate = 0.1
	defaultMinLatency  = 300 * time.Millisecond
	defaultMaxLatency  = 800 * time.Millisecond
)

// Simulated is the default stand-in gateway. It sleeps a random latency and
// fails a fraction of submissions, so callers exercise their failure paths
// without talking to a real platform.
type Simulated struct {
	failureRate float64
	minLatency  time.Duration
	maxLatency  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// SimulatedOption customizes the simulated gateway.
type SimulatedOption func(*Simulated)

// WithFailureRate overrides the fraction of submissions that fail.
func WithFailureRate(rate float64) SimulatedOption {
	return func(s *Simulated) {
		if rate >= 0 && rate <= 1 {
			s.failureRate = rate
		}
	}
}

// WithLatency overrides the artificial submission latency window.
func WithLatency(min, max time.Duration) SimulatedOption {
	return func(s *Simulated) {
		if min >= 0 && max >= min {
			s.minLatency = min
			s.maxLatency = max
		}
	}
}

// WithSeed makes the gateway reproducible for tests.
func WithSeed(seed int64) SimulatedOption {
	return func(s *Simulated) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		failureRate: defaultFailureRate,
		minLatency:  defaultMinLatency,
		maxLatency:  defaultMaxLatency,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit pretends to apply to the posting. Rejections are reported as
// (false, error) so the caller records a reason for the failed item.
func (s *Simulated) Submit(ctx context.Context, posting *jobs.JobPosting, _ *RunContext) (bool, error) {
	latency, rejected := s.roll()
	if err := utils.WaitFor(ctx, latency); err != nil {
		return false, err
	}

	if rejected {
		return false, fmt.Errorf("platform rejected application for posting %s", posting.ID)
	}

	return true, nil
}

func (s *Simulated) roll() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latency := s.minLatency
	if window := s.maxLatency - s.minLatency; window > 0 {
		latency += time.Duration(s.rng.Int63n(int64(window)))
	}

	return latency, s.rng.Float64() < s.failureRate
}
