package queue

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"crisisrelay/internal/model"
)

// SimSender stands in for the real mesh/uplink transport, which does
// not exist yet. Deliveries take Latency and succeed with probability
// SuccessRate, mirroring the behavior the dashboard shell was built
// against.
type SimSender struct {
	SuccessRate float64
	Latency     time.Duration
}

// NewSimSender returns a sender with the default 90% success rate and a
// short simulated round trip.
func NewSimSender() *SimSender {
	return &SimSender{
		SuccessRate: 0.9,
		Latency:     100 * time.Millisecond,
	}
}

// Deliver simulates one delivery attempt.
func (s *SimSender) Deliver(ctx context.Context, msg model.QueuedMessage) error {
	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if rand.Float64() >= s.SuccessRate {
		return fmt.Errorf("simulated delivery failure for %s", msg.ID)
	}
	return nil
}
