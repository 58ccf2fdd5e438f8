// Package queue implements the offline message queue: pure append and a
// one-shot sequential drain.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"crisisrelay/internal/model"
)

// Sender delivers one queued message. The transport behind it is the
// caller's concern; the queue only cares about success or failure.
type Sender interface {
	Deliver(ctx context.Context, msg model.QueuedMessage) error
}

// ProgressFunc is called after each processed message with the number
// of messages handled so far and the total.
type ProgressFunc func(done, total int)

// Append returns a new queue with one message added; the input queue is
// never mutated, so callers can hold it in compare-and-swap style state.
// An unknown message type is a caller bug and is rejected outright.
func Append(q []model.QueuedMessage, typ model.MessageType, payload json.RawMessage) ([]model.QueuedMessage, error) {
	if !model.ValidMessageType(typ) {
		return nil, fmt.Errorf("invalid message type %q", typ)
	}

	now := time.Now().UTC()
	msg := model.QueuedMessage{
		ID:        newID(now),
		Type:      typ,
		Payload:   payload,
		Timestamp: now,
		Retries:   0,
		Status:    model.StatusQueued,
	}

	out := make([]model.QueuedMessage, len(q), len(q)+1)
	copy(out, q)
	return append(out, msg), nil
}

// newID builds a message id from the creation time plus a random
// suffix, unique even for back-to-back calls within one millisecond.
func newID(now time.Time) string {
	return fmt.Sprintf("msg-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// Process attempts delivery of every message in q, strictly in
// insertion order, one at a time. Each id lands in exactly one of the
// result's two lists; a failed delivery never stops the rest of the
// pass. Process is one-shot: it does not re-attempt failed messages and
// does not touch Retries — the caller decides what to do with the
// failed ids. Only one drain should run against a given queue at a
// time; that is the caller's obligation.
//
// If ctx is cancelled mid-pass, the remaining messages are recorded as
// failed without a delivery attempt.
func Process(ctx context.Context, q []model.QueuedMessage, sender Sender, onProgress ProgressFunc) model.DrainResult {
	result := model.DrainResult{
		Successful: []string{},
		Failed:     []string{},
	}
	total := len(q)

	for i, msg := range q {
		if ctx.Err() != nil {
			result.Failed = append(result.Failed, msg.ID)
		} else if err := sender.Deliver(ctx, msg); err != nil {
			result.Failed = append(result.Failed, msg.ID)
		} else {
			result.Successful = append(result.Successful, msg.ID)
		}

		if onProgress != nil {
			onProgress(i+1, total)
		}
	}

	return result
}
