// api/worker/worker.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pulsestream/api/models"
)

// Queue is the slice of the queue store a worker needs.
type Queue interface {
	Claim(ctx context.Context) (*models.DeliveryTask, error)
	Ack(ctx context.Context, id uuid.UUID) error
	Nack(ctx context.Context, task *models.DeliveryTask, cause error) error
}

// EventSource loads committed event rows by id.
type EventSource interface {
	EventsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Event, error)
}

// Sink receives delivered events; the implementation must be idempotent per
// event_id so that redelivery after a lost ack is harmless.
type Sink interface {
	InsertEvents(ctx context.Context, events []models.Event) error
}

// Pool runs a fixed number of delivery workers. Each worker claims a task,
// loads its events from the transactional store, writes them to the
// analytical store, and acks; any failure nacks the task back to the queue.
// Workers coordinate only through the queue store, so pools in separate
// processes compose safely.
type Pool struct {
	queue    Queue
	source   EventSource
	sink     Sink
	workers  int
	pollWait time.Duration
}

func NewPool(queue Queue, source EventSource, sink Sink, workers int, pollWait time.Duration) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		queue:    queue,
		source:   source,
		sink:     sink,
		workers:  workers,
		pollWait: pollWait,
	}
}

// Run blocks until ctx is canceled. Tasks in flight at cancellation are
// recovered by the queue's visibility deadline, not by any explicit handoff.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	log.Info().Int("worker", id).Msg("delivery worker started")
	for {
		worked, err := p.step(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Int("worker", id).Msg("delivery step failed")
		}

		if worked {
			continue
		}
		select {
		case <-ctx.Done():
			log.Info().Int("worker", id).Msg("delivery worker stopped")
			return
		case <-time.After(p.pollWait):
		}
	}
}

// step performs one claim/deliver cycle. It reports whether a task was
// claimed, so callers know when to back off and poll.
func (p *Pool) step(ctx context.Context) (bool, error) {
	task, err := p.queue.Claim(ctx)
	if errors.Is(err, models.ErrNoTask) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim: %w", err)
	}

	if err := p.deliver(ctx, task); err != nil {
		if nackErr := p.queue.Nack(ctx, task, err); nackErr != nil {
			return true, fmt.Errorf("nack after %v: %w", err, nackErr)
		}
		return true, nil
	}

	if err := p.queue.Ack(ctx, task.ID); err != nil {
		// The task will be redelivered after the visibility deadline; the
		// keyed analytical upsert makes that redelivery a no-op.
		return true, fmt.Errorf("ack: %w", err)
	}

	log.Info().
		Stringer("task_id", task.ID).
		Int("events", len(task.EventIDs)).
		Int("attempt", task.AttemptCount).
		Msg("delivery task acked")
	return true, nil
}

func (p *Pool) deliver(ctx context.Context, task *models.DeliveryTask) error {
	events, err := p.source.EventsByIDs(ctx, task.EventIDs)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}
	if err := p.sink.InsertEvents(ctx, events); err != nil {
		return fmt.Errorf("analytical write: %w", err)
	}
	return nil
}
