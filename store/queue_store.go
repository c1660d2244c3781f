// api/store/queue_store.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pulsestream/api/models"
)

// QueueConfig tunes the delivery queue's retry behavior.
type QueueConfig struct {
	Visibility  time.Duration
	MaxAttempts int
	RetryBase   time.Duration
	RetryMax    time.Duration
}

// QueueStore is the durable work queue between intake and the delivery
// workers, backed by the delivery_tasks outbox table. All reserve-and-hide
// atomicity comes from the database (SKIP LOCKED + not_before), never from
// in-process locks, so any number of worker processes can share it.
type QueueStore struct {
	db  *sql.DB
	cfg QueueConfig
}

func NewQueueStore(db *sql.DB, cfg QueueConfig) *QueueStore {
	return &QueueStore{db: db, cfg: cfg}
}

// insertDeliveryTask appends an outbox row inside the caller's transaction.
func insertDeliveryTask(ctx context.Context, tx *sql.Tx, eventIDs []uuid.UUID) error {
	ids, err := json.Marshal(eventIDs)
	if err != nil {
		return fmt.Errorf("marshal event ids: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO delivery_tasks (id, event_ids)
		VALUES ($1, $2)
	`, uuid.New(), ids)
	return err
}

// Claim reserves the oldest ready task. SKIP LOCKED makes the reservation
// exclusive; bumping not_before past the visibility deadline hides the task
// from other workers, and a worker that dies without acking simply loses the
// claim when the deadline lapses. attempt_count is counted here, at claim
// time, so crashed attempts consume retry budget too.
func (q *QueueStore) Claim(ctx context.Context) (*models.DeliveryTask, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE delivery_tasks
		SET attempt_count = attempt_count + 1,
		    not_before    = now() + $1 * interval '1 second'
		WHERE id = (
			SELECT id
			FROM delivery_tasks
			WHERE not_before <= now()
			ORDER BY enqueued_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_ids, attempt_count, enqueued_at, not_before, last_error
	`, q.cfg.Visibility.Seconds())

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrNoTask
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	return task, nil
}

// Ack destroys a delivered task.
func (q *QueueStore) Ack(ctx context.Context, id uuid.UUID) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM delivery_tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("ack task %s: %w", id, err)
	}
	return nil
}

// Nack records a failed attempt. With budget left the task is rescheduled
// after an exponential backoff; with the budget exhausted it moves to the
// dead-letter table in the same transaction, history intact.
func (q *QueueStore) Nack(ctx context.Context, task *models.DeliveryTask, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	if task.AttemptCount >= q.cfg.MaxAttempts {
		return q.deadLetter(ctx, task.ID, msg)
	}

	delay := q.backoff(task.AttemptCount)
	_, err := q.db.ExecContext(ctx, `
		UPDATE delivery_tasks
		SET not_before = now() + $2 * interval '1 second',
		    last_error = $3
		WHERE id = $1
	`, task.ID, delay.Seconds(), msg)
	if err != nil {
		return fmt.Errorf("reschedule task %s: %w", task.ID, err)
	}

	log.Warn().
		Stringer("task_id", task.ID).
		Int("attempt", task.AttemptCount).
		Dur("backoff", delay).
		Str("error", msg).
		Msg("delivery task rescheduled")
	return nil
}

func (q *QueueStore) deadLetter(ctx context.Context, id uuid.UUID, msg string) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dead-letter tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO dead_letters (id, event_ids, attempt_count, enqueued_at, last_error)
		SELECT id, event_ids, attempt_count, enqueued_at, $2
		FROM delivery_tasks
		WHERE id = $1
	`, id, msg); err != nil {
		return fmt.Errorf("move task %s to dead letters: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM delivery_tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("remove dead task %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dead-letter tx: %w", err)
	}

	log.Error().Stringer("task_id", id).Str("error", msg).Msg("delivery task dead-lettered")
	return nil
}

// backoff returns base * 2^(attempt-1), capped at the configured maximum.
func (q *QueueStore) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 32 {
		attempt = 32
	}
	d := q.cfg.RetryBase << (attempt - 1)
	if d <= 0 || d > q.cfg.RetryMax {
		return q.cfg.RetryMax
	}
	return d
}

// ListDeadLetters returns the most recent dead-lettered tasks.
func (q *QueueStore) ListDeadLetters(ctx context.Context, limit int) ([]models.DeadLetter, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, event_ids, attempt_count, enqueued_at, failed_at, last_error
		FROM dead_letters
		ORDER BY failed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var letters []models.DeadLetter
	for rows.Next() {
		var dl models.DeadLetter
		var ids []byte
		if err := rows.Scan(&dl.ID, &ids, &dl.AttemptCount, &dl.EnqueuedAt, &dl.FailedAt, &dl.LastError); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		if err := json.Unmarshal(ids, &dl.EventIDs); err != nil {
			return nil, fmt.Errorf("decode dead letter %s event ids: %w", dl.ID, err)
		}
		letters = append(letters, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}

	return letters, nil
}

// RequeueDeadLetter moves a dead-lettered task back onto the queue with a
// fresh attempt budget.
func (q *QueueStore) RequeueDeadLetter(ctx context.Context, id uuid.UUID) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin requeue tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO delivery_tasks (id, event_ids, attempt_count, enqueued_at, not_before, last_error)
		SELECT id, event_ids, 0, now(), now(), ''
		FROM dead_letters
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("requeue dead letter %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM dead_letters WHERE id = $1`, id); err != nil {
		return fmt.Errorf("remove requeued dead letter %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit requeue tx: %w", err)
	}

	log.Info().Stringer("task_id", id).Msg("dead letter requeued")
	return nil
}

func scanTask(row *sql.Row) (*models.DeliveryTask, error) {
	var task models.DeliveryTask
	var ids []byte
	err := row.Scan(&task.ID, &ids, &task.AttemptCount, &task.EnqueuedAt, &task.NotBefore, &task.LastError)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ids, &task.EventIDs); err != nil {
		return nil, fmt.Errorf("decode task %s event ids: %w", task.ID, err)
	}
	return &task, nil
}
