// api/store/analytics_store.go
package store

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"pulsestream/api/database"
	"pulsestream/api/models"
)

// clickhouseSchema is embedded so the service self-bootstraps the analytical
// table. ReplacingMergeTree ordered by event_id makes re-delivery of a batch
// an upsert rather than an append: redelivered rows replace, duplicates
// collapse at merge time, and reads use FINAL.
//
//go:embed clickhouse_schema.sql
var clickhouseSchema string

// AnalyticsStore is the derived, eventually-consistent projection of the
// event stream, optimized for scan/aggregate queries.
type AnalyticsStore struct {
	DB *database.ClickHouseClient
}

func NewAnalyticsStore(chClient *database.ClickHouseClient) *AnalyticsStore {
	return &AnalyticsStore{DB: chClient}
}

// EnsureSchema applies the analytical table definition. Safe to run multiple times.
func (s *AnalyticsStore) EnsureSchema(ctx context.Context) error {
	return s.DB.Conn.Exec(ctx, clickhouseSchema)
}

// Ping is used by the readiness endpoint.
func (s *AnalyticsStore) Ping(ctx context.Context) error {
	return s.DB.Conn.Ping(ctx)
}

// InsertEvents delivers a batch of events to the analytical store. Keyed by
// event_id, the write is idempotent at the task level: a retry after a
// timed-out-but-successful first attempt changes nothing observable.
func (s *AnalyticsStore) InsertEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO events (event_id, occurred_at, user_id, event_type, properties)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, ev := range events {
		props := string(ev.Properties)
		if props == "" {
			props = "{}"
		}
		if err := batch.Append(ev.EventID, ev.OccurredAt, ev.UserID, ev.EventType, props); err != nil {
			return fmt.Errorf("failed to append event %s: %w", ev.EventID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Info().Int("count", len(events)).Msg("analytical events delivered")
	return nil
}

// GetDAU returns unique users per day for [from, to).
func (s *AnalyticsStore) GetDAU(ctx context.Context, from, to time.Time) ([]models.DAUBucket, error) {
	rows, err := s.DB.Conn.Query(ctx, `
		SELECT toDate(occurred_at) AS day, uniqExact(user_id) AS unique_users
		FROM events FINAL
		WHERE occurred_at >= ? AND occurred_at < ?
		GROUP BY day
		ORDER BY day
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily active users: %w", err)
	}
	defer rows.Close()

	var results []models.DAUBucket
	for rows.Next() {
		var day time.Time
		var users uint64
		if err := rows.Scan(&day, &users); err != nil {
			return nil, fmt.Errorf("failed to scan daily active users row: %w", err)
		}
		results = append(results, models.DAUBucket{
			Date:        day.Format("2006-01-02"),
			UniqueUsers: users,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during daily active users query: %w", err)
	}

	return results, nil
}

// GetTopEvents returns event types ranked by count for [from, to).
func (s *AnalyticsStore) GetTopEvents(ctx context.Context, from, to time.Time, limit int) ([]models.TopEvent, error) {
	rows, err := s.DB.Conn.Query(ctx, `
		SELECT event_type, count() AS total
		FROM events FINAL
		WHERE occurred_at >= ? AND occurred_at < ?
		GROUP BY event_type
		ORDER BY total DESC
		LIMIT ?
	`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top events: %w", err)
	}
	defer rows.Close()

	var results []models.TopEvent
	for rows.Next() {
		var te models.TopEvent
		if err := rows.Scan(&te.EventType, &te.Count); err != nil {
			return nil, fmt.Errorf("failed to scan top events row: %w", err)
		}
		results = append(results, te)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during top events query: %w", err)
	}

	return results, nil
}

// GetRetention computes weekly cohort retention: of the users active during
// the week starting at startDate, the share still active in each following week.
func (s *AnalyticsStore) GetRetention(ctx context.Context, startDate time.Time, windows int) (models.RetentionResponse, error) {
	resp := models.RetentionResponse{
		StartDate: startDate.Format("2006-01-02"),
		Retention: []models.RetentionWindow{},
	}

	cohortEnd := startDate.AddDate(0, 0, 7)
	err := s.DB.Conn.QueryRow(ctx, `
		SELECT uniqExact(user_id)
		FROM events FINAL
		WHERE occurred_at >= ? AND occurred_at < ?
	`, startDate, cohortEnd).Scan(&resp.CohortSize)
	if err != nil {
		return resp, fmt.Errorf("failed to query cohort size: %w", err)
	}

	if resp.CohortSize == 0 {
		return resp, nil
	}

	for week := 1; week <= windows; week++ {
		weekStart := startDate.AddDate(0, 0, 7*week)
		weekEnd := weekStart.AddDate(0, 0, 7)

		var retained uint64
		err := s.DB.Conn.QueryRow(ctx, `
			SELECT uniqExact(user_id)
			FROM events FINAL
			WHERE occurred_at >= ? AND occurred_at < ?
			  AND user_id IN (
				SELECT DISTINCT user_id
				FROM events FINAL
				WHERE occurred_at >= ? AND occurred_at < ?
			  )
		`, weekStart, weekEnd, startDate, cohortEnd).Scan(&retained)
		if err != nil {
			return resp, fmt.Errorf("failed to query retention for week %d: %w", week, err)
		}

		rate := float64(retained) / float64(resp.CohortSize) * 100
		resp.Retention = append(resp.Retention, models.RetentionWindow{
			Week:          week,
			WeekStart:     weekStart.Format("2006-01-02"),
			RetainedUsers: retained,
			RetentionRate: math.Round(rate*100) / 100,
		})
	}

	return resp, nil
}
