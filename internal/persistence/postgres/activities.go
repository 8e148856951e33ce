package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/events"
	"example.com/healthsync/internal/observability"
	"example.com/healthsync/internal/outbox"
)

const activityColumns = `activity_id, user_id, source, started_at, activity_type, duration_min, distance_m, calories,
        avg_heart_rate, max_heart_rate, avg_pace, elevation_gain_m, perceived_exertion, notes, exercises,
        is_duplicate, duplicate_of, tss, COALESCE(external_id, ''), created_at, updated_at`

func scanActivity(row scanner) (domain.Activity, error) {
	var (
		a         domain.Activity
		source    string
		exercises []byte
	)
	err := row.Scan(&a.ID, &a.UserID, &source, &a.StartedAt, &a.ActivityType, &a.DurationMin, &a.DistanceM, &a.Calories,
		&a.AvgHeartRate, &a.MaxHeartRate, &a.AvgPace, &a.ElevationGainM, &a.PerceivedExertion, &a.Notes, &exercises,
		&a.IsDuplicate, &a.DuplicateOf, &a.TSS, &a.ExternalID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return domain.Activity{}, err
	}
	a.Source = domain.Source(source)
	if len(exercises) > 0 {
		if err := json.Unmarshal(exercises, &a.Exercises); err != nil {
			return domain.Activity{}, fmt.Errorf("decode exercises: %w", err)
		}
	}
	return a, nil
}

func collectActivities(rows pgx.Rows, capacity int) ([]domain.Activity, error) {
	defer rows.Close()
	out := make([]domain.Activity, 0, capacity)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FindByIdempotency checks if an activity already exists for the supplied idempotency key.
func (s *Store) FindByIdempotency(ctx context.Context, userID, idempotencyKey string) (*domain.Activity, error) {
	if idempotencyKey == "" {
		return nil, domain.ErrNotFound
	}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id=$1 AND idempotency_key=$2`

	var activity domain.Activity
	err := s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		var err error
		activity, err = scanActivity(tx.QueryRow(ctx, query, userID, idempotencyKey))
		return err
	})
	if err != nil {
		return nil, notFound("idempotency key", idempotencyKey, err)
	}
	return &activity, nil
}

// CreateActivity persists the activity and records the ingest event inside a single transaction.
func (s *Store) CreateActivity(ctx context.Context, activity domain.Activity, idempotencyKey string) error {
	var exercises []byte
	if len(activity.Exercises) > 0 {
		var err error
		if exercises, err = json.Marshal(activity.Exercises); err != nil {
			return err
		}
	}

	const insert = `INSERT INTO activities (activity_id, user_id, source, started_at, activity_type, duration_min, distance_m, calories,
        avg_heart_rate, max_heart_rate, avg_pace, elevation_gain_m, perceived_exertion, notes, exercises,
        is_duplicate, duplicate_of, tss, external_id, idempotency_key, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`

	err := s.inUserTx(ctx, activity.UserID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insert,
			activity.ID,
			activity.UserID,
			string(activity.Source),
			activity.StartedAt,
			activity.ActivityType,
			activity.DurationMin,
			activity.DistanceM,
			activity.Calories,
			activity.AvgHeartRate,
			activity.MaxHeartRate,
			activity.AvgPace,
			activity.ElevationGainM,
			activity.PerceivedExertion,
			activity.Notes,
			exercises,
			activity.IsDuplicate,
			activity.DuplicateOf,
			activity.TSS,
			nullIfEmpty(activity.ExternalID),
			nullIfEmpty(idempotencyKey),
			activity.CreatedAt,
			activity.UpdatedAt,
		); err != nil {
			return err
		}

		return outbox.Insert(ctx, tx, outbox.Envelope{
			UserID:        activity.UserID,
			AggregateType: "activity",
			AggregateID:   activity.ID,
			EventType:     events.TypeActivityIngested,
			Payload: events.ActivityIngested{
				ActivityID:   activity.ID,
				UserID:       activity.UserID,
				Source:       string(activity.Source),
				ActivityType: activity.ActivityType,
				StartedAt:    activity.StartedAt,
				DurationMin:  activity.DurationMin,
				IngestedAt:   activity.CreatedAt,
			},
		})
	})
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// GetActivity retrieves an activity by ID for its owner.
func (s *Store) GetActivity(ctx context.Context, userID, activityID string) (*domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id=$1 AND activity_id=$2`

	var activity domain.Activity
	err := s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		var err error
		activity, err = scanActivity(tx.QueryRow(ctx, query, userID, activityID))
		return err
	})
	if err != nil {
		return nil, notFound("activity", activityID, err)
	}
	return &activity, nil
}

// ListActivities returns activities matching the query ordered by start time.
func (s *Store) ListActivities(ctx context.Context, q domain.ActivityQuery) ([]domain.Activity, error) {
	args := []any{q.UserID}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id=$1`

	if !q.From.IsZero() {
		args = append(args, q.From)
		query += fmt.Sprintf(` AND started_at >= $%d`, len(args))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		query += fmt.Sprintf(` AND started_at <= $%d`, len(args))
	}
	if q.ActivityType != "" {
		args = append(args, q.ActivityType)
		query += fmt.Sprintf(` AND lower(activity_type) = lower($%d)`, len(args))
	}
	if q.ExcludeID != "" {
		args = append(args, q.ExcludeID)
		query += fmt.Sprintf(` AND activity_id <> $%d`, len(args))
	}
	if q.ExcludeDuplicates {
		query += ` AND NOT is_duplicate`
	}
	query += ` ORDER BY started_at, activity_id`

	var out []domain.Activity
	err := s.inUserTx(ctx, q.UserID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = collectActivities(rows, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns activities for a user ordered newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	args := []any{userID, limit}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id=$1`

	if cursor != nil {
		query += ` AND (started_at, activity_id) < ($3, $4)`
		args = append(args, cursor.StartedAt, cursor.ID)
	}
	query += ` ORDER BY started_at DESC, activity_id DESC LIMIT $2`

	var results []domain.Activity
	err := s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		results, err = collectActivities(rows, limit)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{StartedAt: last.StartedAt, ID: last.ID}
	}
	return results, nextCursor, nil
}

// SetActivityTSS stores the estimated training stress score.
func (s *Store) SetActivityTSS(ctx context.Context, userID, activityID string, tss int) error {
	return s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE activities SET tss=$3, updated_at=$4 WHERE user_id=$1 AND activity_id=$2`,
			userID, activityID, tss, time.Now().UTC())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("activity %s: %w", activityID, domain.ErrNotFound)
		}
		return nil
	})
}

// ListActiveUsers returns users with activity or sleep updates since the given time.
func (s *Store) ListActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM activities WHERE updated_at >= $1
        UNION SELECT user_id FROM sleep_logs WHERE updated_at >= $1
        ORDER BY 1`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]string, 0)
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
