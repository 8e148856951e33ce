package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/events"
	"example.com/healthsync/internal/outbox"
)

// UpsertReadiness replaces the readiness record for (user, date) and emits an update event.
func (s *Store) UpsertReadiness(ctx context.Context, readiness domain.Readiness) error {
	factors, err := json.Marshal(readiness.ContributingFactors)
	if err != nil {
		return err
	}
	day := dateOnly(readiness.Date)

	const stmt = `INSERT INTO readiness (user_id, readiness_date, score, status, contributing_factors, calculation_method, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (user_id, readiness_date) DO UPDATE SET
            score = EXCLUDED.score,
            status = EXCLUDED.status,
            contributing_factors = EXCLUDED.contributing_factors,
            calculation_method = EXCLUDED.calculation_method,
            updated_at = EXCLUDED.updated_at`

	return s.inUserTx(ctx, readiness.UserID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, stmt,
			readiness.UserID, day, readiness.Score, string(readiness.Status), factors,
			string(readiness.Method), readiness.UpdatedAt,
		); err != nil {
			return err
		}
		aggregateID := readiness.UserID + ":" + day.Format(time.DateOnly)
		return outbox.Insert(ctx, tx, outbox.Envelope{
			UserID:        readiness.UserID,
			AggregateType: "readiness",
			AggregateID:   aggregateID,
			EventType:     events.TypeReadinessUpdated,
			DedupeKey:     fmt.Sprintf("%s:%s:%d", aggregateID, events.TypeReadinessUpdated, readiness.UpdatedAt.UnixNano()),
			Payload: events.ReadinessUpdated{
				UserID:    readiness.UserID,
				Date:      day.Format(time.DateOnly),
				Score:     readiness.Score,
				Status:    string(readiness.Status),
				Method:    string(readiness.Method),
				UpdatedAt: readiness.UpdatedAt,
			},
		})
	})
}

// GetReadiness returns the readiness record for (user, date).
func (s *Store) GetReadiness(ctx context.Context, userID string, date time.Time) (*domain.Readiness, error) {
	day := dateOnly(date)
	var (
		record  domain.Readiness
		status  string
		method  string
		factors []byte
	)
	err := s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`SELECT user_id, readiness_date, score, status, contributing_factors, calculation_method, updated_at
             FROM readiness WHERE user_id = $1 AND readiness_date = $2`,
			userID, day,
		).Scan(&record.UserID, &record.Date, &record.Score, &status, &factors, &method, &record.UpdatedAt)
	})
	if err != nil {
		return nil, notFound("readiness", day.Format(time.DateOnly), err)
	}
	record.Status = domain.ReadinessStatus(status)
	record.Method = domain.CalculationMethod(method)
	record.Date = dateOnly(record.Date)
	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &record.ContributingFactors); err != nil {
			return nil, fmt.Errorf("decode contributing factors: %w", err)
		}
	}
	return &record, nil
}

// UpsertTrainingLoad replaces the training load for (user, date).
func (s *Store) UpsertTrainingLoad(ctx context.Context, load domain.TrainingLoad) error {
	const stmt = `INSERT INTO training_load (user_id, load_date, acute_load, chronic_load, load_ratio, training_status, recovery_time_hrs, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (user_id, load_date) DO UPDATE SET
            acute_load = EXCLUDED.acute_load,
            chronic_load = EXCLUDED.chronic_load,
            load_ratio = EXCLUDED.load_ratio,
            training_status = EXCLUDED.training_status,
            recovery_time_hrs = EXCLUDED.recovery_time_hrs,
            updated_at = EXCLUDED.updated_at`

	return s.inUserTx(ctx, load.UserID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, stmt,
			load.UserID, dateOnly(load.Date), load.AcuteLoad, load.ChronicLoad, load.LoadRatio,
			load.TrainingStatus, load.RecoveryTimeHrs, load.UpdatedAt,
		)
		return err
	})
}

// GetTrainingLoad returns the training load for (user, date).
func (s *Store) GetTrainingLoad(ctx context.Context, userID string, date time.Time) (*domain.TrainingLoad, error) {
	day := dateOnly(date)
	var load domain.TrainingLoad
	err := s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`SELECT user_id, load_date, acute_load, chronic_load, load_ratio, training_status, recovery_time_hrs, updated_at
             FROM training_load WHERE user_id = $1 AND load_date = $2`,
			userID, day,
		).Scan(&load.UserID, &load.Date, &load.AcuteLoad, &load.ChronicLoad, &load.LoadRatio,
			&load.TrainingStatus, &load.RecoveryTimeHrs, &load.UpdatedAt)
	})
	if err != nil {
		return nil, notFound("training load", day.Format(time.DateOnly), err)
	}
	load.Date = dateOnly(load.Date)
	return &load, nil
}

// GetProfile returns the athlete profile for a user.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.AthleteProfile, error) {
	var profile domain.AthleteProfile
	err := s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`SELECT user_id, resting_hr, max_hr, threshold_hr FROM athlete_profiles WHERE user_id = $1`,
			userID,
		).Scan(&profile.UserID, &profile.RestingHR, &profile.MaxHR, &profile.ThresholdHR)
	})
	if err != nil {
		return nil, notFound("profile", userID, err)
	}
	return &profile, nil
}

// UpsertProfile stores the athlete profile for a user.
func (s *Store) UpsertProfile(ctx context.Context, profile domain.AthleteProfile) error {
	return s.inUserTx(ctx, profile.UserID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO athlete_profiles (user_id, resting_hr, max_hr, threshold_hr, updated_at)
             VALUES ($1,$2,$3,$4,NOW())
             ON CONFLICT (user_id) DO UPDATE SET
                 resting_hr = EXCLUDED.resting_hr,
                 max_hr = EXCLUDED.max_hr,
                 threshold_hr = EXCLUDED.threshold_hr,
                 updated_at = EXCLUDED.updated_at`,
			profile.UserID, profile.RestingHR, profile.MaxHR, profile.ThresholdHR,
		)
		return err
	})
}
