package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/healthsync/internal/domain"
)

const baselineDays = 7

const sleepColumns = `sleep_log_id, user_id, sleep_date, source, started_at, ended_at, total_sleep_min, deep_sleep_min,
        light_sleep_min, rem_sleep_min, awake_min, sleep_score, COALESCE(quality, ''), avg_hrv, avg_heart_rate,
        lowest_heart_rate, avg_respiration, avg_spo2, notes, created_at, updated_at`

func scanSleepLog(row scanner) (domain.SleepLog, error) {
	var (
		log     domain.SleepLog
		source  string
		quality string
	)
	err := row.Scan(&log.ID, &log.UserID, &log.Date, &source, &log.StartedAt, &log.EndedAt, &log.TotalSleepMin, &log.DeepSleepMin,
		&log.LightSleepMin, &log.REMSleepMin, &log.AwakeMin, &log.SleepScore, &quality, &log.AvgHRV, &log.AvgHeartRate,
		&log.LowestHeartRate, &log.AvgRespiration, &log.AvgSpO2, &log.Notes, &log.CreatedAt, &log.UpdatedAt)
	if err != nil {
		return domain.SleepLog{}, err
	}
	log.Source = domain.Source(source)
	log.Quality = domain.SleepQuality(quality)
	log.Date = dateOnly(log.Date)
	return log, nil
}

// UpsertSleepLog inserts or replaces the log for (user, date, source).
func (s *Store) UpsertSleepLog(ctx context.Context, log domain.SleepLog) (domain.SleepLog, error) {
	const stmt = `INSERT INTO sleep_logs (sleep_log_id, user_id, sleep_date, source, started_at, ended_at, total_sleep_min, deep_sleep_min,
        light_sleep_min, rem_sleep_min, awake_min, sleep_score, quality, avg_hrv, avg_heart_rate,
        lowest_heart_rate, avg_respiration, avg_spo2, notes, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
        ON CONFLICT (user_id, sleep_date, source) DO UPDATE SET
            started_at = EXCLUDED.started_at,
            ended_at = EXCLUDED.ended_at,
            total_sleep_min = EXCLUDED.total_sleep_min,
            deep_sleep_min = EXCLUDED.deep_sleep_min,
            light_sleep_min = EXCLUDED.light_sleep_min,
            rem_sleep_min = EXCLUDED.rem_sleep_min,
            awake_min = EXCLUDED.awake_min,
            sleep_score = EXCLUDED.sleep_score,
            quality = EXCLUDED.quality,
            avg_hrv = EXCLUDED.avg_hrv,
            avg_heart_rate = EXCLUDED.avg_heart_rate,
            lowest_heart_rate = EXCLUDED.lowest_heart_rate,
            avg_respiration = EXCLUDED.avg_respiration,
            avg_spo2 = EXCLUDED.avg_spo2,
            notes = EXCLUDED.notes,
            updated_at = EXCLUDED.updated_at
        RETURNING ` + sleepColumns

	var stored domain.SleepLog
	err := s.inUserTx(ctx, log.UserID, func(tx pgx.Tx) error {
		var err error
		stored, err = scanSleepLog(tx.QueryRow(ctx, stmt,
			log.ID, log.UserID, dateOnly(log.Date), string(log.Source), log.StartedAt, log.EndedAt,
			log.TotalSleepMin, log.DeepSleepMin, log.LightSleepMin, log.REMSleepMin, log.AwakeMin,
			log.SleepScore, nullIfEmpty(string(log.Quality)), log.AvgHRV, log.AvgHeartRate,
			log.LowestHeartRate, log.AvgRespiration, log.AvgSpO2, log.Notes, log.CreatedAt, log.UpdatedAt,
		))
		return err
	})
	if err != nil {
		return domain.SleepLog{}, err
	}
	return stored, nil
}

// ListSleepLogs returns every source's logs for the inclusive date range.
func (s *Store) ListSleepLogs(ctx context.Context, userID string, from, to time.Time) ([]domain.SleepLog, error) {
	query := `SELECT ` + sleepColumns + ` FROM sleep_logs
        WHERE user_id = $1 AND sleep_date BETWEEN $2 AND $3
        ORDER BY sleep_date, source`

	out := make([]domain.SleepLog, 0)
	err := s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, userID, dateOnly(from), dateOnly(to))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			log, err := scanSleepLog(rows)
			if err != nil {
				return err
			}
			out = append(out, log)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HRVBaseline returns the mean nightly HRV over the seven days ending at end.
func (s *Store) HRVBaseline(ctx context.Context, userID string, end time.Time) (float64, bool, error) {
	last := dateOnly(end)
	var baseline *float64
	err := s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`SELECT AVG(avg_hrv) FROM sleep_logs
             WHERE user_id = $1 AND sleep_date BETWEEN $2 AND $3 AND avg_hrv > 0`,
			userID, last.AddDate(0, 0, -(baselineDays-1)), last,
		).Scan(&baseline)
	})
	if err != nil {
		return 0, false, err
	}
	if baseline == nil {
		return 0, false, nil
	}
	return *baseline, true, nil
}
