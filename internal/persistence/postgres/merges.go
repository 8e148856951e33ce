package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/events"
	"example.com/healthsync/internal/outbox"
)

const insertMergeRequest = `INSERT INTO merge_requests (merge_request_id, user_id, primary_id, duplicate_id, confidence, status, signals, resolved_at, resolved_by, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT DO NOTHING`

// execInsertMergeRequest returns ErrConflict when the pair already has a
// request in either order.
func execInsertMergeRequest(ctx context.Context, tx pgx.Tx, request domain.MergeRequest) error {
	signals, err := json.Marshal(request.Signals)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, insertMergeRequest,
		request.ID,
		request.UserID,
		request.PrimaryID,
		request.DuplicateID,
		request.Confidence,
		string(request.Status),
		signals,
		request.ResolvedAt,
		request.ResolvedBy,
		request.CreatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("merge request %s/%s: %w", request.PrimaryID, request.DuplicateID, domain.ErrConflict)
	}
	return nil
}

// HasMergeRequest reports whether the pair already has a request in either order.
func (s *Store) HasMergeRequest(ctx context.Context, userID, firstID, secondID string) (bool, error) {
	var exists bool
	err := s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `SELECT EXISTS (
            SELECT 1 FROM merge_requests
            WHERE user_id = $1
              AND LEAST(primary_id, duplicate_id) = LEAST($2::text, $3::text)
              AND GREATEST(primary_id, duplicate_id) = GREATEST($2::text, $3::text))`,
			userID, firstID, secondID).Scan(&exists)
	})
	return exists, err
}

// ApplyAutoMerge flags the duplicate activity and records the resolved merge
// request in one transaction.
func (s *Store) ApplyAutoMerge(ctx context.Context, request domain.MergeRequest) error {
	return s.inUserTx(ctx, request.UserID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE activities SET is_duplicate = TRUE, duplicate_of = $3, updated_at = $4
             WHERE user_id = $1 AND activity_id = $2 AND NOT is_duplicate`,
			request.UserID, request.DuplicateID, request.PrimaryID, request.CreatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("activity %s: %w", request.DuplicateID, domain.ErrNotFound)
		}
		if err := execInsertMergeRequest(ctx, tx, request); err != nil {
			return err
		}
		return outbox.Insert(ctx, tx, outbox.Envelope{
			UserID:        request.UserID,
			AggregateType: "activity",
			AggregateID:   request.DuplicateID,
			EventType:     events.TypeDuplicateFlagged,
			Payload: events.DuplicateFlagged{
				ActivityID:  request.DuplicateID,
				UserID:      request.UserID,
				DuplicateOf: request.PrimaryID,
				Confidence:  request.Confidence,
				OccurredAt:  request.CreatedAt,
			},
		})
	})
}

// CreateMergeRequest records a pending merge request for review.
func (s *Store) CreateMergeRequest(ctx context.Context, request domain.MergeRequest) error {
	return s.inUserTx(ctx, request.UserID, func(tx pgx.Tx) error {
		if err := execInsertMergeRequest(ctx, tx, request); err != nil {
			return err
		}
		return outbox.Insert(ctx, tx, outbox.Envelope{
			UserID:        request.UserID,
			AggregateType: "merge_request",
			AggregateID:   request.ID,
			EventType:     events.TypeMergeRequestCreated,
			Payload: events.MergeRequestCreated{
				MergeRequestID: request.ID,
				UserID:         request.UserID,
				PrimaryID:      request.PrimaryID,
				DuplicateID:    request.DuplicateID,
				Confidence:     request.Confidence,
				CreatedAt:      request.CreatedAt,
			},
		})
	})
}

// ListMergeRequests returns a user's merge requests, optionally filtered by status.
func (s *Store) ListMergeRequests(ctx context.Context, userID string, status domain.MergeStatus) ([]domain.MergeRequest, error) {
	args := []any{userID}
	query := `SELECT merge_request_id, user_id, primary_id, duplicate_id, confidence, status, signals, resolved_at, resolved_by, created_at
        FROM merge_requests WHERE user_id = $1`
	if status != "" {
		args = append(args, string(status))
		query += ` AND status = $2`
	}
	query += ` ORDER BY created_at, merge_request_id`

	out := make([]domain.MergeRequest, 0)
	err := s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				request domain.MergeRequest
				status  string
				signals []byte
			)
			if err := rows.Scan(&request.ID, &request.UserID, &request.PrimaryID, &request.DuplicateID, &request.Confidence,
				&status, &signals, &request.ResolvedAt, &request.ResolvedBy, &request.CreatedAt); err != nil {
				return err
			}
			request.Status = domain.MergeStatus(status)
			if len(signals) > 0 {
				if err := json.Unmarshal(signals, &request.Signals); err != nil {
					return fmt.Errorf("decode signals: %w", err)
				}
			}
			out = append(out, request)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
