package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/events"
	"example.com/healthsync/internal/pipeline"
)

// ActivitySyncer runs the post-ingest pipeline for one activity.
type ActivitySyncer interface {
	Sync(ctx context.Context, userID, activityID string) (pipeline.Result, error)
}

// SyncHandler reacts to activity.ingested events. Other event types are
// acknowledged and ignored.
type SyncHandler struct {
	syncer ActivitySyncer
	log    zerolog.Logger
}

// NewSyncHandler constructs a SyncHandler.
func NewSyncHandler(syncer ActivitySyncer, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		syncer: syncer,
		log:    log.With().Str("component", "sync_handler").Logger(),
	}
}

// Handle implements Handler.
func (h *SyncHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.TypeActivityIngested {
		return nil
	}

	var evt events.ActivityIngested
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		h.log.Warn().Err(err).Int64("offset", msg.Offset).Msg("dropping undecodable activity event")
		return nil
	}
	if evt.ActivityID == "" || evt.UserID == "" {
		h.log.Warn().Int64("offset", msg.Offset).Msg("dropping activity event without ids")
		return nil
	}

	if _, err := h.syncer.Sync(ctx, evt.UserID, evt.ActivityID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.log.Warn().Str("activity_id", evt.ActivityID).Msg("activity vanished before sync")
			return nil
		}
		return fmt.Errorf("sync activity %s: %w", evt.ActivityID, err)
	}
	return nil
}
