package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/persistence"
)

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	var req CreateActivityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	userID := owner(r)
	activity, replay, err := h.deps.Records.CreateActivity(r.Context(), domain.CreateActivityInput{
		Activity:       req.toDomain(userID),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := CreateActivityResponse{Replay: replay}
	if h.deps.InlineSync && !replay {
		result, syncErr := h.deps.Syncer.Sync(r.Context(), userID, activity.ID)
		if syncErr != nil {
			h.log.Warn().Err(syncErr).Str("activity_id", activity.ID).Msg("inline sync failed")
		} else {
			resp.Sync = &result
			if reloaded, getErr := h.deps.Records.GetActivity(r.Context(), userID, activity.ID); getErr == nil {
				activity = reloaded
			}
		}
	}
	resp.Activity = toActivityView(*activity)

	status := http.StatusAccepted
	if replay {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.deps.Records.GetActivity(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	limit := positiveQuery(r, "limit", 20)
	if limit > 100 {
		limit = 100
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	activities, next, err := h.deps.Records.ListActivitiesByUser(r.Context(), owner(r), cursor, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		items = append(items, toActivityView(a))
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) findDuplicates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	matches, err := h.deps.Dedupe.FindCandidates(r.Context(), owner(r), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DuplicatesResponse{ActivityID: id, Matches: toMatchViews(matches)})
}

func (h *Handler) applyDuplicates(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.Syncer.Deduplicate(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) scanDuplicates(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.Syncer.Scan(r.Context(), owner(r), positiveQuery(r, "days", h.deps.ScanDays))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) listMergeRequests(w http.ResponseWriter, r *http.Request) {
	status := domain.MergeStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.MergeStatusPending, domain.MergeStatusAutoMerged, domain.MergeStatusApproved, domain.MergeStatusRejected:
	default:
		writeError(w, http.StatusBadRequest, "validation_failed", "unknown merge status")
		return
	}

	requests, err := h.deps.Dedupe.ListMergeRequests(r.Context(), owner(r), status)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	items := make([]MergeRequestView, 0, len(requests))
	for _, m := range requests {
		items = append(items, toMergeRequestView(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) aggregatedActivities(w http.ResponseWriter, r *http.Request) {
	day, err := h.dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	agg, err := h.deps.Views.ActivitiesForSlot(r.Context(), owner(r), day, r.URL.Query().Get("type"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAggregatedActivity(*agg))
}

func (h *Handler) calculateTSS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	force := r.URL.Query().Get("force") == "true"

	tss, err := h.deps.TSS.CalculateAndStore(r.Context(), owner(r), id, force)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TSSResponse{ActivityID: id, TSS: tss})
}

func (h *Handler) recalculateTSS(w http.ResponseWriter, r *http.Request) {
	summary := h.deps.TSS.RecalculateAll(r.Context(), owner(r), positiveQuery(r, "days", h.deps.RecalcDays))
	writeJSON(w, http.StatusOK, summary)
}
