// Package api exposes HTTP handlers for the health sync service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"example.com/healthsync/internal/auth"
	"example.com/healthsync/internal/dedupe"
	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/pipeline"
	"example.com/healthsync/internal/reconcile"
	"example.com/healthsync/internal/training"
)

const dateLayout = "2006-01-02"

// Deps lists the collaborators the handlers translate requests into.
type Deps struct {
	Records   *domain.Service
	Views     *reconcile.Service
	Dedupe    *dedupe.Engine
	Syncer    *pipeline.Syncer
	TSS       *training.TSSService
	Loads     *training.LoadService
	Readiness *training.ReadinessService
	Profiles  domain.ProfileRepository

	// InlineSync runs the post-ingest pipeline in the request when no
	// consumer is attached to the outbox, e.g. with the memory store.
	InlineSync bool
	RecalcDays int
	ScanDays   int
	Log        zerolog.Logger
}

// Handler coordinates HTTP requests with the core services.
type Handler struct {
	deps Deps
	log  zerolog.Logger
	now  func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(deps Deps) *Handler {
	if deps.RecalcDays <= 0 {
		deps.RecalcDays = training.DefaultRecalcWindow
	}
	if deps.ScanDays <= 0 {
		deps.ScanDays = 30
	}
	return &Handler{
		deps: deps,
		log:  deps.Log.With().Str("component", "api").Logger(),
		now:  time.Now,
	}
}

// Routes mounts the versioned API. Callers are expected to have run the
// auth middleware so claims are present in the request context.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireScope(auth.ScopeHealthRead))

			r.Get("/activities", h.listActivities)
			r.Get("/activities/{id}", h.getActivity)
			r.Get("/activities/{id}/duplicates", h.findDuplicates)
			r.Get("/aggregates/activities/{date}", h.aggregatedActivities)
			r.Get("/merge-requests", h.listMergeRequests)
			r.Get("/sleep/{date}", h.aggregatedSleep)
			r.Get("/readiness/{date}", h.getReadiness)
			r.Get("/training-load/{date}", h.getTrainingLoad)
			r.Get("/profile", h.getProfile)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireScope(auth.ScopeHealthWrite))

			r.Post("/activities", h.createActivity)
			r.Post("/activities/{id}/duplicates/apply", h.applyDuplicates)
			r.Post("/activities/{id}/tss", h.calculateTSS)
			r.Post("/duplicates/scan", h.scanDuplicates)
			r.Post("/tss/recalculate", h.recalculateTSS)
			r.Put("/sleep", h.upsertSleep)
			r.Post("/readiness/check-in", h.checkIn)
			r.Post("/readiness/auto", h.autoReadiness)
			r.Post("/training-load/{date}", h.computeTrainingLoad)
			r.Put("/profile", h.upsertProfile)
		})
	})
}

// requireScope rejects requests whose token does not allow scope.
func requireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.FromContext(r.Context())
			if !ok || strings.TrimSpace(claims.Subject) == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			if !claims.Allows(scope) {
				writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// owner returns the user every record of the request belongs to.
func owner(r *http.Request) string {
	claims, _ := auth.FromContext(r.Context())
	return claims.Subject
}

func (h *Handler) dateParam(r *http.Request) (time.Time, error) {
	raw := chi.URLParam(r, "date")
	if raw == "" || raw == "today" {
		return domain.DateOf(h.now()), nil
	}
	return parseDate(raw)
}

func (h *Handler) dateQuery(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return domain.DateOf(h.now()), nil
	}
	return parseDate(raw)
}

func parseDate(raw string) (time.Time, error) {
	day, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, errors.New("date must be formatted as YYYY-MM-DD")
	}
	return day, nil
}

func positiveQuery(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeDomainError maps core sentinel errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrNoData):
		writeError(w, http.StatusNotFound, "no_data", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrCrossOwner):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		h.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
