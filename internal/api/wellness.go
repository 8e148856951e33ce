package api

import (
	"errors"
	"net/http"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/training"
)

func (h *Handler) upsertSleep(w http.ResponseWriter, r *http.Request) {
	var req SleepLogRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	day, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	stored, err := h.deps.Records.UpsertSleepLog(r.Context(), domain.SleepLog{
		UserID:          owner(r),
		Date:            day,
		Source:          domain.ParseSource(req.Source),
		StartedAt:       req.StartedAt,
		EndedAt:         req.EndedAt,
		TotalSleepMin:   req.TotalSleepMin,
		DeepSleepMin:    req.DeepSleepMin,
		LightSleepMin:   req.LightSleepMin,
		REMSleepMin:     req.REMSleepMin,
		AwakeMin:        req.AwakeMin,
		SleepScore:      req.SleepScore,
		Quality:         domain.SleepQuality(req.Quality),
		AvgHRV:          req.AvgHRV,
		AvgHeartRate:    req.AvgHeartRate,
		LowestHeartRate: req.LowestHeartRate,
		AvgRespiration:  req.AvgRespiration,
		AvgSpO2:         req.AvgSpO2,
		Notes:           req.Notes,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSleepView(stored))
}

func (h *Handler) aggregatedSleep(w http.ResponseWriter, r *http.Request) {
	day, err := h.dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	agg, err := h.deps.Views.SleepForDate(r.Context(), owner(r), day)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAggregatedSleep(*agg))
}

func (h *Handler) checkIn(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	day := h.now()
	if req.Date != "" {
		parsed, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		day = parsed
	}

	record, err := h.deps.Readiness.CheckIn(r.Context(), owner(r), training.CheckIn{
		Date:       day,
		Energy:     req.Energy,
		Soreness:   req.Soreness,
		Stress:     req.Stress,
		Mood:       req.Mood,
		Motivation: req.Motivation,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReadinessView(record))
}

func (h *Handler) autoReadiness(w http.ResponseWriter, r *http.Request) {
	day, err := h.dateQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	record, err := h.deps.Readiness.Auto(r.Context(), owner(r), day)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReadinessView(record))
}

func (h *Handler) getReadiness(w http.ResponseWriter, r *http.Request) {
	day, err := h.dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	record, err := h.deps.Readiness.Get(r.Context(), owner(r), day)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReadinessView(*record))
}

func (h *Handler) computeTrainingLoad(w http.ResponseWriter, r *http.Request) {
	day, err := h.dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	load, err := h.deps.Loads.Compute(r.Context(), owner(r), day)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrainingLoadView(load))
}

func (h *Handler) getTrainingLoad(w http.ResponseWriter, r *http.Request) {
	day, err := h.dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	load, err := h.deps.Loads.Get(r.Context(), owner(r), day)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrainingLoadView(*load))
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.deps.Profiles.GetProfile(r.Context(), owner(r))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusOK, ProfileView{})
			return
		}
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileView{
		RestingHR:   profile.RestingHR,
		MaxHR:       profile.MaxHR,
		ThresholdHR: profile.ThresholdHR,
	})
}

func (h *Handler) upsertProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileView
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	for name, v := range map[string]*float64{"resting_hr": req.RestingHR, "max_hr": req.MaxHR, "threshold_hr": req.ThresholdHR} {
		if v != nil && (*v <= 0 || *v > 250) {
			writeError(w, http.StatusBadRequest, "validation_failed", name+" must be within 1-250")
			return
		}
	}

	err := h.deps.Profiles.UpsertProfile(r.Context(), domain.AthleteProfile{
		UserID:      owner(r),
		RestingHR:   req.RestingHR,
		MaxHR:       req.MaxHR,
		ThresholdHR: req.ThresholdHR,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
