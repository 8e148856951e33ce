package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"example.com/healthsync/internal/app"
	"example.com/healthsync/internal/auth"
	"example.com/healthsync/internal/config"
	"example.com/healthsync/internal/persistence/memory"
	httptransport "example.com/healthsync/internal/transport/http"
)

type testAPI struct {
	t      *testing.T
	router http.Handler
	cfg    config.Config
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	cfg := config.NewForTesting()
	svc := app.NewServices(memory.NewStore(), cfg, zerolog.Nop())

	handler := NewHandler(Deps{
		Records:    svc.Records,
		Views:      svc.Views,
		Dedupe:     svc.Dedupe,
		Syncer:     svc.Syncer,
		TSS:        svc.TSS,
		Loads:      svc.Loads,
		Readiness:  svc.Readiness,
		Profiles:   svc.Store,
		InlineSync: true,
		Log:        zerolog.Nop(),
	})
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Log:   zerolog.Nop(),
		Auth:  auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, auth.SkipProbes),
		Mount: handler.Routes,
	})
	return &testAPI{t: t, router: router, cfg: cfg}
}

func (a *testAPI) token(subject string, scopes ...string) string {
	a.t.Helper()
	token, err := auth.Sign(auth.Config{Secret: a.cfg.JWTSecret, Issuer: a.cfg.JWTIssuer}, subject, scopes, time.Hour)
	require.NoError(a.t, err)
	return token
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func floatPtr(v float64) *float64 { return &v }

func TestCreateActivityMergesCrossSourceDuplicate(t *testing.T) {
	api := newTestAPI(t)
	token := api.token("user-1", auth.ScopeHealthWrite)
	start := time.Date(2026, time.March, 2, 7, 0, 0, 0, time.UTC)

	rr := api.do(http.MethodPost, "/v1/activities", token, CreateActivityRequest{
		Source:       "garmin",
		StartedAt:    start,
		ActivityType: "running",
		DurationMin:  45,
		DistanceM:    floatPtr(10000),
		AvgHeartRate: floatPtr(150),
	})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	first := decode[CreateActivityResponse](t, rr)
	require.NotNil(t, first.Sync)
	require.NotNil(t, first.Activity.TSS)
	require.False(t, first.Activity.IsDuplicate)

	rr = api.do(http.MethodPost, "/v1/activities", token, CreateActivityRequest{
		Source:       "apple",
		StartedAt:    start.Add(2 * time.Minute),
		ActivityType: "Running",
		DurationMin:  46,
		DistanceM:    floatPtr(10100),
		AvgHeartRate: floatPtr(152),
	})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	second := decode[CreateActivityResponse](t, rr)
	require.NotNil(t, second.Sync)
	require.True(t, second.Sync.MergedAway)
	require.Equal(t, 1, second.Sync.Merges.AutoMerged)
	require.True(t, second.Activity.IsDuplicate)
	require.Equal(t, first.Activity.ActivityID, *second.Activity.DuplicateOf)
	require.Nil(t, second.Activity.TSS)

	rr = api.do(http.MethodGet, "/v1/merge-requests?status=auto_merged", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	merges := decode[struct {
		Items []MergeRequestView `json:"items"`
	}](t, rr)
	require.Len(t, merges.Items, 1)
	require.Equal(t, first.Activity.ActivityID, merges.Items[0].PrimaryID)
	require.Equal(t, "auto", *merges.Items[0].ResolvedBy)

	rr = api.do(http.MethodGet, "/v1/aggregates/activities/2026-03-02?type=running", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	agg := decode[AggregatedActivityResponse](t, rr)
	require.Equal(t, "garmin", agg.PrimarySource)
	require.Equal(t, []string{"garmin"}, agg.Sources)

	rr = api.do(http.MethodGet, "/v1/activities?limit=1", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[ListActivitiesResponse](t, rr)
	require.Len(t, page.Items, 1)
	require.NotEmpty(t, page.NextCursor)

	rr = api.do(http.MethodGet, "/v1/activities?limit=1&cursor="+page.NextCursor, token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	next := decode[ListActivitiesResponse](t, rr)
	require.Len(t, next.Items, 1)
	require.NotEqual(t, page.Items[0].ActivityID, next.Items[0].ActivityID)
}

func TestActivitiesAreScopedToTokenSubject(t *testing.T) {
	api := newTestAPI(t)
	owner := api.token("user-1", auth.ScopeHealthWrite)
	other := api.token("user-2", auth.ScopeHealthRead)

	rr := api.do(http.MethodPost, "/v1/activities", owner, CreateActivityRequest{
		Source:       "garmin",
		StartedAt:    time.Date(2026, time.March, 2, 7, 0, 0, 0, time.UTC),
		ActivityType: "cycling",
		DurationMin:  60,
	})
	require.Equal(t, http.StatusAccepted, rr.Code)
	created := decode[CreateActivityResponse](t, rr)

	rr = api.do(http.MethodGet, "/v1/activities/"+created.Activity.ActivityID, other, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(http.MethodGet, "/v1/activities/"+created.Activity.ActivityID, owner, nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestScopesAreEnforced(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(http.MethodGet, "/v1/activities", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	readOnly := api.token("user-1", auth.ScopeHealthRead)
	rr = api.do(http.MethodPost, "/v1/duplicates/scan", readOnly, nil)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do(http.MethodGet, "/v1/activities", readOnly, nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCreateActivityValidation(t *testing.T) {
	api := newTestAPI(t)
	token := api.token("user-1", auth.ScopeHealthWrite)

	rr := api.do(http.MethodPost, "/v1/activities", token, CreateActivityRequest{Source: "garmin", ActivityType: "running"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "validation_failed", decode[map[string]string](t, rr)["type"])

	rr = api.do(http.MethodPost, "/v1/activities", token, map[string]any{"unexpected": true})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSleepAggregationAndReadiness(t *testing.T) {
	api := newTestAPI(t)
	token := api.token("user-1", auth.ScopeHealthWrite)

	rr := api.do(http.MethodPut, "/v1/sleep", token, SleepLogRequest{
		Date:          "2026-03-02",
		Source:        "garmin",
		TotalSleepMin: floatPtr(420),
		SleepScore:    floatPtr(80),
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = api.do(http.MethodPut, "/v1/sleep", token, SleepLogRequest{
		Date:          "2026-03-02",
		Source:        "oura",
		TotalSleepMin: floatPtr(440),
		SleepScore:    floatPtr(84),
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = api.do(http.MethodGet, "/v1/sleep/2026-03-02", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	night := decode[AggregatedSleepResponse](t, rr)
	require.Equal(t, "garmin", night.PrimarySource)
	require.ElementsMatch(t, []string{"garmin", "oura"}, night.Sources)
	require.InDelta(t, 82.0, *night.Sleep.SleepScore, 0.001)
	require.InDelta(t, 430.0, *night.Sleep.TotalSleepMin, 0.001)

	rr = api.do(http.MethodGet, "/v1/sleep/2026-03-03", token, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(http.MethodPost, "/v1/readiness/check-in", token, CheckInRequest{
		Date:       "2026-03-02",
		Energy:     8,
		Soreness:   2,
		Stress:     2,
		Mood:       "good",
		Motivation: 7,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	readiness := decode[ReadinessView](t, rr)
	require.Equal(t, 62, readiness.Score)
	require.Equal(t, "balanced", readiness.Status)
	require.Equal(t, "manual_partial", readiness.Method)

	rr = api.do(http.MethodGet, "/v1/readiness/2026-03-02", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 62, decode[ReadinessView](t, rr).Score)

	rr = api.do(http.MethodPost, "/v1/readiness/check-in", token, CheckInRequest{Energy: 11, Mood: "good", Motivation: 5})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTrainingLoadAndProfile(t *testing.T) {
	api := newTestAPI(t)
	token := api.token("user-1", auth.ScopeHealthWrite)

	rr := api.do(http.MethodPut, "/v1/profile", token, ProfileView{ThresholdHR: floatPtr(170), RestingHR: floatPtr(60)})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = api.do(http.MethodPost, "/v1/activities", token, CreateActivityRequest{
		Source:       "garmin",
		StartedAt:    time.Date(2026, time.March, 2, 7, 0, 0, 0, time.UTC),
		ActivityType: "running",
		DurationMin:  60,
		AvgHeartRate: floatPtr(150),
	})
	require.Equal(t, http.StatusAccepted, rr.Code)
	created := decode[CreateActivityResponse](t, rr)
	require.Equal(t, 67, *created.Activity.TSS)

	rr = api.do(http.MethodPost, "/v1/training-load/2026-03-02", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	load := decode[TrainingLoadView](t, rr)
	require.InDelta(t, 9.57, load.AcuteLoad, 0.001)
	require.InDelta(t, 2.39, load.ChronicLoad, 0.001)
	require.Equal(t, "overreaching", load.TrainingStatus)

	rr = api.do(http.MethodGet, "/v1/training-load/2026-03-02", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = api.do(http.MethodPost, "/v1/activities/"+created.Activity.ActivityID+"/tss?force=true", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 67, decode[TSSResponse](t, rr).TSS)

	rr = api.do(http.MethodGet, "/v1/profile", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.InDelta(t, 170.0, *decode[ProfileView](t, rr).ThresholdHR, 0.001)
}
