package outbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureSchemaReturnsExistingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/subjects/healthsync.readiness-value/versions/latest", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":12,"version":3}`))
	}))
	defer srv.Close()

	id, err := NewSchemaRegistryClient(srv.URL+"/").EnsureSchema(context.Background(), "healthsync.readiness-value", readinessUpdatedSchema)
	require.NoError(t, err)
	require.Equal(t, 12, id)
}

func TestEnsureSchemaRegistersMissingSubject(t *testing.T) {
	var registered map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		require.Equal(t, "/subjects/healthsync.merge_requests-value/versions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&registered))
		_, _ = w.Write([]byte(`{"id":44}`))
	}))
	defer srv.Close()

	id, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "healthsync.merge_requests-value", mergeRequestCreatedSchema)
	require.NoError(t, err)
	require.Equal(t, 44, id)
	require.Equal(t, "JSON", registered["schemaType"])
}

func TestEnsureSchemaDoesNotRegisterOnServerError(t *testing.T) {
	posts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "healthsync.readiness-value", readinessUpdatedSchema)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrSubjectNotFound)
	require.Zero(t, posts)
}
