package outbox

import (
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/healthsync/internal/events"
)

func TestRouteForKnownEvents(t *testing.T) {
	for _, eventType := range []string{
		events.TypeActivityIngested,
		events.TypeDuplicateFlagged,
		events.TypeMergeRequestCreated,
		events.TypeReadinessUpdated,
	} {
		route, err := RouteFor(eventType)
		require.NoError(t, err, eventType)
		require.Equal(t, route.Topic+"-value", route.SchemaSubject)
		require.True(t, json.Valid([]byte(route.Schema)), eventType)
	}

	_, err := RouteFor("activity.deleted")
	require.Error(t, err)
}

func TestEncodeWireFormat(t *testing.T) {
	framed := encodeWireFormat(513, []byte(`{"a":1}`))
	require.Equal(t, byte(0), framed[0])
	require.Equal(t, uint32(513), binary.BigEndian.Uint32(framed[1:5]))
	require.JSONEq(t, `{"a":1}`, string(framed[5:]))
}
