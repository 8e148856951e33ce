package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/healthsync/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	in := &domain.Cursor{StartedAt: time.Date(2025, time.March, 3, 6, 30, 0, 125, time.UTC), ID: "act-1"}

	out, err := DecodeCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.True(t, in.StartedAt.Equal(out.StartedAt))
	require.Equal(t, in.ID, out.ID)
}

func TestDecodeCursorEmptyMeansFirstPage(t *testing.T) {
	cursor, err := DecodeCursor("  ")
	require.NoError(t, err)
	require.Nil(t, cursor)
	require.Empty(t, EncodeCursor(nil))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"!!!", "bm8tc2VwYXJhdG9y", "bm90LWEtdGltZXxpZA"} {
		_, err := DecodeCursor(token)
		require.ErrorIs(t, err, domain.ErrInvalidInput, token)
	}
}
