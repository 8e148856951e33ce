package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("HEALTHSYNC_STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, DriverMemory, cfg.StoreDriver)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 30*time.Minute, cfg.DuplicateWindow)
	require.InDelta(t, 170, cfg.ThresholdHR, 0.001)
	require.Equal(t, 90, cfg.TSSRecalcDays)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("HEALTHSYNC_STORE_DRIVER", "Postgres")
	t.Setenv("HEALTHSYNC_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("HEALTHSYNC_OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("HEALTHSYNC_TSS_RESTING_HR", "52")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverPostgres, cfg.StoreDriver)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	require.InDelta(t, 52, cfg.RestingHR, 0.001)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("HEALTHSYNC_STORE_DRIVER", "sqlite")

	_, err := Load()
	require.ErrorContains(t, err, "unsupported STORE_DRIVER")
}

func TestValidateRejectsDegenerateHeartRates(t *testing.T) {
	cfg := NewForTesting()
	cfg.ThresholdHR = 55
	require.Error(t, cfg.Validate())
}

func TestNewForTestingIsValid(t *testing.T) {
	cfg := NewForTesting()
	require.NoError(t, cfg.Validate())
}
