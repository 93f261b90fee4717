package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("WRITE_RATE_BURST", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "occurrences:cache:epoch", cfg.Redis.EpochKey)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 5, cfg.Occurrences.WriteRateBurst)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{Timezone: "Nowhere/Invalid"}
	assert.Equal(t, time.UTC, cfg.Location())

	var nilCfg *Config
	assert.Equal(t, time.UTC, nilCfg.Location())
}
