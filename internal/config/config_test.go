package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDev, cfg.AppEnv)
	assert.Equal(t, "pbp-refresh", cfg.ServiceName)
	assert.Equal(t, "playoffs", cfg.Mode)
	assert.Equal(t, "data", cfg.DataRoot)
	assert.Equal(t, 30*time.Minute, cfg.LockStaleAfter)
	assert.Equal(t, time.Hour, cfg.InactiveWindow)
	assert.Equal(t, 4, cfg.GamecenterConcurrency)
	assert.False(t, cfg.ArchiveEnabled())
}

func TestLoad_ExplicitModeRequiresGameIDs(t *testing.T) {
	t.Setenv("PBP_MODE", "explicit")

	_, err := Load()
	assert.ErrorContains(t, err, "PBP_GAME_IDS")
}

func TestLoad_ExplicitModeWithGameIDs(t *testing.T) {
	t.Setenv("PBP_MODE", "explicit")
	t.Setenv("PBP_GAME_IDS", " 2025_19_PIT_BUF , 2025_19_GB_PHI ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"2025_19_PIT_BUF", "2025_19_GB_PHI"}, cfg.GameIDs)
}

func TestLoad_WeekModeRequiresWeek(t *testing.T) {
	t.Setenv("PBP_MODE", "week")

	_, err := Load()
	assert.ErrorContains(t, err, "PBP_WEEK")
}

func TestLoad_InvalidMode(t *testing.T) {
	t.Setenv("PBP_MODE", "everything")

	_, err := Load()
	assert.ErrorContains(t, err, "PBP_MODE")
}

func TestLoad_InvalidAppEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	assert.ErrorContains(t, err, "APP_ENV")
}

func TestLoad_UptraceRequiresDSN(t *testing.T) {
	t.Setenv("UPTRACE_ENABLED", "true")

	_, err := Load()
	assert.ErrorContains(t, err, "UPTRACE_DSN")
}

func TestLoad_DurationsAndOverrides(t *testing.T) {
	t.Setenv("PBP_MODE", "week")
	t.Setenv("PBP_WEEK", "19")
	t.Setenv("PBP_SEASON", "2025")
	t.Setenv("PBP_INACTIVE_WINDOW", "45m")
	t.Setenv("GAMECENTER_TIMEOUT", "5s")
	t.Setenv("DB_URL", "postgres://u:p@localhost/pbp")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2025, cfg.Season)
	assert.Equal(t, 19, cfg.Week)
	assert.Equal(t, 45*time.Minute, cfg.InactiveWindow)
	assert.Equal(t, 5*time.Second, cfg.GamecenterTimeout)
	assert.True(t, cfg.ArchiveEnabled())
}

func TestLoad_RejectsNonPositiveDuration(t *testing.T) {
	t.Setenv("PBP_DAEMON_INTERVAL", "-1m")

	_, err := Load()
	assert.ErrorContains(t, err, "PBP_DAEMON_INTERVAL")
}
