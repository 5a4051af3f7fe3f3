package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gridironlab/pbp-refresh/internal/platform/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Config stores runtime configuration for the refresher.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	HTTPAddr       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	DataRoot string
	Season   int
	Week     int
	Mode     string
	GameIDs  []string

	LockStaleAfter time.Duration
	InactiveWindow time.Duration
	DaemonInterval time.Duration

	GamecenterBaseURL               string
	GamecenterTimeout               time.Duration
	GamecenterMaxRetries            int
	GamecenterConcurrency           int
	GamecenterCircuitEnabled        bool
	GamecenterCircuitFailureCount   int
	GamecenterCircuitOpenTimeout    time.Duration
	GamecenterCircuitHalfOpenMaxReq int

	NflverseScheduleURL    string
	NflverseRosterTemplate string
	NflverseTimeout        time.Duration
	NflverseMaxRetries     int

	// DBURL is optional; when set, raw feed payloads are archived to
	// postgres for replay and audit.
	DBURL                   string
	DBDisablePreparedBinary bool

	UptraceEnabled bool
	UptraceDSN     string

	PyroscopeEnabled       bool
	PyroscopeServerAddress string
	PyroscopeAppName       string
	PyroscopeAuthToken     string

	PprofEnabled bool
	PprofAddr    string

	InternalJobToken string

	LogLevel logging.Level
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	season, err := getEnvAsInt("PBP_SEASON", time.Now().Year())
	if err != nil {
		return Config{}, fmt.Errorf("parse PBP_SEASON: %w", err)
	}
	week, err := getEnvAsInt("PBP_WEEK", 0)
	if err != nil {
		return Config{}, fmt.Errorf("parse PBP_WEEK: %w", err)
	}

	mode := strings.TrimSpace(strings.ToLower(getEnv("PBP_MODE", "playoffs")))
	switch mode {
	case "explicit", "week", "playoffs":
	default:
		return Config{}, fmt.Errorf("invalid PBP_MODE %q: valid values are explicit, week, playoffs", mode)
	}
	if mode == "week" && week < 1 {
		return Config{}, fmt.Errorf("PBP_WEEK must be >= 1 when PBP_MODE=week")
	}

	lockStaleAfter, err := getEnvAsDuration("PBP_LOCK_STALE_AFTER", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	inactiveWindow, err := getEnvAsDuration("PBP_INACTIVE_WINDOW", time.Hour)
	if err != nil {
		return Config{}, err
	}
	daemonInterval, err := getEnvAsDuration("PBP_DAEMON_INTERVAL", 2*time.Minute)
	if err != nil {
		return Config{}, err
	}

	gcTimeout, err := getEnvAsDuration("GAMECENTER_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	gcMaxRetries, err := getEnvAsInt("GAMECENTER_MAX_RETRIES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse GAMECENTER_MAX_RETRIES: %w", err)
	}
	gcConcurrency, err := getEnvAsInt("GAMECENTER_CONCURRENCY", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse GAMECENTER_CONCURRENCY: %w", err)
	}
	if gcConcurrency < 1 {
		return Config{}, fmt.Errorf("GAMECENTER_CONCURRENCY must be >= 1")
	}
	gcCircuitEnabled, err := getEnvAsBool("GAMECENTER_CIRCUIT_ENABLED", true)
	if err != nil {
		return Config{}, err
	}
	gcCircuitFailureCount, err := getEnvAsInt("GAMECENTER_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse GAMECENTER_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	gcCircuitOpenTimeout, err := getEnvAsDuration("GAMECENTER_CIRCUIT_OPEN_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	gcCircuitHalfOpenMaxReq, err := getEnvAsInt("GAMECENTER_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse GAMECENTER_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}

	nvTimeout, err := getEnvAsDuration("NFLVERSE_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	nvMaxRetries, err := getEnvAsInt("NFLVERSE_MAX_RETRIES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse NFLVERSE_MAX_RETRIES: %w", err)
	}

	readTimeout, err := getEnvAsDuration("APP_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	writeTimeout, err := getEnvAsDuration("APP_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	uptraceEnabled, err := getEnvAsBool("UPTRACE_ENABLED", false)
	if err != nil {
		return Config{}, err
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pyroscopeEnabled, err := getEnvAsBool("PYROSCOPE_ENABLED", false)
	if err != nil {
		return Config{}, err
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}

	pprofEnabled, err := getEnvAsBool("PPROF_ENABLED", false)
	if err != nil {
		return Config{}, err
	}

	dbDisablePreparedBinary, err := getEnvAsBool("DB_DISABLE_PREPARED_BINARY_RESULT", true)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:         appEnv,
		ServiceName:    getEnv("APP_SERVICE_NAME", "pbp-refresh"),
		ServiceVersion: getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:       getEnv("APP_HTTP_ADDR", ":8080"),
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,

		DataRoot: getEnv("PBP_DATA_ROOT", "data"),
		Season:   season,
		Week:     week,
		Mode:     mode,
		GameIDs:  splitCSV(getEnv("PBP_GAME_IDS", "")),

		LockStaleAfter: lockStaleAfter,
		InactiveWindow: inactiveWindow,
		DaemonInterval: daemonInterval,

		GamecenterBaseURL:               getEnv("GAMECENTER_BASE_URL", ""),
		GamecenterTimeout:               gcTimeout,
		GamecenterMaxRetries:            gcMaxRetries,
		GamecenterConcurrency:           gcConcurrency,
		GamecenterCircuitEnabled:        gcCircuitEnabled,
		GamecenterCircuitFailureCount:   gcCircuitFailureCount,
		GamecenterCircuitOpenTimeout:    gcCircuitOpenTimeout,
		GamecenterCircuitHalfOpenMaxReq: gcCircuitHalfOpenMaxReq,

		NflverseScheduleURL:    getEnv("NFLVERSE_SCHEDULE_URL", ""),
		NflverseRosterTemplate: getEnv("NFLVERSE_ROSTER_TEMPLATE", ""),
		NflverseTimeout:        nvTimeout,
		NflverseMaxRetries:     nvMaxRetries,

		DBURL:                   strings.TrimSpace(getEnv("DB_URL", "")),
		DBDisablePreparedBinary: dbDisablePreparedBinary,

		UptraceEnabled: uptraceEnabled,
		UptraceDSN:     uptraceDSN,

		PyroscopeEnabled:       pyroscopeEnabled,
		PyroscopeServerAddress: pyroscopeServerAddress,
		PyroscopeAuthToken:     strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),

		PprofEnabled: pprofEnabled,
		PprofAddr:    getEnv("PPROF_ADDR", ":6060"),

		InternalJobToken: strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", "")),

		LogLevel: parseLogLevel(getEnv("LOG_LEVEL", "info")),
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))

	if cfg.Mode == "explicit" && len(cfg.GameIDs) == 0 {
		return Config{}, fmt.Errorf("PBP_GAME_IDS is required when PBP_MODE=explicit")
	}
	if strings.TrimSpace(cfg.DataRoot) == "" {
		return Config{}, fmt.Errorf("PBP_DATA_ROOT cannot be empty")
	}

	return cfg, nil
}

// ArchiveEnabled reports whether raw payloads should be mirrored to postgres.
func (c Config) ArchiveEnabled() bool { return c.DBURL != "" }

func parseAppEnv(v string) (string, error) {
	v = strings.TrimSpace(strings.ToLower(v))
	switch v {
	case EnvDev, EnvStage, EnvProd:
		return v, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func parseLogLevel(v string) logging.Level {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return parsed, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
