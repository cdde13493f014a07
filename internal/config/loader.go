package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "gatewright.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "GATEWRIGHT_PORT")
	setString(&cfg.Server.CORSOrigin, "GATEWRIGHT_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "GATEWRIGHT_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "GATEWRIGHT_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "GATEWRIGHT_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "GATEWRIGHT_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "GATEWRIGHT_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setString(&cfg.Logging.Level, "GATEWRIGHT_LOG_LEVEL")
	setString(&cfg.Logging.Service, "GATEWRIGHT_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "GATEWRIGHT_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "GATEWRIGHT_BREAKER_TIMEOUT")
	setInt64(&cfg.Cache.MaxSizeMB, "GATEWRIGHT_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.VerdictTTL, "GATEWRIGHT_CACHE_VERDICT_TTL")
	setBool(&cfg.Gates.NoSoftGates, "GATEWRIGHT_NO_SOFT_GATES")
	setDuration(&cfg.Gates.ValidatorTimeout, "GATEWRIGHT_VALIDATOR_TIMEOUT")
	setInt(&cfg.Pipeline.MaxIterations, "GATEWRIGHT_PIPELINE_MAX_ITERATIONS")
	setDuration(&cfg.Pipeline.ToolTimeout, "GATEWRIGHT_TOOL_TIMEOUT")
	setInt(&cfg.Pipeline.StallThreshold, "GATEWRIGHT_STALL_THRESHOLD")
	setInt64(&cfg.Pipeline.Budgets.Plan.Limit, "GATEWRIGHT_BUDGET_PLAN")
	setInt64(&cfg.Pipeline.Budgets.Spec.Limit, "GATEWRIGHT_BUDGET_SPEC")
	setInt64(&cfg.Pipeline.Budgets.Fix.Limit, "GATEWRIGHT_BUDGET_FIX")
	setInt64(&cfg.Pipeline.Budgets.Execute.Limit, "GATEWRIGHT_BUDGET_EXECUTE")
	setBool(&cfg.OTel.Enabled, "GATEWRIGHT_OTEL_ENABLED")
	setString(&cfg.OTel.Endpoint, "GATEWRIGHT_OTEL_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Pipeline.MaxIterations < 1 {
		return errors.New("pipeline.max_iterations must be >= 1")
	}
	if len(cfg.Sandbox.AllowedCommands) == 0 {
		return errors.New("sandbox.allowed_commands must not be empty")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
