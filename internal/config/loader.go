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
const DefaultConfigFile = "autoassess.yaml"

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
	setString(&cfg.Server.Port, "AUTOASSESS_PORT")
	setString(&cfg.Server.CORSOrigin, "AUTOASSESS_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "AUTOASSESS_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "AUTOASSESS_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "AUTOASSESS_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "AUTOASSESS_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "AUTOASSESS_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.LLMGateway.URL, "LLM_GATEWAY_URL")
	setString(&cfg.LLMGateway.APIKey, "LLM_GATEWAY_API_KEY")
	setString(&cfg.WorkflowExec.URL, "WORKFLOW_EXEC_URL")
	setString(&cfg.WorkflowExec.APIKey, "WORKFLOW_EXEC_API_KEY")
	setDuration(&cfg.WorkflowExec.Timeout, "WORKFLOW_EXEC_TIMEOUT")
	setString(&cfg.Logging.Level, "AUTOASSESS_LOG_LEVEL")
	setString(&cfg.Logging.Format, "AUTOASSESS_LOG_FORMAT")
	setString(&cfg.Logging.Service, "AUTOASSESS_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "AUTOASSESS_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "AUTOASSESS_BREAKER_TIMEOUT")
	setInt(&cfg.Scoring.MaxConcurrency, "AUTOASSESS_SCORING_MAX_CONCURRENCY")
	setInt(&cfg.Scoring.TaskCap, "AUTOASSESS_SCORING_TASK_CAP")
	setInt(&cfg.Feasibility.StaleDays, "AUTOASSESS_FEASIBILITY_STALE_DAYS")
	setDuration(&cfg.Autocomplete.MaxAge, "AUTOASSESS_AUTOCOMPLETE_MAX_AGE")
	setInt(&cfg.Autocomplete.ResultCap, "AUTOASSESS_AUTOCOMPLETE_RESULT_CAP")
	setInt64(&cfg.Cache.L1MaxSizeMB, "AUTOASSESS_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "AUTOASSESS_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.ResolverTTL, "AUTOASSESS_CACHE_RESOLVER_TTL")
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
	if len(cfg.Scoring.Models) == 0 {
		return errors.New("scoring.models must not be empty")
	}
	if cfg.Scoring.MaxConcurrency < 1 {
		return errors.New("scoring.max_concurrency must be >= 1")
	}
	if cfg.Scoring.MetaModel.Model == "" || cfg.Scoring.FallbackModel.Model == "" {
		return errors.New("scoring.meta_model and scoring.fallback_model are required")
	}
	if cfg.Feasibility.StaleDays < 1 {
		return errors.New("feasibility.stale_days must be >= 1")
	}
	if cfg.Autocomplete.MaxAge <= 0 {
		return errors.New("autocomplete.max_age must be positive")
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

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
