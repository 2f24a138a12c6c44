package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StoreMemory     = "memory"
	StoreRedis      = "redis"
	StoreLayered    = "layered"
	StoreSQLite     = "sqlite"
	StoreClickHouse = "clickhouse"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15m"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		BodyLimitMB     int64         `yaml:"body_limit_mb" default:"32" validate:"gte=0"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"5s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logger struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error fatal panic"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
	} `yaml:"logger"`
	Upload struct {
		Dir string `yaml:"dir" default:"uploads" validate:"required"`
	} `yaml:"upload"`
	Pipeline struct {
		TrainRatio     float64 `yaml:"train_ratio" default:"0.7" validate:"gt=0,lte=1"`
		MaxHorizonDays int     `yaml:"max_horizon_days" default:"90" validate:"gt=0"`
		DefaultProblem string  `yaml:"default_problem" default:"fake_review" validate:"oneof=fake_review sales_forecast"`
	} `yaml:"pipeline"`
	Forecaster struct {
		Mode             string        `yaml:"mode" default:"stub" validate:"oneof=subprocess http stub"`
		Command          string        `yaml:"command" default:"python"`
		Args             []string      `yaml:"args"`
		CommandDir       string        `yaml:"command_dir"`
		WorkDir          string        `yaml:"work_dir" default:"work/forecasts"`
		ResultFile       string        `yaml:"result_file" default:"real_prediction.npy"`
		Timeout          time.Duration `yaml:"timeout" default:"10m" validate:"gt=0"`
		KeepArtifacts    bool          `yaml:"keep_artifacts"`
		MinHistory       int           `yaml:"min_history" default:"1" validate:"gte=1"`
		PythonServiceURL string        `yaml:"python_service_url"`
		Retries          int           `yaml:"retries" default:"2" validate:"gte=1"`
	} `yaml:"forecaster"`
	Alert struct {
		DefaultMultiplier float64 `yaml:"default_multiplier" default:"1.5" validate:"gt=0"`
	} `yaml:"alert"`
	Storage struct {
		Thresholds string `yaml:"thresholds" default:"memory" validate:"oneof=memory redis layered sqlite"`
		Series     string `yaml:"series" default:"memory" validate:"oneof=memory clickhouse"`
	} `yaml:"storage"`
	Redis struct {
		Host     string        `yaml:"host" default:"localhost"`
		Port     int           `yaml:"port" default:"6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"reviewcast"`
		LocalTTL time.Duration `yaml:"local_ttl" default:"30s"`
	} `yaml:"redis"`
	SQLite struct {
		Path string `yaml:"path" default:"data/reviewcast.db"`
	} `yaml:"sqlite"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"reviewcast"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		Migrate          bool          `yaml:"migrate" default:"true"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		AlertsTopic  string   `yaml:"alerts_topic" default:"reviewcast.alerts"`
		LogsTopic    string   `yaml:"logs_topic"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Scheduler struct {
		Enabled  bool          `yaml:"enabled" default:"true"`
		RiskCron string        `yaml:"risk_cron" default:"0 0 * * * *"`
		Timeout  time.Duration `yaml:"timeout" default:"5m"`
	} `yaml:"scheduler"`
	RateLimit struct {
		Forecast struct {
			Capacity     float64 `yaml:"capacity" default:"10"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"0.5"`
		} `yaml:"forecast"`
	} `yaml:"rate_limit"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	c.Forecaster.Args = DefaultForecasterArgs()
	return &c
}

// DefaultForecasterArgs is the argument template for the Informer entry point.
func DefaultForecasterArgs() []string {
	return []string{
		"main_informer.py",
		"--model", "informer",
		"--data", "custom",
		"--root_path", "{root_path}",
		"--data_path", "{data_path}",
		"--features", "{features}",
		"--target", "{target}",
		"--enc_in", "{enc_in}",
		"--dec_in", "{dec_in}",
		"--c_out", "{c_out}",
		"--pred_len", "{pred_len}",
		"--do_predict",
	}
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	c.Forecaster.Args = nil
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(c.Forecaster.Args) == 0 {
		c.Forecaster.Args = DefaultForecasterArgs()
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.LookupEnv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("ENVIRONMENT", &c.Environment)
	str("LOG_LEVEL", &c.Logger.Level)
	str("UPLOAD_DIR", &c.Upload.Dir)
	str("FORECASTER_MODE", &c.Forecaster.Mode)
	str("FORECASTER_COMMAND", &c.Forecaster.Command)
	str("FORECASTER_COMMAND_DIR", &c.Forecaster.CommandDir)
	str("INFORMER_PROJECT_PATH", &c.Forecaster.CommandDir)
	str("FORECASTER_WORK_DIR", &c.Forecaster.WorkDir)
	str("PYTHON_SERVICE_URL", &c.Forecaster.PythonServiceURL)
	str("THRESHOLD_STORE", &c.Storage.Thresholds)
	str("SERIES_STORE", &c.Storage.Series)
	str("REDIS_HOST", &c.Redis.Host)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("SQLITE_PATH", &c.SQLite.Path)
	str("CLICKHOUSE_HOST", &c.ClickHouse.Host)
	str("CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)
	str("KAFKA_ALERTS_TOPIC", &c.Kafka.AlertsTopic)
	str("RISK_CRON", &c.Scheduler.RiskCron)

	if v, ok := lookup("PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v, ok := lookup("REDIS_PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = p
		}
	}
	if v, ok := lookup("FORECASTER_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.Forecaster.Timeout = d
		}
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	switch c.Forecaster.Mode {
	case "subprocess":
		if c.Forecaster.Command == "" {
			return fmt.Errorf("forecaster.command is required in subprocess mode")
		}
		if c.Forecaster.WorkDir == "" {
			return fmt.Errorf("forecaster.work_dir is required in subprocess mode")
		}
	case "http":
		if c.Forecaster.PythonServiceURL == "" {
			return fmt.Errorf("forecaster.python_service_url is required in http mode")
		}
	}
	if c.Storage.Thresholds == StoreSQLite && c.SQLite.Path == "" {
		return fmt.Errorf("sqlite.path is required when storage.thresholds is sqlite")
	}
	if (c.Storage.Thresholds == StoreRedis || c.Storage.Thresholds == StoreLayered) && c.Redis.Host == "" {
		return fmt.Errorf("redis.host is required when storage.thresholds is %s", c.Storage.Thresholds)
	}
	if c.Storage.Series == StoreClickHouse && c.ClickHouse.Database == "" {
		return fmt.Errorf("clickhouse.database is required when storage.series is clickhouse")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.AlertsTopic == "" {
			return fmt.Errorf("kafka.alerts_topic is required when kafka is enabled")
		}
	}
	return nil
}
