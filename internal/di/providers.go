package di

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ReviewCast/internal/domain/repository"
	domsvc "ReviewCast/internal/domain/service"
	"ReviewCast/internal/handler/api"
	internalrepo "ReviewCast/internal/repository"
	"ReviewCast/internal/scheduler"
	"ReviewCast/internal/services/alert"
	"ReviewCast/internal/services/forecast"
	"ReviewCast/internal/services/scale"
	"ReviewCast/internal/usecase"
	"ReviewCast/pkg/cache"
	pkgch "ReviewCast/pkg/clickhouse"
	"ReviewCast/pkg/config"
	xhttp "ReviewCast/pkg/http"
	pkgkafka "ReviewCast/pkg/kafka"
	applogger "ReviewCast/pkg/logger"
	"ReviewCast/pkg/metrics"
	"ReviewCast/pkg/ratelimit"
	"ReviewCast/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: "stdout",
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.Default()
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
// When a logs topic is configured the logger ships error digests through it.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}

	if cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Source:         "reviewcast",
			Publisher:      producer,
		})
	}

	cleanup := func() {
		l.RemoveCollector()
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideAlertPublisher publishes to Kafka when a producer exists and to the
// log otherwise.
func ProvideAlertPublisher(cfg *config.Config, producer *pkgkafka.Producer, l *applogger.Logger) repository.AlertPublisher {
	if producer == nil {
		return internalrepo.NewLogAlertPublisher(l)
	}
	return internalrepo.NewKafkaAlertPublisher(producer, cfg.Kafka.AlertsTopic)
}

// ProvideThresholdStore selects the threshold backend.
func ProvideThresholdStore(cfg *config.Config, l *applogger.Logger) (repository.ThresholdStore, func(), error) {
	switch cfg.Storage.Thresholds {
	case config.StoreRedis, config.StoreLayered:
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Redis.Host),
			cache.WithRedisPort(cfg.Redis.Port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("threshold store: %w", err)
		}
		var svc cache.Service = rc
		if cfg.Storage.Thresholds == config.StoreLayered {
			svc = cache.NewLayeredCache(rc, cache.WithLocalTTL(cfg.Redis.LocalTTL))
		}
		return internalrepo.NewCacheThresholdStore(svc), func() { _ = svc.Close() }, nil

	case config.StoreSQLite:
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("threshold store dir: %w", err)
			}
		}
		st, err := internalrepo.NewSQLiteThresholdStore(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("threshold store: %w", err)
		}
		st.SetLogger(l)
		return st, func() { _ = st.Close() }, nil

	default:
		mc := cache.NewMemoryCache()
		return internalrepo.NewCacheThresholdStore(mc), func() { _ = mc.Close() }, nil
	}
}

// ProvideClickHouseClient creates a ClickHouse client and schema, or nil when
// series are kept in memory.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.Storage.Series != config.StoreClickHouse {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if cfg.ClickHouse.Migrate {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.Database)); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}

	return client, func() { _ = client.Close() }, nil
}

// ProvideSeriesStore selects the series backend.
func ProvideSeriesStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) repository.SeriesStore {
	if ch == nil {
		return internalrepo.NewMemorySeriesStore()
	}
	st := internalrepo.NewCHSeriesStore(ch, cfg.ClickHouse.Database)
	st.SetLogger(l)
	return st
}

// ProvideForecaster selects the forecaster implementation by mode.
func ProvideForecaster(cfg *config.Config, l *applogger.Logger) (domsvc.Forecaster, error) {
	fc := cfg.Forecaster
	switch fc.Mode {
	case forecast.ModeSubprocess:
		f := forecast.NewSubprocessForecaster(fc.Command, fc.Args, fc.WorkDir,
			forecast.WithTimeout(fc.Timeout),
			forecast.WithResultFile(fc.ResultFile),
			forecast.WithKeepArtifacts(fc.KeepArtifacts),
			forecast.WithMinHistory(fc.MinHistory),
			forecast.WithCommandDir(fc.CommandDir),
		)
		f.SetLogger(l)
		return f, nil
	case forecast.ModeHTTP:
		f := forecast.NewHTTPForecaster(fc.PythonServiceURL, fc.Timeout, fc.Retries, fc.MinHistory)
		f.SetLogger(l)
		return f, nil
	case forecast.ModeStub:
		return forecast.NewStubForecaster(forecast.Persistence(cfg.Pipeline.TrainRatio)), nil
	default:
		return nil, fmt.Errorf("unknown forecaster mode %q", fc.Mode)
	}
}

// ProvideReconstructor creates the scale reconstructor.
func ProvideReconstructor(cfg *config.Config) *scale.Reconstructor {
	return scale.NewReconstructor(scale.WithTrainRatio(cfg.Pipeline.TrainRatio))
}

// ProvideAlertEngine creates the alert engine.
func ProvideAlertEngine(cfg *config.Config, store repository.ThresholdStore) *alert.Engine {
	return alert.NewEngine(store, alert.WithMultiplier(cfg.Alert.DefaultMultiplier))
}

// ProvidePipeline creates the pipeline use case.
func ProvidePipeline(
	cfg *config.Config,
	store repository.SeriesStore,
	forecaster domsvc.Forecaster,
	recon *scale.Reconstructor,
	engine *alert.Engine,
	pub repository.AlertPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(store, forecaster, recon, engine,
		usecase.WithPublisher(pub),
		usecase.WithMetrics(m),
		usecase.WithLogger(l),
		usecase.WithUploadDir(cfg.Upload.Dir),
		usecase.WithMaxHorizon(cfg.Pipeline.MaxHorizonDays),
	)
}

// ProvideRateLimiter creates the forecast endpoint limiter.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Forecast.Capacity, cfg.RateLimit.Forecast.RefillPerSec)
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(l *applogger.Logger, p *usecase.Pipeline, limiter *ratelimit.Limiter) xhttp.Handler {
	return api.NewPipelineHandler(l, p, limiter)
}

// ProvideScheduler creates the risk scheduler, or nil when disabled.
func ProvideScheduler(cfg *config.Config, p *usecase.Pipeline, l *applogger.Logger) (server.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	s := scheduler.New(p, cfg.Scheduler.Timeout, l)
	if err := s.Register(cfg.Scheduler.RiskCron); err != nil {
		return nil, err
	}
	return s, nil
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, l *applogger.Logger, h xhttp.Handler, sched server.Scheduler) *server.App {
	return server.New(cfg, l, h, sched)
}
