package di

import (
	"context"
	"fmt"
	"time"

	"SigRelay/internal/domain/repository"
	"SigRelay/internal/handler/api"
	mid "SigRelay/internal/middleware"
	internalrepo "SigRelay/internal/repository"
	"SigRelay/internal/service/cache"
	"SigRelay/internal/service/pocketoption"
	"SigRelay/internal/service/ratelimit"
	"SigRelay/internal/service/telegram"
	"SigRelay/internal/usecase"
	pkgch "SigRelay/pkg/clickhouse"
	"SigRelay/pkg/config"
	xhttp "SigRelay/pkg/http"
	pkgkafka "SigRelay/pkg/kafka"
	applogger "SigRelay/pkg/logger"
	"SigRelay/pkg/metrics"
	"SigRelay/pkg/queue"
	"SigRelay/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideAccountStore creates the Redis-backed account store.
func ProvideAccountStore(cfg *config.Config, l *applogger.Logger) (repository.AccountStore, error) {
	store, err := internalrepo.NewRedisAccountStore(internalrepo.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("account store: %w", err)
	}
	return store, nil
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when the
// archive leg is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when the publish
// leg is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalPublisher picks Kafka when configured, noop otherwise.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return internalrepo.NoopSignalPublisher{}
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topic)
}

// ProvideSignalArchive picks ClickHouse when configured, a bounded
// in-memory archive otherwise.
func ProvideSignalArchive(chClient *pkgch.Client, l *applogger.Logger) repository.SignalArchive {
	if chClient == nil {
		return internalrepo.NewMemorySignalArchive(1000)
	}
	store := internalrepo.NewCHSignalStore(chClient)
	store.SetLogger(l)
	return store
}

// ProvideAuthProvider creates the MTProto gateway client.
func ProvideAuthProvider(cfg *config.Config) repository.AuthProvider {
	return telegram.NewGateway(cfg.Telegram.GatewayURL, cfg.Telegram.Timeout)
}

// ProvideMessageStream creates the gateway update stream.
func ProvideMessageStream(cfg *config.Config, l *applogger.Logger) repository.MessageStream {
	return telegram.NewStream(
		cfg.Telegram.WebSocketURL,
		cfg.Telegram.ReconnectDelay,
		cfg.Telegram.PingInterval,
		l,
	)
}

// ProvideBalanceProvider creates the broker balance client.
func ProvideBalanceProvider(cfg *config.Config, l *applogger.Logger) repository.BalanceProvider {
	return pocketoption.NewClient(
		cfg.PocketOption.WebSocketURL,
		cfg.PocketOption.Origin,
		cfg.PocketOption.DialTimeout,
		cfg.PocketOption.ReadTimeout,
		l,
	)
}

// ProvideAuthSession creates the login state machine.
func ProvideAuthSession(provider repository.AuthProvider, store repository.AccountStore, m repository.Metrics, l *applogger.Logger, cfg *config.Config) *usecase.AuthSession {
	return usecase.NewAuthSession(provider, m, l, usecase.AuthConfig{
		MaxAttempts:    cfg.Auth.MaxAttempts,
		PendingTimeout: cfg.Auth.PendingTimeout,
	}, usecase.WithSessionStore(store))
}

// ProvideAccountRegistry creates the account registry.
func ProvideAccountRegistry(store repository.AccountStore, l *applogger.Logger) *usecase.AccountRegistry {
	return usecase.NewAccountRegistry(store, l)
}

// ProvideWorkerPool creates the balance worker pool.
func ProvideWorkerPool(cfg *config.Config, l *applogger.Logger) *queue.Pool {
	return queue.NewPool(l, &queue.PoolConfig{
		Workers:   cfg.Balance.Workers,
		QueueSize: cfg.Balance.QueueSize,
	})
}

// ProvideBalanceFetcher creates the balance fetcher.
func ProvideBalanceFetcher(registry *usecase.AccountRegistry, provider repository.BalanceProvider, pool *queue.Pool, m repository.Metrics, l *applogger.Logger, cfg *config.Config) *usecase.BalanceFetcher {
	return usecase.NewBalanceFetcher(registry, provider, pool, m, l, usecase.BalanceConfig{
		FetchTimeout: cfg.Balance.FetchTimeout,
	})
}

// ProvideBalanceRefresher creates the periodic refresher.
func ProvideBalanceRefresher(registry *usecase.AccountRegistry, fetcher *usecase.BalanceFetcher, l *applogger.Logger, cfg *config.Config) *usecase.BalanceRefresher {
	return usecase.NewBalanceRefresher(registry, fetcher, l, cfg.Balance.RefreshInterval)
}

// ProvideSignalRelay creates the downstream relay.
func ProvideSignalRelay(pub repository.SignalPublisher, archive repository.SignalArchive, m repository.Metrics, l *applogger.Logger) *usecase.SignalRelay {
	return usecase.NewSignalRelay(pub, archive, m, l)
}

// ProvideMessagePipeline builds the throttled pipeline between the stream
// and the relay.
func ProvideMessagePipeline(relay *usecase.SignalRelay, m repository.Metrics, cfg *config.Config) *mid.MessagePipeline {
	return mid.NewMessagePipeline(relay, m,
		mid.WithMaxRPS(cfg.Listener.MaxRPS),
		mid.WithBufferSize(500),
	)
}

// ProvideChannelListener creates the channel listener.
func ProvideChannelListener(auth *usecase.AuthSession, stream repository.MessageStream, pipe *mid.MessagePipeline, store repository.AccountStore, m repository.Metrics, l *applogger.Logger, cfg *config.Config) *usecase.ChannelListener {
	return usecase.NewChannelListener(auth, stream, pipe, store, m, l, usecase.ListenerConfig{
		BufferCapacity: cfg.Listener.BufferCapacity,
	})
}

// ProvideStatusAggregator creates the status view.
func ProvideStatusAggregator(auth *usecase.AuthSession, listener *usecase.ChannelListener, registry *usecase.AccountRegistry) *usecase.StatusAggregator {
	return usecase.NewStatusAggregator(auth, listener, registry)
}

// ProvideRouter assembles the HTTP handlers.
func ProvideRouter(
	cfg *config.Config,
	l *applogger.Logger,
	auth *usecase.AuthSession,
	listener *usecase.ChannelListener,
	relay *usecase.SignalRelay,
	status *usecase.StatusAggregator,
	registry *usecase.AccountRegistry,
	fetcher *usecase.BalanceFetcher,
	refresher *usecase.BalanceRefresher,
	chClient *pkgch.Client,
) xhttp.Handler {
	limiter := ratelimit.New()
	var respCache cache.BytesCache = cache.NewTTLCache()
	if cfg.Redis.Addr != "" {
		respCache = cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	authH := api.NewAuthHandler(l, auth, limiter)
	listenH := api.NewListenerHandler(l, listener, relay, status, respCache)
	accountsH := api.NewAccountsHandler(l, registry, fetcher, refresher)

	r := api.NewRouter(authH, listenH, accountsH)
	if chClient != nil {
		r.AddHealthCheck("clickhouse", chClient)
	}
	return r
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	auth *usecase.AuthSession,
	registry *usecase.AccountRegistry,
	pipe *mid.MessagePipeline,
	pool *queue.Pool,
	listener *usecase.ChannelListener,
	refresher *usecase.BalanceRefresher,
	relay *usecase.SignalRelay,
	store repository.AccountStore,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
) *server.App {
	return server.New(cfg, l, handler, auth, registry, pipe, pool, listener, refresher, relay, store, chClient, producer)
}
