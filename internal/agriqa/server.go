// Package agriqa wires the agricultural Q&A service together.
package agriqa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/version"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/agriqa/internal/agriqa/biz"
	"github.com/kart-io/agriqa/internal/agriqa/handler"
	"github.com/kart-io/agriqa/internal/agriqa/router"
	"github.com/kart-io/agriqa/internal/agriqa/store"
	"github.com/kart-io/agriqa/pkg/component/database"
	"github.com/kart-io/agriqa/pkg/component/etcd"
	"github.com/kart-io/agriqa/pkg/component/milvus"
	"github.com/kart-io/agriqa/pkg/component/redis"
	"github.com/kart-io/agriqa/pkg/infra/discovery"
	"github.com/kart-io/agriqa/pkg/infra/pool"
	"github.com/kart-io/agriqa/pkg/infra/server"
	"github.com/kart-io/agriqa/pkg/infra/tracing"
	"github.com/kart-io/agriqa/pkg/llm"
	"github.com/kart-io/agriqa/pkg/llm/resilience"
	cacheopts "github.com/kart-io/agriqa/pkg/options/cache"
	dbopts "github.com/kart-io/agriqa/pkg/options/database"
	datasetopts "github.com/kart-io/agriqa/pkg/options/dataset"
	discoveryopts "github.com/kart-io/agriqa/pkg/options/discovery"
	llmopts "github.com/kart-io/agriqa/pkg/options/llm"
	logopts "github.com/kart-io/agriqa/pkg/options/logger"
	middlewareopts "github.com/kart-io/agriqa/pkg/options/middleware"
	milvusopts "github.com/kart-io/agriqa/pkg/options/milvus"
	pipelineopts "github.com/kart-io/agriqa/pkg/options/pipeline"
	httpopts "github.com/kart-io/agriqa/pkg/options/server/http"

	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/agriqa/pkg/llm/anthropic"
	_ "github.com/kart-io/agriqa/pkg/llm/deepseek"
	_ "github.com/kart-io/agriqa/pkg/llm/gemini"
	_ "github.com/kart-io/agriqa/pkg/llm/local"
	_ "github.com/kart-io/agriqa/pkg/llm/ollama"
	_ "github.com/kart-io/agriqa/pkg/llm/openai"
)

// Name is the name of the application.
const Name = "agriqa"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	MiddlewareOptions *middlewareopts.Options
	LogOptions        *logopts.Options
	DatasetOptions    *datasetopts.Options
	DatabaseOptions   *dbopts.Options
	CacheOptions      *cacheopts.Options
	MilvusOptions     *milvusopts.Options
	ChatOptions       *llmopts.ProviderOptions
	EmbeddingOptions  *llmopts.ProviderOptions
	PipelineOptions   *pipelineopts.Options
	TracingOptions    *tracing.Options
	DiscoveryOptions  *discoveryopts.Options
}

// Server represents the agriqa server.
type Server struct {
	srv *server.Manager
}

// NewServer initializes and returns a new Server instance. Everything
// opened before a failure is closed again.
func (cfg *Config) NewServer(ctx context.Context) (s *Server, err error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", version.Get().GitVersion)
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting agriqa service...")

	mgr := server.NewManager(cfg.HTTPOptions.ShutdownTimeout)
	defer func() {
		if err != nil {
			_ = mgr.Stop(context.Background())
		}
	}()

	// 2. 初始化链路追踪
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	mgr.OnShutdown("tracing", tp.Shutdown)

	// 3. 初始化 Redis（可选）
	var rdb goredis.Cmdable
	var cacheCheck handler.Check
	if cfg.CacheOptions.Enabled {
		redisClient, err := redis.New(ctx, cfg.CacheOptions.Redis)
		if err != nil {
			logger.Warnw("Failed to connect to redis, cache will be disabled", "error", err.Error())
		} else {
			rdb = redisClient.Client()
			cacheCheck = redisClient.Ping
			mgr.OnShutdown("redis", func(context.Context) error { return redisClient.Close() })
			logger.Infow("Redis cache initialized", "addr", cfg.CacheOptions.Redis.Addr(), "ttl", cfg.CacheOptions.TTL)
		}
	} else {
		logger.Info("Cache is disabled")
	}

	// 4. 初始化数据集存储
	loaderPool, err := newPool(mgr, "dataset", pool.DatasetConfig(cfg.DatasetOptions.Workers))
	if err != nil {
		return nil, err
	}
	datasets, datasetCheck, err := cfg.newDatasetStore(ctx, mgr, loaderPool)
	if err != nil {
		return nil, err
	}
	if cfg.DatasetOptions.LoadOnStart {
		loaded := 0
		for _, r := range datasets.LoadAll(ctx) {
			if r.Err == nil {
				loaded++
			}
		}
		logger.Infow("Datasets loaded", "loaded", loaded)
	}

	// 5. 初始化 LLM 供应商
	embedder, embedCache, err := cfg.newEmbeddingProvider(rdb)
	if err != nil {
		return nil, err
	}
	chat, err := cfg.newChatProvider()
	if err != nil {
		return nil, err
	}

	// 6. 初始化相关性索引
	vectorStore, err := cfg.newVectorStore(ctx)
	if err != nil {
		return nil, err
	}
	mgr.OnShutdown("vector-store", vectorStore.Close)

	index := biz.NewRelevanceIndex(vectorStore, embedder, datasets, &biz.IndexConfig{
		SampleRows: cfg.PipelineOptions.IndexSampleRows,
	})
	if _, err := index.EnsureIndexed(ctx); err != nil {
		logger.Errorw("Failed to build relevance index, questions will fail until it is rebuilt", "error", err.Error())
	}

	// 7. 初始化 Biz 层
	decompCache := biz.NewDecompositionCache(rdb, &biz.DecompositionCacheConfig{
		Enabled:   rdb != nil,
		TTL:       cfg.CacheOptions.TTL,
		KeyPrefix: cfg.CacheOptions.KeyPrefix,
	})
	reasoner := biz.NewReasoner(chat,
		biz.WithTemperature(cfg.PipelineOptions.Temperature),
		biz.WithPromptRows(cfg.PipelineOptions.PromptRows),
		biz.WithDecompositionCache(decompCache),
	)

	retrievalPool, err := newPool(mgr, "retrieval", pool.RetrievalConfig(cfg.PipelineOptions.TopDatasets))
	if err != nil {
		return nil, err
	}

	orchestrator := biz.NewOrchestrator(reasoner, index, datasets,
		biz.WithRetrievalPool(retrievalPool),
		biz.WithOrchestratorConfig(&biz.OrchestratorConfig{
			SearchK:          cfg.PipelineOptions.SearchK,
			RetrieveTop:      cfg.PipelineOptions.TopDatasets,
			QueryLimit:       cfg.PipelineOptions.QueryLimit,
			SummaryThreshold: cfg.PipelineOptions.SummaryThreshold,
			SummaryRows:      cfg.PipelineOptions.MaxGroups,
			SampleRows:       cfg.PipelineOptions.SampleSize,
		}),
	)
	logger.Infow("Question pipeline initialized",
		"chat", chat.Name(),
		"embedding", embedder.Name(),
		"vector_store", cfg.PipelineOptions.VectorStore,
		"cache.enabled", rdb != nil,
	)

	// 8. 初始化 Handler 层
	caches := map[string]handler.CacheClearer{}
	if decompCache.Enabled() {
		caches["decomposition"] = decompCache
	}
	if embedCache != nil {
		caches["embedding"] = cacheClearFunc(embedCache.ClearCache)
	}
	handlers := router.Handlers{
		API: handler.NewHandler(orchestrator, datasets, cfg.PipelineOptions.RequestTimeout,
			handler.WithContextSource(index)),
		Health: handler.NewHealthHandler(handler.HealthChecks{
			Datasets: datasetCheck,
			Index:    indexCheck(index),
			LLM:      breakerCheck(chat),
			Cache:    cacheCheck,
		}, time.Now(), handler.WithPools(loaderPool, retrievalPool),
			handler.WithBreakers(resilience.BreakerOf(chat), resilience.BreakerOf(embedder))),
		Admin: handler.NewAdminHandler(index, caches),
	}

	// 9. 初始化服务器并注册路由
	httpServer := server.NewHTTPServer(cfg.HTTPOptions, cfg.MiddlewareOptions)
	router.Register(httpServer.Engine(), cfg.HTTPOptions.BasePath, handlers)
	if cfg.HTTPOptions.Swagger {
		router.RegisterSwagger(httpServer.Engine(), cfg.HTTPOptions.BasePath)
	}
	mgr.AddServer(httpServer)

	// 10. 注册到 etcd（可选），在 HTTP 服务之后启动、之前停止
	if d := cfg.DiscoveryOptions; d != nil && d.Enabled {
		etcdClient, err := etcd.New(ctx, d.Etcd)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize etcd: %w", err)
		}
		mgr.OnShutdown("etcd", func(context.Context) error { return etcdClient.Close() })
		mgr.AddServer(discovery.NewRegistrar(etcdClient.Raw(), d.ServiceName, d.AdvertiseURL, d.Rule, d.LeaseTTL))
	}

	logger.Info("agriqa service is ready")
	return &Server{srv: mgr}, nil
}

// Run starts the server and blocks until ctx is cancelled or a termination
// signal arrives.
func (s *Server) Run(ctx context.Context) error {
	return s.srv.Run(ctx)
}

// newDatasetStore builds the snapshot repository and remote source behind
// the dataset store.
func (cfg *Config) newDatasetStore(ctx context.Context, mgr *server.Manager, loader *pool.Pool) (*store.DatasetStore, handler.Check, error) {
	opts := cfg.DatasetOptions

	var repo store.SnapshotRepository
	var check handler.Check
	switch opts.Backend {
	case datasetopts.BackendDB:
		db, err := database.New(ctx, cfg.DatabaseOptions)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		mgr.OnShutdown("database", func(context.Context) error { return db.Close() })
		gormRepo, err := store.NewGormRepository(db.DB())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize snapshot table: %w", err)
		}
		repo, check = gormRepo, db.Ping
		logger.Infow("Snapshot repository initialized", "backend", opts.Backend, "dialect", db.Name())
	default:
		fileRepo, err := store.NewFileRepository(opts.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize snapshot directory: %w", err)
		}
		repo = fileRepo
		check = func(context.Context) error { return nil }
		logger.Infow("Snapshot repository initialized", "backend", opts.Backend, "dir", opts.DataDir)
	}

	var remote store.RemoteSource
	if opts.RemoteBaseURL != "" {
		remote = store.NewDataGovSource(opts.RemoteBaseURL, opts.APIKey, opts.FetchLimit, opts.FetchTimeout, opts.FetchRetries)
	}

	return store.NewDatasetStore(repo, remote, store.WithTTL(opts.TTL), store.WithLoaderPool(loader)), check, nil
}

// newPool creates a worker pool released on shutdown.
func newPool(mgr *server.Manager, name string, cfg pool.Config) (*pool.Pool, error) {
	p, err := pool.New(name, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s pool: %w", name, err)
	}
	mgr.OnShutdown(name+"-pool", func(context.Context) error {
		p.Release()
		return nil
	})
	return p, nil
}

// newEmbeddingProvider wraps the configured provider with resilience and,
// when Redis is available, the embedding cache.
func (cfg *Config) newEmbeddingProvider(rdb goredis.Cmdable) (llm.EmbeddingProvider, *llm.CachedEmbeddingProvider, error) {
	opts := cfg.EmbeddingOptions
	provider, err := llm.NewEmbeddingProvider(opts.Provider, providerSettings(opts))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	if opts.Resilient && opts.Provider != "local" {
		provider = resilience.NewResilientEmbeddingProvider(provider, retryConfig(opts), resilience.DefaultCircuitBreakerConfig())
	}
	logger.Infow("Embedding provider initialized", "provider", opts.Provider, "model", opts.Model)

	if rdb == nil {
		return provider, nil, nil
	}
	cached := llm.NewCachedEmbeddingProvider(provider, rdb, &llm.EmbeddingCacheConfig{
		Enabled:   true,
		TTL:       cfg.CacheOptions.EmbeddingTTL,
		KeyPrefix: llm.DefaultEmbeddingCacheConfig().KeyPrefix,
	})
	return cached, cached, nil
}

func (cfg *Config) newChatProvider() (llm.ChatProvider, error) {
	opts := cfg.ChatOptions
	provider, err := llm.NewChatProvider(opts.Provider, providerSettings(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	if opts.Resilient {
		provider = resilience.NewResilientChatProvider(provider, retryConfig(opts), resilience.DefaultCircuitBreakerConfig())
	}
	logger.Infow("Chat provider initialized", "provider", opts.Provider, "model", opts.Model)
	return provider, nil
}

func (cfg *Config) newVectorStore(ctx context.Context) (store.VectorStore, error) {
	if cfg.PipelineOptions.VectorStore != pipelineopts.VectorStoreMilvus {
		logger.Info("Using in-memory relevance index")
		return store.NewMemoryStore(), nil
	}
	client, err := milvus.New(ctx, cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	logger.Infow("Milvus client initialized", "address", cfg.MilvusOptions.Address, "collection", cfg.MilvusOptions.Collection)
	return store.NewMilvusStore(client, cfg.MilvusOptions.Collection), nil
}

func providerSettings(opts *llmopts.ProviderOptions) llm.Settings {
	return llm.Settings{
		BaseURL:      opts.BaseURL,
		APIKey:       opts.APIKey,
		Model:        opts.Model,
		Organization: opts.Organization,
		Dimension:    opts.Dimension,
		MaxRetries:   opts.MaxRetries,
		Timeout:      opts.Timeout,
	}
}

// retryConfig 以供应商的最大重试次数覆盖默认重试配置。
func retryConfig(opts *llmopts.ProviderOptions) *resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	if opts.MaxRetries >= 0 {
		rc.MaxAttempts = opts.MaxRetries + 1
	}
	return rc
}

func indexCheck(index *biz.RelevanceIndex) handler.Check {
	return func(ctx context.Context) error {
		n, err := index.Count(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.New("relevance index is empty")
		}
		return nil
	}
}

// breakerCheck reports the chat provider unhealthy while its circuit is open.
func breakerCheck(chat llm.ChatProvider) handler.Check {
	cb := resilience.BreakerOf(chat)
	return func(context.Context) error {
		if cb != nil && cb.State() == resilience.StateOpen {
			return resilience.ErrCircuitBreakerOpen
		}
		return nil
	}
}

type cacheClearFunc func(ctx context.Context) (int, error)

func (f cacheClearFunc) Clear(ctx context.Context) (int, error) { return f(ctx) }

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Enabled Middlewares: %v\n", cfg.MiddlewareOptions.Middleware)
}
