// Package container wires every concrete component into the abstract
// ports defined in internal/types/interfaces via dig: one function
// that builds a fully configured dependency graph, and a ResourceCleaner
// that tears it back down in reverse order.
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/dig"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/policyqa/core/internal/analytics"
	"github.com/policyqa/core/internal/cache"
	"github.com/policyqa/core/internal/classifier"
	"github.com/policyqa/core/internal/common"
	"github.com/policyqa/core/internal/config"
	"github.com/policyqa/core/internal/conversation"
	"github.com/policyqa/core/internal/generation"
	"github.com/policyqa/core/internal/handler"
	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/models/chat"
	"github.com/policyqa/core/internal/models/embedding"
	modelrerank "github.com/policyqa/core/internal/models/rerank"
	"github.com/policyqa/core/internal/orchestrator"
	"github.com/policyqa/core/internal/retrieval"
	rerankengine "github.com/policyqa/core/internal/retrieval/rerank"
	"github.com/policyqa/core/internal/retrieval/sparseindex"
	"github.com/policyqa/core/internal/retrieval/vectorstore"
	"github.com/policyqa/core/internal/router"
	"github.com/policyqa/core/internal/stream"
	"github.com/policyqa/core/internal/tracing"
	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// must panics on a wiring failure; every step here must succeed for the
// server to start at all, so failing fast beats limping along half-wired.
func must(err error) {
	if err != nil {
		panic(err)
	}
}

// BuildContainer registers every component of the query pipeline into the
// supplied dig container.
func BuildContainer(container *dig.Container) *dig.Container {
	must(container.Provide(NewResourceCleaner))
	must(container.Provide(config.LoadConfig))

	must(container.Invoke(applyLogLevel))
	must(container.Provide(tracing.InitTracer))

	must(container.Provide(initDatabase))
	must(container.Provide(initAntsPool))
	must(container.Invoke(registerPoolCleanup))

	must(container.Provide(initEmbeddingClient))
	must(container.Provide(initLLMClient))
	must(container.Provide(initVectorStore))
	must(container.Provide(initSparseIndex))
	must(container.Provide(initReranker))
	must(container.Provide(initRetrievalEngine))

	must(container.Provide(initCache))
	must(container.Invoke(registerCacheSweep))

	must(container.Provide(initConversationMemory))
	must(container.Invoke(registerSummarizer))

	must(container.Provide(initGenerator))
	must(container.Provide(initStreamManager))
	must(container.Provide(initAnalyticsSink))
	must(container.Invoke(registerAnalyticsCleanup))

	must(container.Provide(initOrchestrator))
	must(container.Invoke(registerOrchestratorCleanup))

	must(container.Provide(asConversationMemory))
	must(container.Provide(handler.NewQueryHandler))
	must(container.Provide(handler.NewConversationHandler))
	must(container.Provide(router.NewRouter))

	must(container.Invoke(startAsynq))

	return container
}

// asConversationMemory exposes the concrete *conversation.Memory the
// container already wires (needed concretely by registerSummarizer and
// initOrchestrator) behind interfaces.ConversationMemory for handlers,
// which depend on ports rather than concretes.
func asConversationMemory(m *conversation.Memory) interfaces.ConversationMemory {
	return m
}

func applyLogLevel(cfg *config.Config) {
	level := logger.LevelInfo
	if cfg.Server != nil && cfg.Server.LogLevel != "" {
		level = logger.LogLevel(cfg.Server.LogLevel)
	}
	logger.SetLogLevel(level)
}

// initDatabase opens the pgvector-backed Postgres connection the dense
// store reads from (teacher's initDatabase, trimmed to this module's one
// backend and one migrated table).
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	if cfg.VectorStore == nil || cfg.VectorStore.DSN == "" {
		return nil, fmt.Errorf("vector_store.dsn is required")
	}
	db, err := gorm.Open(postgres.Open(cfg.VectorStore.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vector store: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
	return db, nil
}

// initAntsPool builds the goroutine pool the embedder's batch path shares
// (models/embedding.BatchEmbedWithPool).
func initAntsPool(cfg *config.Config) (*ants.Pool, error) {
	size := 16
	for _, m := range cfg.Models {
		if m.Type == string(types.ModelTypeEmbedding) {
			if n, ok := m.Parameters["pool_size"].(float64); ok && n > 0 {
				size = int(n)
			}
		}
	}
	return ants.NewPool(size, ants.WithPreAlloc(true))
}

func registerPoolCleanup(pool *ants.Pool, cleaner interfaces.ResourceCleaner) {
	cleaner.RegisterWithName("ants_pool", func() error {
		pool.Release()
		return nil
	})
}

func findModel(cfg *config.Config, t types.ModelType) (config.ModelConfig, bool) {
	for _, m := range cfg.Models {
		if m.Type == string(t) {
			return m, true
		}
	}
	return config.ModelConfig{}, false
}

func initEmbeddingClient(cfg *config.Config) (interfaces.EmbeddingClient, error) {
	mc, ok := findModel(cfg, types.ModelTypeEmbedding)
	if !ok {
		return nil, fmt.Errorf("no embedding model configured")
	}
	embedder, err := embedding.NewEmbedder(embedding.Config{
		Source:     types.ModelSource(mc.Source),
		BaseURL:    mc.BaseURL,
		ModelName:  mc.ModelName,
		APIKey:     mc.APIKey,
		Dimensions: paramInt(mc.Parameters, "dimensions", 0),
		ModelID:    mc.ModelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build embedder: %w", err)
	}
	return embedding.NewClient(embedder), nil
}

func initLLMClient(cfg *config.Config) (interfaces.LLMClient, error) {
	mc, ok := findModel(cfg, types.ModelTypeChat)
	if !ok {
		return nil, fmt.Errorf("no chat model configured")
	}
	c, err := chat.NewChat(&chat.ChatConfig{
		Source:    types.ModelSource(mc.Source),
		BaseURL:   mc.BaseURL,
		ModelName: mc.ModelName,
		APIKey:    mc.APIKey,
		ModelID:   mc.ModelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build chat backend: %w", err)
	}
	gen := cfg.Generation
	return chat.NewClient(c, gen.RequestTimeout, gen.RetryAttempts, gen.RetryBackoffBaseMs), nil
}

func paramInt(params map[string]interface{}, key string, def int) int {
	if v, ok := params[key].(float64); ok {
		return int(v)
	}
	return def
}

func initVectorStore(db *gorm.DB, cfg *config.Config) interfaces.VectorStore {
	table := "chunks"
	if cfg.VectorStore != nil && cfg.VectorStore.Table != "" {
		table = cfg.VectorStore.Table
	}
	return vectorstore.NewPgvectorStore(db, table)
}

// initSparseIndex prefers Elasticsearch when configured, otherwise falls
// back to the in-process BM25 index.
func initSparseIndex(cfg *config.Config) (interfaces.SparseIndex, error) {
	if cfg.SparseIndex == nil || len(cfg.SparseIndex.Addresses) == 0 {
		return sparseindex.NewMemoryBM25Index(), nil
	}
	client, err := elasticsearch.NewTypedClient(elasticsearch.Config{
		Addresses: cfg.SparseIndex.Addresses,
		Username:  cfg.SparseIndex.Username,
		Password:  cfg.SparseIndex.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build elasticsearch client: %w", err)
	}
	return sparseindex.NewElasticsearchIndex(client, cfg.SparseIndex.Index), nil
}

// initReranker wires the optional cross-encoder/neural reranker model; a
// missing rerank model config degrades to cross-encoder + LLM fallback
// only, never a startup failure.
func initReranker(llm interfaces.LLMClient, cfg *config.Config) (retrieval.Reranker, error) {
	ceModel, ok := findModel(cfg, types.ModelTypeRerank)
	if !ok {
		return rerankengine.New(noopCrossEncoder{}, modelrerank.NullNeuralReranker{}, rerankengine.NewLLMReranker(llm), cfg.Retrieval.CrossEncoderWeight), nil
	}

	r, err := modelrerank.NewReranker(&modelrerank.RerankerConfig{
		APIKey:    ceModel.APIKey,
		BaseURL:   ceModel.BaseURL,
		ModelName: ceModel.ModelName,
		Source:    types.ModelSource(ceModel.Source),
		ModelID:   ceModel.ModelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build reranker: %w", err)
	}
	cross := modelrerank.NewCrossEncoderClient(r)
	neural := modelrerank.NewNeuralRerankerClient(r)
	return rerankengine.New(cross, neural, rerankengine.NewLLMReranker(llm), cfg.Retrieval.CrossEncoderWeight), nil
}

// noopCrossEncoder is used only when no rerank model is configured at all,
// so the advanced/hybrid strategies still run (degraded to fused order via
// applyRerank's error path) instead of panicking on a nil CrossEncoder.
type noopCrossEncoder struct{}

func (noopCrossEncoder) Score(ctx context.Context, query string, candidates []types.RetrievedDocument) ([]float32, error) {
	return nil, fmt.Errorf("no cross-encoder model configured")
}

func initRetrievalEngine(dense interfaces.VectorStore, sparse interfaces.SparseIndex, rr retrieval.Reranker, llm interfaces.LLMClient, cfg *config.Config) interfaces.RetrievalEngine {
	rc := cfg.Retrieval
	params := retrieval.Params{
		SimpleDenseK:       retrieval.DefaultParams.SimpleDenseK,
		DenseK:             rc.DenseTopK,
		SparseK:            rc.SparseTopK,
		RRFK:               rc.RRFK,
		FuseTopN:           rc.RerankTopN,
		FinalTopN:          retrieval.DefaultParams.FinalTopN,
		AdvancedVariantK:   retrieval.DefaultParams.AdvancedVariantK,
		QueryVariantCount:  rc.QueryVariantCount,
		VariantTimeout:     retrieval.DefaultParams.VariantTimeout,
		CrossEncoderWeight: rc.CrossEncoderWeight,
	}
	return retrieval.New(dense, sparse, rr, llm, params)
}

// initCache wires the dense-only RetrieveIDsOnly closure, so the cache
// validates Stage C candidates without importing internal/retrieval.
func initCache(dense interfaces.VectorStore, cfg *config.Config) *cache.Cache {
	cc := cfg.Cache
	retrieveIDsOnly := func(ctx context.Context, vec []float32) (map[string]struct{}, error) {
		docs, err := dense.Search(ctx, vec, retrieval.DefaultParams.FinalTopN)
		if err != nil {
			return nil, err
		}
		ids := make(map[string]struct{}, len(docs))
		for _, d := range docs {
			ids[d.Chunk.ID] = struct{}{}
		}
		return ids, nil
	}
	return cache.New(cc.Redis.Address, cc.Redis.Password, cc.Redis.DB, cc.Redis.Prefix, retrieveIDsOnly, cache.Options{
		ExactTTL:           cc.ExactTTL,
		SemanticTTL:        cc.SemanticTTL,
		SimThreshold:       cc.SimThreshold,
		OverlapThreshold:   cc.OverlapThreshold,
		SemanticCandidates: cc.SemanticCandidates,
		EnableSemantic:     cc.EnableSemantic,
	})
}

func registerCacheSweep(c *cache.Cache, cfg *config.Config, cleaner interfaces.ResourceCleaner) {
	cache.RegisterPruneHandler(c)
	ctx, cancel := context.WithCancel(context.Background())
	cache.StartSweepTicker(ctx, cfg.Cache.SweepInterval, cfg.Cache.SemanticCandidates)
	cleaner.RegisterWithName("cache_sweep_ticker", func() error {
		cancel()
		return nil
	})
}

func initConversationMemory(llm interfaces.LLMClient, cfg *config.Config) *conversation.Memory {
	cc := cfg.Conversation
	return conversation.New(cc.Redis.Address, cc.Redis.Password, cc.Redis.DB, cc.Redis.Prefix,
		cc.WindowSize, cc.SummarizeEveryTurns, cc.SessionTTL, llm)
}

func registerSummarizer(m *conversation.Memory, cfg *config.Config) {
	conversation.RegisterSummarizeHandler(m, cfg.Conversation.SummaryPrompt)
}

func initGenerator(llm interfaces.LLMClient, cfg *config.Config) interfaces.AnswerGenerator {
	return generation.New(llm, cfg.Generation.GroundingNGram, cfg.Generation.UseLLMJudge)
}

func initStreamManager(cfg *config.Config) (interfaces.StreamManager, error) {
	kind := stream.TypeMemory
	if cfg.Cache.Redis.Address != "" {
		kind = stream.TypeRedis
	}
	return stream.NewStreamManager(cfg.Cache.Redis, kind)
}

func initAnalyticsSink(cfg *config.Config) (interfaces.AnalyticsSink, error) {
	if cfg.ObjectStore == nil || cfg.ObjectStore.Endpoint == "" && cfg.ObjectStore.Bucket == "" {
		return nil, nil
	}
	return analytics.New(cfg.ObjectStore)
}

func registerAnalyticsCleanup(sink interfaces.AnalyticsSink, cleaner interfaces.ResourceCleaner) {
	closable, ok := sink.(interface{ Close() error })
	if !ok {
		return
	}
	cleaner.RegisterWithName("analytics_sink", closable.Close)
}

func initOrchestrator(
	embedder interfaces.EmbeddingClient,
	c *cache.Cache,
	retrievalEngine interfaces.RetrievalEngine,
	mem *conversation.Memory,
	generator interfaces.AnswerGenerator,
	streams interfaces.StreamManager,
	analyticsSink interfaces.AnalyticsSink,
	cfg *config.Config,
) (*orchestrator.Orchestrator, error) {
	thresholds := classifier.DefaultThresholds
	if cfg.Retrieval != nil {
		thresholds = classifier.Thresholds{Simple: cfg.Retrieval.SimpleThreshold, Complex: cfg.Retrieval.ComplexThreshold}
	}
	return orchestrator.New(
		embedder, c, thresholds, retrievalEngine, mem, generator, streams, analyticsSink,
		cfg.Server.MaxInflight, cfg.Server.GlobalDeadline,
	)
}

func registerOrchestratorCleanup(o *orchestrator.Orchestrator, cleaner interfaces.ResourceCleaner) {
	cleaner.RegisterWithName("orchestrator", func() error {
		o.Close()
		return nil
	})
}

func startAsynq(cfg *config.Config) error {
	if cfg.Asynq == nil || cfg.Asynq.Redis.Address == "" {
		return nil
	}
	return common.InitAsyncq(cfg)
}
