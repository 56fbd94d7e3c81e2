// Package app builds the long-lived clients described by a config.Config and
// assembles them into an orchestrator and an HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/smallnest/lexgraph/backend"
	"github.com/smallnest/lexgraph/backend/falkordb"
	"github.com/smallnest/lexgraph/backend/graphqa"
	"github.com/smallnest/lexgraph/backend/vector"
	"github.com/smallnest/lexgraph/config"
	"github.com/smallnest/lexgraph/graph"
	"github.com/smallnest/lexgraph/history"
	historypg "github.com/smallnest/lexgraph/history/postgres"
	historyredis "github.com/smallnest/lexgraph/history/redis"
	historysqlite "github.com/smallnest/lexgraph/history/sqlite"
	"github.com/smallnest/lexgraph/llm"
	"github.com/smallnest/lexgraph/log"
	"github.com/smallnest/lexgraph/observability"
	"github.com/smallnest/lexgraph/orchestrator"
	"github.com/smallnest/lexgraph/progress"
	"github.com/smallnest/lexgraph/server"
)

// Options overrides parts of the wiring, mainly for tests.
type Options struct {
	// Model replaces the configured provider.
	Model llm.Model
	// Embedder replaces the configured embedding model.
	Embedder embeddings.Embedder
	// Progress receives updates in addition to the configured sinks.
	Progress progress.Emitter
	// Registry receives the metrics. Nil creates a fresh registry.
	Registry *prometheus.Registry
	Logger   log.Logger
}

// App holds everything built from a config. Call Close on shutdown.
type App struct {
	Config       config.Config
	Logger       log.Logger
	Orchestrator *orchestrator.Orchestrator
	Server       *server.Server
	Hub          *progress.Hub
	Metrics      *observability.Metrics
	Registry     *prometheus.Registry
	History      history.Store

	closers []func() error
}

// Build connects every configured backend. On error, clients created so far
// are closed.
func Build(ctx context.Context, cfg config.Config, opts Options) (_ *App, err error) {
	logger := opts.Logger
	if logger == nil {
		level, lerr := log.ParseLevel(cfg.Log.Level)
		if lerr != nil {
			return nil, lerr
		}
		logger = log.OrDefault(nil)
		log.SetLogLevel(level)
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  observability.NewMetrics(cfg.Server.MetricsNamespace, reg),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	model := opts.Model
	if model == nil {
		if model, err = NewModel(cfg.LLM); err != nil {
			return nil, err
		}
	}

	if a.History, err = a.buildHistory(ctx, cfg.History); err != nil {
		return nil, err
	}

	graphBackend, err := a.buildGraph(model, cfg.FalkorDB)
	if err != nil {
		return nil, err
	}

	var vec backend.SimilarityBackend
	if cfg.Orchestrator.Topology != orchestrator.TopologySimple {
		if vec, err = buildVector(cfg, opts.Embedder); err != nil {
			return nil, err
		}
	}

	emitter, err := a.buildProgress(cfg.Progress, opts.Progress)
	if err != nil {
		return nil, err
	}

	a.Orchestrator, err = orchestrator.New(orchestrator.Deps{
		Model:    model,
		History:  a.History,
		Graph:    graphBackend,
		Vector:   vec,
		Progress: emitter,
		Observer: a.Metrics,
		Tracer:   graph.NewTracer(a.Metrics.TraceHook()),
		Logger:   logger,
	}, cfg.Orchestrator)
	if err != nil {
		return nil, err
	}

	srvOpts := server.Options{
		Metrics:      a.Metrics,
		Gatherer:     reg,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       logger,
	}
	if a.Hub != nil {
		srvOpts.Progress = a.Hub
	}
	a.Server = server.New(a.Orchestrator, srvOpts)
	return a, nil
}

// Close releases clients in reverse creation order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// NewModel creates the configured language model.
func NewModel(cfg config.LLMConfig) (llm.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return llm.NewOpenAI(llm.OpenAIConfig{
			Token:       cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		}), nil
	case config.ProviderLangChain:
		return llm.NewLangChainOpenAI(cfg.Model, cfg.APIKey, cfg.BaseURL, llms.WithTemperature(float64(cfg.Temperature)))
	case config.ProviderOllama:
		return llm.NewLangChainOllama(cfg.Model, cfg.BaseURL, llms.WithTemperature(float64(cfg.Temperature)))
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// NewEmbedder creates the embedding model used for vector queries.
func NewEmbedder(cfg config.LLMConfig) (embeddings.Embedder, error) {
	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch cfg.Provider {
	case config.ProviderOllama:
		lopts := []ollama.Option{ollama.WithModel(cfg.EmbeddingModel)}
		if cfg.BaseURL != "" {
			lopts = append(lopts, ollama.WithServerURL(cfg.BaseURL))
		}
		client, err = ollama.New(lopts...)
	default:
		lopts := []lcopenai.Option{lcopenai.WithEmbeddingModel(cfg.EmbeddingModel)}
		if cfg.APIKey != "" {
			lopts = append(lopts, lcopenai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			lopts = append(lopts, lcopenai.WithBaseURL(cfg.BaseURL))
		}
		client, err = lcopenai.New(lopts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	return embeddings.NewEmbedder(client)
}

func (a *App) buildHistory(ctx context.Context, cfg config.HistoryConfig) (history.Store, error) {
	switch cfg.Driver {
	case config.HistoryRedis:
		s := historyredis.NewStore(historyredis.Options{
			Addr:        cfg.DSN,
			Password:    cfg.Password,
			Prefix:      cfg.Prefix,
			TTL:         cfg.TTL,
			MaxMessages: cfg.MaxMessages,
		})
		a.onClose(s.Close)
		return s, nil
	case config.HistoryPostgres:
		s, err := historypg.NewStore(ctx, historypg.Options{ConnString: cfg.DSN, TableName: cfg.Table})
		if err != nil {
			return nil, fmt.Errorf("postgres history: %w", err)
		}
		a.onClose(func() error { s.Close(); return nil })
		if err := s.InitSchema(ctx); err != nil {
			return nil, fmt.Errorf("postgres history: %w", err)
		}
		return s, nil
	case config.HistorySQLite:
		s, err := historysqlite.NewStore(historysqlite.Options{Path: cfg.DSN, TableName: cfg.Table})
		if err != nil {
			return nil, fmt.Errorf("sqlite history: %w", err)
		}
		a.onClose(s.Close)
		return s, nil
	default:
		return history.NewMemoryStore(cfg.MaxMessages), nil
	}
}

func (a *App) buildGraph(model llm.Model, cfg config.FalkorDBConfig) (backend.GraphBackend, error) {
	client, err := falkordb.NewClient(falkordb.Options{URL: cfg.URL})
	if err != nil {
		return nil, fmt.Errorf("falkordb: %w", err)
	}
	a.onClose(client.Close)
	return graphqa.New(model, client, graphqa.Options{
		TopK:               cfg.TopK,
		SkipClassification: cfg.SkipClassification,
		Logger:             a.Logger,
	}), nil
}

func buildVector(cfg config.Config, embedder embeddings.Embedder) (backend.SimilarityBackend, error) {
	switch cfg.Vector.Driver {
	case config.VectorMemory:
		if embedder == nil && cfg.LLM.EmbeddingModel == "" {
			return vector.NewStore(vector.NewMockEmbedder(cfg.Vector.Dimensions)), nil
		}
		if embedder == nil {
			var err error
			if embedder, err = NewEmbedder(cfg.LLM); err != nil {
				return nil, err
			}
		}
		return vector.NewStore(vector.NewLangChainEmbedder(embedder)), nil
	default:
		if embedder == nil {
			var err error
			if embedder, err = NewEmbedder(cfg.LLM); err != nil {
				return nil, err
			}
		}
		return vector.NewQdrant(embedder, vector.QdrantOptions{
			URL:        cfg.Vector.URL,
			APIKey:     cfg.Vector.APIKey,
			Collection: cfg.Vector.Collection,
			Threshold:  cfg.Vector.Threshold,
		})
	}
}

func (a *App) buildProgress(cfg config.ProgressConfig, extra progress.Emitter) (progress.Emitter, error) {
	var sinks progress.Multi
	if extra != nil {
		sinks = append(sinks, extra)
	}
	if cfg.WebSocket {
		a.Hub = progress.NewHub(progress.HubOptions{
			OnDrop: a.Metrics.DropCounter("websocket"),
			Logger: a.Logger,
		})
		sinks = append(sinks, a.Hub)
	}
	if cfg.RedisAddr != "" {
		ropts, err := redisOptions(cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("progress redis: %w", err)
		}
		client := redis.NewClient(ropts)
		a.onClose(client.Close)
		sinks = append(sinks, progress.NewRedis(client, progress.RedisOptions{Prefix: cfg.Prefix, Logger: a.Logger}))
	}
	if cfg.Log {
		sinks = append(sinks, progress.Log{Logger: a.Logger})
	}
	if len(sinks) == 0 {
		return progress.NoOp{}, nil
	}

	async := progress.NewAsync(sinks, progress.AsyncOptions{
		QueueSize: cfg.QueueSize,
		OnDrop:    a.Metrics.DropCounter("queue"),
	})
	a.onClose(func() error { async.Close(); return nil })
	return async, nil
}

// redisOptions accepts either host:port or a redis:// URL.
func redisOptions(addr string) (*redis.Options, error) {
	if u, err := url.Parse(addr); err == nil && (u.Scheme == "redis" || u.Scheme == "rediss") {
		return redis.ParseURL(addr)
	}
	return &redis.Options{Addr: addr}, nil
}
