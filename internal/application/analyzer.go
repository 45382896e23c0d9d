package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ahrav/go-tribunal/infrastructure/llm"
	"github.com/ahrav/go-tribunal/infrastructure/retrieval"
	"github.com/ahrav/go-tribunal/internal/domain"
	"github.com/ahrav/go-tribunal/internal/ports"
)

// Analyzer is the application-level entry point: it retrieves context
// for a query, dispatches it to the generation backends, and returns the
// decision. It owns nothing global; every collaborator arrives through
// the constructor.
type Analyzer struct {
	retriever    ports.ContextRetriever
	dispatcher   ports.DecisionAnalyzer
	snippetLimit int
	logger       *zap.Logger
	metrics      ports.MetricsCollector
}

// AnalyzerConfig holds the dependencies for an Analyzer.
type AnalyzerConfig struct {
	// Retriever supplies ranked context snippets. Required.
	Retriever ports.ContextRetriever
	// Dispatcher routes prompts to generation backends. Required.
	Dispatcher ports.DecisionAnalyzer
	// SnippetLimit caps how many snippets a query retrieves. Zero
	// selects the default.
	SnippetLimit int
	// Logger receives structured request events. Nil selects a no-op
	// logger.
	Logger *zap.Logger
	// Metrics, when non-nil, records request latency and backend health
	// gauges.
	Metrics ports.MetricsCollector
}

// NewAnalyzer creates an analyzer from its dependencies.
func NewAnalyzer(cfg AnalyzerConfig) (*Analyzer, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.SnippetLimit
	if limit <= 0 {
		limit = DefaultSnippetLimit
	}
	return &Analyzer{
		retriever:    cfg.Retriever,
		dispatcher:   cfg.Dispatcher,
		snippetLimit: limit,
		logger:       logger,
		metrics:      cfg.Metrics,
	}, nil
}

// AnalyzeQuery retrieves context for the query and dispatches it for a
// decision. Retrieval failure is the one pre-dispatch error surfaced to
// the caller; once snippets exist, the dispatch layer guarantees a
// decision for everything except caller cancellation.
func (a *Analyzer) AnalyzeQuery(ctx context.Context, query string) (*domain.DecisionObject, error) {
	start := time.Now()

	snippets, err := a.retriever.Retrieve(ctx, query, a.snippetLimit)
	if err != nil {
		return nil, fmt.Errorf("context retrieval failed: %w", err)
	}
	a.logger.Info("context retrieved",
		zap.Int("snippets", len(snippets)),
		zap.Int("query_length", len(query)))

	decision, err := a.dispatcher.Analyze(ctx, query, snippets)
	if err != nil {
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.RecordLatency("analyze_query", time.Since(start),
			map[string]string{"decision": string(decision.Decision)})
		a.publishHealthGauges()
	}
	return decision, nil
}

// HealthReport exposes the dispatcher's per-backend status snapshot.
func (a *Analyzer) HealthReport() map[string]domain.BackendStatus {
	return a.dispatcher.HealthReport()
}

// publishHealthGauges mirrors the current health snapshot into gauges so
// dashboards can watch cooldowns and failure streaks between requests.
func (a *Analyzer) publishHealthGauges() {
	for id, status := range a.dispatcher.HealthReport() {
		labels := map[string]string{"backend": id}
		a.metrics.RecordGauge("consecutive_failures",
			float64(status.ConsecutiveFailures), labels)
		a.metrics.RecordGauge("available", boolGauge(status.Available), labels)
		a.metrics.RecordGauge("rate_limited", boolGauge(status.RateLimited), labels)
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// BuildEngine assembles the registry, dispatcher, and analyzer from a
// loaded configuration and a document's text. It is the single
// composition point used by the CLI.
func BuildEngine(cfg *Config, document string, logger *zap.Logger, metrics ports.MetricsCollector) (*Analyzer, error) {
	registry, err := llm.NewRegistry(llm.RegistryConfig{
		Backends: cfg.BuildBackends(),
		Policy:   cfg.BuildPolicy(),
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, err
	}

	dispatcher, err := llm.NewDispatcher(llm.DispatcherConfig{
		Registry: registry,
		Policy:   cfg.BuildPolicy(),
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, err
	}

	chunks := retrieval.SplitDocument(document, cfg.MinChunkChars())
	return NewAnalyzer(AnalyzerConfig{
		Retriever:    retrieval.NewKeywordRetriever(chunks),
		Dispatcher:   dispatcher,
		SnippetLimit: cfg.SnippetLimit(),
		Logger:       logger,
		Metrics:      metrics,
	})
}
