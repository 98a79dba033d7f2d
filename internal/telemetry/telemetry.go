// Package telemetry provides monitoring and cost tracking for pipeline runs.
// Counters are mirrored into prometheus so the /metrics endpoint exposes them.
package telemetry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/litmaphq/litmap/config"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "litmap_research_runs_total",
		Help: "Research pipeline runs by outcome.",
	}, []string{"outcome"})
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "litmap_stage_duration_seconds",
		Help:    "Duration of pipeline stages.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage"})
	sourceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "litmap_source_requests_total",
		Help: "Retrieval requests by source and outcome.",
	}, []string{"source", "outcome"})
	llmTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "litmap_llm_tokens_total",
		Help: "LLM tokens consumed by model.",
	}, []string{"model"})
)

// Telemetry aggregates run, stage, and source events.
type Telemetry struct {
	config  config.TelemetryConfig
	logger  *log.Logger
	mu      sync.RWMutex
	metrics Metrics
	cost    CostTracker
}

// Metrics holds cumulative pipeline metrics.
type Metrics struct {
	TotalRuns          int64
	SuccessfulRuns     int64
	FailedRuns         int64
	AverageRunDuration time.Duration

	StageExecutions   map[string]int64
	StageAverageTimes map[string]time.Duration

	SourceRequests     map[string]int64
	SourceSuccessRates map[string]float64

	LLMRequests   map[string]int64
	LLMTokensUsed map[string]int64
}

// CostTracker accumulates LLM spend across models.
type CostTracker struct {
	ModelCosts  map[string]float64
	TotalCost   float64
	TotalTokens int64
}

// RunEvent describes one complete pipeline run.
type RunEvent struct {
	ReportID   string
	Query      string
	Duration   time.Duration
	Success    bool
	Error      string
	PaperCount int
	ThemeCount int
}

// StageEvent describes one pipeline stage execution.
type StageEvent struct {
	Stage    string // planning, fetching, analyzing, writing
	Duration time.Duration
	Success  bool
}

// SourceEvent describes one retrieval request.
type SourceEvent struct {
	Source   string
	Duration time.Duration
	Success  bool
	Results  int
}

// LLMEvent describes one model call.
type LLMEvent struct {
	Model  string
	Tokens int64
	Cost   float64
}

// New creates a telemetry instance.
func New(cfg config.TelemetryConfig) *Telemetry {
	return &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: Metrics{
			StageExecutions:    make(map[string]int64),
			StageAverageTimes:  make(map[string]time.Duration),
			SourceRequests:     make(map[string]int64),
			SourceSuccessRates: make(map[string]float64),
			LLMRequests:        make(map[string]int64),
			LLMTokensUsed:      make(map[string]int64),
		},
		cost: CostTracker{ModelCosts: make(map[string]float64)},
	}
}

// RecordRun records a completed pipeline run.
func (t *Telemetry) RecordRun(ctx context.Context, event RunEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TotalRuns++
	outcome := "success"
	if event.Success {
		t.metrics.SuccessfulRuns++
	} else {
		t.metrics.FailedRuns++
		outcome = "failure"
	}
	runsTotal.WithLabelValues(outcome).Inc()

	if t.metrics.TotalRuns == 1 {
		t.metrics.AverageRunDuration = event.Duration
	} else {
		total := t.metrics.AverageRunDuration * time.Duration(t.metrics.TotalRuns-1)
		t.metrics.AverageRunDuration = (total + event.Duration) / time.Duration(t.metrics.TotalRuns)
	}

	t.logger.Printf("Run: ID=%s, Success=%t, Duration=%v, Papers=%d, Themes=%d",
		event.ReportID, event.Success, event.Duration, event.PaperCount, event.ThemeCount)
}

// RecordStage records one stage execution.
func (t *Telemetry) RecordStage(ctx context.Context, event StageEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.StageExecutions[event.Stage]++
	n := t.metrics.StageExecutions[event.Stage]
	if n == 1 {
		t.metrics.StageAverageTimes[event.Stage] = event.Duration
	} else {
		total := t.metrics.StageAverageTimes[event.Stage] * time.Duration(n-1)
		t.metrics.StageAverageTimes[event.Stage] = (total + event.Duration) / time.Duration(n)
	}
	stageDuration.WithLabelValues(event.Stage).Observe(event.Duration.Seconds())
}

// RecordSource records one retrieval request.
func (t *Telemetry) RecordSource(ctx context.Context, event SourceEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.SourceRequests[event.Source]++
	n := t.metrics.SourceRequests[event.Source]
	current := t.metrics.SourceSuccessRates[event.Source] * float64(n-1)
	outcome := "failure"
	if event.Success {
		current += 1.0
		outcome = "success"
	}
	t.metrics.SourceSuccessRates[event.Source] = current / float64(n)
	sourceRequests.WithLabelValues(event.Source, outcome).Inc()

	t.logger.Printf("Source: %s, Success=%t, Duration=%v, Results=%d",
		event.Source, event.Success, event.Duration, event.Results)
}

// RecordLLM records one model call.
func (t *Telemetry) RecordLLM(ctx context.Context, event LLMEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.LLMRequests[event.Model]++
	t.metrics.LLMTokensUsed[event.Model] += event.Tokens
	llmTokens.WithLabelValues(event.Model).Add(float64(event.Tokens))

	if t.config.CostTracking {
		t.cost.TotalCost += event.Cost
		t.cost.TotalTokens += event.Tokens
		t.cost.ModelCosts[event.Model] += event.Cost
	}
}

// LLMUsage returns a callback suitable for the provider's usage hook. Token
// counts are priced with the configured per-1K input/output rates.
func (t *Telemetry) LLMUsage(cfg config.LLMConfig) func(model string, promptTokens, completionTokens int64) {
	return func(model string, promptTokens, completionTokens int64) {
		cost := float64(promptTokens)/1000.0*cfg.CostPer1KInput +
			float64(completionTokens)/1000.0*cfg.CostPer1KOutput
		t.RecordLLM(context.Background(), LLMEvent{
			Model:  model,
			Tokens: promptTokens + completionTokens,
			Cost:   cost,
		})
	}
}

// GetMetrics returns a snapshot copy of the current metrics.
func (t *Telemetry) GetMetrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := t.metrics
	out.StageExecutions = copyMap(t.metrics.StageExecutions)
	out.StageAverageTimes = copyMap(t.metrics.StageAverageTimes)
	out.SourceRequests = copyMap(t.metrics.SourceRequests)
	out.SourceSuccessRates = copyMap(t.metrics.SourceSuccessRates)
	out.LLMRequests = copyMap(t.metrics.LLMRequests)
	out.LLMTokensUsed = copyMap(t.metrics.LLMTokensUsed)
	return out
}

// GetCostSummary returns a snapshot copy of accumulated costs.
func (t *Telemetry) GetCostSummary() CostTracker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := t.cost
	out.ModelCosts = copyMap(t.cost.ModelCosts)
	return out
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
