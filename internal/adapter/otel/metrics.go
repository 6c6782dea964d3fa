package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "autoassess"

// Metrics holds all autoassess metric instruments.
type Metrics struct {
	ModelCalls      metric.Int64Counter
	ModelFailures   metric.Int64Counter
	CacheHits       metric.Int64Counter
	CacheMisses     metric.Int64Counter
	ResolverHits    metric.Int64Counter
	ResolverMisses  metric.Int64Counter
	RefreshRuns     metric.Int64Counter
	ScoringDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ModelCalls, err = meter.Int64Counter("autoassess.model.calls",
		metric.WithDescription("Number of completion calls issued to scoring models"))
	if err != nil {
		return nil, err
	}

	m.ModelFailures, err = meter.Int64Counter("autoassess.model.failures",
		metric.WithDescription("Number of completion calls that failed or timed out"))
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter("autoassess.cache.hits",
		metric.WithDescription("Feasibility cache rows served without recompute"))
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter("autoassess.cache.misses",
		metric.WithDescription("Feasibility requests that triggered a recompute"))
	if err != nil {
		return nil, err
	}

	m.ResolverHits, err = meter.Int64Counter("autoassess.resolver.cache.hits",
		metric.WithDescription("Resolver lookups served from the tiered cache"))
	if err != nil {
		return nil, err
	}

	m.ResolverMisses, err = meter.Int64Counter("autoassess.resolver.cache.misses",
		metric.WithDescription("Resolver lookups that went to an upstream source"))
	if err != nil {
		return nil, err
	}

	m.RefreshRuns, err = meter.Int64Counter("autoassess.autocomplete.refreshes",
		metric.WithDescription("Autocomplete refresh passes executed"))
	if err != nil {
		return nil, err
	}

	m.ScoringDuration, err = meter.Float64Histogram("autoassess.scoring.duration_seconds",
		metric.WithDescription("End-to-end scoring pipeline duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
