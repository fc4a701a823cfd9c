// metrics.go - Metrics collection for the PnL proving daemon.
package main

import (
	"fmt"
	"sync"
	"time"
)

// MetricType represents the type of metric.
type MetricType string

const (
	Counter   MetricType = "counter"
	Gauge     MetricType = "gauge"
	Histogram MetricType = "histogram"
)

// Metric represents a single metric.
type Metric struct {
	Name      string     `json:"name"`
	Type      MetricType `json:"type"`
	Value     float64    `json:"value"`
	Timestamp time.Time  `json:"timestamp"`
}

// MetricsCollector manages metrics collection for a proving run.
type MetricsCollector struct {
	mu         sync.RWMutex
	metrics    map[string]*Metric
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics:    make(map[string]*Metric),
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

// IncrementCounter increments a counter metric.
func (mc *MetricsCollector) IncrementCounter(name string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.counters[name]++
	mc.updateMetric(name, Counter, float64(mc.counters[name]))
}

// SetGauge sets a gauge metric value.
func (mc *MetricsCollector) SetGauge(name string, value float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.gauges[name] = value
	mc.updateMetric(name, Gauge, value)
}

// RecordHistogram records a value in a histogram.
func (mc *MetricsCollector) RecordHistogram(name string, value float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.histograms[name] = append(mc.histograms[name], value)
	if len(mc.histograms[name]) > 1000 {
		mc.histograms[name] = mc.histograms[name][len(mc.histograms[name])-1000:]
	}
	mc.updateMetric(name, Histogram, value)
}

// Summary returns a snapshot of all metrics.
func (mc *MetricsCollector) Summary() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	summary := make(map[string]interface{})
	counters := make(map[string]int64, len(mc.counters))
	for k, v := range mc.counters {
		counters[k] = v
	}
	summary["counters"] = counters

	gauges := make(map[string]float64, len(mc.gauges))
	for k, v := range mc.gauges {
		gauges[k] = v
	}
	summary["gauges"] = gauges

	histograms := make(map[string]map[string]float64)
	for key, values := range mc.histograms {
		if len(values) == 0 {
			continue
		}
		h := map[string]float64{
			"count": float64(len(values)),
			"min":   values[0],
			"max":   values[0],
			"sum":   0,
		}
		for _, v := range values {
			if v < h["min"] {
				h["min"] = v
			}
			if v > h["max"] {
				h["max"] = v
			}
			h["sum"] += v
		}
		h["avg"] = h["sum"] / h["count"]
		histograms[key] = h
	}
	summary["histograms"] = histograms
	return summary
}

func (mc *MetricsCollector) updateMetric(name string, metricType MetricType, value float64) {
	mc.metrics[name] = &Metric{
		Name:      name,
		Type:      metricType,
		Value:     value,
		Timestamp: time.Now(),
	}
}

// Predefined metric names.
const (
	MetricLogsDiscovered    = "logs_discovered"
	MetricSwapsProven       = "swaps_proven"
	MetricLogsSkipped       = "logs_skipped"
	MetricProofTime         = "proof_generation_time"
	MetricAggregationLevels = "aggregation_levels"
	MetricRPCErrors         = "rpc_error_count"
	MetricFinalPnL          = "final_pnl"
)

// RecordProofGeneration records one proof's generation time.
func (mc *MetricsCollector) RecordProofGeneration(d time.Duration) {
	mc.RecordHistogram(MetricProofTime, d.Seconds())
}

// RecordError counts an error by type.
func (mc *MetricsCollector) RecordError(errorType string) {
	mc.IncrementCounter(fmt.Sprintf("%s_%s", MetricRPCErrors, errorType))
}
