package observability

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	// Driver-specific metrics
	driverDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dbcrossbar",
			Subsystem: "driver",
			Name:      "operation_duration_seconds",
			Help:      "Duration of driver operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"driver_type", "driver_name", "operation", "status"},
	)

	driverThroughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "dbcrossbar",
			Subsystem: "driver",
			Name:      "throughput_records_per_second",
			Help:      "Current throughput in records per second",
		},
		[]string{"driver_type", "driver_name", "operation"},
	)

	driverRecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dbcrossbar",
			Subsystem: "driver",
			Name:      "records_processed_total",
			Help:      "Total number of records processed",
		},
		[]string{"driver_type", "driver_name", "operation", "status"},
	)

	driverBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dbcrossbar",
			Subsystem: "driver",
			Name:      "batch_size",
			Help:      "Size of batches processed",
			Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000, 10000, 50000, 100000},
		},
		[]string{"driver_type", "driver_name", "operation"},
	)

	driverErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dbcrossbar",
			Subsystem: "driver",
			Name:      "errors_total",
			Help:      "Total number of driver errors",
		},
		[]string{"driver_type", "driver_name", "operation", "error_type"},
	)

	driverRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dbcrossbar",
			Subsystem: "driver",
			Name:      "retries_total",
			Help:      "Total number of driver retries",
		},
		[]string{"driver_type", "driver_name", "operation"},
	)

	driverConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "dbcrossbar",
			Subsystem: "driver",
			Name:      "active_connections",
			Help:      "Number of active connections",
		},
		[]string{"driver_type", "driver_name"},
	)

	// General metrics
	generalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dbcrossbar",
			Subsystem: "observability",
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"operation", "component", "status"},
	)

	generalGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "dbcrossbar",
			Subsystem: "observability",
			Name:      "gauge_value",
			Help:      "General gauge values",
		},
		[]string{"metric", "component"},
	)
)

// MetricsCollector provides high-performance metrics collection
type MetricsCollector struct {
	driverType string
	driverName string
	mutex         sync.RWMutex

	// Cached label values for performance
	labelCache map[string][]string
}

// NewMetricsCollector creates a new metrics collector for a driver
func NewMetricsCollector(driverType, driverName string) *MetricsCollector {
	return &MetricsCollector{
		driverType: driverType,
		driverName: driverName,
		labelCache:    make(map[string][]string),
	}
}

// RecordDuration records a duration metric with labels
func (mc *MetricsCollector) RecordDuration(operation string, duration time.Duration, status string) {
	labels := mc.getLabels(operation, status)
	driverDuration.WithLabelValues(labels...).Observe(duration.Seconds())
}

// RecordThroughput records a throughput metric
func (mc *MetricsCollector) RecordThroughput(operation string, recordsPerSecond float64) {
	driverThroughput.WithLabelValues(mc.driverType, mc.driverName, operation).Set(recordsPerSecond)
}

// RecordRecordsProcessed increments the records processed counter
func (mc *MetricsCollector) RecordRecordsProcessed(operation string, count int, status string) {
	driverRecordsProcessed.WithLabelValues(mc.driverType, mc.driverName, operation, status).Add(float64(count))
}

// RecordBatchSize records the size of a processed batch
func (mc *MetricsCollector) RecordBatchSize(operation string, size int) {
	driverBatchSize.WithLabelValues(mc.driverType, mc.driverName, operation).Observe(float64(size))
}

// RecordError increments the error counter
func (mc *MetricsCollector) RecordError(operation string, errorType string) {
	driverErrors.WithLabelValues(mc.driverType, mc.driverName, operation, errorType).Inc()
}

// RecordRetry increments the retry counter
func (mc *MetricsCollector) RecordRetry(operation string) {
	driverRetries.WithLabelValues(mc.driverType, mc.driverName, operation).Inc()
}

// SetActiveConnections sets the number of active connections
func (mc *MetricsCollector) SetActiveConnections(count int) {
	driverConnections.WithLabelValues(mc.driverType, mc.driverName).Set(float64(count))
}

// getLabels returns cached label values for performance
func (mc *MetricsCollector) getLabels(operation, status string) []string {
	key := operation + ":" + status

	mc.mutex.RLock()
	if labels, exists := mc.labelCache[key]; exists {
		mc.mutex.RUnlock()
		return labels
	}
	mc.mutex.RUnlock()

	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	// Double-check after acquiring write lock
	if labels, exists := mc.labelCache[key]; exists {
		return labels
	}

	labels := []string{mc.driverType, mc.driverName, operation, status}
	mc.labelCache[key] = labels
	return labels
}

// RecordDuration records a general duration metric (used by tracing.go)
func RecordDuration(metricName string, duration time.Duration, labels map[string]string) {
	// Convert labels map to slice
	labelValues := make([]string, 0, len(labels))

	// Fixed order: operation, component, status
	operation := labels["operation"]
	if operation == "" {
		operation = metricName
	}

	component := labels["component"]
	if component == "" {
		component = "unknown"
	}

	status := labels["status"]
	if status == "" {
		status = "unknown"
	}

	labelValues = append(labelValues, operation, component, status)

	generalDuration.WithLabelValues(labelValues...).Observe(duration.Seconds())
}

// RecordGauge records a general gauge metric (used by tracing.go)
func RecordGauge(metricName string, value float64, labels map[string]string) {
	// Convert labels map to slice
	labelValues := make([]string, 0, 2)

	// Fixed order: metric, component
	metric := metricName
	component := labels["component"]
	if component == "" {
		component = "unknown"
	}

	labelValues = append(labelValues, metric, component)

	generalGauge.WithLabelValues(labelValues...).Set(value)
}

// PerformanceTracker tracks performance metrics over time
type PerformanceTracker struct {
	collector      *MetricsCollector
	operation      string
	startTime      time.Time
	recordsStart   int64 //nolint:unused // Reserved for baseline performance tracking
	recordsCurrent int64
	errors         int64
	retries        int64
	mutex          sync.RWMutex
}

// NewPerformanceTracker creates a new performance tracker
func NewPerformanceTracker(collector *MetricsCollector, operation string) *PerformanceTracker {
	return &PerformanceTracker{
		collector: collector,
		operation: operation,
		startTime: time.Now(),
	}
}

// RecordProcessed increments the processed record count
func (pt *PerformanceTracker) RecordProcessed(count int) {
	pt.mutex.Lock()
	pt.recordsCurrent += int64(count)
	pt.mutex.Unlock()

	pt.collector.RecordRecordsProcessed(pt.operation, count, "success")
}

// RecordError increments the error count
func (pt *PerformanceTracker) RecordError(errorType string) {
	pt.mutex.Lock()
	pt.errors++
	pt.mutex.Unlock()

	pt.collector.RecordError(pt.operation, errorType)
}

// RecordRetry increments the retry count
func (pt *PerformanceTracker) RecordRetry() {
	pt.mutex.Lock()
	pt.retries++
	pt.mutex.Unlock()

	pt.collector.RecordRetry(pt.operation)
}

// GetCurrentThroughput calculates and returns current throughput
func (pt *PerformanceTracker) GetCurrentThroughput() float64 {
	pt.mutex.RLock()
	elapsed := time.Since(pt.startTime).Seconds()
	records := pt.recordsCurrent
	pt.mutex.RUnlock()

	if elapsed == 0 {
		return 0
	}

	throughput := float64(records) / elapsed
	pt.collector.RecordThroughput(pt.operation, throughput)

	return throughput
}

// GetStats returns current performance statistics
func (pt *PerformanceTracker) GetStats() PerformanceStats {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	elapsed := time.Since(pt.startTime)
	throughput := float64(pt.recordsCurrent) / elapsed.Seconds()

	return PerformanceStats{
		Operation:        pt.operation,
		Duration:         elapsed,
		RecordsProcessed: pt.recordsCurrent,
		Throughput:       throughput,
		Errors:           pt.errors,
		Retries:          pt.retries,
		ErrorRate:        float64(pt.errors) / float64(pt.recordsCurrent),
	}
}

// PerformanceStats contains performance statistics
type PerformanceStats struct {
	Operation        string
	Duration         time.Duration
	RecordsProcessed int64
	Throughput       float64
	Errors           int64
	Retries          int64
	ErrorRate        float64
}

// LogStats logs the performance statistics
func (ps PerformanceStats) LogStats(logger *zap.Logger) {
	logger.Info("performance stats",
		zap.String("operation", ps.Operation),
		zap.Duration("duration", ps.Duration),
		zap.Int64("records_processed", ps.RecordsProcessed),
		zap.Float64("throughput_rps", ps.Throughput),
		zap.Int64("errors", ps.Errors),
		zap.Int64("retries", ps.Retries),
		zap.Float64("error_rate", ps.ErrorRate),
	)
}

// DriverMetrics provides a unified interface for driver metrics
type DriverMetrics struct {
	Collector *MetricsCollector
	Tracer    *DriverTracer
	Logger    *zap.Logger
}

// NewDriverMetrics creates a unified metrics interface for a driver
func NewDriverMetrics(driverType, driverName string) *DriverMetrics {
	return &DriverMetrics{
		Collector: NewMetricsCollector(driverType, driverName),
		Tracer:    NewDriverTracer(driverType, driverName),
		Logger: GetLogger().With(
			zap.String("driver_type", driverType),
			zap.String("driver_name", driverName),
		),
	}
}

// TrackOperation provides a convenient way to track an operation with metrics and tracing
func (cm *DriverMetrics) TrackOperation(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()

	// Start tracing
	ctx, span := cm.Tracer.StartSpan(ctx, operation)
	defer span.End()

	// Execute operation
	err := fn()

	// Record metrics
	duration := time.Since(start)
	status := "success"
	if err != nil {
		status = "error"
		cm.Collector.RecordError(operation, "execution_error")
		span.SetAttribute("error", true)
		span.SetAttribute("error.message", err.Error())
	}

	cm.Collector.RecordDuration(operation, duration, status)

	// Log result
	if err != nil {
		cm.Logger.Error("operation failed",
			zap.String("operation", operation),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	} else {
		cm.Logger.Debug("operation completed",
			zap.String("operation", operation),
			zap.Duration("duration", duration),
		)
	}

	return err
}

// CopyMetrics provides metrics for one `cp` invocation: rows read from
// the source driver, rows written to the destination, and any errors
// raised along the way.
type CopyMetrics struct {
	Collector *MetricsCollector
	Logger    *zap.Logger

	// Counters
	recordsRead    int64
	recordsWritten int64
	errors         int64

	// Timing
	startTime  time.Time
	lastUpdate time.Time

	// Mutex for thread safety
	mu sync.RWMutex
}

// NewCopyMetrics creates a new copy metrics tracker, labeled with the
// copy's source-to-destination scheme pair (e.g. "postgres->bigquery").
func NewCopyMetrics(copyName string) *CopyMetrics {
	return &CopyMetrics{
		Collector:  NewMetricsCollector("copy", copyName),
		Logger:     GetLogger().With(zap.String("copy", copyName)),
		startTime:  time.Now(),
		lastUpdate: time.Now(),
	}
}

// RecordRead increments the source-rows-read counter.
func (pm *CopyMetrics) RecordRead() {
	pm.mu.Lock()
	pm.recordsRead++
	pm.lastUpdate = time.Now()
	pm.mu.Unlock()

	pm.Collector.RecordRecordsProcessed("read", 1, "success")
}

// RecordWritten increments the destination-rows-written counter by
// count and records the write as a batch of that size.
func (pm *CopyMetrics) RecordWritten(count int) {
	pm.mu.Lock()
	pm.recordsWritten += int64(count)
	pm.lastUpdate = time.Now()
	pm.mu.Unlock()

	pm.Collector.RecordRecordsProcessed("write", count, "success")
	pm.Collector.RecordBatchSize("write", count)
}

// RecordError increments the error counter.
func (pm *CopyMetrics) RecordError(operation, errorType string) {
	pm.mu.Lock()
	pm.errors++
	pm.lastUpdate = time.Now()
	pm.mu.Unlock()

	pm.Collector.RecordError(operation, errorType)
}

// GetStats returns current copy statistics.
func (pm *CopyMetrics) GetStats() map[string]interface{} {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	elapsed := time.Since(pm.startTime)
	throughput := float64(pm.recordsWritten) / elapsed.Seconds()

	return map[string]interface{}{
		"records_read":    pm.recordsRead,
		"records_written": pm.recordsWritten,
		"errors":          pm.errors,
		"elapsed_seconds": elapsed.Seconds(),
		"throughput_rps":  throughput,
		"last_update":     pm.lastUpdate,
	}
}
