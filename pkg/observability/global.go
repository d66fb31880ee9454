package observability

import (
	"context"
	"sync"
	"time"

	"github.com/kadirpekel/memento/pkg/errs"
)

var (
	globalMetrics   *Metrics
	globalMetricsMu sync.RWMutex
)

// SetGlobalMetrics installs the process-wide Metrics instance. Components
// that don't hold an explicit reference (the tool dispatcher, in particular)
// reach it through GetGlobalMetrics instead of threading it through every
// call.
func SetGlobalMetrics(m *Metrics) {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide Metrics instance, or nil if none
// was installed. A nil *Metrics is safe to call methods on.
func GetGlobalMetrics() *Metrics {
	globalMetricsMu.RLock()
	defer globalMetricsMu.RUnlock()
	return globalMetrics
}

// RecordToolExecution is the single call site tool dispatch needs: it records
// the call duration and, on error, classifies and counts the failure.
func (m *Metrics) RecordToolExecution(ctx context.Context, toolName string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.RecordToolCall(toolName, duration)
	if err != nil {
		m.RecordToolError(toolName, string(errs.KindOf(err)))
	}
}
