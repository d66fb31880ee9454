package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/memento/pkg/errs"
)

func TestNewMetricsDisabledReturnsNil(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestNewMetricsEnabledRegistersSeries(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: true})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.NotNil(t, m.Handler())
}

func TestNilMetricsMethodsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordToolCall("search", time.Millisecond)
		m.RecordToolError("search", "TIMEOUT")
		m.RecordToolNameConflict()
		m.RecordSessionCreated("new")
		m.SetSessionsActive(3)
		m.RecordHistoryDedupHit()
		m.RecordBatchMetadataDuration(time.Millisecond)
		m.RecordMemoryDecision("ADD")
		m.RecordEmbedDuration(time.Millisecond)
		m.RecordEmbeddingsDisabled()
		m.RecordMemoryPersistFailure("upsert")
		m.RecordReflectionTraceStored(0.8)
		m.RecordToolExecution(nil, "search", time.Millisecond, nil)
	})
}

func TestGlobalMetricsRoundTrip(t *testing.T) {
	assert.Nil(t, GetGlobalMetrics())

	m, err := NewMetrics(&MetricsConfig{Enabled: true})
	require.NoError(t, err)
	SetGlobalMetrics(m)
	defer SetGlobalMetrics(nil)

	assert.Same(t, m, GetGlobalMetrics())
}

func TestRecordToolExecutionClassifiesErrorKind(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: true})
	require.NoError(t, err)

	toolErr := errs.New(errs.Timeout, "deadline exceeded")
	assert.NotPanics(t, func() {
		m.RecordToolExecution(nil, "fetch", 10*time.Millisecond, toolErr)
		m.RecordToolExecution(nil, "fetch", 10*time.Millisecond, errors.New("plain"))
	})
}
