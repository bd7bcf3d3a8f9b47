package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_sales/internal/config"
)

func TestSettlementMetricsObserve(t *testing.T) {
	m := Settlement()
	assert.Same(t, m, Settlement())

	before := testutil.ToFloat64(m.instructions.WithLabelValues("purchase", "SaleClosed"))
	m.Observe("purchase", "SaleClosed", time.Millisecond)
	m.Observe("purchase", "SaleClosed", time.Millisecond)
	assert.Equal(t, before+2, testutil.ToFloat64(m.instructions.WithLabelValues("purchase", "SaleClosed")))

	m.Observe("", "ok", time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.instructions.WithLabelValues("unknown", "ok")), 1.0)

	m.RecordThrottle("/transactions")
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.throttles.WithLabelValues("/transactions")), 1.0)

	var nilMetrics *SettlementMetrics
	assert.NotPanics(t, func() { nilMetrics.Observe("close", "ok", 0) })
}

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), config.TracingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
