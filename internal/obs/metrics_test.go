package obs_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygraph/toolgraphd/internal/obs"
)

func TestNewMetrics_ReturnsTheSameSingletonAcrossCalls(t *testing.T) {
	m1 := obs.NewMetrics()
	m2 := obs.NewMetrics()
	require.Same(t, m1, m2, "sync.Once must guard against duplicate Prometheus registration")
}

func TestNewMetrics_CountersAreUsable(t *testing.T) {
	m := obs.NewMetrics()

	m.NodeExecutionsTotal.WithLabelValues("transform", "success").Inc()
	got := testutil.ToFloat64(m.NodeExecutionsTotal.WithLabelValues("transform", "success"))
	assert.GreaterOrEqual(t, got, 1.0)
}
