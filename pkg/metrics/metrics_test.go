package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CountdownsStarted.WithLabelValues("boardroom").Inc()
	m.CountdownsStarted.WithLabelValues("boardroom").Inc()
	m.Declines.WithLabelValues("boardroom", "success").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CountdownsStarted.WithLabelValues("boardroom")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Declines.WithLabelValues("boardroom", "success")))
}

func TestMetrics_SetPhase(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetPhase("boardroom", "countdown")
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Phase.WithLabelValues("boardroom")))

	m.SetPhase("boardroom", "bogus")
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Phase.WithLabelValues("boardroom")))
}
