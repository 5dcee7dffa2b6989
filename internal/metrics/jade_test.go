package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRecordBatchSubmitted_IncrementsCountersAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.RecordBatchSubmitted()
	m.RecordBatchSubmitted()
	m.RecordBatchFinalized()

	require.Equal(t, float64(2), readCounter(t, m.BatchesSubmittedTotal))
	require.Equal(t, float64(1), readGauge(t, m.ActiveBatches))
}

func TestRecordJobCompleted_LabelsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.RecordJobCompleted("finished")
	m.RecordJobCompleted("finished")
	m.RecordJobCompleted("canceled")

	require.Equal(t, float64(2), readCounter(t, m.JobsCompletedTotal.WithLabelValues("finished")))
	require.Equal(t, float64(1), readCounter(t, m.JobsCompletedTotal.WithLabelValues("canceled")))
}

func readCounter(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb io_prometheus_client.Metric
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}

func readGauge(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var pb io_prometheus_client.Metric
	require.NoError(t, g.Write(&pb))
	return pb.GetGauge().GetValue()
}
