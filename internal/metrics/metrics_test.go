package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordProviderResponse(t *testing.T) {
	before := testutil.ToFloat64(ProviderRequestsTotal.WithLabelValues("metrics-test", "success"))
	costBefore := testutil.ToFloat64(ProviderCostTotal.WithLabelValues("metrics-test"))

	RecordProviderResponse("metrics-test", "success", 150*time.Millisecond, 0.25, 3)
	RecordProviderResponse("metrics-test", "error", time.Second, -1, 0)

	assert.Equal(t, before+1, testutil.ToFloat64(ProviderRequestsTotal.WithLabelValues("metrics-test", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ProviderRequestsTotal.WithLabelValues("metrics-test", "error")))
	assert.InDelta(t, costBefore+0.25, testutil.ToFloat64(ProviderCostTotal.WithLabelValues("metrics-test")), 1e-9)
}

func TestRecordSession(t *testing.T) {
	before := testutil.ToFloat64(SessionsTotal.WithLabelValues("cancelled"))
	RecordSession("cancelled")
	assert.Equal(t, before+1, testutil.ToFloat64(SessionsTotal.WithLabelValues("cancelled")))
}
