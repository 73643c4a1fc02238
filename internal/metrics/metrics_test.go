package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

func TestCollectorCounters(t *testing.T) {
	c := New()

	c.ObserveTask("close_check", 2*time.Second, 1)
	c.ObserveTask("close_check", time.Second, 0)
	c.ObserveDecision(domain.Decision{Phase: domain.PhaseCanBeClosed, Action: domain.ActionClose})
	c.TxSubmitted("close_epoch")
	c.TxResubmitted("close_epoch", true)
	c.TxSettled("close_epoch", false)
	c.SetInFlight(2)
	c.SetPools(5)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.taskRuns.WithLabelValues("close_check")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.poolErrors.WithLabelValues("close_check")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.decisions.WithLabelValues("can_be_closed", "close_epoch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.txResubmitted.WithLabelValues("close_epoch", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.txSettled.WithLabelValues("close_epoch", "reverted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.txInFlight))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.pools))
}

func TestObservePool(t *testing.T) {
	c := New()
	c.ObservePool(domain.PoolState{
		PoolID:   "0xpool",
		Reserve:  math.NewInt(15).Mul(domain.OneUnit).QuoRaw(10),
		Capacity: domain.Capacity{Total: math.NewInt(50).Mul(domain.OneUnit)},
	})

	assert.InDelta(t, 1.5, testutil.ToFloat64(c.reserve.WithLabelValues("0xpool")), 1e-9)
	assert.InDelta(t, 50, testutil.ToFloat64(c.capacity.WithLabelValues("0xpool")), 1e-9)
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	c.TxSubmitted("execute_epoch")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `poolkeeper_tx_submitted_total{action="execute_epoch"} 1`)
}
