package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradehub/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequest(http.MethodPost, "/trade", http.StatusCreated, 20*time.Millisecond)
	c.RecordRequest(http.MethodPost, "/trade", http.StatusCreated, 10*time.Millisecond)
	c.RecordRequest(http.MethodPost, "/trade", http.StatusNotFound, time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("POST", "/trade", "201")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("POST", "/trade", "404")))
	require.Equal(t, 1, testutil.CollectAndCount(c.latency))
}

func TestCollector_RecordTrade(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTrade(models.TradePending)
	c.RecordTrade(models.TradeAccepted)
	c.RecordTrade(models.TradeAccepted)

	require.Equal(t, 1.0, testutil.ToFloat64(c.trades.WithLabelValues("pending")))
	require.Equal(t, 2.0, testutil.ToFloat64(c.trades.WithLabelValues("accepted")))
	require.Equal(t, 0.0, testutil.ToFloat64(c.trades.WithLabelValues("declined")))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordTrade(models.TradeDeclined)

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `tradehub_trade_transitions_total{status="declined"} 1`)
}
