package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/le-stef/pendulum/internal/stats"
)

func testLogEntry() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestCollectReflectsStatsSnapshot(t *testing.T) {
	st := stats.New()
	st.IncRequestsReceived()
	st.IncRequestsAnswered()
	st.SetClockInfo(1, [4]byte{'G', 'P', 'S', 0}, true, 7)

	reg := New(st, testLogEntry())
	reg.collect()

	assert.Equal(t, float64(1), testutil.ToFloat64(reg.requestsReceived))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.requestsAnswered))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.stratum))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.connected))
	assert.Equal(t, float64(7), testutil.ToFloat64(reg.satellites))
}

func TestCollectingHandlerServesMetrics(t *testing.T) {
	st := stats.New()
	st.IncErrors()
	reg := New(st, testLogEntry())

	srv := httptest.NewServer(reg.collectingHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "pendulum_errors_total")
}
