package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	// disabled, counters do nothing
	c := GetOrRegisterCounter("test/disabled")
	c.Inc(5)
	require.EqualValues(t, 0, c.Count())

	Enable()
	require.True(t, Enabled())
	c = GetOrRegisterCounter("test/counter")
	c.Inc(2)
	require.EqualValues(t, 2, GetOrRegisterCounter("test/counter").Count())

	rec := httptest.NewRecorder()
	PrometheusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "test_counter 2")
}
