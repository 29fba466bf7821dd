package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mmpost/pkg/utils/metrics"
)

func TestHandlerExposesCollectors(t *testing.T) {
	metrics.ObservePlatformCall("get_me", "ok", 15*time.Millisecond)
	metrics.IncDelivery("success")

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	gt.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	gt.NoError(t, err).Required()
	gt.S(t, string(body)).Contains(`mmpost_platform_calls_total{operation="get_me",outcome="ok"}`)
	gt.S(t, string(body)).Contains(`mmpost_deliveries_total{result="success"}`)
	gt.S(t, string(body)).Contains("mmpost_platform_call_duration_seconds_bucket")

	// registering twice must not panic
	metrics.MustRegister()
}
