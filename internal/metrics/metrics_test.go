package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHandlerExposesCollectors(t *testing.T) {
	before := testutil.ToFloat64(RecordsSkipped.WithLabelValues("empty_date"))
	RecordsSkipped.WithLabelValues("empty_date").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RecordsSkipped.WithLabelValues("empty_date")))

	rec := httptest.NewRecorder()
	NewServer(":0").httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "genejobs_records_skipped_total")
}
