package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestHandler_ExposesCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	before := testutil.ToFloat64(InvitationEvents.WithLabelValues("created"))
	InvitationEvents.WithLabelValues("created").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(InvitationEvents.WithLabelValues("created")))

	ObserveHTTP(http.MethodGet, "/healthz", http.StatusOK, 3*time.Millisecond)

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "posguard_invitation_events_total")
	assert.Contains(t, rr.Body.String(), "posguard_http_requests_total")
}
