package tracer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracingAndMetrics(t *testing.T) {
	p, err := InitTracingAndMetrics("tripspot-test")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.NoError(t, (*Providers)(nil).Shutdown(context.Background()))
}
