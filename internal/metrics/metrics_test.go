package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)

	m.Attempt("login", OutcomeSuccess)
	m.Attempt("login", OutcomeSuccess)
	m.Attempt("login", OutcomeFailure)
	m.Issued("access")

	assert.InDelta(t, 2, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("login", OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("login", OutcomeFailure)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TokensIssued.WithLabelValues("access")), 0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Attempt("login", OutcomeSuccess)
		m.Issued("refresh")
	})
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)
	m.Issued("refresh")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "authsys_tokens_issued_total")
	assert.Contains(t, string(body), "go_goroutines")
}
