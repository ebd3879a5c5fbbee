package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formdesk/pkg/orchestrator"
	"github.com/goliatone/go-formdesk/pkg/validation"
)

func TestObserver_CountsOutcomes(t *testing.T) {
	m := New()
	obs := m.Observer("exercise")

	obs.Transition(orchestrator.StateIdle, orchestrator.StateValidating, nil)
	obs.Transition(orchestrator.StateValidating, orchestrator.StateTransforming, nil)
	obs.Transition(orchestrator.StateTransforming, orchestrator.StateSaving, nil)
	obs.Transition(orchestrator.StateSaving, orchestrator.StateSuccess, nil)
	obs.Transition(orchestrator.StateSuccess, orchestrator.StateIdle, nil)

	obs.Transition(orchestrator.StateIdle, orchestrator.StateValidating, nil)
	obs.Transition(orchestrator.StateValidating, orchestrator.StateFailed, validation.Custom("Pick a date"))

	obs.Transition(orchestrator.StateIdle, orchestrator.StateValidating, nil)
	obs.Transition(orchestrator.StateSaving, orchestrator.StateFailed, &validation.SaveError{Message: "taken"})

	obs.Transition(orchestrator.StateIdle, orchestrator.StateValidating, nil)
	obs.Transition(orchestrator.StateSaving, orchestrator.StateFailed, errors.New("boom"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.saves.WithLabelValues("exercise", OutcomeSaved)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.saves.WithLabelValues("exercise", OutcomeInvalid)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.saves.WithLabelValues("exercise", OutcomeRejected)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.saves.WithLabelValues("exercise", OutcomeError)))
	require.Equal(t, 4.0, testutil.ToFloat64(m.transitions.WithLabelValues("exercise", string(orchestrator.StateValidating))))
	require.Equal(t, 1, testutil.CollectAndCount(m.saveDuration))
}

func TestObserveTableLoad(t *testing.T) {
	m := New()
	m.ObserveTableLoad("exercises", 20*time.Millisecond, nil)
	m.ObserveTableLoad("exercises", time.Millisecond, errors.New("timeout"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.tableLoads.WithLabelValues("exercises", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.tableLoads.WithLabelValues("exercises", "error")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveTableLoad("exercises", time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `formdesk_table_loads_total{result="ok",table="exercises"} 1`), body)
	require.Contains(t, body, "go_goroutines")
}
