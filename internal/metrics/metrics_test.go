package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordTransactionComputesAverageDuration(t *testing.T) {
	r := NewRegistry()
	r.RecordTransaction("WITHDRAWAL", 100*time.Millisecond, true)
	r.RecordTransaction("WITHDRAWAL", 200*time.Millisecond, true)
	r.RecordTransaction("WITHDRAWAL", 0, false)

	snap := r.Snapshot()
	s := snap.ByType["WITHDRAWAL"]
	require.Equal(t, int64(3), s.TotalCalls)
	require.Equal(t, int64(2), s.SuccessfulCalls)
	require.Equal(t, int64(1), s.FailedCalls)
	require.Equal(t, 100*time.Millisecond, s.AvgDuration)
}

func TestRecordDispatchTracksSuccessRateAndLastSuccess(t *testing.T) {
	r := NewRegistry()
	r.RecordDispatch("FISC_INTERBANK", true)
	r.RecordDispatch("FISC_INTERBANK", false)
	r.RecordDispatch("FISC_INTERBANK", false)

	snap := r.Snapshot()
	s := snap.ByDestination["FISC_INTERBANK"]
	require.Equal(t, int64(3), s.TotalCalls)
	require.InDelta(t, 1.0/3.0, s.SuccessRate, 0.0001)
	require.False(t, s.LastSuccessfulCall.IsZero())
}

func TestHealthDegradedBelowThreshold(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 8; i++ {
		r.RecordDispatch("MAINFRAME_CBS", false)
	}
	r.RecordDispatch("MAINFRAME_CBS", true)
	r.RecordDispatch("MAINFRAME_CBS", true)

	health := r.Health()
	require.Equal(t, HealthDegraded, health["MAINFRAME_CBS"])
}

func TestHealthOKWithAllDispatchesSucceeding(t *testing.T) {
	r := NewRegistry()
	r.RecordDispatch("CARD_NETWORK", true)
	health := r.Health()
	require.Equal(t, HealthOK, health["CARD_NETWORK"])
}

func TestExportProducesPrometheusTextFormat(t *testing.T) {
	r := NewRegistry()
	r.RecordTransaction("DEPOSIT", 50*time.Millisecond, true)
	r.RecordDispatch("FISC_BILL_PAYMENT", true)
	r.RecordBatch("COMPLETED")
	r.RecordReversal()
	r.RecordDuplicate()

	out := r.Export()
	require.Contains(t, out, "# HELP fep_transactions_total")
	require.Contains(t, out, "fep_transactions_total{type=\"DEPOSIT\",outcome=\"success\"} 1")
	require.Contains(t, out, "fep_dispatch_total{destination=\"FISC_BILL_PAYMENT\",outcome=\"success\"} 1")
	require.Contains(t, out, "fep_batches_total{status=\"completed\"} 1")
	require.Contains(t, out, "fep_reversals_issued_total 1")
	require.Contains(t, out, "fep_duplicates_total 1")
	require.True(t, strings.Count(out, "# TYPE") >= 6)
}
