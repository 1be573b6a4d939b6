package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// HealthStatus summarizes gateway health from recent metrics, the way
// an operator dashboard or a /healthz probe would read it.
type HealthStatus string

const (
	HealthOK       HealthStatus = "OK"
	HealthDegraded HealthStatus = "DEGRADED"
	HealthDown     HealthStatus = "DOWN"
)

// degradedSuccessRate is the per-destination success-rate floor below
// which a destination is considered degraded rather than healthy.
const degradedSuccessRate = 0.90

// staleAfter is how long since a destination's last successful call
// before it is considered down, mirroring the "no success in N"
// heuristic used for RPC health in the chain-adapter exporter this is
// grounded on.
const staleAfter = 5 * time.Minute

// Health reports per-destination status derived from the current
// snapshot.
func (r *Registry) Health() map[string]HealthStatus {
	snap := r.Snapshot()
	out := make(map[string]HealthStatus, len(snap.ByDestination))
	for dest, s := range snap.ByDestination {
		out[dest] = healthFor(s)
	}
	return out
}

func healthFor(s DestSnapshot) HealthStatus {
	if s.TotalCalls == 0 {
		return HealthOK
	}
	if !s.LastSuccessfulCall.IsZero() && time.Since(s.LastSuccessfulCall) > staleAfter {
		return HealthDown
	}
	if s.SuccessRate < degradedSuccessRate {
		return HealthDegraded
	}
	return HealthOK
}

// Export renders the current snapshot as Prometheus text exposition
// format, suitable for a /metrics HTTP handler to write verbatim.
func (r *Registry) Export() string {
	snap := r.Snapshot()
	var b strings.Builder

	b.WriteString("# HELP fep_transactions_total Transactions processed by business type and outcome.\n")
	b.WriteString("# TYPE fep_transactions_total counter\n")
	for _, k := range sortedKeys(snap.ByType) {
		s := snap.ByType[k]
		fmt.Fprintf(&b, "fep_transactions_total{type=%q,outcome=\"success\"} %d\n", k, s.SuccessfulCalls)
		fmt.Fprintf(&b, "fep_transactions_total{type=%q,outcome=\"failure\"} %d\n", k, s.FailedCalls)
	}

	b.WriteString("# HELP fep_transaction_duration_ms_avg Average processing latency by business type.\n")
	b.WriteString("# TYPE fep_transaction_duration_ms_avg gauge\n")
	for _, k := range sortedKeys(snap.ByType) {
		s := snap.ByType[k]
		fmt.Fprintf(&b, "fep_transaction_duration_ms_avg{type=%q} %.3f\n", k, float64(s.AvgDuration.Microseconds())/1000.0)
	}

	b.WriteString("# HELP fep_dispatch_total Upstream dispatch attempts by destination and outcome.\n")
	b.WriteString("# TYPE fep_dispatch_total counter\n")
	for _, k := range sortedDestKeys(snap.ByDestination) {
		s := snap.ByDestination[k]
		fmt.Fprintf(&b, "fep_dispatch_total{destination=%q,outcome=\"success\"} %d\n", k, s.SuccessfulCalls)
		fmt.Fprintf(&b, "fep_dispatch_total{destination=%q,outcome=\"failure\"} %d\n", k, s.FailedCalls)
	}

	b.WriteString("# HELP fep_destination_health Destination health: 1=OK, 0.5=DEGRADED, 0=DOWN.\n")
	b.WriteString("# TYPE fep_destination_health gauge\n")
	for _, k := range sortedDestKeys(snap.ByDestination) {
		fmt.Fprintf(&b, "fep_destination_health{destination=%q} %.1f\n", k, healthValue(healthFor(snap.ByDestination[k])))
	}

	b.WriteString("# HELP fep_batches_total Batch runs by final status.\n")
	b.WriteString("# TYPE fep_batches_total counter\n")
	fmt.Fprintf(&b, "fep_batches_total{status=\"started\"} %d\n", snap.BatchesStarted)
	fmt.Fprintf(&b, "fep_batches_total{status=\"completed\"} %d\n", snap.BatchesCompleted)
	fmt.Fprintf(&b, "fep_batches_total{status=\"failed\"} %d\n", snap.BatchesFailed)

	b.WriteString("# HELP fep_reversals_issued_total Reversals issued for declined or timed-out originals.\n")
	b.WriteString("# TYPE fep_reversals_issued_total counter\n")
	fmt.Fprintf(&b, "fep_reversals_issued_total %d\n", snap.ReversalsIssued)

	b.WriteString("# HELP fep_duplicates_total Requests recognized as duplicates of an in-flight or completed transaction.\n")
	b.WriteString("# TYPE fep_duplicates_total counter\n")
	fmt.Fprintf(&b, "fep_duplicates_total %d\n", snap.DuplicatesSeen)

	return b.String()
}

func healthValue(h HealthStatus) float64 {
	switch h {
	case HealthOK:
		return 1.0
	case HealthDegraded:
		return 0.5
	default:
		return 0.0
	}
}

func sortedKeys(m map[string]TypeSnapshot) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedDestKeys(m map[string]DestSnapshot) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
