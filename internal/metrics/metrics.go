// Package metrics implements an in-process Prometheus-text exporter for
// gateway throughput and latency, tracked per transaction type and per
// upstream destination.
package metrics

import (
	"sync"
	"time"
)

// typeStats tracks per-transaction-type call counts and latency.
type typeStats struct {
	totalCalls      int64
	successfulCalls int64
	failedCalls     int64
	totalDuration   time.Duration
}

// destStats tracks per-destination dispatch counts, used to watch a
// single upstream (e.g. FISC_INTERBANK) degrade independently of the
// others.
type destStats struct {
	totalCalls         int64
	successfulCalls    int64
	failedCalls        int64
	lastSuccessfulCall time.Time
}

// Registry is the gateway's metrics sink: thread-safe, in-process,
// exported as Prometheus text. One Registry is built at startup and
// shared by the gateway's pipeline stage handlers.
type Registry struct {
	mu sync.RWMutex

	byType map[string]*typeStats
	byDest map[string]*destStats

	batchesStarted   int64
	batchesCompleted int64
	batchesFailed    int64

	reversalsIssued int64
	duplicatesSeen  int64
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[string]*typeStats),
		byDest: make(map[string]*destStats),
	}
}

// RecordTransaction records one processed transaction's outcome and
// latency, bucketed by its business type.
func (r *Registry) RecordTransaction(txnType string, duration time.Duration, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byType[txnType]
	if !ok {
		s = &typeStats{}
		r.byType[txnType] = s
	}
	s.totalCalls++
	s.totalDuration += duration
	if success {
		s.successfulCalls++
	} else {
		s.failedCalls++
	}
}

// RecordDispatch records one upstream round trip, bucketed by routing
// destination.
func (r *Registry) RecordDispatch(destination string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byDest[destination]
	if !ok {
		s = &destStats{}
		r.byDest[destination] = s
	}
	s.totalCalls++
	if success {
		s.successfulCalls++
		s.lastSuccessfulCall = time.Now()
	} else {
		s.failedCalls++
	}
}

// RecordBatch records one batch run's final status.
func (r *Registry) RecordBatch(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.batchesStarted++
	switch status {
	case "COMPLETED":
		r.batchesCompleted++
	case "FAILED":
		r.batchesFailed++
	}
}

// RecordReversal increments the reversal-issued counter.
func (r *Registry) RecordReversal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reversalsIssued++
}

// RecordDuplicate increments the duplicate-request counter.
func (r *Registry) RecordDuplicate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duplicatesSeen++
}

// Snapshot is a point-in-time, lock-free copy of the registry's
// counters, safe to read after Snapshot returns.
type Snapshot struct {
	ByType           map[string]TypeSnapshot
	ByDestination    map[string]DestSnapshot
	BatchesStarted   int64
	BatchesCompleted int64
	BatchesFailed    int64
	ReversalsIssued  int64
	DuplicatesSeen   int64
}

type TypeSnapshot struct {
	TotalCalls      int64
	SuccessfulCalls int64
	FailedCalls     int64
	AvgDuration     time.Duration
}

type DestSnapshot struct {
	TotalCalls         int64
	SuccessfulCalls    int64
	FailedCalls        int64
	SuccessRate        float64
	LastSuccessfulCall time.Time
}

// Snapshot takes a consistent point-in-time copy of all counters.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := Snapshot{
		ByType:           make(map[string]TypeSnapshot, len(r.byType)),
		ByDestination:    make(map[string]DestSnapshot, len(r.byDest)),
		BatchesStarted:   r.batchesStarted,
		BatchesCompleted: r.batchesCompleted,
		BatchesFailed:    r.batchesFailed,
		ReversalsIssued:  r.reversalsIssued,
		DuplicatesSeen:   r.duplicatesSeen,
	}
	for k, s := range r.byType {
		avg := time.Duration(0)
		if s.totalCalls > 0 {
			avg = s.totalDuration / time.Duration(s.totalCalls)
		}
		out.ByType[k] = TypeSnapshot{
			TotalCalls:      s.totalCalls,
			SuccessfulCalls: s.successfulCalls,
			FailedCalls:     s.failedCalls,
			AvgDuration:     avg,
		}
	}
	for k, s := range r.byDest {
		rate := 0.0
		if s.totalCalls > 0 {
			rate = float64(s.successfulCalls) / float64(s.totalCalls)
		}
		out.ByDestination[k] = DestSnapshot{
			TotalCalls:         s.totalCalls,
			SuccessfulCalls:    s.successfulCalls,
			FailedCalls:        s.failedCalls,
			SuccessRate:        rate,
			LastSuccessfulCall: s.lastSuccessfulCall,
		}
	}
	return out
}
