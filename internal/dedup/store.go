package dedup

import (
	"sync"
	"time"

	"github.com/paynet/fep/internal/txn"
)

// entryStatus tracks where a fingerprinted request is in its lifecycle,
// independent of the business-level txn.Status, so the store can decide
// between "still pending" (return DUPLICATE_TRANSACTION) and "already
// resolved" (return the cached response) without re-deriving that from
// the response itself.
type entryStatus int

const (
	entryPending entryStatus = iota
	entryCompleted
)

type entry struct {
	status    entryStatus
	response  *txn.Response
	txnStatus txn.Status
	storedAt  time.Time
}

// Store is the duplicate/correlation store (§4.4): incoming-request
// deduplication keyed by fingerprint, and reversal lookup keyed by
// (RRN, STAN, terminal). A single mutex guards both maps since reversal
// eligibility checks need to compare-and-set against dedup state
// atomically with respect to concurrent duplicate submissions.
type Store struct {
	mu              sync.Mutex
	byFingerprint   map[txn.Fingerprint]*entry
	byReversalKey   map[txn.ReversalKey]*originalRecord
	retentionWindow time.Duration
}

type originalRecord struct {
	request    *txn.Request
	response   *txn.Response
	status     txn.Status
	reversedAt time.Time
	storedAt   time.Time
}

// NewStore returns a Store that retains entries for retentionWindow
// (typically 24h, covering one settlement day).
func NewStore(retentionWindow time.Duration) *Store {
	return &Store{
		byFingerprint:   make(map[txn.Fingerprint]*entry),
		byReversalKey:   make(map[txn.ReversalKey]*originalRecord),
		retentionWindow: retentionWindow,
	}
}

// CheckResult is the outcome of CheckAndReserve.
type CheckResult int

const (
	// ResultNew means no prior entry existed; the caller should proceed
	// and eventually call Complete.
	ResultNew CheckResult = iota
	// ResultDuplicatePending means the original is still in flight;
	// caller should return DUPLICATE_TRANSACTION (code 94) without a
	// second upstream dispatch.
	ResultDuplicatePending
	// ResultDuplicateCompleted means the original already has a cached
	// response; caller should return that response directly.
	ResultDuplicateCompleted
)

// CheckAndReserve atomically checks for a prior fingerprint match and,
// if none exists, reserves a pending entry so concurrent duplicates see
// it immediately. This is the at-most-one-upstream-dispatch guarantee.
// Admission also seeds a PENDING record under the request's reversal
// key, so a request that times out before Complete is ever called is
// still findable by EvaluateReversal — the reversal window starts at
// the request's RequestedAt (admission time when that is unset), not at
// eventual completion.
func (s *Store) CheckAndReserve(fp txn.Fingerprint, request *txn.Request) (CheckResult, *txn.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.byFingerprint[fp]; ok {
		switch e.status {
		case entryPending:
			return ResultDuplicatePending, nil
		case entryCompleted:
			return ResultDuplicateCompleted, e.response
		}
	}

	now := time.Now()
	s.byFingerprint[fp] = &entry{status: entryPending, storedAt: now}

	if request.Type != txn.TypeReversal {
		rk := txn.ReversalKeyOf(request)
		if _, exists := s.byReversalKey[rk]; !exists {
			arrivedAt := request.RequestedAt
			if arrivedAt.IsZero() {
				arrivedAt = now
			}
			s.byReversalKey[rk] = &originalRecord{
				request:  request,
				status:   txn.StatusPending,
				storedAt: arrivedAt,
			}
		}
	}

	return ResultNew, nil
}

// Complete records the final response for a fingerprint and updates the
// original's reversal-key record in place, preserving the admission
// storedAt so the reversal window is measured from when the request
// first arrived rather than when it finished.
func (s *Store) Complete(fp txn.Fingerprint, request *txn.Request, response *txn.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byFingerprint[fp] = &entry{
		status:    entryCompleted,
		response:  response,
		txnStatus: statusFromResponse(response),
		storedAt:  time.Now(),
	}

	if request.Type != txn.TypeReversal {
		rk := txn.ReversalKeyOf(request)
		if rec, ok := s.byReversalKey[rk]; ok {
			rec.request = request
			rec.response = response
			rec.status = statusFromResponse(response)
		} else {
			s.byReversalKey[rk] = &originalRecord{
				request:  request,
				response: response,
				status:   statusFromResponse(response),
				storedAt: time.Now(),
			}
		}
	}
}

func statusFromResponse(r *txn.Response) txn.Status {
	if r.Approved {
		return txn.StatusApproved
	}
	return txn.StatusDeclined
}

// ReversalEligibility is the result of EvaluateReversal.
type ReversalEligibility int

const (
	ReversalNotFound ReversalEligibility = iota
	ReversalAlreadyReversed
	ReversalAmountMismatch
	ReversalWindowExpired
	ReversalIneligibleStatus
	ReversalEligible
)

// EvaluateReversal looks up the original by (RRN, STAN, terminal) and,
// if eligible, atomically marks the
// original REVERSED so a concurrent second reversal attempt observes
// ReversalAlreadyReversed instead of racing to reverse twice.
func (s *Store) EvaluateReversal(key txn.ReversalKey, requestedAmount string, reversalWindow time.Duration, now time.Time) ReversalEligibility {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byReversalKey[key]
	if !ok {
		return ReversalNotFound
	}
	if rec.status == txn.StatusReversed {
		return ReversalAlreadyReversed
	}
	if rec.status != txn.StatusApproved && rec.status != txn.StatusPending {
		return ReversalIneligibleStatus
	}
	if now.Sub(rec.storedAt) > reversalWindow {
		return ReversalWindowExpired
	}
	if rec.request.Amount.String() != requestedAmount {
		return ReversalAmountMismatch
	}

	rec.status = txn.StatusReversed
	rec.reversedAt = now
	return ReversalEligible
}

// Prune removes fingerprint and reversal entries older than the
// retention window and reports how many it removed. Nothing in this
// package schedules it; entries stay until a caller runs Prune.
func (s *Store) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for fp, e := range s.byFingerprint {
		if now.Sub(e.storedAt) > s.retentionWindow {
			delete(s.byFingerprint, fp)
			removed++
		}
	}
	for key, rec := range s.byReversalKey {
		if now.Sub(rec.storedAt) > s.retentionWindow {
			delete(s.byReversalKey, key)
			removed++
		}
	}
	return removed
}
