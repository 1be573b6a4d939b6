package retry

import (
	"time"

	"github.com/paynet/fep/internal/dedup"
	"github.com/paynet/fep/internal/ferr"
	"github.com/paynet/fep/internal/txn"
)

// ReversalWindow is the period during which a reversal may still be
// issued against an original financial transaction.
const ReversalWindow = 90 * time.Second

// Sender abstracts the connection manager's request/response round
// trip so IssueReversal can be unit tested without a live socket.
type Sender interface {
	Send(req *txn.Request) (*txn.Response, error)
}

// IssueReversal builds and sends an MTI 0400-equivalent reversal for an
// original request that timed out, carrying the original STAN/RRN/
// terminal/amount. Eligibility is evaluated and atomically claimed
// against the dedup store before the reversal is sent, so repeated
// reversal attempts for the same original are idempotent: the second
// caller observes dedup.ReversalAlreadyReversed and gets back the
// "already reversed" DuplicateError (code 94) without resending.
func IssueReversal(store *dedup.Store, sender Sender, original *txn.Request, now time.Time) (*txn.Response, error) {
	key := txn.ReversalKeyOf(original)
	result := store.EvaluateReversal(key, original.Amount.String(), ReversalWindow, now)

	switch result {
	case dedup.ReversalAlreadyReversed:
		return nil, ferr.Duplicate(errAlreadyReversed)
	case dedup.ReversalWindowExpired:
		return nil, ferr.Validation(txn.CodeDoNotHonor, errWindowExpired)
	case dedup.ReversalAmountMismatch:
		return nil, ferr.Validation(txn.CodeDoNotHonor, errAmountMismatch)
	case dedup.ReversalIneligibleStatus:
		return nil, ferr.Validation(txn.CodeDoNotHonor, errIneligibleStatus)
	case dedup.ReversalNotFound:
		return nil, ferr.Validation(txn.CodeDoNotHonor, errNotFound)
	}

	reversal := &txn.Request{
		TransactionID: original.TransactionID + "-REV",
		Type:          txn.TypeReversal,
		STAN:          original.STAN,
		RRN:           original.RRN,
		TerminalID:    original.TerminalID,
		AcquiringBank: original.AcquiringBank,
		Amount:        original.Amount,
		Currency:      original.Currency,
		OriginalTxnID: original.TransactionID,
		RequestedAt:   now,
	}
	return sender.Send(reversal)
}

type reversalErr string

func (e reversalErr) Error() string { return string(e) }

const (
	errAlreadyReversed  = reversalErr("original transaction already reversed")
	errWindowExpired    = reversalErr("reversal window expired")
	errAmountMismatch   = reversalErr("reversal amount does not match original")
	errIneligibleStatus = reversalErr("original transaction not in a reversible status")
	errNotFound         = reversalErr("original transaction not found")
)
