package processors

import (
	"context"
	"time"

	"github.com/paynet/fep/internal/dedup"
	"github.com/paynet/fep/internal/retry"
	"github.com/paynet/fep/internal/txn"
	"github.com/paynet/fep/internal/wire"
)

// ReversalProcessor handles both operator-initiated reversal requests
// and the auto-issued reversal on financial-transaction timeout (§4.8).
// It is specialized relative to the other processors: it consults the
// dedup store for eligibility and atomic REVERSED marking instead of
// just round-tripping a message.
type ReversalProcessor struct {
	base
	Store *dedup.Store
}

func NewReversalProcessor(sender Sender, store *dedup.Store) *ReversalProcessor {
	return &ReversalProcessor{base: newBase(sender), Store: store}
}

// Process issues a reversal for req, evaluating the reversal window at
// req.RequestedAt. The gateway's PROCESSING stage calls it with the
// original request once retries are exhausted.
func (p *ReversalProcessor) Process(ctx context.Context, req *txn.Request) (*txn.Response, error) {
	adapter := &ctxSenderAdapter{ctx: ctx, sender: p.sender, timeout: p.effectiveTimeout()}
	return retry.IssueReversal(p.Store, adapter, req, req.RequestedAt)
}

// ctxSenderAdapter lets retry.IssueReversal (which knows nothing about
// context/timeout) drive the same connmgr-backed Sender processors use.
type ctxSenderAdapter struct {
	ctx     context.Context
	sender  Sender
	timeout time.Duration
}

func (a *ctxSenderAdapter) Send(req *txn.Request) (*txn.Response, error) {
	msg := buildBase("0420", req)
	msg.Set(wire.F90OriginalData, req.OriginalTxnID)
	return roundTrip(a.ctx, a.sender, req, msg, a.timeout)
}
