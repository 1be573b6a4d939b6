// Package gateway wires the standalone internal packages — dedup,
// pipeline, router, processors, retry, audit, repository, metrics —
// into the stage handlers that make up one running gateway process.
package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paynet/fep/internal/audit"
	"github.com/paynet/fep/internal/dedup"
	"github.com/paynet/fep/internal/ferr"
	"github.com/paynet/fep/internal/metrics"
	"github.com/paynet/fep/internal/pipeline"
	"github.com/paynet/fep/internal/processors"
	"github.com/paynet/fep/internal/repository"
	"github.com/paynet/fep/internal/retry"
	"github.com/paynet/fep/internal/router"
	"github.com/paynet/fep/internal/security"
	"github.com/paynet/fep/internal/txn"
)

// Deps holds every collaborator a gateway's pipeline stages need. One
// Deps is built at process startup from internal/config and shared by
// the built Pipeline.
type Deps struct {
	Dedup       *dedup.Store
	Router      *router.Router
	Processors  map[txn.Type]processors.Processor
	Reversal    *processors.ReversalProcessor
	Audit       *audit.Logger
	Repo        repository.TransactionRepository
	Metrics     *metrics.Registry
	Log         *zap.Logger
	RetryPolicy retry.Policy

	// MacKey/MacAlg, when MacKey is non-empty, turn on field-64/128 MAC
	// verification in SECURITY_CHECK. Left unset, the security stage
	// only enforces the PIN-block-present invariant for PIN-bearing
	// transaction types.
	MacKey []byte
	MacAlg security.MacAlgorithm
}

// BuildPipeline registers one handler per stage against a fresh
// Pipeline, in the fixed order §4.3 names, from RECEIVE through AUDIT.
// Decoding wire bytes happens before Run is invoked, so the RECEIVE
// handler only writes the audit receipt and PARSE is a no-op.
func (d *Deps) BuildPipeline() *pipeline.Pipeline {
	p := pipeline.New(d.Log)

	p.Register(pipeline.StageReceive, d.receiveHandler)
	p.Register(pipeline.StageParse, d.parseHandler)
	p.Register(pipeline.StageDuplicateCheck, d.duplicateCheckHandler)
	p.Register(pipeline.StageSecurityCheck, d.securityCheckHandler)
	p.Register(pipeline.StageValidation, d.validationHandler)
	p.Register(pipeline.StageRouting, d.routingHandler)
	p.Register(pipeline.StageProcessing, d.processingHandler)
	p.Register(pipeline.StageResponse, d.responseHandler)
	p.Register(pipeline.StageAudit, d.auditHandler)

	return p
}

// receiveHandler records the audit receipt line for the inbound
// request; wire-level decoding already happened before Run was called.
func (d *Deps) receiveHandler(ctx *pipeline.Context) error {
	if d.Audit != nil {
		d.Audit.Receipt(context.Background(), ctx.Request)
	}
	return nil
}

// parseHandler is a no-op placeholder: the wire-to-business translation
// (internal/gateway's RequestFromWire) runs before Run is called, so by
// the time a Context exists ctx.Request is already a fully-typed
// txn.Request. The stage is still registered so its duration and
// listener hooks fire in the documented order.
func (d *Deps) parseHandler(ctx *pipeline.Context) error {
	return nil
}

// securityCheckHandler verifies the MAC on financial requests when a
// key is configured, and rejects PIN-bearing transaction types that
// arrived without PIN data (§4.5).
func (d *Deps) securityCheckHandler(ctx *pipeline.Context) error {
	req := ctx.Request
	if d.requiresPIN(req.Type) && len(req.PINBlock) == 0 {
		return ferr.Security(txn.CodeInvalidPIN, fmt.Errorf("PIN block required for %s", req.Type))
	}
	if len(d.MacKey) == 0 || len(req.MAC) == 0 {
		return nil
	}
	ok, err := security.VerifyMAC(d.MacAlg, d.MacKey, []byte(req.TransactionID+req.STAN), req.MAC)
	if err != nil {
		return ferr.Security(txn.CodeSystemMalfunction, err)
	}
	if !ok {
		return ferr.Security(txn.CodeInvalidPIN, fmt.Errorf("MAC verification failed"))
	}
	return nil
}

func (d *Deps) requiresPIN(t txn.Type) bool {
	switch t {
	case txn.TypeWithdrawal, txn.TypeTransfer:
		return true
	default:
		return false
	}
}

// duplicateCheckHandler enforces at-most-once effect per fingerprint
// (§4.4): a request already completed returns its cached response
// immediately; one already in flight is rejected as a duplicate.
func (d *Deps) duplicateCheckHandler(ctx *pipeline.Context) error {
	fp := txn.FingerprintOf(ctx.Request)
	result, cached := d.Dedup.CheckAndReserve(fp, ctx.Request)

	switch result {
	case dedup.ResultNew:
		return nil
	case dedup.ResultDuplicateCompleted:
		// Idempotent replay: the original outcome is returned as-is,
		// without re-dispatching upstream or reporting an error.
		if d.Metrics != nil {
			d.Metrics.RecordDuplicate()
		}
		ctx.Response = cached
		ctx.ContinueProcessing = false
		return nil
	case dedup.ResultDuplicatePending:
		if d.Metrics != nil {
			d.Metrics.RecordDuplicate()
		}
		return ferr.Duplicate(fmt.Errorf("transaction %s already in flight", ctx.Request.TransactionID))
	default:
		return ferr.System(fmt.Errorf("unexpected dedup result %v", result))
	}
}

// validationHandler enforces the structural invariants a malformed or
// out-of-range request would otherwise carry all the way to an
// upstream round trip.
func (d *Deps) validationHandler(ctx *pipeline.Context) error {
	req := ctx.Request
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		return ferr.Validation(txn.CodeDoNotHonor, fmt.Errorf("amount must be positive"))
	}
	if len(req.STAN) != 6 {
		return ferr.Validation(txn.CodeDoNotHonor, fmt.Errorf("STAN must be 6 digits, got %q", req.STAN))
	}
	if req.TerminalID == "" {
		return ferr.Validation(txn.CodeDoNotHonor, fmt.Errorf("terminal id is required"))
	}
	return nil
}

// routingHandler selects exactly one upstream destination via the
// priority-ordered router, recording the decision for PROCESSING.
func (d *Deps) routingHandler(ctx *pipeline.Context) error {
	decision, err := d.Router.Route(ctx.Request)
	if err != nil {
		fe, ok := ferr.As(err)
		if ok {
			return fe
		}
		return ferr.Routing(err)
	}
	ctx.Routing = &pipeline.RoutingResult{
		Destination: string(decision.Destination),
		RuleName:    decision.RuleName,
		Timeout:     decision.Timeout,
	}
	return nil
}

// processingHandler dispatches to the per-type processor, retrying per
// policy on a retryable failure and issuing a reversal on exhaustion
// for financial transaction types. Every attempt preserves the
// original STAN so upstream dedup stays anchored.
func (d *Deps) processingHandler(ctx *pipeline.Context) error {
	proc, ok := d.Processors[ctx.Request.Type]
	if !ok {
		return ferr.System(fmt.Errorf("no processor registered for type %s", ctx.Request.Type))
	}

	timeout := processors.DefaultTimeout
	if ctx.Routing != nil && ctx.Routing.Timeout > 0 {
		timeout = ctx.Routing.Timeout
	}

	var resp *txn.Response
	attempt := func(_ context.Context, _ int) error {
		reqCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		r, err := proc.Process(reqCtx, ctx.Request)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	err := retry.Do(context.Background(), d.RetryPolicy, func(e error) bool {
		return retry.IsRetryableError(e)
	}, attempt)

	success := err == nil
	if d.Metrics != nil && ctx.Routing != nil {
		d.Metrics.RecordDispatch(ctx.Routing.Destination, success)
	}

	if err != nil {
		if d.Reversal != nil && d.isFinancial(ctx.Request.Type) {
			if _, revErr := d.Reversal.Process(context.Background(), ctx.Request); revErr == nil && d.Metrics != nil {
				d.Metrics.RecordReversal()
			}
		}
		fe, ok := ferr.As(err)
		if ok {
			return fe
		}
		return ferr.Timeout(err)
	}

	ctx.Response = resp
	d.Dedup.Complete(txn.FingerprintOf(ctx.Request), ctx.Request, resp)
	return nil
}

func (d *Deps) isFinancial(t txn.Type) bool {
	switch t {
	case txn.TypeWithdrawal, txn.TypeTransfer, txn.TypeDeposit, txn.TypeBillPayment, txn.TypePurchase:
		return true
	default:
		return false
	}
}

// responseHandler finalizes timestamps and records per-type outcome
// metrics now that processing has concluded either way.
func (d *Deps) responseHandler(ctx *pipeline.Context) error {
	if ctx.Response == nil {
		return nil
	}
	if ctx.Response.ProcessingStartedAt.IsZero() {
		ctx.Response.ProcessingStartedAt = time.Now()
	}
	if ctx.Response.ProcessingEndedAt.IsZero() {
		ctx.Response.ProcessingEndedAt = time.Now()
	}
	if d.Metrics != nil {
		d.Metrics.RecordTransaction(string(ctx.Request.Type), ctx.Response.Duration(), ctx.Response.Approved)
	}
	return nil
}

// auditHandler always runs, successful or not, logging the outcome or
// the mapped error for compliance retention.
func (d *Deps) auditHandler(ctx *pipeline.Context) error {
	if d.Audit == nil {
		return nil
	}
	if ctx.Err != nil {
		d.Audit.Error(context.Background(), ctx.Request, ctx.Err.ResponseCode, ctx.Err)
		return nil
	}
	if ctx.Response != nil {
		d.Audit.Response(context.Background(), ctx.Request, ctx.Response)
	}
	return nil
}
