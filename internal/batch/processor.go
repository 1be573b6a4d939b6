// Package batch implements bounded-parallelism batch execution of a
// transaction list §4.9 describes.
package batch

import (
	"context"
	"sync"

	"github.com/paynet/fep/internal/processors"
	"github.com/paynet/fep/internal/txn"
)

// Status is the final outcome of a batch run.
type Status string

const (
	StatusCompleted           Status = "COMPLETED"
	StatusFailed              Status = "FAILED"
	StatusCompletedWithErrors Status = "COMPLETED_WITH_ERRORS"
)

// ItemError pairs a failed transaction with the error it produced.
type ItemError struct {
	Index   int
	Request *txn.Request
	Err     error
}

// Request describes one batch submission.
type Request struct {
	ID              string
	Type            string
	Transactions    []*txn.Request
	ContinueOnError bool
	Parallelism     int
}

// Result is the outcome of running a Request.
type Result struct {
	ID        string
	Status    Status
	Responses []*txn.Response // nil entries mark a failed index
	Errors    []ItemError
}

// Processor runs a batch request against a registry of per-type
// processors, bounding in-flight transactions to Request.Parallelism.
type Processor struct {
	byType map[txn.Type]processors.Processor
	l      Listener
}

// NewProcessor builds a Processor dispatching each transaction by its
// Type to the matching entry in byType.
func NewProcessor(byType map[txn.Type]processors.Processor, l Listener) *Processor {
	if l == nil {
		l = NoopListener{}
	}
	return &Processor{byType: byType, l: l}
}

// Run executes req's transaction list. If Parallelism<=1 it runs
// sequentially; otherwise it submits each transaction under a
// semaphore limiting concurrent in-flight work to Parallelism.
// Per-transaction failures produce an ItemError and, unless
// ContinueOnError is false, processing of the remaining items proceeds.
func (p *Processor) Run(ctx context.Context, req *Request) *Result {
	result := &Result{
		ID:        req.ID,
		Responses: make([]*txn.Response, len(req.Transactions)),
	}
	p.l.OnBatchStart(req)

	parallelism := req.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, parallelism)
	aborted := false

	progressEvery := len(req.Transactions) / 10
	if progressEvery < 1 {
		progressEvery = 1
	}
	completed := 0

	for i, txnReq := range req.Transactions {
		mu.Lock()
		if aborted {
			mu.Unlock()
			break
		}
		mu.Unlock()

		i, txnReq := i, txnReq
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			proc, ok := p.byType[txnReq.Type]
			var resp *txn.Response
			var err error
			if !ok {
				err = errUnregisteredType(txnReq.Type)
			} else {
				resp, err = proc.Process(ctx, txnReq)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, ItemError{Index: i, Request: txnReq, Err: err})
				p.l.OnItemComplete(i, txnReq, nil, err)
				if !req.ContinueOnError {
					aborted = true
				}
			} else {
				result.Responses[i] = resp
				p.l.OnItemComplete(i, txnReq, resp, nil)
			}
			completed++
			if completed%progressEvery == 0 {
				p.l.OnProgress(completed, len(req.Transactions))
			}
		}()
	}
	wg.Wait()

	result.Status = p.finalStatus(result, len(req.Transactions))
	if result.Status == StatusFailed {
		p.l.OnBatchFailed(result)
	} else {
		p.l.OnBatchComplete(result)
	}
	return result
}

func (p *Processor) finalStatus(result *Result, total int) Status {
	failed := len(result.Errors)
	switch {
	case failed == 0:
		return StatusCompleted
	case failed == total:
		return StatusFailed
	default:
		return StatusCompletedWithErrors
	}
}

type unregisteredTypeErr string

func (e unregisteredTypeErr) Error() string { return "batch: no processor registered for type " + string(e) }

func errUnregisteredType(t txn.Type) error { return unregisteredTypeErr(t) }
