package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paynet/fep/internal/processors"
	"github.com/paynet/fep/internal/txn"
)

type fakeProcessor struct {
	fail  func(n int32) bool
	calls int32
}

func (f *fakeProcessor) Process(ctx context.Context, req *txn.Request) (*txn.Response, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.fail != nil && f.fail(n) {
		return nil, errors.New("simulated failure")
	}
	return &txn.Response{TransactionID: req.TransactionID, ResponseCode: "00", Approved: true}, nil
}

func buildTxns(n int) []*txn.Request {
	out := make([]*txn.Request, n)
	for i := range out {
		out[i] = &txn.Request{TransactionID: "T" + string(rune('A'+i)), Type: txn.TypeWithdrawal}
	}
	return out
}

func TestRunAllSucceedCompletedStatus(t *testing.T) {
	fp := &fakeProcessor{}
	p := NewProcessor(map[txn.Type]processors.Processor{txn.TypeWithdrawal: fp}, nil)

	result := p.Run(context.Background(), &Request{ID: "B1", Transactions: buildTxns(5), Parallelism: 3})
	require.Equal(t, StatusCompleted, result.Status)
	require.Empty(t, result.Errors)
	for _, r := range result.Responses {
		require.NotNil(t, r)
	}
}

func TestRunAllFailFailedStatus(t *testing.T) {
	fp := &fakeProcessor{fail: func(int32) bool { return true }}
	p := NewProcessor(map[txn.Type]processors.Processor{txn.TypeWithdrawal: fp}, nil)

	result := p.Run(context.Background(), &Request{ID: "B2", Transactions: buildTxns(4), ContinueOnError: true, Parallelism: 2})
	require.Equal(t, StatusFailed, result.Status)
	require.Len(t, result.Errors, 4)
}

func TestRunMixedResultsCompletedWithErrors(t *testing.T) {
	fp := &fakeProcessor{fail: func(n int32) bool { return n%2 == 0 }}
	p := NewProcessor(map[txn.Type]processors.Processor{txn.TypeWithdrawal: fp}, nil)

	result := p.Run(context.Background(), &Request{ID: "B3", Transactions: buildTxns(6), ContinueOnError: true, Parallelism: 1})
	require.Equal(t, StatusCompletedWithErrors, result.Status)
	require.NotEmpty(t, result.Errors)
	require.Less(t, len(result.Errors), 6)
}

func TestRunSequentialWhenParallelismOne(t *testing.T) {
	var maxConcurrent, current int32
	fp := &fakeProcessor{}
	wrapped := processorFunc(func(ctx context.Context, req *txn.Request) (*txn.Response, error) {
		n := atomic.AddInt32(&current, 1)
		defer atomic.AddInt32(&current, -1)
		for {
			m := atomic.LoadInt32(&maxConcurrent)
			if n <= m || atomic.CompareAndSwapInt32(&maxConcurrent, m, n) {
				break
			}
		}
		return fp.Process(ctx, req)
	})
	p := NewProcessor(map[txn.Type]processors.Processor{txn.TypeWithdrawal: wrapped}, nil)

	p.Run(context.Background(), &Request{ID: "B4", Transactions: buildTxns(5), Parallelism: 1})
	require.Equal(t, int32(1), atomic.LoadInt32(&maxConcurrent))
}

type processorFunc func(ctx context.Context, req *txn.Request) (*txn.Response, error)

func (f processorFunc) Process(ctx context.Context, req *txn.Request) (*txn.Response, error) {
	return f(ctx, req)
}
