package dedup

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/paynet/fep/internal/txn"
)

func sampleRequest() *txn.Request {
	return &txn.Request{
		TransactionID: "T1",
		Type:          txn.TypeWithdrawal,
		AcquiringBank: "008",
		TerminalID:    "ATM00001",
		STAN:          "000042",
		RRN:           "123456789012",
		Amount:        decimal.NewFromInt(10000),
		RequestedAt:   time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC),
	}
}

func TestCheckAndReserveDeduplicatesInFlightRequest(t *testing.T) {
	store := NewStore(24 * time.Hour)
	req := sampleRequest()
	fp := txn.FingerprintOf(req)

	result, _ := store.CheckAndReserve(fp, req)
	require.Equal(t, ResultNew, result)

	result, _ = store.CheckAndReserve(fp, req)
	require.Equal(t, ResultDuplicatePending, result)
}

func TestCheckAndReserveReturnsCachedResponseAfterComplete(t *testing.T) {
	store := NewStore(24 * time.Hour)
	req := sampleRequest()
	fp := txn.FingerprintOf(req)

	_, _ = store.CheckAndReserve(fp, req)
	resp := &txn.Response{TransactionID: req.TransactionID, ResponseCode: "00", Approved: true}
	store.Complete(fp, req, resp)

	result, cached := store.CheckAndReserve(fp, req)
	require.Equal(t, ResultDuplicateCompleted, result)
	require.Equal(t, resp, cached)
}

func TestEvaluateReversalEligibleThenAlreadyReversed(t *testing.T) {
	store := NewStore(24 * time.Hour)
	req := sampleRequest()
	fp := txn.FingerprintOf(req)
	_, _ = store.CheckAndReserve(fp, req)
	resp := &txn.Response{TransactionID: req.TransactionID, ResponseCode: "00", Approved: true}
	store.Complete(fp, req, resp)

	key := txn.ReversalKeyOf(req)
	now := req.RequestedAt.Add(time.Minute)

	result := store.EvaluateReversal(key, req.Amount.String(), time.Hour, now)
	require.Equal(t, ReversalEligible, result)

	result = store.EvaluateReversal(key, req.Amount.String(), time.Hour, now)
	require.Equal(t, ReversalAlreadyReversed, result)
}

func TestEvaluateReversalAmountMismatch(t *testing.T) {
	store := NewStore(24 * time.Hour)
	req := sampleRequest()
	fp := txn.FingerprintOf(req)
	_, _ = store.CheckAndReserve(fp, req)
	resp := &txn.Response{TransactionID: req.TransactionID, ResponseCode: "00", Approved: true}
	store.Complete(fp, req, resp)

	key := txn.ReversalKeyOf(req)
	result := store.EvaluateReversal(key, "999999", time.Hour, req.RequestedAt.Add(time.Minute))
	require.Equal(t, ReversalAmountMismatch, result)
}

func TestEvaluateReversalWindowExpired(t *testing.T) {
	store := NewStore(24 * time.Hour)
	req := sampleRequest()
	fp := txn.FingerprintOf(req)
	_, _ = store.CheckAndReserve(fp, req)
	resp := &txn.Response{TransactionID: req.TransactionID, ResponseCode: "00", Approved: true}
	store.Complete(fp, req, resp)

	key := txn.ReversalKeyOf(req)
	result := store.EvaluateReversal(key, req.Amount.String(), time.Minute, req.RequestedAt.Add(time.Hour))
	require.Equal(t, ReversalWindowExpired, result)
}

func TestEvaluateReversalNotFound(t *testing.T) {
	store := NewStore(24 * time.Hour)
	key := txn.ReversalKey{RRN: "000000000000", STAN: "000000", TerminalID: "X"}
	result := store.EvaluateReversal(key, "0", time.Hour, time.Now())
	require.Equal(t, ReversalNotFound, result)
}

func TestPruneRemovesExpiredEntries(t *testing.T) {
	store := NewStore(time.Minute)
	req := sampleRequest()
	fp := txn.FingerprintOf(req)
	_, _ = store.CheckAndReserve(fp, req)
	resp := &txn.Response{TransactionID: req.TransactionID, ResponseCode: "00", Approved: true}
	store.Complete(fp, req, resp)

	removed := store.Prune(time.Now().Add(2 * time.Hour))
	require.Equal(t, 2, removed) // fingerprint entry + reversal entry
}
