package processors

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/paynet/fep/internal/dedup"
	"github.com/paynet/fep/internal/txn"
	"github.com/paynet/fep/internal/wire"
)

type fakeSender struct {
	response *wire.Message
	err      error
	lastReq  *wire.Message
}

func (f *fakeSender) Send(ctx context.Context, request *wire.Message, timeout time.Duration) (*wire.Message, error) {
	f.lastReq = request
	return f.response, f.err
}

func approvedReply(stan string) *wire.Message {
	resp := wire.NewMessage("0210")
	resp.Set(wire.F11STAN, stan)
	resp.Set(wire.F39ResponseCode, "00")
	resp.Set(wire.F38AuthCode, "AUTH01")
	return resp
}

func TestWithdrawalProcessorBuildsMTI0200AndMapsApproval(t *testing.T) {
	sender := &fakeSender{response: approvedReply("000042")}
	p := NewWithdrawalProcessor(sender)

	req := &txn.Request{
		TransactionID: "T1", STAN: "000042", TerminalID: "ATM00001",
		ProcessingCode: "010000", Amount: decimal.NewFromInt(100), Currency: "901",
	}
	resp, err := p.Process(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resp.Approved)
	require.Equal(t, "00", resp.ResponseCode)
	require.Equal(t, "0200", sender.lastReq.MTI)
	require.Equal(t, "000042", sender.lastReq.GetString(wire.F11STAN))
}

func TestTransferProcessorCarriesDestinationAccount(t *testing.T) {
	sender := &fakeSender{response: approvedReply("000043")}
	p := NewTransferProcessor(sender)

	req := &txn.Request{
		TransactionID: "T2", STAN: "000043", TerminalID: "ATM00001",
		ProcessingCode: "400000", Amount: decimal.NewFromInt(500),
		DestAccount: "9988776655", DestBankCode: "007",
	}
	resp, err := p.Process(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resp.Approved)
	require.Equal(t, "9988776655", sender.lastReq.GetString(wire.F60PrivateUse))
	require.Equal(t, "007", sender.lastReq.GetString(wire.F63PrivateUse))
}

func TestWithdrawalProcessorMapsDeclineCode(t *testing.T) {
	resp := wire.NewMessage("0210")
	resp.Set(wire.F39ResponseCode, "51")
	sender := &fakeSender{response: resp}
	p := NewWithdrawalProcessor(sender)

	req := &txn.Request{TransactionID: "T3", STAN: "000044", Amount: decimal.NewFromInt(100)}
	out, err := p.Process(context.Background(), req)
	require.NoError(t, err)
	require.False(t, out.Approved)
	require.Equal(t, "51", out.ResponseCode)
}

func TestReversalProcessorIssuesReversalForApprovedOriginal(t *testing.T) {
	store := dedup.NewStore(24 * time.Hour)
	original := &txn.Request{
		TransactionID: "T4", Type: txn.TypeWithdrawal,
		AcquiringBank: "008", TerminalID: "ATM00001",
		STAN: "000045", RRN: "123456789012",
		Amount: decimal.NewFromInt(5000), RequestedAt: time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC),
	}
	fp := txn.FingerprintOf(original)
	_, _ = store.CheckAndReserve(fp, original)
	store.Complete(fp, original, &txn.Response{TransactionID: original.TransactionID, ResponseCode: "00", Approved: true})

	sender := &fakeSender{response: approvedReply("000045")}
	p := NewReversalProcessor(sender, store)

	reversalReq := &txn.Request{
		Type: txn.TypeReversal, STAN: original.STAN, RRN: original.RRN,
		TerminalID: original.TerminalID, Amount: original.Amount,
		RequestedAt: original.RequestedAt.Add(time.Second),
	}
	resp, err := p.Process(context.Background(), reversalReq)
	require.NoError(t, err)
	require.True(t, resp.Approved)
	require.Equal(t, "0420", sender.lastReq.MTI)
}
