package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paynet/fep/internal/audit"
	"github.com/paynet/fep/internal/dedup"
	"github.com/paynet/fep/internal/metrics"
	"github.com/paynet/fep/internal/processors"
	"github.com/paynet/fep/internal/repository"
	"github.com/paynet/fep/internal/retry"
	"github.com/paynet/fep/internal/router"
	"github.com/paynet/fep/internal/txn"
	"github.com/paynet/fep/internal/wire"
)

type fakeSender struct {
	approve bool
}

func (f *fakeSender) Send(_ context.Context, req *wire.Message, _ time.Duration) (*wire.Message, error) {
	reply := wire.NewMessage("0210")
	reply.Set(wire.F11STAN, req.GetString(wire.F11STAN))
	reply.Set(wire.F37RRN, req.GetString(wire.F37RRN))
	if f.approve {
		reply.Set(wire.F39ResponseCode, "00")
		reply.Set(wire.F38AuthCode, "A1B2C3")
	} else {
		reply.Set(wire.F39ResponseCode, "51")
	}
	return reply, nil
}

func sampleWithdrawalRequest() *txn.Request {
	return &txn.Request{
		TransactionID: "ATM00001-000001",
		Type:          txn.TypeWithdrawal,
		PAN:           "4111111111111111",
		Amount:        decimal.NewFromInt(500),
		Currency:      "901",
		TerminalID:    "ATM00001",
		MerchantID:    "",
		AcquiringBank: "008",
		STAN:          "000001",
		RRN:           "123456789012",
		Channel:       txn.ChannelATM,
		PINBlock:      []byte{1, 2, 3, 4, 5, 6, 7, 8},
		RequestedAt:   time.Now(),
	}
}

func newTestDeps(approve bool) *Deps {
	sender := &fakeSender{approve: approve}
	byType := map[txn.Type]processors.Processor{
		txn.TypeWithdrawal: processors.NewWithdrawalProcessor(sender),
	}

	r := router.New()
	r.SetDefault(router.DestFISCInterbank, 5*time.Second)

	store := dedup.NewStore(24 * time.Hour)
	repo := repository.NewInMemory()

	return &Deps{
		Dedup:       store,
		Router:      r,
		Processors:  byType,
		Audit:       audit.New(repo, zap.NewNop()),
		Repo:        repo,
		Metrics:     metrics.NewRegistry(),
		Log:         zap.NewNop(),
		RetryPolicy: retry.FinancialTransactionPolicy(),
	}
}

func TestPipelineApprovesWellFormedWithdrawal(t *testing.T) {
	deps := newTestDeps(true)
	p := deps.BuildPipeline()

	ctx := p.Run(sampleWithdrawalRequest())
	require.Nil(t, ctx.Err)
	require.NotNil(t, ctx.Response)
	require.True(t, ctx.Response.Approved)
	require.Equal(t, "00", ctx.Response.ResponseCode)
}

func TestPipelineRejectsMissingPINBlock(t *testing.T) {
	deps := newTestDeps(true)
	p := deps.BuildPipeline()

	req := sampleWithdrawalRequest()
	req.PINBlock = nil

	ctx := p.Run(req)
	require.NotNil(t, ctx.Err)
	require.Equal(t, txn.CodeInvalidPIN, ctx.Response.ResponseCode)
}

func TestPipelineDeduplicatesRepeatedStan(t *testing.T) {
	deps := newTestDeps(true)
	p := deps.BuildPipeline()

	req := sampleWithdrawalRequest()
	first := p.Run(req)
	require.True(t, first.Response.Approved)

	second := p.Run(req)
	require.Nil(t, second.Err)
	require.True(t, second.Response.Approved, "cached response from the first attempt should be replayed")
}

func TestPipelineDeclineDoesNotHaltOnBusinessDecline(t *testing.T) {
	deps := newTestDeps(false)
	p := deps.BuildPipeline()

	ctx := p.Run(sampleWithdrawalRequest())
	require.Nil(t, ctx.Err)
	require.False(t, ctx.Response.Approved)
	require.Equal(t, "51", ctx.Response.ResponseCode)
}

func TestRequestFromWireMapsWithdrawalFields(t *testing.T) {
	msg := wire.NewMessage("0200")
	msg.Set(wire.F3ProcessingCode, "011000")
	msg.Set(wire.F4Amount, "000000050000")
	msg.Set(wire.F11STAN, "000042")
	msg.Set(wire.F37RRN, "123456789012")
	msg.Set(wire.F41Terminal, "ATM00099")
	msg.Set(wire.F32AcquiringInst, "008")
	msg.Set(wire.F49Currency, "901")
	msg.Set(wire.F2PAN, "4111111111111111")

	req, err := RequestFromWire(msg, txn.ChannelATM)
	require.NoError(t, err)
	require.Equal(t, txn.TypeWithdrawal, req.Type)
	require.Equal(t, "000042", req.STAN)
	require.True(t, decimal.NewFromInt(500).Equal(req.Amount))
}

func TestRequestFromWireRejectsUnknownProcessingCode(t *testing.T) {
	msg := wire.NewMessage("0200")
	msg.Set(wire.F3ProcessingCode, "999999")

	_, err := RequestFromWire(msg, txn.ChannelATM)
	require.Error(t, err)
}
