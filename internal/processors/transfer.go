package processors

import (
	"context"

	"github.com/paynet/fep/internal/txn"
	"github.com/paynet/fep/internal/wire"
)

// TransferProcessor handles MTI 0200 account-to-account transfers,
// including interbank transfers routed over FISC_INTERBANK.
type TransferProcessor struct{ base }

func NewTransferProcessor(sender Sender) *TransferProcessor {
	return &TransferProcessor{base: newBase(sender)}
}

func (p *TransferProcessor) Process(ctx context.Context, req *txn.Request) (*txn.Response, error) {
	msg := buildBase("0200", req)
	if req.DestAccount != "" {
		msg.Set(wire.F60PrivateUse, req.DestAccount)
	}
	if req.DestBankCode != "" {
		msg.Set(wire.F63PrivateUse, req.DestBankCode)
	}
	return roundTrip(ctx, p.sender, req, msg, p.effectiveTimeout())
}
