package processors

import (
	"context"

	"github.com/paynet/fep/internal/txn"
	"github.com/paynet/fep/internal/wire"
)

// BillPaymentProcessor handles MTI 0200 bill payments routed over
// FISC_BILL_PAYMENT, carrying the biller/merchant id in field 42.
type BillPaymentProcessor struct{ base }

func NewBillPaymentProcessor(sender Sender) *BillPaymentProcessor {
	return &BillPaymentProcessor{base: newBase(sender)}
}

func (p *BillPaymentProcessor) Process(ctx context.Context, req *txn.Request) (*txn.Response, error) {
	msg := buildBase("0200", req)
	if req.DestAccount != "" {
		msg.Set(wire.F60PrivateUse, req.DestAccount)
	}
	return roundTrip(ctx, p.sender, req, msg, p.effectiveTimeout())
}
