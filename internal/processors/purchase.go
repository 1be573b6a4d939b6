package processors

import (
	"context"

	"github.com/paynet/fep/internal/txn"
)

// PurchaseProcessor handles MTI 0200 POS purchases.
type PurchaseProcessor struct{ base }

func NewPurchaseProcessor(sender Sender) *PurchaseProcessor {
	return &PurchaseProcessor{base: newBase(sender)}
}

func (p *PurchaseProcessor) Process(ctx context.Context, req *txn.Request) (*txn.Response, error) {
	msg := buildBase("0200", req)
	return roundTrip(ctx, p.sender, req, msg, p.effectiveTimeout())
}
