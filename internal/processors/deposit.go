package processors

import (
	"context"

	"github.com/paynet/fep/internal/txn"
)

// DepositProcessor handles MTI 0200 cash/check deposits.
type DepositProcessor struct{ base }

func NewDepositProcessor(sender Sender) *DepositProcessor {
	return &DepositProcessor{base: newBase(sender)}
}

func (p *DepositProcessor) Process(ctx context.Context, req *txn.Request) (*txn.Response, error) {
	msg := buildBase("0200", req)
	return roundTrip(ctx, p.sender, req, msg, p.effectiveTimeout())
}
