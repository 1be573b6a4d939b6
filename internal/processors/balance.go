package processors

import (
	"context"

	"github.com/paynet/fep/internal/txn"
)

// BalanceProcessor handles MTI 0200 balance inquiries.
type BalanceProcessor struct{ base }

func NewBalanceProcessor(sender Sender) *BalanceProcessor {
	return &BalanceProcessor{base: newBase(sender)}
}

func (p *BalanceProcessor) Process(ctx context.Context, req *txn.Request) (*txn.Response, error) {
	msg := buildBase("0200", req)
	return roundTrip(ctx, p.sender, req, msg, p.effectiveTimeout())
}
