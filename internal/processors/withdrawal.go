package processors

import (
	"context"

	"github.com/paynet/fep/internal/txn"
)

// WithdrawalProcessor handles MTI 0200 ATM cash withdrawals.
type WithdrawalProcessor struct{ base }

func NewWithdrawalProcessor(sender Sender) *WithdrawalProcessor {
	return &WithdrawalProcessor{base: newBase(sender)}
}

func (p *WithdrawalProcessor) Process(ctx context.Context, req *txn.Request) (*txn.Response, error) {
	msg := buildBase("0200", req)
	return roundTrip(ctx, p.sender, req, msg, p.effectiveTimeout())
}
