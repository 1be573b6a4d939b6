package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCalculateMatchesWorkedExample(t *testing.T) {
	details := []Detail{
		{IssuerBank: "001", AcquirerBank: "002", Amount: decimal.NewFromInt(1000)},
		{IssuerBank: "001", AcquirerBank: "002", Amount: decimal.NewFromInt(2000)},
		{IssuerBank: "002", AcquirerBank: "001", Amount: decimal.NewFromInt(500)},
	}

	summary := Calculate(details, "001")
	require.Len(t, summary.Records, 1)

	rec := summary.Records[0]
	require.Equal(t, "002", rec.Counterparty)
	require.True(t, rec.DebitAmount.Equal(decimal.NewFromInt(3000)))
	require.Equal(t, 2, rec.DebitCount)
	require.True(t, rec.CreditAmount.Equal(decimal.NewFromInt(500)))
	require.Equal(t, 1, rec.CreditCount)
	require.True(t, rec.Net.Equal(decimal.NewFromInt(-2500)))
	require.True(t, summary.NetPayable.Equal(decimal.NewFromInt(2500)))
	require.True(t, summary.NetReceivable.Equal(decimal.Zero))
}

func TestCalculateSkipsOnUsTransactions(t *testing.T) {
	details := []Detail{
		{IssuerBank: "001", AcquirerBank: "001", Amount: decimal.NewFromInt(1000)},
	}
	summary := Calculate(details, "001")
	require.Empty(t, summary.Records)
}

func TestWorkflowTransitionsInOrder(t *testing.T) {
	rec := &ClearingRecord{Counterparty: "002", State: StateCalculated}

	require.False(t, Submit(rec))
	require.True(t, Confirm(rec, "operator1"))
	require.Equal(t, StateConfirmed, rec.State)
	require.Equal(t, "operator1", rec.ConfirmedBy)

	require.False(t, Confirm(rec, "operator2"))
	require.True(t, Submit(rec))
	require.Equal(t, StateSubmitted, rec.State)

	require.True(t, Settle(rec))
	require.Equal(t, StateSettled, rec.State)
	require.False(t, Settle(rec))
}
