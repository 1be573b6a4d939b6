package settlement

import (
	"sort"

	"github.com/shopspring/decimal"
)

// WorkflowState is the lifecycle state of a ClearingRecord per §4.10.
type WorkflowState string

const (
	StateCalculated WorkflowState = "CALCULATED"
	StateConfirmed  WorkflowState = "CONFIRMED"
	StateSubmitted  WorkflowState = "SUBMITTED"
	StateSettled    WorkflowState = "SETTLED"
)

// ClearingRecord is the net position for one counterparty bank.
type ClearingRecord struct {
	Counterparty string
	DebitAmount  decimal.Decimal
	DebitCount   int
	CreditAmount decimal.Decimal
	CreditCount  int
	Net          decimal.Decimal // Credit - Debit
	State        WorkflowState
	ConfirmedBy  string
}

// Summary aggregates net-payable and net-receivable across all
// counterparties: net-payable is the sum of |net| where net<0 (we owe),
// net-receivable is the sum where net>0 (we're owed).
type Summary struct {
	NetPayable    decimal.Decimal
	NetReceivable decimal.Decimal
	Records       []*ClearingRecord
}

// Calculate groups a settlement file's detail records by counterparty
// bank and produces one ClearingRecord per counterparty, per §4.10:
//   - if issuing bank == ourBank, this is a debit (we pay out)
//   - if acquiring bank == ourBank, this is a credit (we receive)
func Calculate(details []Detail, ourBank string) *Summary {
	byCounterparty := make(map[string]*ClearingRecord)

	order := func(bank string) *ClearingRecord {
		rec, ok := byCounterparty[bank]
		if !ok {
			rec = &ClearingRecord{
				Counterparty: bank,
				DebitAmount:  decimal.Zero,
				CreditAmount: decimal.Zero,
				State:        StateCalculated,
			}
			byCounterparty[bank] = rec
		}
		return rec
	}

	for _, d := range details {
		switch {
		case d.IssuerBank == ourBank && d.AcquirerBank != ourBank:
			rec := order(d.AcquirerBank)
			rec.DebitAmount = rec.DebitAmount.Add(d.Amount)
			rec.DebitCount++
		case d.AcquirerBank == ourBank && d.IssuerBank != ourBank:
			rec := order(d.IssuerBank)
			rec.CreditAmount = rec.CreditAmount.Add(d.Amount)
			rec.CreditCount++
		}
		// transactions where both sides equal ourBank are on-us and do
		// not generate an interbank clearing entry.
	}

	summary := &Summary{NetPayable: decimal.Zero, NetReceivable: decimal.Zero}
	for _, rec := range byCounterparty {
		rec.Net = rec.CreditAmount.Sub(rec.DebitAmount)
		if rec.Net.IsNegative() {
			summary.NetPayable = summary.NetPayable.Add(rec.Net.Abs())
		} else {
			summary.NetReceivable = summary.NetReceivable.Add(rec.Net)
		}
		summary.Records = append(summary.Records, rec)
	}
	sort.Slice(summary.Records, func(i, j int) bool {
		return summary.Records[i].Counterparty < summary.Records[j].Counterparty
	})
	return summary
}

// Confirm transitions rec from CALCULATED to CONFIRMED, stamping the
// operator id. Returns false if rec is not in a confirmable state.
func Confirm(rec *ClearingRecord, operator string) bool {
	if rec.State != StateCalculated {
		return false
	}
	rec.State = StateConfirmed
	rec.ConfirmedBy = operator
	return true
}

// Submit transitions rec from CONFIRMED to SUBMITTED.
func Submit(rec *ClearingRecord) bool {
	if rec.State != StateConfirmed {
		return false
	}
	rec.State = StateSubmitted
	return true
}

// Settle transitions rec from SUBMITTED to SETTLED.
func Settle(rec *ClearingRecord) bool {
	if rec.State != StateSubmitted {
		return false
	}
	rec.State = StateSettled
	return true
}
