// Package repository defines the persistence boundary the spec treats
// as an explicit non-goal: implementations beyond the in-memory one
// here (a real database, object store, etc.) are out of scope, but the
// interface is load-bearing for audit/dedup/settlement persistence.
package repository

import (
	"context"
	"time"

	"github.com/paynet/fep/internal/txn"
)

// AuditRecord is one persisted audit line: request receipt, response,
// or error, per §4.11.
type AuditRecord struct {
	ID            string
	TransactionID string
	Type          txn.Type
	Kind          string // RECEIPT, RESPONSE, ERROR
	MaskedPAN     string
	Amount        string
	Currency      string
	Terminal      string
	Acquirer      string
	ResponseCode  string
	ProcessingMs  int64
	OccurredAt    time.Time
}

// TransactionRecord is a persisted snapshot of a processed transaction,
// used for reversal/reconciliation lookups that outlive the in-memory
// dedup store's retention window.
type TransactionRecord struct {
	TransactionID string
	Request       *txn.Request
	Response      *txn.Response
	Status        txn.Status
	StoredAt      time.Time
}

// TransactionRepository is the persistence contract the gateway depends
// on. The spec explicitly treats the backing store as out of scope; an
// in-memory implementation is provided for tests and for a single-node
// deployment of the simulator.
type TransactionRepository interface {
	SaveTransaction(ctx context.Context, rec *TransactionRecord) error
	FindTransaction(ctx context.Context, transactionID string) (*TransactionRecord, error)
	SaveAudit(ctx context.Context, rec *AuditRecord) error
	ListAudit(ctx context.Context, transactionID string) ([]*AuditRecord, error)
}
