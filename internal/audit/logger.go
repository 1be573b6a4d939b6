package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paynet/fep/internal/repository"
	"github.com/paynet/fep/internal/security"
	"github.com/paynet/fep/internal/txn"
)

// Logger writes one masked audit line per request receipt, response,
// or error, both to structured logs and to the repository for
// compliance retention.
type Logger struct {
	repo repository.TransactionRepository
	log  *zap.Logger
}

// New builds a Logger writing through repo and logging via log (a nil
// log is replaced by a no-op logger).
func New(repo repository.TransactionRepository, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{repo: repo, log: log}
}

// Receipt logs and persists an inbound request, before processing.
func (l *Logger) Receipt(ctx context.Context, req *txn.Request) {
	rec := l.baseRecord(req, KindReceipt)
	l.emit(ctx, rec)
}

// Response logs and persists the outcome of a processed request
// (approved or declined).
func (l *Logger) Response(ctx context.Context, req *txn.Request, resp *txn.Response) {
	rec := l.baseRecord(req, KindResponse)
	rec.ResponseCode = resp.ResponseCode
	rec.ProcessingMs = resp.Duration().Milliseconds()
	l.emit(ctx, rec)
}

// Error logs and persists a failed request, with the mapped response
// code the pipeline synthesized.
func (l *Logger) Error(ctx context.Context, req *txn.Request, responseCode string, cause error) {
	rec := l.baseRecord(req, KindError)
	rec.ResponseCode = responseCode
	l.emit(ctx, rec)
	l.log.Warn("audit error",
		zap.String("transactionId", req.TransactionID),
		zap.String("responseCode", responseCode),
		zap.Error(cause),
	)
}

func (l *Logger) baseRecord(req *txn.Request, kind Kind) *repository.AuditRecord {
	return &repository.AuditRecord{
		ID:            uuid.New().String(),
		TransactionID: req.TransactionID,
		Type:          req.Type,
		Kind:          string(kind),
		MaskedPAN:     security.MaskPAN(req.PAN),
		Amount:        req.Amount.String(),
		Currency:      req.Currency,
		Terminal:      req.TerminalID,
		Acquirer:      req.AcquiringBank,
		OccurredAt:    time.Now(),
	}
}

func (l *Logger) emit(ctx context.Context, rec *repository.AuditRecord) {
	l.log.Info("audit",
		zap.String("transactionId", rec.TransactionID),
		zap.String("type", string(rec.Type)),
		zap.String("kind", rec.Kind),
		zap.String("maskedPan", rec.MaskedPAN),
		zap.String("amount", rec.Amount),
		zap.String("currency", rec.Currency),
		zap.String("terminal", rec.Terminal),
		zap.String("acquirer", rec.Acquirer),
		zap.String("responseCode", rec.ResponseCode),
		zap.Int64("processingMs", rec.ProcessingMs),
	)
	if l.repo == nil {
		return
	}
	if err := l.repo.SaveAudit(ctx, rec); err != nil {
		l.log.Warn("audit persistence failed", zap.Error(err))
	}
}
