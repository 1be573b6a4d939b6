// Package processors implements the per-transaction-type business logic
// §4.7 describes: a uniform process(request) -> response contract that
// builds the outbound wire message, round-trips it through a connection
// manager, and maps the upstream response code back to the business
// model.
package processors

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/paynet/fep/internal/ferr"
	"github.com/paynet/fep/internal/txn"
	"github.com/paynet/fep/internal/wire"
)

// Sender is the subset of *connmgr.Connection processors depend on, so
// they can be tested against a fake without a live socket.
type Sender interface {
	Send(ctx context.Context, request *wire.Message, timeout time.Duration) (*wire.Message, error)
}

// Processor is the uniform per-transaction-type contract. Implementations
// must be idempotent under retry: re-sending the same STAN must not
// double-effect the underlying transaction (the upstream FISC side owns
// that guarantee; processors just preserve the STAN across retries and
// never fabricate a new one).
type Processor interface {
	Process(ctx context.Context, req *txn.Request) (*txn.Response, error)
}

// Default timeout for a single processor round trip, absent a
// router-supplied override.
const DefaultTimeout = 5 * time.Second

func nowStamp() (hhmmss, mmdd string) {
	t := time.Now().UTC()
	return t.Format("150405"), t.Format("0102")
}

// buildBase populates the fields common to every financial message type:
// PAN, processing code, amount, STAN, timestamps, terminal, currency.
func buildBase(mti string, req *txn.Request) *wire.Message {
	msg := wire.NewMessage(mti)
	if req.PAN != "" {
		msg.Set(wire.F2PAN, req.PAN)
	}
	msg.Set(wire.F3ProcessingCode, req.ProcessingCode)
	msg.Set(wire.F4Amount, formatAmount(req))
	hhmmss, mmdd := nowStamp()
	msg.Set(wire.F7TransmissionTime, mmdd+hhmmss)
	msg.Set(wire.F11STAN, req.STAN)
	msg.Set(wire.F12LocalTime, hhmmss)
	msg.Set(wire.F13LocalDate, mmdd)
	if req.AcquiringBank != "" {
		msg.Set(wire.F32AcquiringInst, req.AcquiringBank)
	}
	if req.RRN != "" {
		msg.Set(wire.F37RRN, req.RRN)
	}
	msg.Set(wire.F41Terminal, req.TerminalID)
	if req.MerchantID != "" {
		msg.Set(wire.F42Merchant, req.MerchantID)
	}
	if req.Currency != "" {
		msg.Set(wire.F49Currency, req.Currency)
	}
	if len(req.PINBlock) > 0 {
		msg.Set(wire.F52PINBlock, hex.EncodeToString(req.PINBlock))
	}
	return msg
}

func formatAmount(req *txn.Request) string {
	// FISC amounts are fixed 12-digit, 2 implied decimal places.
	cents := req.Amount.Shift(2).Round(0)
	return padLeftZero(cents.String(), 12)
}

func padLeftZero(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// mapResponse builds the business Response from a decoded wire reply.
func mapResponse(req *txn.Request, resp *wire.Message) *txn.Response {
	code := resp.GetString(wire.F39ResponseCode)
	return &txn.Response{
		TransactionID: req.TransactionID,
		ResponseCode:  code,
		Approved:      code == txn.CodeApproved,
		AuthCode:      resp.GetString(wire.F38AuthCode),
	}
}

// base bundles the sender and timeout every processor needs, so each
// transaction-type file only adds the MTI/field wiring specific to it.
type base struct {
	sender  Sender
	timeout time.Duration
}

func newBase(sender Sender) base {
	return base{sender: sender, timeout: DefaultTimeout}
}

func (b *base) effectiveTimeout() time.Duration {
	if b.timeout > 0 {
		return b.timeout
	}
	return DefaultTimeout
}

// roundTrip sends msg and maps either a successful reply or a send-layer
// error (timeout, connection failure) into a *ferr.Error.
func roundTrip(ctx context.Context, sender Sender, req *txn.Request, msg *wire.Message, timeout time.Duration) (*txn.Response, error) {
	resp, err := sender.Send(ctx, msg, timeout)
	if err != nil {
		return nil, ferr.Timeout(err)
	}
	return mapResponse(req, resp), nil
}
