package gateway

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paynet/fep/internal/txn"
	"github.com/paynet/fep/internal/wire"
)

// typeByProcessingCode maps the leading two digits of the 6-digit
// processing code (field 3) to a business transaction type. The
// mapping follows the teacher's transaction-type numbering for ATM/POS
// switches: 01 withdrawal, 21 deposit, 31 balance inquiry, 40 transfer,
// 50 bill payment, 00 purchase/goods-and-services.
var typeByProcessingCode = map[string]txn.Type{
	"01": txn.TypeWithdrawal,
	"21": txn.TypeDeposit,
	"31": txn.TypeBalanceInquiry,
	"40": txn.TypeTransfer,
	"50": txn.TypeBillPayment,
	"00": txn.TypePurchase,
}

// RequestFromWire builds a business-layer Request from a decoded FISC
// message, the PARSE stage's job per §4.3. mti "0420"/"0400" (advice/
// reversal) map to TypeReversal directly, regardless of processing code.
func RequestFromWire(msg *wire.Message, channel txn.Channel) (*txn.Request, error) {
	pc := msg.GetString(wire.F3ProcessingCode)

	txnType := txn.TypeReversal
	if msg.MTI != "0420" && msg.MTI != "0400" {
		t, ok := typeByProcessingCode[leading2(pc)]
		if !ok {
			return nil, fmt.Errorf("gateway: unrecognized processing code %q", pc)
		}
		txnType = t
	}

	amount, err := decimalFromField(msg.GetString(wire.F4Amount))
	if err != nil {
		return nil, fmt.Errorf("gateway: amount field: %w", err)
	}

	req := &txn.Request{
		TransactionID:  fmt.Sprintf("%s-%s", msg.GetString(wire.F41Terminal), msg.GetString(wire.F11STAN)),
		Type:           txnType,
		ProcessingCode: pc,
		PAN:            msg.GetString(wire.F2PAN),
		Amount:         amount,
		Currency:       msg.GetString(wire.F49Currency),
		TerminalID:     msg.GetString(wire.F41Terminal),
		MerchantID:     msg.GetString(wire.F42Merchant),
		AcquiringBank:  msg.GetString(wire.F32AcquiringInst),
		STAN:           msg.GetString(wire.F11STAN),
		RRN:            msg.GetString(wire.F37RRN),
		Channel:        channel,
		RequestedAt:    time.Now(),
	}

	if dest, ok := msg.Get(wire.F60PrivateUse); ok {
		req.DestAccount = dest.Scalar
	}
	if bank, ok := msg.Get(wire.F63PrivateUse); ok {
		req.DestBankCode = bank.Scalar
	}
	if pin, ok := msg.Get(wire.F52PINBlock); ok {
		req.PINBlock = pin.Bytes
	}
	if mac, ok := msg.Get(wire.F64MAC); ok {
		req.MAC = mac.Bytes
	}
	if orig, ok := msg.Get(wire.F90OriginalData); ok {
		req.OriginalTxnID = orig.Scalar
	}

	return req, nil
}

func leading2(s string) string {
	if len(s) < 2 {
		return s
	}
	return s[:2]
}

// decimalFromField parses a fixed-point two-decimal-place numeric
// field (as formatAmount in internal/processors writes it) back into a
// decimal.Decimal, e.g. "000000010000" -> 100.00.
func decimalFromField(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return d.Shift(-2), nil
}
