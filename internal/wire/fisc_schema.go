package wire

// FISC field ids, as strings for schema lookups; kept as named constants
// so processors/connmgr never hardcode the decimal field numbers inline.
const (
	F2PAN              = "2"
	F3ProcessingCode   = "3"
	F4Amount           = "4"
	F7TransmissionTime = "7"
	F11STAN            = "11"
	F12LocalTime       = "12"
	F13LocalDate       = "13"
	F32AcquiringInst   = "32"
	F37RRN             = "37"
	F38AuthCode        = "38"
	F39ResponseCode    = "39"
	F41Terminal        = "41"
	F42Merchant        = "42"
	F49Currency        = "49"
	F52PINBlock        = "52"
	F54AdditionalAmt   = "54"
	F60PrivateUse      = "60"
	F62PrivateUse      = "62"
	F63PrivateUse      = "63"
	F64MAC             = "64"
	F70NetworkInfo     = "70"
	F90OriginalData    = "90"
	F95ReplacementAmts = "95"
	F123MAC2           = "123"
	F128MAC128         = "128"
)

// Network management info codes for field 70 (§6).
const (
	NetworkInfoSignOn  = "001"
	NetworkInfoSignOff = "002"
	NetworkInfoKeyExch = "101"
	NetworkInfoEcho    = "301"
)

// NewFISCSchema returns the declarative schema for the FISC wire
// protocol: [2-byte BCD length][2-byte BCD MTI][8/16-byte bitmap][fields].
// The length prefix is framed via the schema Header, matching §6; the
// codec itself writes the MTI and bitmap.
func NewFISCSchema() *MessageSchema {
	header := &Header{
		IncludeLength: true,
		LengthBytes:   2,
	}

	fields := []FieldDescriptor{
		{ID: F2PAN, Name: "PAN", DataType: TypeNumeric, LengthType: LengthLLVAR, LengthEncoding: EncodingBCD, Encoding: EncodingBCD, Length: 19},
		{ID: F3ProcessingCode, Name: "Processing Code", DataType: TypeNumeric, LengthType: LengthFixed, Encoding: EncodingBCD, Length: 6},
		{ID: F4Amount, Name: "Amount", DataType: TypeNumeric, LengthType: LengthFixed, Encoding: EncodingBCD, Length: 12},
		{ID: F7TransmissionTime, Name: "Transmission Date/Time", DataType: TypeNumeric, LengthType: LengthFixed, Encoding: EncodingBCD, Length: 10},
		{ID: F11STAN, Name: "STAN", DataType: TypeNumeric, LengthType: LengthFixed, Encoding: EncodingBCD, Length: 6},
		{ID: F12LocalTime, Name: "Local Transaction Time", DataType: TypeNumeric, LengthType: LengthFixed, Encoding: EncodingBCD, Length: 6},
		{ID: F13LocalDate, Name: "Local Transaction Date", DataType: TypeNumeric, LengthType: LengthFixed, Encoding: EncodingBCD, Length: 4},
		{ID: F32AcquiringInst, Name: "Acquiring Institution", DataType: TypeNumeric, LengthType: LengthLLVAR, LengthEncoding: EncodingBCD, Encoding: EncodingBCD, Length: 11},
		{ID: F37RRN, Name: "RRN", DataType: TypeAlphanumeric, LengthType: LengthFixed, Encoding: EncodingASCII, Length: 12},
		{ID: F38AuthCode, Name: "Authorization Code", DataType: TypeAlphanumeric, LengthType: LengthFixed, Encoding: EncodingASCII, Length: 6},
		{ID: F39ResponseCode, Name: "Response Code", DataType: TypeAlphanumeric, LengthType: LengthFixed, Encoding: EncodingASCII, Length: 2},
		{ID: F41Terminal, Name: "Terminal ID", DataType: TypeAlphanumeric, LengthType: LengthFixed, Encoding: EncodingASCII, Length: 8},
		{ID: F42Merchant, Name: "Merchant ID", DataType: TypeAlphanumeric, LengthType: LengthFixed, Encoding: EncodingASCII, Length: 15},
		{ID: F49Currency, Name: "Currency Code", DataType: TypeNumeric, LengthType: LengthFixed, Encoding: EncodingBCD, Length: 3},
		{ID: F52PINBlock, Name: "PIN Data", DataType: TypeBinary, LengthType: LengthFixed, Encoding: EncodingHex, Length: 8},
		{ID: F54AdditionalAmt, Name: "Additional Amounts", DataType: TypeAlphanumeric, LengthType: LengthLLLVAR, LengthEncoding: EncodingBCD, Encoding: EncodingASCII, Length: 120},
		{ID: F60PrivateUse, Name: "Reserved Private", DataType: TypeAlphanumeric, LengthType: LengthLLVAR, LengthEncoding: EncodingBCD, Encoding: EncodingASCII, Length: 99},
		{ID: F62PrivateUse, Name: "Reversal Reason", DataType: TypeAlphanumeric, LengthType: LengthLLVAR, LengthEncoding: EncodingBCD, Encoding: EncodingASCII, Length: 99},
		{ID: F63PrivateUse, Name: "Network Reference", DataType: TypeAlphanumeric, LengthType: LengthLLVAR, LengthEncoding: EncodingBCD, Encoding: EncodingASCII, Length: 99},
		{ID: F64MAC, Name: "Primary MAC", DataType: TypeBinary, LengthType: LengthFixed, Encoding: EncodingHex, Length: 8},
		{ID: F70NetworkInfo, Name: "Network Management Information Code", DataType: TypeNumeric, LengthType: LengthFixed, Encoding: EncodingBCD, Length: 3},
		{ID: F90OriginalData, Name: "Original Data Elements", DataType: TypeAlphanumeric, LengthType: LengthFixed, Encoding: EncodingASCII, Length: 42},
		{ID: F95ReplacementAmts, Name: "Replacement Amounts", DataType: TypeAlphanumeric, LengthType: LengthFixed, Encoding: EncodingASCII, Length: 42},
		{ID: F123MAC2, Name: "Secondary MAC Field", DataType: TypeBinary, LengthType: LengthLLLVAR, LengthEncoding: EncodingBCD, Encoding: EncodingHex, Length: 999},
		{ID: F128MAC128, Name: "Secondary Bitmap MAC", DataType: TypeBinary, LengthType: LengthFixed, Encoding: EncodingHex, Length: 16},
	}

	s := NewMessageSchema("FISC-8583", "1993", fields, EncodingASCII)
	s.Header = header
	return s
}
