package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecRoundTripFinancialRequest(t *testing.T) {
	schema := NewFISCSchema()
	codec := NewCodec()

	msg := NewMessage("0200")
	msg.Set(F2PAN, "4111111111111111")
	msg.Set(F3ProcessingCode, "000000")
	msg.Set(F4Amount, "000000100000")
	msg.Set(F11STAN, "000001")
	msg.Set(F37RRN, "000000000001")
	msg.Set(F41Terminal, "ATM00001")
	msg.Set(F49Currency, "901")

	encoded, err := codec.Encode(msg, schema)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := codec.Decode(encoded, schema)
	require.NoError(t, err)

	require.Equal(t, "0200", decoded.MTI)
	require.Equal(t, "4111111111111111", decoded.GetString(F2PAN))
	require.Equal(t, "000000", decoded.GetString(F3ProcessingCode))
	require.Equal(t, "000000100000", decoded.GetString(F4Amount))
	require.Equal(t, "000001", decoded.GetString(F11STAN))
	require.Equal(t, "000000000001", decoded.GetString(F37RRN))
	require.Equal(t, "ATM00001", decoded.GetString(F41Terminal))
	require.ElementsMatch(t, decoded.Bitmap.Fields(), msg.Bitmap.Fields())
}

func TestCodecRoundTripWithSecondaryBitmapField(t *testing.T) {
	schema := NewFISCSchema()
	codec := NewCodec()

	msg := NewMessage("0800")
	msg.Set(F11STAN, "000099")
	msg.Set(F70NetworkInfo, "001")
	msg.Set(F128MAC128, "00112233445566778899aabbccddeeff")

	encoded, err := codec.Encode(msg, schema)
	require.NoError(t, err)

	decoded, err := codec.Decode(encoded, schema)
	require.NoError(t, err)
	require.True(t, decoded.Bitmap.HasSecondary())
	require.Equal(t, "001", decoded.GetString(F70NetworkInfo))
}

func TestCodecTruncatedMessageYieldsParseError(t *testing.T) {
	schema := NewFISCSchema()
	codec := NewCodec()

	msg := NewMessage("0200")
	msg.Set(F2PAN, "4111111111111111")
	msg.Set(F11STAN, "000001")

	encoded, err := codec.Encode(msg, schema)
	require.NoError(t, err)

	truncated := encoded[:len(encoded)-3]
	_, err = codec.Decode(truncated, schema)
	require.Error(t, err)
}

func TestEBCDICRoundTrip(t *testing.T) {
	for _, s := range []string{"HELLO123", "ABCXYZ", "0123456789"} {
		enc, err := encodeField(s, TypeAlphanumeric, len(s), LengthFixed, EncodingEBCDIC)
		require.NoError(t, err)
		dec, err := decodeField(enc, TypeAlphanumeric, EncodingEBCDIC)
		require.NoError(t, err)
		require.Equal(t, s, dec)
	}
}

func TestBCDOddLengthLeftPads(t *testing.T) {
	enc, err := bcdEncode("123", 3, LengthFixed)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x23}, enc)
}

func TestPackedDecimalSign(t *testing.T) {
	pos, err := packedDecimalEncode("123")
	require.NoError(t, err)
	digits, neg, err := packedDecimalDecode(pos)
	require.NoError(t, err)
	require.False(t, neg)
	require.Equal(t, "123", digits)

	neg1, err := packedDecimalEncode("-456")
	require.NoError(t, err)
	digits, neg, err = packedDecimalDecode(neg1)
	require.NoError(t, err)
	require.True(t, neg)
	require.Equal(t, "456", digits)
}

func TestMaskSensitiveField(t *testing.T) {
	require.Equal(t, "411111******1111", MaskSensitive("4111111111111111"))
	require.Equal(t, "****", MaskSensitive("1234"))
}
