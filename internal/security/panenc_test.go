package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testDEK() []byte {
	return []byte("0123456789ABCDEF01234567")
}

func TestEncryptDecryptPANRoundTrip(t *testing.T) {
	key := testDEK()
	for _, pan := range []string{"4111111111111111", "123456789012345", "4000000000000002"} {
		ciphertext, err := EncryptPAN(pan, key)
		require.NoError(t, err)

		plain, err := DecryptPAN(ciphertext, key)
		require.NoError(t, err)
		require.Equal(t, pan, plain)
	}
}

func TestEncryptPANUsesMethod2Padding(t *testing.T) {
	key := testDEK()
	pan := "4111111111111111"

	padded := method2Pad([]byte(pan))
	require.Equal(t, byte(0x80), padded[len(pan)])
	require.Zero(t, len(padded)%blockSize)

	ciphertext, err := EncryptPAN(pan, key)
	require.NoError(t, err)
	require.NotEmpty(t, ciphertext)
}

func TestDecryptPANRejectsMissingPaddingMarker(t *testing.T) {
	_, err := method2Unpad(make([]byte, blockSize))
	require.Error(t, err)
}
