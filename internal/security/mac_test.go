package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMacAlgorithmsVerifyOwnOutput(t *testing.T) {
	data := []byte("0200 FISC financial request body for MAC coverage")

	cases := []struct {
		name string
		alg  MacAlgorithm
		key  []byte
	}{
		{"alg1", MacISO9797Alg1, mustKey(t, 8)},
		{"alg3-dual", MacISO9797Alg3, mustKey(t, 16)},
		{"x9.19", MacANSIX919, mustKey(t, 16)},
		{"aes-cmac-128", MacAESCMAC, mustKey(t, 16)},
		{"hmac-sha256", MacHMACSHA256, mustKey(t, 32)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mac, err := CalculateMAC(tc.alg, tc.key, data)
			require.NoError(t, err)
			require.NotEmpty(t, mac)

			ok, err := VerifyMAC(tc.alg, tc.key, data, mac)
			require.NoError(t, err)
			require.True(t, ok)

			tampered := append([]byte{}, data...)
			tampered[0] ^= 0xFF
			ok, err = VerifyMAC(tc.alg, tc.key, tampered, mac)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestAESCMACEmptyMessage(t *testing.T) {
	key := mustKey(t, 16)
	mac, err := AESCMAC(key, nil)
	require.NoError(t, err)
	require.Len(t, mac, 16)
}

func TestAESCMACBlockAlignedMessage(t *testing.T) {
	key := mustKey(t, 16)
	mac, err := AESCMAC(key, make([]byte, 32))
	require.NoError(t, err)
	require.Len(t, mac, 16)
}

func mustKey(t *testing.T, n int) []byte {
	t.Helper()
	key, err := GenerateKey(n)
	require.NoError(t, err)
	return key
}
