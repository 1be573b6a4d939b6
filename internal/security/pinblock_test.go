package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPinBlockFormat0RoundTrip(t *testing.T) {
	pan := "4111111111111111"
	block, err := CreatePinBlock(FormatISO0, "1234", pan)
	require.NoError(t, err)

	pin, err := ExtractPIN(block, pan)
	require.NoError(t, err)
	require.Equal(t, "1234", pin)
}

func TestPinBlockFormatConversion0To3(t *testing.T) {
	pan := "4111111111111111"
	block0, err := CreatePinBlock(FormatISO0, "1234", pan)
	require.NoError(t, err)

	block3, err := ConvertPinBlockFormat(block0, pan, FormatISO3)
	require.NoError(t, err)
	require.Equal(t, FormatISO3, block3.Format)

	pin, err := ExtractPIN(block3, pan)
	require.NoError(t, err)
	require.Equal(t, "1234", pin)
}

func TestPinBlockFormat1And2NoPanXor(t *testing.T) {
	for _, format := range []PinBlockFormat{FormatISO1, FormatISO2} {
		block, err := CreatePinBlock(format, "998877", "")
		require.NoError(t, err)
		pin, err := ExtractPIN(block, "")
		require.NoError(t, err)
		require.Equal(t, "998877", pin)
	}
}

func TestPinBlockEncryptDecryptRoundTrip(t *testing.T) {
	pan := "4111111111111111"
	key, err := GenerateKey(16)
	require.NoError(t, err)

	block, err := CreatePinBlock(FormatISO0, "4321", pan)
	require.NoError(t, err)

	encrypted, err := EncryptPinBlock(block, key, "PEK-001")
	require.NoError(t, err)
	require.True(t, encrypted.Encrypted)

	decrypted, err := DecryptPinBlock(encrypted, key)
	require.NoError(t, err)
	require.Equal(t, block.Data, decrypted.Data)
}

func TestPinBlockTranslateAcrossKeys(t *testing.T) {
	pan := "4111111111111111"
	sourceKey, _ := GenerateKey(16)
	destKey, _ := GenerateKey(16)

	block, err := CreatePinBlock(FormatISO0, "1234", pan)
	require.NoError(t, err)

	encrypted, err := EncryptPinBlock(block, sourceKey, "PEK-SRC")
	require.NoError(t, err)

	translated, err := TranslatePinBlock(encrypted, sourceKey, destKey, "PEK-DST")
	require.NoError(t, err)
	require.Equal(t, "PEK-DST", translated.KeyID)

	decrypted, err := DecryptPinBlock(translated, destKey)
	require.NoError(t, err)

	pin, err := ExtractPIN(decrypted, pan)
	require.NoError(t, err)
	require.Equal(t, "1234", pin)
}

func TestCreatePinBlockRejectsInvalidPIN(t *testing.T) {
	_, err := CreatePinBlock(FormatISO0, "12", "4111111111111111")
	require.Error(t, err)

	_, err = CreatePinBlock(FormatISO0, "abcd", "4111111111111111")
	require.Error(t, err)
}
