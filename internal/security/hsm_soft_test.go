package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupHsm(t *testing.T) (*HsmSoft, *KeyManager) {
	t.Helper()
	km := NewKeyManager(zap.NewNop())
	_, err := km.GenerateAndStore("PEK-SRC", KeyTypePEK, "src", 16, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, km.Activate("PEK-SRC"))

	_, err = km.GenerateAndStore("PEK-DST", KeyTypePEK, "dst", 16, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, km.Activate("PEK-DST"))

	_, err = km.GenerateAndStore("MAK-001", KeyTypeMAK, "mac", 16, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, km.Activate("MAK-001"))

	return NewHsmSoft(km), km
}

func TestHsmSoftTranslatePin(t *testing.T) {
	hsm, km := setupHsm(t)
	pan := "4111111111111111"

	block, err := CreatePinBlock(FormatISO0, "1234", pan)
	require.NoError(t, err)

	srcKey, err := km.BorrowForEncrypt("PEK-SRC")
	require.NoError(t, err)
	encrypted, err := EncryptPinBlock(block, srcKey, "PEK-SRC")
	require.NoError(t, err)
	Zeroize(srcKey)

	resp, err := hsm.Execute(context.Background(), HsmRequest{
		Operation: HsmOpTranslatePin,
		KeyID:     "PEK-SRC",
		DestKeyID: "PEK-DST",
		PinBlock:  encrypted,
		PAN:       pan,
	})
	require.NoError(t, err)
	require.True(t, resp.PinBlock.Encrypted)
	require.Equal(t, "PEK-DST", resp.PinBlock.KeyID)
}

func TestHsmSoftGenerateAndVerifyMAC(t *testing.T) {
	hsm, _ := setupHsm(t)
	data := []byte("0800 sign-on request")

	genResp, err := hsm.Execute(context.Background(), HsmRequest{
		Operation:    HsmOpGenerateMAC,
		KeyID:        "MAK-001",
		Data:         data,
		MacAlgorithm: MacHMACSHA256,
	})
	require.NoError(t, err)
	require.NotEmpty(t, genResp.MAC)

	verifyResp, err := hsm.Execute(context.Background(), HsmRequest{
		Operation:    HsmOpVerifyMAC,
		KeyID:        "MAK-001",
		Data:         data,
		MAC:          genResp.MAC,
		MacAlgorithm: MacHMACSHA256,
	})
	require.NoError(t, err)
	require.True(t, verifyResp.Verified)
}

func TestHsmSoftGenerateKCV(t *testing.T) {
	hsm, _ := setupHsm(t)
	resp, err := hsm.Execute(context.Background(), HsmRequest{
		Operation: HsmOpGenerateKCV,
		KeyID:     "MAK-001",
	})
	require.NoError(t, err)
	require.Len(t, resp.KCV, 6)
}
