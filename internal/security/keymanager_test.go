package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKeyManagerLifecycle(t *testing.T) {
	km := NewKeyManager(zap.NewNop())

	info, err := km.GenerateAndStore("PEK-001", KeyTypePEK, "pin-key", 16, time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, KeyPending, info.Status)

	_, err = km.BorrowForEncrypt("PEK-001")
	require.Error(t, err, "pending keys cannot encrypt")

	require.NoError(t, km.Activate("PEK-001"))

	key, err := km.BorrowForEncrypt("PEK-001")
	require.NoError(t, err)
	require.Len(t, key, 16)

	require.NoError(t, km.Suspend("PEK-001"))
	_, err = km.BorrowForEncrypt("PEK-001")
	require.Error(t, err)

	require.NoError(t, km.Reactivate("PEK-001"))
	require.NoError(t, km.Expire("PEK-001"))

	_, err = km.BorrowForEncrypt("PEK-001")
	require.Error(t, err, "expired keys cannot encrypt")

	_, err = km.BorrowForDecrypt("PEK-001")
	require.NoError(t, err, "expired keys still decrypt in the grace window")

	require.NoError(t, km.Revoke("PEK-001"))
	_, err = km.BorrowForDecrypt("PEK-001")
	require.Error(t, err, "revoked keys cannot be used at all")
}

func TestKeyManagerRotate(t *testing.T) {
	km := NewKeyManager(zap.NewNop())

	_, err := km.GenerateAndStore("MAK-001", KeyTypeMAK, "mac-key", 16, time.Time{})
	require.NoError(t, err)
	require.NoError(t, km.Activate("MAK-001"))

	newInfo, err := km.Rotate("MAK-001", "MAK-002")
	require.NoError(t, err)
	require.Equal(t, 2, newInfo.Version)

	oldInfo, ok := km.Info("MAK-001")
	require.True(t, ok)
	require.Equal(t, KeyRotating, oldInfo.Status)

	_, err = km.BorrowForDecrypt("MAK-001")
	require.NoError(t, err, "rotating keys still decrypt old traffic")
}

func TestKeyManagerDestroyZeroizesMaterial(t *testing.T) {
	km := NewKeyManager(zap.NewNop())
	_, err := km.GenerateAndStore("DEK-001", KeyTypeDEK, "data-key", 16, time.Time{})
	require.NoError(t, err)
	require.NoError(t, km.Activate("DEK-001"))

	require.NoError(t, km.Destroy("DEK-001"))
	info, ok := km.Info("DEK-001")
	require.True(t, ok)
	require.Equal(t, KeyDestroyed, info.Status)

	_, err = km.BorrowForDecrypt("DEK-001")
	require.Error(t, err)
}
