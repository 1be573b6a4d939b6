package security

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// MaskPAN renders a PAN as first6+stars+last4, the convention the wire
// layer also uses for log rendering (see wire.MaskSensitive).
func MaskPAN(pan string) string {
	if len(pan) < 13 {
		return strings.Repeat("*", len(pan))
	}
	return pan[:6] + strings.Repeat("*", len(pan)-10) + pan[len(pan)-4:]
}

// EncryptPAN 3DES-ECB encrypts a PAN under a DEK, one 8-byte block at a
// time with ISO 9797 method-2 padding, returning hex-encoded ciphertext.
func EncryptPAN(pan string, key []byte) (string, error) {
	if err := validatePAN(pan); err != nil {
		return "", err
	}
	padded := method2Pad([]byte(pan))

	var out []byte
	for i := 0; i < len(padded); i += blockSize {
		block, err := TripleDESEncryptBlock(key, padded[i:i+blockSize])
		if err != nil {
			return "", err
		}
		out = append(out, block[:]...)
	}
	return hex.EncodeToString(out), nil
}

// DecryptPAN reverses EncryptPAN, stripping the ISO 9797 method-2
// padding (trailing zero bytes, then the 0x80 marker) added on encrypt.
func DecryptPAN(ciphertextHex string, key []byte) (string, error) {
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", fmt.Errorf("security: invalid PAN ciphertext encoding: %w", err)
	}
	if len(ciphertext)%blockSize != 0 {
		return "", fmt.Errorf("security: PAN ciphertext is not block-aligned")
	}

	var out []byte
	for i := 0; i < len(ciphertext); i += blockSize {
		block, err := TripleDESDecryptBlock(key, ciphertext[i:i+blockSize])
		if err != nil {
			return "", err
		}
		out = append(out, block[:]...)
	}
	return method2Unpad(out)
}

// method2Unpad reverses method2Pad: trim trailing zero bytes, then drop
// the 0x80 marker byte that precedes them.
func method2Unpad(data []byte) (string, error) {
	trimmed := bytes.TrimRight(data, "\x00")
	if len(trimmed) == 0 || trimmed[len(trimmed)-1] != 0x80 {
		return "", fmt.Errorf("security: PAN plaintext missing method-2 padding marker")
	}
	return string(trimmed[:len(trimmed)-1]), nil
}

// TokenizePAN returns a deterministic, non-reversible token for pan: an
// HMAC-SHA256 over the PAN under a tokenization key, hex-encoded and
// truncated to tokenLen characters with the PAN's last 4 digits kept in
// clear so downstream systems can still display a masked card number.
func TokenizePAN(pan string, key []byte, tokenLen int) (string, error) {
	if err := validatePAN(pan); err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(pan))
	digest := hex.EncodeToString(mac.Sum(nil))

	if tokenLen <= 0 || tokenLen > len(digest) {
		tokenLen = 16
	}
	return "TKN" + digest[:tokenLen] + pan[len(pan)-4:], nil
}

// GenerateKCV derives a Key Check Value for key: encrypt an all-zero
// block under the key and keep the leading 3 bytes, so operators can
// confirm a key was loaded correctly without exposing it.
func GenerateKCV(key []byte) (string, error) {
	var zero [8]byte
	var block [8]byte
	var err error
	switch len(key) {
	case 8:
		block, err = DESEncryptBlock(key, zero[:])
	case 16, 24:
		block, err = TripleDESEncryptBlock(key, zero[:])
	default:
		return "", fmt.Errorf("security: unsupported key length %d for KCV", len(key))
	}
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(block[:3]), nil
}

// GenerateKey returns n cryptographically random bytes, for key
// generation during key-manager rotation.
func GenerateKey(n int) ([]byte, error) {
	key := make([]byte, n)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("security: failed to generate key material: %w", err)
	}
	return key, nil
}
