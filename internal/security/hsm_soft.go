package security

import (
	"context"
	"fmt"
)

// HsmSoft is a software-only HsmAdapter: it fulfills the same
// request/response contract a physical HSM would, backed by the
// process's own KeyManager. Used in every environment short of a
// production HSM integration, including all tests.
type HsmSoft struct {
	keys *KeyManager
}

// NewHsmSoft returns a software HSM adapter backed by keys.
func NewHsmSoft(keys *KeyManager) *HsmSoft {
	return &HsmSoft{keys: keys}
}

func (h *HsmSoft) Execute(ctx context.Context, req HsmRequest) (HsmResponse, error) {
	select {
	case <-ctx.Done():
		return HsmResponse{}, ctx.Err()
	default:
	}

	switch req.Operation {
	case HsmOpTranslatePin:
		return h.translatePin(req)
	case HsmOpGenerateMAC:
		return h.generateMAC(req)
	case HsmOpVerifyMAC:
		return h.verifyMAC(req)
	case HsmOpGenerateKCV:
		return h.generateKCV(req)
	case HsmOpGenerateKey:
		return h.generateKey(req)
	default:
		return HsmResponse{}, fmt.Errorf("security: unsupported HSM operation %v", req.Operation)
	}
}

func (h *HsmSoft) translatePin(req HsmRequest) (HsmResponse, error) {
	if req.PinBlock == nil {
		return HsmResponse{}, fmt.Errorf("security: translate requires a PIN block")
	}
	sourceKey, err := h.keys.BorrowForDecrypt(req.KeyID)
	if err != nil {
		return HsmResponse{}, err
	}
	defer Zeroize(sourceKey)

	destKey, err := h.keys.BorrowForEncrypt(req.DestKeyID)
	if err != nil {
		return HsmResponse{}, err
	}
	defer Zeroize(destKey)

	translated, err := TranslatePinBlock(req.PinBlock, sourceKey, destKey, req.DestKeyID)
	if err != nil {
		return HsmResponse{}, err
	}
	return HsmResponse{PinBlock: translated}, nil
}

func (h *HsmSoft) generateMAC(req HsmRequest) (HsmResponse, error) {
	key, err := h.keys.BorrowForEncrypt(req.KeyID)
	if err != nil {
		return HsmResponse{}, err
	}
	defer Zeroize(key)

	mac, err := CalculateMAC(req.MacAlgorithm, key, req.Data)
	if err != nil {
		return HsmResponse{}, err
	}
	return HsmResponse{MAC: mac}, nil
}

func (h *HsmSoft) verifyMAC(req HsmRequest) (HsmResponse, error) {
	key, err := h.keys.BorrowForDecrypt(req.KeyID)
	if err != nil {
		return HsmResponse{}, err
	}
	defer Zeroize(key)

	ok, err := VerifyMAC(req.MacAlgorithm, key, req.Data, req.MAC)
	if err != nil {
		return HsmResponse{}, err
	}
	return HsmResponse{Verified: ok}, nil
}

func (h *HsmSoft) generateKCV(req HsmRequest) (HsmResponse, error) {
	key, err := h.keys.BorrowForEncrypt(req.KeyID)
	if err != nil {
		return HsmResponse{}, err
	}
	defer Zeroize(key)

	kcv, err := GenerateKCV(key)
	if err != nil {
		return HsmResponse{}, err
	}
	return HsmResponse{KCV: kcv}, nil
}

func (h *HsmSoft) generateKey(req HsmRequest) (HsmResponse, error) {
	length := req.KeyLength
	if length == 0 {
		length = 16
	}
	key, err := GenerateKey(length)
	if err != nil {
		return HsmResponse{}, err
	}
	return HsmResponse{KeyBytes: key}, nil
}
