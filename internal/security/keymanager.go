package security

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// KeyType identifies the cryptographic role a managed key plays.
type KeyType int

const (
	KeyTypePEK KeyType = iota // PIN encryption key
	KeyTypeTEK                // terminal key
	KeyTypeZEK                // zone key
	KeyTypeMAK                // MAC key
	KeyTypeDEK                // data encryption key
	KeyTypeKEK                // key-encryption key
)

func (t KeyType) String() string {
	switch t {
	case KeyTypePEK:
		return "PEK"
	case KeyTypeTEK:
		return "TEK"
	case KeyTypeZEK:
		return "ZEK"
	case KeyTypeMAK:
		return "MAK"
	case KeyTypeDEK:
		return "DEK"
	case KeyTypeKEK:
		return "KEK"
	default:
		return "UNKNOWN"
	}
}

// KeyStatus is the lifecycle state of a managed key.
type KeyStatus int

const (
	KeyPending KeyStatus = iota
	KeyActive
	KeySuspended
	KeyExpired
	KeyRevoked
	KeyRotating
	KeyDestroyed
)

func (s KeyStatus) String() string {
	switch s {
	case KeyPending:
		return "PENDING"
	case KeyActive:
		return "ACTIVE"
	case KeySuspended:
		return "SUSPENDED"
	case KeyExpired:
		return "EXPIRED"
	case KeyRevoked:
		return "REVOKED"
	case KeyRotating:
		return "ROTATING"
	case KeyDestroyed:
		return "DESTROYED"
	default:
		return "UNKNOWN"
	}
}

// KeyInfo describes one managed key. Key material itself is held
// separately (in material, unexported) so callers only ever receive a
// copy via Borrow, never the long-lived slice.
type KeyInfo struct {
	ID          string
	Type        KeyType
	Alias       string
	KCV         string
	Status      KeyStatus
	CreatedAt   time.Time
	ExpiresAt   time.Time
	LastUsedAt  time.Time
	Version     int
	Length      int
	material    []byte
}

// KeyManager owns all key material process-wide. Callers never hold the
// manager's internal slice directly: Borrow returns a copy the caller
// must Zeroize after use.
type KeyManager struct {
	mu   sync.RWMutex
	keys map[string]*KeyInfo
	log  *zap.Logger
}

// NewKeyManager returns an empty key manager.
func NewKeyManager(log *zap.Logger) *KeyManager {
	return &KeyManager{
		keys: make(map[string]*KeyInfo),
		log:  log,
	}
}

// GenerateAndStore creates length bytes of random key material, computes
// its KCV, and stores it PENDING under id.
func (m *KeyManager) GenerateAndStore(id string, keyType KeyType, alias string, length int, expiresAt time.Time) (*KeyInfo, error) {
	material, err := GenerateKey(length)
	if err != nil {
		return nil, err
	}
	kcv, err := GenerateKCV(material)
	if err != nil {
		return nil, err
	}

	info := &KeyInfo{
		ID:        id,
		Type:      keyType,
		Alias:     alias,
		KCV:       kcv,
		Status:    KeyPending,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
		Version:   1,
		Length:    length,
		material:  material,
	}

	m.mu.Lock()
	m.keys[id] = info
	m.mu.Unlock()

	m.log.Info("key generated", zap.String("key_id", id), zap.String("type", keyType.String()), zap.String("kcv", kcv))
	return info, nil
}

// Activate transitions a PENDING key to ACTIVE.
func (m *KeyManager) Activate(id string) error {
	return m.transition(id, []KeyStatus{KeyPending}, KeyActive)
}

// Suspend transitions an ACTIVE key to SUSPENDED (encrypt and decrypt
// both blocked until reactivated).
func (m *KeyManager) Suspend(id string) error {
	return m.transition(id, []KeyStatus{KeyActive}, KeySuspended)
}

// Reactivate lifts a suspension, returning to ACTIVE.
func (m *KeyManager) Reactivate(id string) error {
	return m.transition(id, []KeyStatus{KeySuspended}, KeyActive)
}

// Revoke permanently blocks a key from any further use.
func (m *KeyManager) Revoke(id string) error {
	return m.transition(id, []KeyStatus{KeyActive, KeySuspended, KeyExpired, KeyRotating}, KeyRevoked)
}

// Expire marks a key EXPIRED: decrypt-only grace period, no further
// encrypt use.
func (m *KeyManager) Expire(id string) error {
	return m.transition(id, []KeyStatus{KeyActive}, KeyExpired)
}

// Destroy marks a key DESTROYED and zeroizes its material. Terminal:
// no transition leaves DESTROYED.
func (m *KeyManager) Destroy(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.keys[id]
	if !ok {
		return fmt.Errorf("security: unknown key %q", id)
	}
	Zeroize(info.material)
	info.Status = KeyDestroyed
	m.log.Info("key destroyed", zap.String("key_id", id))
	return nil
}

func (m *KeyManager) transition(id string, allowedFrom []KeyStatus, to KeyStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.keys[id]
	if !ok {
		return fmt.Errorf("security: unknown key %q", id)
	}

	allowed := false
	for _, s := range allowedFrom {
		if info.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("security: key %q cannot move %s -> %s", id, info.Status, to)
	}

	from := info.Status
	info.Status = to
	m.log.Info("key transitioned", zap.String("key_id", id), zap.String("from", from.String()), zap.String("to", to.String()))
	return nil
}

// Info returns a copy of a key's metadata (never its material).
func (m *KeyManager) Info(id string) (KeyInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.keys[id]
	if !ok {
		return KeyInfo{}, false
	}
	cp := *info
	cp.material = nil
	return cp, true
}

// BorrowForEncrypt returns a copy of key material usable for encryption.
// Only ACTIVE keys may encrypt. Caller must Zeroize the returned slice.
func (m *KeyManager) BorrowForEncrypt(id string) ([]byte, error) {
	return m.borrow(id, []KeyStatus{KeyActive}, true)
}

// BorrowForDecrypt returns a copy of key material usable for
// decryption. ACTIVE or EXPIRED keys may decrypt (expiry grace period).
// Caller must Zeroize the returned slice.
func (m *KeyManager) BorrowForDecrypt(id string) ([]byte, error) {
	return m.borrow(id, []KeyStatus{KeyActive, KeyExpired}, false)
}

func (m *KeyManager) borrow(id string, allowed []KeyStatus, markUsed bool) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.keys[id]
	if !ok {
		return nil, fmt.Errorf("security: unknown key %q", id)
	}
	ok = false
	for _, s := range allowed {
		if info.Status == s {
			ok = true
			break
		}
	}
	if !ok {
		return nil, fmt.Errorf("security: key %q in status %s cannot be used", id, info.Status)
	}

	info.LastUsedAt = time.Now()
	cp := make([]byte, len(info.material))
	copy(cp, info.material)
	return cp, nil
}

// Rotate generates a fresh key under a new id, marks the old key
// ROTATING (decrypt-only, no new encryptions) and links the version.
func (m *KeyManager) Rotate(oldID, newID string) (*KeyInfo, error) {
	m.mu.Lock()
	old, ok := m.keys[oldID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("security: unknown key %q", oldID)
	}
	if old.Status != KeyActive {
		m.mu.Unlock()
		return nil, fmt.Errorf("security: key %q must be ACTIVE to rotate, is %s", oldID, old.Status)
	}
	keyType, length := old.Type, old.Length
	old.Status = KeyRotating
	version := old.Version + 1
	m.mu.Unlock()

	info, err := m.GenerateAndStore(newID, keyType, old.Alias, length, old.ExpiresAt)
	if err != nil {
		return nil, err
	}
	info.Version = version
	if err := m.Activate(newID); err != nil {
		return nil, err
	}
	m.log.Info("key rotated", zap.String("old_key_id", oldID), zap.String("new_key_id", newID))
	return info, nil
}
