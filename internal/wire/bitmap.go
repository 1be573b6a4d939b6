// Package wire implements the schema-driven ISO-8583-style binary codec:
// bitmaps, field encodings, and the Message/MessageSchema types that the
// rest of the gateway builds on.
package wire

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/paynet/fep/internal/ferr"
)

// Bitmap is a fixed 64-bit primary bitmap with an optional 64-bit
// secondary bitmap, covering field numbers 1..128. Field numbering is
// MSB-first within each byte, matching the ISO-8583 convention: bit 1 of
// the primary bitmap is the secondary-bitmap-present indicator and is
// never itself an addressable data field.
type Bitmap struct {
	primary   [8]byte
	secondary [8]byte
	hasSecondary bool
}

// NewBitmap returns an empty bitmap.
func NewBitmap() *Bitmap {
	return &Bitmap{}
}

func fieldBytePos(field int) (byteIdx, bitIdx int) {
	local := (field - 1) % 64
	byteIdx = local / 8
	bitIdx = local % 8
	return
}

// Set marks field as present. Fields 1..128 are valid; setting any field
// in 65..128 implicitly sets bit 1 (secondary bitmap indicator).
func (b *Bitmap) Set(field int) error {
	if field < 1 || field > 128 {
		return ferr.Bitmap(fmt.Sprintf("field %d out of range 1..128", field))
	}
	if field == 1 {
		return ferr.Bitmap("field 1 is the secondary-bitmap indicator, not addressable")
	}
	if field <= 64 {
		byteIdx, bitIdx := fieldBytePos(field)
		b.primary[byteIdx] |= 0x80 >> uint(bitIdx)
		return nil
	}
	byteIdx, bitIdx := fieldBytePos(field)
	b.secondary[byteIdx] |= 0x80 >> uint(bitIdx)
	b.hasSecondary = true
	b.primary[0] |= 0x80 // bit 1
	return nil
}

// Clear removes field from the bitmap. Clearing the last field in
// 65..128 clears bit 1 (secondary indicator) as well.
func (b *Bitmap) Clear(field int) error {
	if field < 1 || field > 128 {
		return ferr.Bitmap(fmt.Sprintf("field %d out of range 1..128", field))
	}
	if field <= 64 {
		if field == 1 {
			return nil // bit 1 is managed automatically
		}
		byteIdx, bitIdx := fieldBytePos(field)
		b.primary[byteIdx] &^= 0x80 >> uint(bitIdx)
		return nil
	}
	byteIdx, bitIdx := fieldBytePos(field)
	b.secondary[byteIdx] &^= 0x80 >> uint(bitIdx)
	if !b.anySecondarySet() {
		b.hasSecondary = false
		b.primary[0] &^= 0x80
	}
	return nil
}

func (b *Bitmap) anySecondarySet() bool {
	for _, bt := range b.secondary {
		if bt != 0 {
			return true
		}
	}
	return false
}

// IsSet reports whether field is present in the bitmap.
func (b *Bitmap) IsSet(field int) bool {
	if field < 1 || field > 128 {
		return false
	}
	if field == 1 {
		return b.HasSecondary()
	}
	if field <= 64 {
		byteIdx, bitIdx := fieldBytePos(field)
		return b.primary[byteIdx]&(0x80>>uint(bitIdx)) != 0
	}
	byteIdx, bitIdx := fieldBytePos(field)
	return b.secondary[byteIdx]&(0x80>>uint(bitIdx)) != 0
}

// HasSecondary reports whether bit 1 (and therefore the secondary
// bitmap) is present.
func (b *Bitmap) HasSecondary() bool {
	return b.primary[0]&0x80 != 0
}

// Fields returns the set field numbers in ascending order, excluding the
// synthetic bit-1 secondary indicator.
func (b *Bitmap) Fields() []int {
	var out []int
	for f := 2; f <= 64; f++ {
		if b.IsSet(f) {
			out = append(out, f)
		}
	}
	if b.HasSecondary() {
		for f := 65; f <= 128; f++ {
			if b.IsSet(f) {
				out = append(out, f)
			}
		}
	}
	return out
}

// Bytes returns the raw bitmap bytes: 8 bytes if no secondary bitmap is
// present, 16 bytes otherwise.
func (b *Bitmap) Bytes() []byte {
	if b.HasSecondary() {
		out := make([]byte, 16)
		copy(out[:8], b.primary[:])
		copy(out[8:], b.secondary[:])
		return out
	}
	out := make([]byte, 8)
	copy(out, b.primary[:])
	return out
}

// Hex renders the bitmap as uppercase hex: 16 chars without a secondary
// bitmap, 32 chars with one.
func (b *Bitmap) Hex() string {
	return strings.ToUpper(hex.EncodeToString(b.Bytes()))
}

// BitmapFromBytes parses a bitmap from 8 or 16 raw bytes.
func BitmapFromBytes(data []byte) (*Bitmap, error) {
	if len(data) != 8 && len(data) != 16 {
		return nil, ferr.Bitmap(fmt.Sprintf("bitmap must be 8 or 16 bytes, got %d", len(data)))
	}
	b := &Bitmap{}
	copy(b.primary[:], data[:8])
	if len(data) == 16 {
		copy(b.secondary[:], data[8:])
		b.hasSecondary = true
	}
	if b.HasSecondary() != (len(data) == 16) {
		return nil, ferr.Bitmap("bit 1 does not match presence of secondary bitmap bytes")
	}
	return b, nil
}

// BitmapFromHex parses a bitmap from a 16 or 32 character hex string.
func BitmapFromHex(s string) (*Bitmap, error) {
	if len(s) != 16 && len(s) != 32 {
		return nil, ferr.Bitmap(fmt.Sprintf("hex bitmap must be 16 or 32 chars, got %d", len(s)))
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, ferr.Bitmap(fmt.Sprintf("invalid hex: %v", err))
	}
	return BitmapFromBytes(data)
}

// BitmapFromFields builds a bitmap with exactly the given field numbers set.
func BitmapFromFields(fields []int) (*Bitmap, error) {
	b := NewBitmap()
	for _, f := range fields {
		if err := b.Set(f); err != nil {
			return nil, err
		}
	}
	return b, nil
}
