package security

import "fmt"

// Package security implements the cryptographic primitives the FISC
// channel needs for PIN block translation and message authentication.
// The acquirer network still runs single/triple-DES for PIN and MAC
// work (ISO 9564, ISO 9797 alg 1/3), so this file carries a from-scratch
// DES/3DES block cipher: neither the standard library nor any example
// in the surrounding stack ships one (Go dropped crypto/des-equivalent
// breadth long ago and no vendored dependency here pulls in one either).
// AES and HMAC, which the newer MAC schemes use, stay on crypto/aes and
// crypto/hmac directly rather than being reimplemented here.

const blockSize = 8

// initial permutation
var ip = [64]int{
	58, 50, 42, 34, 26, 18, 10, 2,
	60, 52, 44, 36, 28, 20, 12, 4,
	62, 54, 46, 38, 30, 22, 14, 6,
	64, 56, 48, 40, 32, 24, 16, 8,
	57, 49, 41, 33, 25, 17, 9, 1,
	59, 51, 43, 35, 27, 19, 11, 3,
	61, 53, 45, 37, 29, 21, 13, 5,
	63, 55, 47, 39, 31, 23, 15, 7,
}

// final permutation (inverse of ip)
var fp = [64]int{
	40, 8, 48, 16, 56, 24, 64, 32,
	39, 7, 47, 15, 55, 23, 63, 31,
	38, 6, 46, 14, 54, 22, 62, 30,
	37, 5, 45, 13, 53, 21, 61, 29,
	36, 4, 44, 12, 52, 20, 60, 28,
	35, 3, 43, 11, 51, 19, 59, 27,
	34, 2, 42, 10, 50, 18, 58, 26,
	33, 1, 41, 9, 49, 17, 57, 25,
}

// expansion table, 32 -> 48 bits
var expansionTable = [48]int{
	32, 1, 2, 3, 4, 5,
	4, 5, 6, 7, 8, 9,
	8, 9, 10, 11, 12, 13,
	12, 13, 14, 15, 16, 17,
	16, 17, 18, 19, 20, 21,
	20, 21, 22, 23, 24, 25,
	24, 25, 26, 27, 28, 29,
	28, 29, 30, 31, 32, 1,
}

// P permutation applied after S-box substitution
var pTable = [32]int{
	16, 7, 20, 21,
	29, 12, 28, 17,
	1, 15, 23, 26,
	5, 18, 31, 10,
	2, 8, 24, 14,
	32, 27, 3, 9,
	19, 13, 30, 6,
	22, 11, 4, 25,
}

// permuted choice 1, 64 -> 56 bits (key schedule)
var pc1 = [56]int{
	57, 49, 41, 33, 25, 17, 9,
	1, 58, 50, 42, 34, 26, 18,
	10, 2, 59, 51, 43, 35, 27,
	19, 11, 3, 60, 52, 44, 36,
	63, 55, 47, 39, 31, 23, 15,
	7, 62, 54, 46, 38, 30, 22,
	14, 6, 61, 53, 45, 37, 29,
	21, 13, 5, 28, 20, 12, 4,
}

// permuted choice 2, 56 -> 48 bits (per-round subkey)
var pc2 = [48]int{
	14, 17, 11, 24, 1, 5,
	3, 28, 15, 6, 21, 10,
	23, 19, 12, 4, 26, 8,
	16, 7, 27, 20, 13, 2,
	41, 52, 31, 37, 47, 55,
	30, 40, 51, 45, 33, 48,
	44, 49, 39, 56, 34, 53,
	46, 42, 50, 36, 29, 32,
}

// left-rotation schedule per round
var shiftSchedule = [16]int{1, 1, 2, 2, 2, 2, 2, 2, 1, 2, 2, 2, 2, 2, 2, 1}

var sBoxes = [8][4][16]int{
	{
		{14, 4, 13, 1, 2, 15, 11, 8, 3, 10, 6, 12, 5, 9, 0, 7},
		{0, 15, 7, 4, 14, 2, 13, 1, 10, 6, 12, 11, 9, 5, 3, 8},
		{4, 1, 14, 8, 13, 6, 2, 11, 15, 12, 9, 7, 3, 10, 5, 0},
		{15, 12, 8, 2, 4, 9, 1, 7, 5, 11, 3, 14, 10, 0, 6, 13},
	},
	{
		{15, 1, 8, 14, 6, 11, 3, 4, 9, 7, 2, 13, 12, 0, 5, 10},
		{3, 13, 4, 7, 15, 2, 8, 14, 12, 0, 1, 10, 6, 9, 11, 5},
		{0, 14, 7, 11, 10, 4, 13, 1, 5, 8, 12, 6, 9, 3, 2, 15},
		{13, 8, 10, 1, 3, 15, 4, 2, 11, 6, 7, 12, 0, 5, 14, 9},
	},
	{
		{10, 0, 9, 14, 6, 3, 15, 5, 1, 13, 12, 7, 11, 4, 2, 8},
		{13, 7, 0, 9, 3, 4, 6, 10, 2, 8, 5, 14, 12, 11, 15, 1},
		{13, 6, 4, 9, 8, 15, 3, 0, 11, 1, 2, 12, 5, 10, 14, 7},
		{1, 10, 13, 0, 6, 9, 8, 7, 4, 15, 14, 3, 11, 5, 2, 12},
	},
	{
		{7, 13, 14, 3, 0, 6, 9, 10, 1, 2, 8, 5, 11, 12, 4, 15},
		{13, 8, 11, 5, 6, 15, 0, 3, 4, 7, 2, 12, 1, 10, 14, 9},
		{10, 6, 9, 0, 12, 11, 7, 13, 15, 1, 3, 14, 5, 2, 8, 4},
		{3, 15, 0, 6, 10, 1, 13, 8, 9, 4, 5, 11, 12, 7, 2, 14},
	},
	{
		{2, 12, 4, 1, 7, 10, 11, 6, 8, 5, 3, 15, 13, 0, 14, 9},
		{14, 11, 2, 12, 4, 7, 13, 1, 5, 0, 15, 10, 3, 9, 8, 6},
		{4, 2, 1, 11, 10, 13, 7, 8, 15, 9, 12, 5, 6, 3, 0, 14},
		{11, 8, 12, 7, 1, 14, 2, 13, 6, 15, 0, 9, 10, 4, 5, 3},
	},
	{
		{12, 1, 10, 15, 9, 2, 6, 8, 0, 13, 3, 4, 14, 7, 5, 11},
		{10, 15, 4, 2, 7, 12, 9, 5, 6, 1, 13, 14, 0, 11, 3, 8},
		{9, 14, 15, 5, 2, 8, 12, 3, 7, 0, 4, 10, 1, 13, 11, 6},
		{4, 3, 2, 12, 9, 5, 15, 10, 11, 14, 1, 7, 6, 0, 8, 13},
	},
	{
		{4, 11, 2, 14, 15, 0, 8, 13, 3, 12, 9, 7, 5, 10, 6, 1},
		{13, 0, 11, 7, 4, 9, 1, 10, 14, 3, 5, 12, 2, 15, 8, 6},
		{1, 4, 11, 13, 12, 3, 7, 14, 10, 15, 6, 8, 0, 5, 9, 2},
		{6, 11, 13, 8, 1, 4, 10, 7, 9, 5, 0, 15, 14, 2, 3, 12},
	},
	{
		{13, 2, 8, 4, 6, 15, 11, 1, 10, 9, 3, 14, 5, 0, 12, 7},
		{1, 15, 13, 8, 10, 3, 7, 4, 12, 5, 6, 11, 0, 14, 9, 2},
		{7, 11, 4, 1, 9, 12, 14, 2, 0, 6, 10, 13, 15, 3, 5, 8},
		{2, 1, 14, 7, 4, 10, 8, 13, 15, 12, 9, 0, 3, 5, 6, 11},
	},
}

// bitset is a 64- or 56-bit register addressed 1-indexed MSB-first, the
// convention every FIPS 46-3 permutation table uses.
type bitset []byte

func newBitset(n int) bitset { return make(bitset, n) }

func (b bitset) get(i int) byte {
	return (b[(i-1)/8] >> (7 - uint((i-1)%8))) & 1
}

func (b bitset) set(i int, v byte) {
	idx := (i - 1) / 8
	shift := uint(7 - (i-1)%8)
	if v != 0 {
		b[idx] |= 1 << shift
	} else {
		b[idx] &^= 1 << shift
	}
}

func bytesToBits(data []byte) bitset {
	bits := newBitset(len(data))
	copy(bits, data)
	return bits
}

func permute(in bitset, table []int) bitset {
	out := newBitset((len(table) + 7) / 8)
	for i, src := range table {
		out.set(i+1, in.get(src))
	}
	return out
}

func leftRotate28(half bitset, n int) bitset {
	out := newBitset(4)
	for i := 1; i <= 28; i++ {
		srcIdx := ((i-1)+n)%28 + 1
		out.set(i, half.get(srcIdx))
	}
	return out
}

// desKeySchedule derives the sixteen 48-bit round subkeys from an 8-byte
// (56-bit effective) DES key.
func desKeySchedule(key []byte) [16]bitset {
	permuted := permute(bytesToBits(key), pc1[:])

	c := newBitset(4)
	d := newBitset(4)
	for i := 1; i <= 28; i++ {
		c.set(i, permuted.get(i))
		d.set(i, permuted.get(28+i))
	}

	var subkeys [16]bitset
	for round := 0; round < 16; round++ {
		c = leftRotate28(c, shiftSchedule[round])
		d = leftRotate28(d, shiftSchedule[round])

		cd := newBitset(7)
		for i := 1; i <= 28; i++ {
			cd.set(i, c.get(i))
			cd.set(28+i, d.get(i))
		}
		subkeys[round] = permute(cd, pc2[:])
	}
	return subkeys
}

func feistel(r bitset, subkey bitset) bitset {
	expanded := permute(r, expansionTable[:])
	xored := newBitset(6)
	for i := range xored {
		xored[i] = expanded[i] ^ subkey[i]
	}

	sOut := newBitset(4)
	for box := 0; box < 8; box++ {
		base := box*6 + 1
		row := xored.get(base)<<1 | xored.get(base+5)
		col := xored.get(base+1)<<3 | xored.get(base+2)<<2 | xored.get(base+3)<<1 | xored.get(base+4)
		val := sBoxes[box][row][col]
		for bit := 0; bit < 4; bit++ {
			sOut.set(box*4+bit+1, byte((val>>(3-bit))&1))
		}
	}
	return permute(sOut, pTable[:])
}

// desCryptBlock runs one 8-byte DES block through the Feistel network.
// Passing subkeys in reverse order performs decryption.
func desCryptBlock(block []byte, subkeys [16]bitset, decrypt bool) [8]byte {
	bits := permute(bytesToBits(block), ip[:])

	l := newBitset(4)
	r := newBitset(4)
	copy(l, bits[:4])
	copy(r, bits[4:])

	order := [16]int{}
	for i := range order {
		if decrypt {
			order[i] = 15 - i
		} else {
			order[i] = i
		}
	}

	for _, round := range order {
		f := feistel(r, subkeys[round])
		newR := newBitset(4)
		for i := range newR {
			newR[i] = l[i] ^ f[i]
		}
		l, r = r, newR
	}

	preOutput := newBitset(8)
	copy(preOutput[:4], r)
	copy(preOutput[4:], l)

	out := permute(preOutput, fp[:])
	var result [8]byte
	copy(result[:], out)
	return result
}

// DESEncryptBlock encrypts one 8-byte block with a single 8-byte DES key.
func DESEncryptBlock(key, block []byte) ([8]byte, error) {
	if len(key) != blockSize {
		return [8]byte{}, fmt.Errorf("security: DES key must be %d bytes, got %d", blockSize, len(key))
	}
	if len(block) != blockSize {
		return [8]byte{}, fmt.Errorf("security: DES block must be %d bytes, got %d", blockSize, len(block))
	}
	subkeys := desKeySchedule(key)
	return desCryptBlock(block, subkeys, false), nil
}

// DESDecryptBlock decrypts one 8-byte block with a single 8-byte DES key.
func DESDecryptBlock(key, block []byte) ([8]byte, error) {
	if len(key) != blockSize {
		return [8]byte{}, fmt.Errorf("security: DES key must be %d bytes, got %d", blockSize, len(key))
	}
	if len(block) != blockSize {
		return [8]byte{}, fmt.Errorf("security: DES block must be %d bytes, got %d", blockSize, len(block))
	}
	subkeys := desKeySchedule(key)
	return desCryptBlock(block, subkeys, true), nil
}

// TripleDESEncryptBlock runs EDE triple-DES (encrypt-decrypt-encrypt) on
// one 8-byte block. A 16-byte key runs 2-key EDE (K1, K2, K1); a 24-byte
// key runs 3-key EDE.
func TripleDESEncryptBlock(key, block []byte) ([8]byte, error) {
	k1, k2, k3, err := splitTripleDESKey(key)
	if err != nil {
		return [8]byte{}, err
	}
	step1, err := DESEncryptBlock(k1, block)
	if err != nil {
		return [8]byte{}, err
	}
	step2, err := DESDecryptBlock(k2, step1[:])
	if err != nil {
		return [8]byte{}, err
	}
	return DESEncryptBlock(k3, step2[:])
}

// TripleDESDecryptBlock inverts TripleDESEncryptBlock (decrypt-encrypt-decrypt).
func TripleDESDecryptBlock(key, block []byte) ([8]byte, error) {
	k1, k2, k3, err := splitTripleDESKey(key)
	if err != nil {
		return [8]byte{}, err
	}
	step1, err := DESDecryptBlock(k3, block)
	if err != nil {
		return [8]byte{}, err
	}
	step2, err := DESEncryptBlock(k2, step1[:])
	if err != nil {
		return [8]byte{}, err
	}
	return DESDecryptBlock(k1, step2[:])
}

func splitTripleDESKey(key []byte) (k1, k2, k3 []byte, err error) {
	switch len(key) {
	case 16:
		return key[0:8], key[8:16], key[0:8], nil
	case 24:
		return key[0:8], key[8:16], key[16:24], nil
	default:
		return nil, nil, nil, fmt.Errorf("security: triple-DES key must be 16 or 24 bytes, got %d", len(key))
	}
}

// XORBlock XORs two equal-length byte slices, used by CBC-MAC chaining.
func XORBlock(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
