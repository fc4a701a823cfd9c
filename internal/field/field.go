// field.go - BN254 scalar field helpers shared across the prover pipeline.
//
// All hashing, Merkle construction and public outputs live in the BN254
// scalar field. This package wraps gnark-crypto's fr.Element with the byte
// packing and signed-integer encodings the circuits expect.

package field

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Bytes is the fixed big-endian serialization width of a field element.
const Bytes = fr.Bytes

// PackedBytes is the number of useful bytes a field element carries when
// packing arbitrary byte strings: the high byte stays zero so any 31-byte
// chunk is below the modulus.
const PackedBytes = Bytes - 1

// FromUint64 builds a field element from an unsigned integer.
func FromUint64(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

// FromBig builds a field element from a big integer, reducing mod p.
func FromBig(v *big.Int) fr.Element {
	var e fr.Element
	e.SetBigInt(v)
	return e
}

// FromBytes builds a field element from big-endian bytes, reducing mod p.
func FromBytes(b []byte) fr.Element {
	var e fr.Element
	e.SetBytes(b)
	return e
}

// Hex returns the 32-byte big-endian hex encoding with a 0x prefix.
func Hex(e fr.Element) string {
	b := e.Bytes()
	return "0x" + hex.EncodeToString(b[:])
}

// EncodeI64 encodes a signed 64-bit value into a field element using the
// two's-complement convention shared with the circuits: the value is cast
// to u64 and lifted into the field.
func EncodeI64(v int64) fr.Element {
	var e fr.Element
	e.SetUint64(uint64(v))
	return e
}

// DecodeI64 recovers a signed 64-bit value from a field element. Elements
// with more than 64 bits are rejected; a set high bit means value - 2^64.
func DecodeI64(e fr.Element) (int64, error) {
	v := e.BigInt(new(big.Int))
	if v.BitLen() > 64 {
		return 0, fmt.Errorf("field element %s does not fit 64 bits", v.String())
	}
	return int64(v.Uint64()), nil
}

// ToFields32 chunks a byte buffer into field elements of 32 big-endian bytes,
// right-padding the final chunk with zeros. This is the layout the circuits
// use when re-interpreting a raw ciphertext as field elements.
func ToFields32(data []byte) []fr.Element {
	n := (len(data) + Bytes - 1) / Bytes
	out := make([]fr.Element, n)
	for i := 0; i < n; i++ {
		var chunk [Bytes]byte
		copy(chunk[:], data[i*Bytes:])
		out[i].SetBytes(chunk[:])
	}
	return out
}

// PackFields packs a byte buffer into field elements carrying 31 bytes each,
// leaving the reserved high byte zero. The buffer is right-padded with zeros
// to fill the last element.
func PackFields(data []byte, numFields int) ([]fr.Element, error) {
	if len(data) > numFields*PackedBytes {
		return nil, fmt.Errorf("cannot pack %d bytes into %d fields", len(data), numFields)
	}
	out := make([]fr.Element, numFields)
	for i := 0; i < numFields; i++ {
		var chunk [Bytes]byte
		lo := i * PackedBytes
		if lo < len(data) {
			copy(chunk[1:], data[lo:])
		}
		out[i].SetBytes(chunk[:])
	}
	return out, nil
}

// UnpackFields is the inverse of PackFields: it drops the reserved high byte
// of each element and concatenates the remaining 31 bytes.
func UnpackFields(fields []fr.Element) []byte {
	out := make([]byte, 0, len(fields)*PackedBytes)
	for i := range fields {
		b := fields[i].Bytes()
		out = append(out, b[1:]...)
	}
	return out
}
