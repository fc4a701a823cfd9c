package field

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestI64RoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 42, -42, math.MaxInt64, math.MinInt64, -1234567890123}
	for _, v := range cases {
		got, err := DecodeI64(EncodeI64(v))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestDecodeI64RejectsWideElements(t *testing.T) {
	e := FromUint64(1)
	// 2^64 does not fit in 64 bits.
	var wide = e
	for i := 0; i < 64; i++ {
		wide.Double(&wide)
	}
	_, err := DecodeI64(wide)
	require.Error(t, err)
}

func TestNegativeEncodingHasHighBitSet(t *testing.T) {
	e := EncodeI64(-5)
	v := e.BigInt(new(big.Int))
	require.Equal(t, 64, v.BitLen(), "negative values map to [2^63, 2^64)")
}

func TestPackUnpackRoundTrip(t *testing.T) {
	data := make([]byte, 240)
	for i := range data {
		data[i] = byte(i * 7)
	}
	fields, err := PackFields(data, 8)
	require.NoError(t, err)
	require.Len(t, fields, 8)

	unpacked := UnpackFields(fields)
	require.Equal(t, data, unpacked[:len(data)])
	for _, b := range unpacked[len(data):] {
		require.Zero(t, b)
	}
}

func TestPackFieldsRejectsOverflow(t *testing.T) {
	_, err := PackFields(make([]byte, 100), 3)
	require.Error(t, err)
}

func TestToFields32Padding(t *testing.T) {
	data := make([]byte, 40)
	data[0] = 0x01
	data[39] = 0xff
	fields := ToFields32(data)
	require.Len(t, fields, 2)

	// The second chunk is right-padded with zeros.
	var tail [32]byte
	copy(tail[:], data[32:])
	require.Equal(t, FromBytes(tail[:]), fields[1])
}
