package clarity

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.flashlend.io/stxdapp/address"
)

func TestSerialize(t *testing.T) {
	testCases := []struct {
		value    Value
		expected string
	}{
		{NewUInt(100), "0x0100000000000000000000000000000064"},
		{NewInt(-1), "0x00ffffffffffffffffffffffffffffffff"},
		{NewInt(2), "0x0000000000000000000000000000000002"},
		{Bool(true), "0x03"},
		{Bool(false), "0x04"},
		{None(), "0x09"},
		{Some(NewUInt(1)), "0x0a0100000000000000000000000000000001"},
		{Ok(Bool(true)), "0x0703"},
		{Err(NewUInt(0)), "0x080100000000000000000000000000000000"},
		{Buffer{0xde, 0xad}, "0x0200000002dead"},
		{StringASCII("hi"), "0x0d000000026869"},
		{StringUTF8("é"), "0x0e00000002c3a9"},
		{List{Bool(true), Bool(false)}, "0x0b000000020304"},
		{Tuple{"b": Bool(true), "a": Bool(false)}, "0x0c00000002016104016203"},
		{StandardPrincipal{Address: address.Decoded{Version: address.TestnetSingleSig}},
			"0x051a" + strings.Repeat("00", 20)},
		{ContractPrincipal{Address: address.Decoded{Version: address.MainnetSingleSig}, Name: "pox"},
			"0x0616" + strings.Repeat("00", 20) + "03706f78"},
	}

	for _, tc := range testCases {
		out, err := ToHex(tc.value)
		require.NoError(t, err, tc.value.String())
		require.Equal(t, tc.expected, out, tc.value.String())

		decoded, err := FromHex(out)
		require.NoError(t, err)
		require.Equal(t, tc.expected, mustHex(t, decoded))
	}
}

func TestSerialize_Failures(t *testing.T) {
	_, err := Serialize(nil)
	require.EqualError(t, err, "nil value")

	_, err = Serialize(StringASCII("é"))
	require.EqualError(t, err, `non-ascii character in "é"`)

	_, err = Serialize(List{nil})
	require.EqualError(t, err, "list item: nil value")

	_, err = Serialize(Tuple{"": Bool(true)})
	require.EqualError(t, err, "invalid name ''")

	_, err = Serialize(Tuple{"a": nil})
	require.EqualError(t, err, "tuple entry 'a': nil value")

	_, err = Serialize(ContractPrincipal{Name: strings.Repeat("a", 129)})
	require.Error(t, err)
}

func TestDeserialize_Failures(t *testing.T) {
	_, err := Deserialize(nil)
	require.EqualError(t, err, "couldn't decode value: unexpected end of input at 0")

	_, err = Deserialize([]byte{0x03, 0x03})
	require.EqualError(t, err, "1 trailing bytes")

	_, err = Deserialize([]byte{0xff})
	require.EqualError(t, err, "couldn't decode value: unknown type prefix 0xff")

	_, err = Deserialize([]byte{0x0b, 0xff, 0xff, 0xff, 0xff})
	require.EqualError(t, err, "couldn't decode value: length 4294967295 exceeds input")

	_, err = Deserialize([]byte{0x0e, 0, 0, 0, 1, 0xff})
	require.EqualError(t, err, "couldn't decode value: invalid utf-8 string")

	_, err = FromHex("0xzz")
	require.Error(t, err)

	nested := strings.Repeat("0a", maxDepth+2) + "03"
	_, err = FromHex(nested)
	require.EqualError(t, err, "couldn't decode value: value nested too deeply")
}

func TestInt_Range(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

	v, err := NewIntFromBig(max)
	require.NoError(t, err)

	out, err := ToHex(v)
	require.NoError(t, err)
	require.Equal(t, "0x007fffffffffffffffffffffffffffffff", out)

	_, err = NewIntFromBig(new(big.Int).Add(max, big.NewInt(1)))
	require.Error(t, err)

	min := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))

	v, err = NewIntFromBig(min)
	require.NoError(t, err)

	decoded, err := FromHex(mustHex(t, v))
	require.NoError(t, err)
	require.Equal(t, min.String(), decoded.String())
}

func TestUInt_Range(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

	v, err := NewUIntFromBig(max)
	require.NoError(t, err)
	require.Equal(t, "0x01"+strings.Repeat("ff", 16), mustHex(t, v))

	_, fits := v.Uint64()
	require.False(t, fits)

	_, err = NewUIntFromBig(new(big.Int).Add(max, big.NewInt(1)))
	require.Error(t, err)

	_, err = NewUIntFromBig(big.NewInt(-1))
	require.EqualError(t, err, "integer -1 is negative")
}

func TestPrincipal(t *testing.T) {
	v, err := Principal("ST000000000000000000002AMW42H")
	require.NoError(t, err)
	require.Equal(t, "'ST000000000000000000002AMW42H", v.String())

	v, err = Principal("SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7.flash-lend")
	require.NoError(t, err)
	require.IsType(t, ContractPrincipal{}, v)
	require.Equal(t, "'SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7.flash-lend", v.String())

	_, err = Principal("SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7.")
	require.EqualError(t, err, "invalid contract name ''")

	_, err = Principal("nope")
	require.Error(t, err)
}

func TestString(t *testing.T) {
	v := Tuple{
		"id":    NewUInt(1),
		"query": StringUTF8("rain?"),
		"tags":  List{StringASCII("a")},
		"owner": None(),
		"buf":   Buffer{1},
		"res":   Ok(Some(NewInt(-3))),
	}

	require.Equal(t, `(tuple (buf 0x01) (id u1) (owner none) (query u"rain?") `+
		`(res (ok (some -3))) (tags (list "a")))`, v.String())
}

func TestAsUint64(t *testing.T) {
	n, err := AsUint64(Ok(NewUInt(42)))
	require.NoError(t, err)
	require.Equal(t, uint64(42), n)

	n, err = AsUint64(Some(NewUInt(7)))
	require.NoError(t, err)
	require.Equal(t, uint64(7), n)

	n, err = AsUint64(None())
	require.NoError(t, err)
	require.Equal(t, uint64(0), n)

	_, err = AsUint64(Err(NewUInt(1)))
	require.EqualError(t, err, "contract returned (err u1)")

	_, err = AsUint64(Bool(true))
	require.EqualError(t, err, "expected uint but got true")
}

func mustHex(t *testing.T, v Value) string {
	out, err := ToHex(v)
	require.NoError(t, err)

	return out
}
