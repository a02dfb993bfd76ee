package address

import (
	"bytes"
	"crypto/sha256"
	"math/big"
	"strings"

	"golang.org/x/xerrors"
)

// c32 is the Crockford base32 alphabet used by the c32check encoding.
const c32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const checksumLength = 4

// bigBase32 is the alphabet math/big uses to print numbers in base 32.
const bigBase32 = "0123456789abcdefghijklmnopqrstuv"

// c32Encode encodes the data as a base-32 number. Each leading zero byte of
// the input is represented by a leading '0'.
func c32Encode(data []byte) string {
	num := new(big.Int).SetBytes(data)

	var builder strings.Builder

	zeros := 0
	for zeros < len(data) && data[zeros] == 0 {
		zeros++
	}

	for i := 0; i < zeros; i++ {
		builder.WriteByte(c32[0])
	}

	if num.Sign() == 0 {
		return builder.String()
	}

	for _, r := range num.Text(32) {
		builder.WriteByte(c32[strings.IndexRune(bigBase32, r)])
	}

	return builder.String()
}

// c32Decode is the inverse of c32Encode. It accepts the Crockford aliases for
// ambiguous characters.
func c32Decode(s string) ([]byte, error) {
	s = normalize(s)

	zeros := 0
	for zeros < len(s) && s[zeros] == c32[0] {
		zeros++
	}

	num := new(big.Int)
	base := big.NewInt(32)

	for i := zeros; i < len(s); i++ {
		index := strings.IndexByte(c32, s[i])
		if index < 0 {
			return nil, xerrors.Errorf("invalid c32 character '%c'", s[i])
		}

		num.Mul(num, base)
		num.Add(num, big.NewInt(int64(index)))
	}

	res := make([]byte, zeros, zeros+len(s))

	return append(res, num.Bytes()...), nil
}

func normalize(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "O", "0")
	s = strings.ReplaceAll(s, "L", "1")
	s = strings.ReplaceAll(s, "I", "1")

	return s
}

func checksum(version byte, data []byte) []byte {
	first := sha256.Sum256(append([]byte{version}, data...))
	second := sha256.Sum256(first[:])

	return second[:checksumLength]
}

func checkEncode(version byte, data []byte) (string, error) {
	if int(version) >= len(c32) {
		return "", xerrors.Errorf("version %d out of range", version)
	}

	payload := append(append([]byte{}, data...), checksum(version, data)...)

	return string(c32[version]) + c32Encode(payload), nil
}

func checkDecode(s string) (byte, []byte, error) {
	if len(s) < 2 {
		return 0, nil, xerrors.New("input too short")
	}

	s = normalize(s)

	version := strings.IndexByte(c32, s[0])
	if version < 0 {
		return 0, nil, xerrors.Errorf("invalid version character '%c'", s[0])
	}

	payload, err := c32Decode(s[1:])
	if err != nil {
		return 0, nil, xerrors.Errorf("couldn't decode: %v", err)
	}

	if len(payload) < checksumLength {
		return 0, nil, xerrors.New("missing checksum")
	}

	data := payload[:len(payload)-checksumLength]
	sum := payload[len(payload)-checksumLength:]

	if !bytes.Equal(sum, checksum(byte(version), data)) {
		return 0, nil, xerrors.New("checksum mismatch")
	}

	return byte(version), data, nil
}
