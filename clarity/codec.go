package clarity

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/holiman/uint256"
	"go.flashlend.io/stxdapp/address"
	"golang.org/x/xerrors"
)

// maxDepth bounds the nesting of decoded values.
const maxDepth = 64

var two128 = new(big.Int).Lsh(big.NewInt(1), 128)

// Serialize returns the consensus serialization of the value.
func Serialize(v Value) ([]byte, error) {
	buf := new(bytes.Buffer)

	err := encode(buf, v)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ToHex returns the 0x-prefixed hexadecimal serialization of the value.
func ToHex(v Value) (string, error) {
	data, err := Serialize(v)
	if err != nil {
		return "", err
	}

	return "0x" + hex.EncodeToString(data), nil
}

// FromHex decodes a value from its hexadecimal serialization, with or without
// the 0x prefix.
func FromHex(s string) (Value, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, xerrors.Errorf("invalid hex: %v", err)
	}

	return Deserialize(data)
}

func encode(buf *bytes.Buffer, v Value) error {
	if v == nil {
		return xerrors.New("nil value")
	}

	buf.WriteByte(byte(v.Type()))

	switch value := v.(type) {
	case Int:
		n := value.Big()
		if n.Sign() < 0 {
			n.Add(n, two128)
		}

		buf.Write(n.FillBytes(make([]byte, 16)))
	case UInt:
		b := value.v.Bytes32()
		buf.Write(b[16:])
	case Bool:
	case Buffer:
		writeLength(buf, len(value))
		buf.Write(value)
	case StringASCII:
		for i := 0; i < len(value); i++ {
			if value[i] >= utf8.RuneSelf {
				return xerrors.Errorf("non-ascii character in %v", value)
			}
		}

		writeLength(buf, len(value))
		buf.WriteString(string(value))
	case StringUTF8:
		writeLength(buf, len(value))
		buf.WriteString(string(value))
	case StandardPrincipal:
		writePrincipal(buf, value.Address)
	case ContractPrincipal:
		writePrincipal(buf, value.Address)

		err := writeName(buf, value.Name)
		if err != nil {
			return err
		}
	case Optional:
		if value.Value != nil {
			return encode(buf, value.Value)
		}
	case Response:
		return encode(buf, value.Value)
	case List:
		writeLength(buf, len(value))

		for _, item := range value {
			err := encode(buf, item)
			if err != nil {
				return xerrors.Errorf("list item: %v", err)
			}
		}
	case Tuple:
		writeLength(buf, len(value))

		for _, key := range value.Keys() {
			err := writeName(buf, key)
			if err != nil {
				return err
			}

			err = encode(buf, value[key])
			if err != nil {
				return xerrors.Errorf("tuple entry '%s': %v", key, err)
			}
		}
	default:
		return xerrors.Errorf("unsupported value '%T'", v)
	}

	return nil
}

func writeLength(buf *bytes.Buffer, n int) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	buf.Write(b[:])
}

func writePrincipal(buf *bytes.Buffer, addr address.Decoded) {
	buf.WriteByte(byte(addr.Version))
	buf.Write(addr.Hash[:])
}

func writeName(buf *bytes.Buffer, name string) error {
	if len(name) == 0 || len(name) > MaxNameLength {
		return xerrors.Errorf("invalid name '%s'", name)
	}

	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)

	return nil
}

// Deserialize decodes a value from its consensus serialization. The input
// must contain exactly one value.
func Deserialize(data []byte) (Value, error) {
	r := &reader{data: data}

	v, err := r.value(0)
	if err != nil {
		return nil, xerrors.Errorf("couldn't decode value: %v", err)
	}

	if r.pos != len(data) {
		return nil, xerrors.Errorf("%d trailing bytes", len(data)-r.pos)
	}

	return v, nil
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) next(n int) ([]byte, error) {
	if n < 0 || len(r.data)-r.pos < n {
		return nil, xerrors.Errorf("unexpected end of input at %d", r.pos)
	}

	b := r.data[r.pos : r.pos+n]
	r.pos += n

	return b, nil
}

func (r *reader) length() (int, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}

	n := binary.BigEndian.Uint32(b)
	if int64(n) > int64(len(r.data)-r.pos) {
		return 0, xerrors.Errorf("length %d exceeds input", n)
	}

	return int(n), nil
}

func (r *reader) name() (string, error) {
	b, err := r.next(1)
	if err != nil {
		return "", err
	}

	name, err := r.next(int(b[0]))
	if err != nil {
		return "", err
	}

	return string(name), nil
}

func (r *reader) principal() (address.Decoded, error) {
	b, err := r.next(1 + address.HashLength)
	if err != nil {
		return address.Decoded{}, err
	}

	res := address.Decoded{Version: address.Version(b[0])}
	copy(res.Hash[:], b[1:])

	return res, nil
}

func (r *reader) value(depth int) (Value, error) {
	if depth > maxDepth {
		return nil, xerrors.New("value nested too deeply")
	}

	prefix, err := r.next(1)
	if err != nil {
		return nil, err
	}

	switch Type(prefix[0]) {
	case TypeInt:
		b, err := r.next(16)
		if err != nil {
			return nil, err
		}

		n := new(big.Int).SetBytes(b)
		if b[0]&0x80 != 0 {
			n.Sub(n, two128)
		}

		return Int{v: n}, nil
	case TypeUInt:
		b, err := r.next(16)
		if err != nil {
			return nil, err
		}

		return UInt{v: *new(uint256.Int).SetBytes(b)}, nil
	case TypeTrue:
		return Bool(true), nil
	case TypeFalse:
		return Bool(false), nil
	case TypeBuffer, TypeStringASCII, TypeStringUTF8:
		n, err := r.length()
		if err != nil {
			return nil, err
		}

		b, err := r.next(n)
		if err != nil {
			return nil, err
		}

		switch Type(prefix[0]) {
		case TypeBuffer:
			return Buffer(append([]byte{}, b...)), nil
		case TypeStringASCII:
			return StringASCII(b), nil
		default:
			if !utf8.Valid(b) {
				return nil, xerrors.New("invalid utf-8 string")
			}

			return StringUTF8(b), nil
		}
	case TypeStandardPrincipal:
		addr, err := r.principal()
		if err != nil {
			return nil, err
		}

		return StandardPrincipal{Address: addr}, nil
	case TypeContractPrincipal:
		addr, err := r.principal()
		if err != nil {
			return nil, err
		}

		name, err := r.name()
		if err != nil {
			return nil, err
		}

		return ContractPrincipal{Address: addr, Name: name}, nil
	case TypeResponseOk, TypeResponseErr:
		inner, err := r.value(depth + 1)
		if err != nil {
			return nil, err
		}

		return Response{Ok: Type(prefix[0]) == TypeResponseOk, Value: inner}, nil
	case TypeNone:
		return None(), nil
	case TypeSome:
		inner, err := r.value(depth + 1)
		if err != nil {
			return nil, err
		}

		return Some(inner), nil
	case TypeList:
		n, err := r.length()
		if err != nil {
			return nil, err
		}

		list := make(List, 0, n)
		for i := 0; i < n; i++ {
			item, err := r.value(depth + 1)
			if err != nil {
				return nil, err
			}

			list = append(list, item)
		}

		return list, nil
	case TypeTuple:
		n, err := r.length()
		if err != nil {
			return nil, err
		}

		tuple := make(Tuple, n)
		for i := 0; i < n; i++ {
			key, err := r.name()
			if err != nil {
				return nil, err
			}

			item, err := r.value(depth + 1)
			if err != nil {
				return nil, err
			}

			tuple[key] = item
		}

		return tuple, nil
	default:
		return nil, xerrors.Errorf("unknown type prefix 0x%02x", prefix[0])
	}
}
