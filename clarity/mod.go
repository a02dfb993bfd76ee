// Package clarity implements the values of the Clarity smart contract
// language and their consensus serialization, as used for the arguments of a
// contract call and the result of a read-only call.
//
// Documentation Last Review: 19.10.2026
//
package clarity

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/holiman/uint256"
	"go.flashlend.io/stxdapp/address"
	"golang.org/x/xerrors"
)

// Type is the serialization prefix of a value.
type Type byte

const (
	TypeInt               Type = 0x00
	TypeUInt              Type = 0x01
	TypeBuffer            Type = 0x02
	TypeTrue              Type = 0x03
	TypeFalse             Type = 0x04
	TypeStandardPrincipal Type = 0x05
	TypeContractPrincipal Type = 0x06
	TypeResponseOk        Type = 0x07
	TypeResponseErr       Type = 0x08
	TypeNone              Type = 0x09
	TypeSome              Type = 0x0a
	TypeList              Type = 0x0b
	TypeTuple             Type = 0x0c
	TypeStringASCII       Type = 0x0d
	TypeStringUTF8        Type = 0x0e
)

// MaxNameLength is the maximum length of a contract or tuple key name.
const MaxNameLength = 128

var (
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
)

// Value is a Clarity value.
type Value interface {
	fmt.Stringer

	// Type returns the serialization prefix of the value.
	Type() Type
}

// Int is a signed 128-bits integer.
type Int struct {
	v *big.Int
}

// NewInt returns the integer value.
func NewInt(v int64) Int {
	return Int{v: big.NewInt(v)}
}

// NewIntFromBig returns the integer value, or an error if it does not fit in
// 128 bits.
func NewIntFromBig(v *big.Int) (Int, error) {
	if v.Cmp(minInt128) < 0 || v.Cmp(maxInt128) > 0 {
		return Int{}, xerrors.Errorf("integer %v out of int128 range", v)
	}

	return Int{v: new(big.Int).Set(v)}, nil
}

// Type implements clarity.Value.
func (Int) Type() Type { return TypeInt }

// Big returns a copy of the integer.
func (i Int) Big() *big.Int {
	if i.v == nil {
		return new(big.Int)
	}

	return new(big.Int).Set(i.v)
}

// String implements fmt.Stringer.
func (i Int) String() string {
	return i.Big().String()
}

// UInt is an unsigned 128-bits integer.
type UInt struct {
	v uint256.Int
}

// NewUInt returns the unsigned integer value.
func NewUInt(v uint64) UInt {
	return UInt{v: *uint256.NewInt(v)}
}

// NewUIntFromBig returns the unsigned integer value, or an error if it is
// negative or does not fit in 128 bits.
func NewUIntFromBig(v *big.Int) (UInt, error) {
	if v.Sign() < 0 {
		return UInt{}, xerrors.Errorf("integer %v is negative", v)
	}

	u, overflow := uint256.FromBig(v)
	if overflow || u.BitLen() > 128 {
		return UInt{}, xerrors.Errorf("integer %v out of uint128 range", v)
	}

	return UInt{v: *u}, nil
}

// Type implements clarity.Value.
func (UInt) Type() Type { return TypeUInt }

// Uint64 returns the value if it fits in 64 bits.
func (u UInt) Uint64() (uint64, bool) {
	return u.v.Uint64(), u.v.IsUint64()
}

// Big returns the value as a big integer.
func (u UInt) Big() *big.Int {
	return u.v.ToBig()
}

// String implements fmt.Stringer.
func (u UInt) String() string {
	return "u" + u.v.ToBig().String()
}

// Bool is a boolean value.
type Bool bool

// Type implements clarity.Value.
func (b Bool) Type() Type {
	if b {
		return TypeTrue
	}

	return TypeFalse
}

// String implements fmt.Stringer.
func (b Bool) String() string {
	if b {
		return "true"
	}

	return "false"
}

// Buffer is a byte buffer.
type Buffer []byte

// Type implements clarity.Value.
func (Buffer) Type() Type { return TypeBuffer }

// String implements fmt.Stringer.
func (b Buffer) String() string {
	return fmt.Sprintf("0x%x", []byte(b))
}

// StringASCII is an ASCII string.
type StringASCII string

// Type implements clarity.Value.
func (StringASCII) Type() Type { return TypeStringASCII }

// String implements fmt.Stringer.
func (s StringASCII) String() string {
	return fmt.Sprintf("%q", string(s))
}

// StringUTF8 is a UTF-8 string.
type StringUTF8 string

// Type implements clarity.Value.
func (StringUTF8) Type() Type { return TypeStringUTF8 }

// String implements fmt.Stringer.
func (s StringUTF8) String() string {
	return fmt.Sprintf("u%q", string(s))
}

// StandardPrincipal is an account principal.
type StandardPrincipal struct {
	Address address.Decoded
}

// Type implements clarity.Value.
func (StandardPrincipal) Type() Type { return TypeStandardPrincipal }

// String implements fmt.Stringer.
func (p StandardPrincipal) String() string {
	addr, err := address.Encode(p.Address.Version, p.Address.Hash)
	if err != nil {
		return "'?"
	}

	return "'" + addr.String()
}

// ContractPrincipal is a contract principal.
type ContractPrincipal struct {
	Address address.Decoded
	Name    string
}

// Type implements clarity.Value.
func (ContractPrincipal) Type() Type { return TypeContractPrincipal }

// String implements fmt.Stringer.
func (p ContractPrincipal) String() string {
	return StandardPrincipal{Address: p.Address}.String() + "." + p.Name
}

// Principal parses either an account address or a contract identifier of the
// form ADDRESS.name.
func Principal(s string) (Value, error) {
	addr, name, isContract := strings.Cut(s, ".")

	decoded, err := address.Decode(address.Address(addr))
	if err != nil {
		return nil, xerrors.Errorf("invalid principal: %v", err)
	}

	if !isContract {
		return StandardPrincipal{Address: decoded}, nil
	}

	if name == "" || len(name) > MaxNameLength {
		return nil, xerrors.Errorf("invalid contract name '%s'", name)
	}

	return ContractPrincipal{Address: decoded, Name: name}, nil
}

// Optional is an optional value. A nil inner value is none.
type Optional struct {
	Value Value
}

// None returns the empty optional.
func None() Optional { return Optional{} }

// Some returns the optional holding the value.
func Some(v Value) Optional { return Optional{Value: v} }

// Type implements clarity.Value.
func (o Optional) Type() Type {
	if o.Value == nil {
		return TypeNone
	}

	return TypeSome
}

// String implements fmt.Stringer.
func (o Optional) String() string {
	if o.Value == nil {
		return "none"
	}

	return fmt.Sprintf("(some %v)", o.Value)
}

// Response is the result of a public function.
type Response struct {
	Ok    bool
	Value Value
}

// Ok returns a successful response.
func Ok(v Value) Response { return Response{Ok: true, Value: v} }

// Err returns an error response.
func Err(v Value) Response { return Response{Ok: false, Value: v} }

// Type implements clarity.Value.
func (r Response) Type() Type {
	if r.Ok {
		return TypeResponseOk
	}

	return TypeResponseErr
}

// String implements fmt.Stringer.
func (r Response) String() string {
	if r.Ok {
		return fmt.Sprintf("(ok %v)", r.Value)
	}

	return fmt.Sprintf("(err %v)", r.Value)
}

// List is a list of values.
type List []Value

// Type implements clarity.Value.
func (List) Type() Type { return TypeList }

// String implements fmt.Stringer.
func (l List) String() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = v.String()
	}

	return "(list " + strings.Join(parts, " ") + ")"
}

// Tuple is a set of named values.
type Tuple map[string]Value

// Type implements clarity.Value.
func (Tuple) Type() Type { return TypeTuple }

// Keys returns the sorted keys of the tuple.
func (t Tuple) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// String implements fmt.Stringer.
func (t Tuple) String() string {
	keys := t.Keys()

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("(%s %v)", k, t[k])
	}

	return "(tuple " + strings.Join(parts, " ") + ")"
}

// Unwrap returns the inner value of a response, or an error if the response
// is an error. Other values are returned as is.
func Unwrap(v Value) (Value, error) {
	resp, ok := v.(Response)
	if !ok {
		return v, nil
	}

	if !resp.Ok {
		return nil, xerrors.Errorf("contract returned %v", resp)
	}

	return resp.Value, nil
}

// AsUint64 returns the unsigned integer held by the value, unwrapping a
// response or an optional.
func AsUint64(v Value) (uint64, error) {
	inner, err := Unwrap(v)
	if err != nil {
		return 0, err
	}

	if opt, ok := inner.(Optional); ok {
		if opt.Value == nil {
			return 0, nil
		}

		inner = opt.Value
	}

	u, ok := inner.(UInt)
	if !ok {
		return 0, xerrors.Errorf("expected uint but got %v", inner)
	}

	n, fits := u.Uint64()
	if !fits {
		return 0, xerrors.Errorf("%v overflows uint64", u)
	}

	return n, nil
}
