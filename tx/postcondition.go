package tx

import (
	"bytes"
	"fmt"

	"go.flashlend.io/stxdapp/address"
	"golang.org/x/xerrors"
)

// ConditionCode is the comparison applied by a post-condition.
type ConditionCode byte

const (
	Equal        ConditionCode = 0x01
	Greater      ConditionCode = 0x02
	GreaterEqual ConditionCode = 0x03
	Less         ConditionCode = 0x04
	LessEqual    ConditionCode = 0x05
)

var codeSymbols = map[ConditionCode]string{
	Equal:        "==",
	Greater:      ">",
	GreaterEqual: ">=",
	Less:         "<",
	LessEqual:    "<=",
}

// String implements fmt.Stringer.
func (c ConditionCode) String() string {
	symbol, found := codeSymbols[c]
	if !found {
		return fmt.Sprintf("code(%d)", byte(c))
	}

	return symbol
}

// PrincipalKind is the kind of account a post-condition applies to.
type PrincipalKind byte

const (
	PrincipalOrigin   PrincipalKind = 0x01
	PrincipalStandard PrincipalKind = 0x02
	PrincipalContract PrincipalKind = 0x03
)

// Principal is the account whose transfers are checked.
type Principal struct {
	Kind     PrincipalKind
	Address  address.Address
	Contract string
}

// Origin returns the principal of the origin of the transaction.
func Origin() Principal {
	return Principal{Kind: PrincipalOrigin}
}

// Standard returns the principal of a standard account.
func Standard(addr address.Address) Principal {
	return Principal{Kind: PrincipalStandard, Address: addr}
}

// Contract returns the principal of a contract.
func Contract(addr address.Address, name string) Principal {
	return Principal{Kind: PrincipalContract, Address: addr, Contract: name}
}

// String implements fmt.Stringer.
func (p Principal) String() string {
	switch p.Kind {
	case PrincipalOrigin:
		return "origin"
	case PrincipalContract:
		return p.Address.String() + "." + p.Contract
	default:
		return p.Address.String()
	}
}

func (p Principal) encode(buf *bytes.Buffer) error {
	buf.WriteByte(byte(p.Kind))

	switch p.Kind {
	case PrincipalOrigin:
		return nil
	case PrincipalStandard, PrincipalContract:
	default:
		return xerrors.Errorf("unknown principal kind %d", p.Kind)
	}

	decoded, err := address.Decode(p.Address)
	if err != nil {
		return xerrors.Errorf("principal: %v", err)
	}

	buf.WriteByte(byte(decoded.Version))
	buf.Write(decoded.Hash[:])

	if p.Kind == PrincipalContract {
		return writeName(buf, p.Contract)
	}

	return nil
}

// PostCondition is a condition on the assets transferred by the transaction
// that must hold for the transaction to be accepted.
type PostCondition interface {
	fmt.Stringer

	encode(buf *bytes.Buffer) error
}

const assetSTX byte = 0x00

// STXPostCondition limits the amount of micro-STX transferred by a principal.
type STXPostCondition struct {
	Principal Principal
	Code      ConditionCode
	Amount    uint64
}

// NewSTXPostCondition creates a post-condition on the STX transferred by the
// principal.
func NewSTXPostCondition(p Principal, code ConditionCode, amount uint64) STXPostCondition {
	return STXPostCondition{
		Principal: p,
		Code:      code,
		Amount:    amount,
	}
}

// String implements fmt.Stringer.
func (c STXPostCondition) String() string {
	return fmt.Sprintf("%v sends %s %d uSTX", c.Principal, c.Code, c.Amount)
}

func (c STXPostCondition) encode(buf *bytes.Buffer) error {
	if c.Code < Equal || c.Code > LessEqual {
		return xerrors.Errorf("invalid condition code %d", byte(c.Code))
	}

	buf.WriteByte(assetSTX)

	err := c.Principal.encode(buf)
	if err != nil {
		return err
	}

	buf.WriteByte(byte(c.Code))
	writeUint64(buf, c.Amount)

	return nil
}
