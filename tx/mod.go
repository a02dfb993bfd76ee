// Package tx builds, serializes and signs Stacks contract-call transactions.
//
// Only single-signature accounts are supported. A transaction is signed by
// computing the sighash of the transaction with a cleared authorization,
// extending it with the fee and the nonce, and producing a recoverable
// secp256k1 signature over the result.
//
// Documentation Last Review: 19.10.2026
//
package tx

import (
	"bytes"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"

	"go.flashlend.io/stxdapp/address"
	"go.flashlend.io/stxdapp/clarity"
	"golang.org/x/xerrors"
)

// AnchorMode defines how a transaction can be included in the chain.
type AnchorMode byte

const (
	AnchorOnChainOnly  AnchorMode = 0x01
	AnchorOffChainOnly AnchorMode = 0x02
	AnchorAny          AnchorMode = 0x03
)

// PostConditionMode defines what happens to asset transfers that are not
// covered by a post-condition.
type PostConditionMode byte

const (
	// PostConditionAllow allows transfers that are not covered.
	PostConditionAllow PostConditionMode = 0x01
	// PostConditionDeny aborts the transaction if any transfer is not
	// covered.
	PostConditionDeny PostConditionMode = 0x02
)

const (
	authStandard    byte = 0x04
	hashModeP2PKH   byte = 0x00
	payloadCall     byte = 0x02
	keyCompressed   byte = 0x00
	keyUncompressed byte = 0x01
)

const (
	signatureLength = 65
	maxContractName = clarity.MaxNameLength
)

// SpendingCondition is the authorization of a single-sig account.
type SpendingCondition struct {
	Signer     [address.HashLength]byte
	Nonce      uint64
	Fee        uint64
	Compressed bool
	Signature  [signatureLength]byte
}

// ContractCall is the payload calling a public function.
type ContractCall struct {
	Contract address.Decoded
	Name     string
	Function string
	Args     []clarity.Value
}

// Transaction is a contract-call transaction.
type Transaction struct {
	Version           byte
	ChainID           uint32
	Auth              SpendingCondition
	AnchorMode        AnchorMode
	PostConditionMode PostConditionMode
	PostConditions    []PostCondition
	Payload           ContractCall
}

// Serialize returns the wire representation of the transaction.
func (t *Transaction) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)

	buf.WriteByte(t.Version)
	writeUint32(buf, t.ChainID)

	t.Auth.encode(buf)

	buf.WriteByte(byte(t.AnchorMode))
	buf.WriteByte(byte(t.PostConditionMode))

	writeUint32(buf, uint32(len(t.PostConditions)))

	for i, pc := range t.PostConditions {
		err := pc.encode(buf)
		if err != nil {
			return nil, xerrors.Errorf("post-condition %d: %v", i, err)
		}
	}

	err := t.Payload.encode(buf)
	if err != nil {
		return nil, xerrors.Errorf("payload: %v", err)
	}

	return buf.Bytes(), nil
}

// TxID returns the identifier of the transaction with the 0x prefix.
func (t *Transaction) TxID() (string, error) {
	raw, err := t.Serialize()
	if err != nil {
		return "", xerrors.Errorf("couldn't serialize: %v", err)
	}

	return txid(raw), nil
}

// Sender returns the address of the account paying for the transaction.
func (t *Transaction) Sender() (address.Address, error) {
	version := address.TestnetSingleSig
	if t.Version == 0x00 {
		version = address.MainnetSingleSig
	}

	return address.Encode(version, t.Auth.Signer)
}

func txid(raw []byte) string {
	h := sha512.Sum512_256(raw)
	return "0x" + hex.EncodeToString(h[:])
}

func (c SpendingCondition) encode(buf *bytes.Buffer) {
	buf.WriteByte(authStandard)
	buf.WriteByte(hashModeP2PKH)
	buf.Write(c.Signer[:])
	writeUint64(buf, c.Nonce)
	writeUint64(buf, c.Fee)

	if c.Compressed {
		buf.WriteByte(keyCompressed)
	} else {
		buf.WriteByte(keyUncompressed)
	}

	buf.Write(c.Signature[:])
}

func (p ContractCall) encode(buf *bytes.Buffer) error {
	buf.WriteByte(payloadCall)
	buf.WriteByte(byte(p.Contract.Version))
	buf.Write(p.Contract.Hash[:])

	err := writeName(buf, p.Name)
	if err != nil {
		return xerrors.Errorf("contract name: %v", err)
	}

	err = writeName(buf, p.Function)
	if err != nil {
		return xerrors.Errorf("function name: %v", err)
	}

	writeUint32(buf, uint32(len(p.Args)))

	for i, arg := range p.Args {
		data, err := clarity.Serialize(arg)
		if err != nil {
			return xerrors.Errorf("argument %d: %v", i, err)
		}

		buf.Write(data)
	}

	return nil
}

func writeName(buf *bytes.Buffer, name string) error {
	if name == "" || len(name) > maxContractName {
		return xerrors.Errorf("invalid name '%s'", name)
	}

	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)

	return nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
