package tx

import (
	"bytes"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"go.flashlend.io/stxdapp/address"
	"golang.org/x/xerrors"
)

// compactRecoveryBase is the offset of the recovery code in a compact
// signature, and compactCompressedFlag is added for compressed keys.
const (
	compactRecoveryBase   = 27
	compactCompressedFlag = 4
)

// PrivateKey is the key of a single-sig account.
type PrivateKey struct {
	key        *secp256k1.PrivateKey
	compressed bool
}

// ParsePrivateKey parses a hexadecimal private key. A 33-bytes key ending
// with 0x01 uses the compressed public key, a 32-bytes key the uncompressed
// one.
func ParsePrivateKey(s string) (PrivateKey, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return PrivateKey{}, xerrors.Errorf("invalid private key: %v", err)
	}

	compressed := false

	switch {
	case len(data) == 33 && data[32] == 0x01:
		compressed = true
		data = data[:32]
	case len(data) == 32:
	default:
		return PrivateKey{}, xerrors.Errorf("invalid private key length %d", len(data))
	}

	key := secp256k1.PrivKeyFromBytes(data)
	if key.Key.IsZero() {
		return PrivateKey{}, xerrors.New("invalid private key: zero scalar")
	}

	return PrivateKey{key: key, compressed: compressed}, nil
}

// PublicKey returns the serialized public key.
func (k PrivateKey) PublicKey() []byte {
	if k.compressed {
		return k.key.PubKey().SerializeCompressed()
	}

	return k.key.PubKey().SerializeUncompressed()
}

// Compressed returns true if the compressed public key is used.
func (k PrivateKey) Compressed() bool {
	return k.compressed
}

// Signer returns the hash of the public key identifying the account.
func (k PrivateKey) Signer() [address.HashLength]byte {
	return address.Hash160(k.PublicKey())
}

// Address returns the address of the account for the given version.
func (k PrivateKey) Address(version address.Version) (address.Address, error) {
	return address.FromPublicKey(version, k.PublicKey())
}

// Sign signs the transaction in place with the key. The signer of the
// transaction must match the key.
func (t *Transaction) Sign(k PrivateKey) error {
	if k.Signer() != t.Auth.Signer {
		return xerrors.New("key does not match the signer")
	}

	presign, err := t.presignHash()
	if err != nil {
		return err
	}

	compact := ecdsa.SignCompact(k.key, presign, k.compressed)

	// The compact format is [recovery, r, s] while the wire format expects
	// [v, r, s] with v the bare recovery id.
	t.Auth.Signature[0] = compact[0] - compactRecoveryBase
	if k.compressed {
		t.Auth.Signature[0] -= compactCompressedFlag
	}

	copy(t.Auth.Signature[1:], compact[1:])

	return nil
}

// Verify recovers the public key from the signature and checks that it
// matches the signer.
func (t *Transaction) Verify() error {
	presign, err := t.presignHash()
	if err != nil {
		return err
	}

	compact := make([]byte, signatureLength)
	compact[0] = t.Auth.Signature[0] + compactRecoveryBase
	if t.Auth.Compressed {
		compact[0] += compactCompressedFlag
	}

	copy(compact[1:], t.Auth.Signature[1:])

	pubkey, compressed, err := ecdsa.RecoverCompact(compact, presign)
	if err != nil {
		return xerrors.Errorf("invalid signature: %v", err)
	}

	serialized := pubkey.SerializeUncompressed()
	if compressed {
		serialized = pubkey.SerializeCompressed()
	}

	if address.Hash160(serialized) != t.Auth.Signer {
		return xerrors.New("signature does not match the signer")
	}

	return nil
}

// initialSighash returns the hash of the transaction without the
// authorization fields that depend on the signature.
func (t *Transaction) initialSighash() ([]byte, error) {
	cleared := *t
	cleared.Auth.Nonce = 0
	cleared.Auth.Fee = 0
	cleared.Auth.Signature = [signatureLength]byte{}

	raw, err := cleared.Serialize()
	if err != nil {
		return nil, xerrors.Errorf("couldn't serialize: %v", err)
	}

	h := sha512.Sum512_256(raw)

	return h[:], nil
}

func (t *Transaction) presignHash() ([]byte, error) {
	sighash, err := t.initialSighash()
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	buf.Write(sighash)
	buf.WriteByte(authStandard)

	var b [8]byte
	binary.BigEndian.PutUint64(b[:], t.Auth.Fee)
	buf.Write(b[:])
	binary.BigEndian.PutUint64(b[:], t.Auth.Nonce)
	buf.Write(b[:])

	h := sha512.Sum512_256(buf.Bytes())

	return h[:], nil
}
