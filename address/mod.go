// Package address defines the Stacks account address and the helpers to
// recognize, display and decode it.
//
// An address is the c32check encoding of a version byte and a 20-bytes hash
// of the public key, prefixed with the letter S. The package offers a cheap
// shape check used when scanning untrusted data, and a strict decoder used
// when the address has to be serialized in a transaction.
package address

import (
	"crypto/sha256"
	"strings"

	"golang.org/x/crypto/ripemd160"
	"golang.org/x/xerrors"
)

const (
	// Prefix is the leading character of every Stacks address.
	Prefix = "S"

	// MinLength is the minimal length of a string shaped like an address.
	MinLength = 32
	// MaxLength is the maximal length of a string shaped like an address.
	MaxLength = 42

	// HashLength is the size of the hash embedded in an address.
	HashLength = 20
)

// Version is the address version byte that identifies the network and the
// hash mode of the account.
type Version byte

const (
	// MainnetSingleSig is the version of mainnet P2PKH addresses (SP...).
	MainnetSingleSig Version = 22
	// MainnetMultiSig is the version of mainnet P2SH addresses (SM...).
	MainnetMultiSig Version = 20
	// TestnetSingleSig is the version of testnet P2PKH addresses (ST...).
	TestnetSingleSig Version = 26
	// TestnetMultiSig is the version of testnet P2SH addresses (SN...).
	TestnetMultiSig Version = 21
)

// IsMainnet returns true when the version belongs to the mainnet.
func (v Version) IsMainnet() bool {
	return v == MainnetSingleSig || v == MainnetMultiSig
}

// Address is a Stacks account address in its textual form.
type Address string

// String implements fmt.Stringer.
func (a Address) String() string {
	return string(a)
}

// LooksLike returns true if the string has the shape of an address, that is
// the prefix and a length in [MinLength, MaxLength]. It does not verify the
// checksum.
func LooksLike(s string) bool {
	return strings.HasPrefix(s, Prefix) && len(s) >= MinLength && len(s) <= MaxLength
}

// Format shortens the address for display by keeping the first six and the
// last four characters.
func Format(addr Address) string {
	s := string(addr)
	if s == "" {
		return ""
	}

	if len(s) <= 10 {
		return s
	}

	return s[:6] + "..." + s[len(s)-4:]
}

// Decoded is the binary form of an address.
type Decoded struct {
	Version Version
	Hash    [HashLength]byte
}

// Decode verifies the checksum of the address and returns its binary form.
func Decode(addr Address) (Decoded, error) {
	s := string(addr)

	if !strings.HasPrefix(s, Prefix) {
		return Decoded{}, xerrors.Errorf("address '%s' must start with '%s'", s, Prefix)
	}

	version, data, err := checkDecode(s[1:])
	if err != nil {
		return Decoded{}, xerrors.Errorf("invalid address '%s': %v", s, err)
	}

	if len(data) != HashLength {
		return Decoded{}, xerrors.Errorf("invalid address '%s': hash of length %d",
			s, len(data))
	}

	res := Decoded{Version: Version(version)}
	copy(res.Hash[:], data)

	return res, nil
}

// Encode returns the textual form of the address.
func Encode(version Version, hash [HashLength]byte) (Address, error) {
	str, err := checkEncode(byte(version), hash[:])
	if err != nil {
		return "", xerrors.Errorf("couldn't encode: %v", err)
	}

	return Address(Prefix + str), nil
}

// Hash160 returns RIPEMD160(SHA256(data)).
func Hash160(data []byte) [HashLength]byte {
	sha := sha256.Sum256(data)

	h := ripemd160.New()
	// A hash.Hash never returns an error on write.
	h.Write(sha[:])

	var res [HashLength]byte
	copy(res[:], h.Sum(nil))

	return res
}

// FromPublicKey returns the single-sig address of the serialized public key.
func FromPublicKey(version Version, pubkey []byte) (Address, error) {
	return Encode(version, Hash160(pubkey))
}
