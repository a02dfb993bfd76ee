// Package contractcall implements the executor of contract calls. It checks
// that a call can be made, builds and signs the transaction with the key of
// the signed-in session, broadcasts it and exposes the loading and error
// state of the last call to the observers.
//
// Documentation Last Review: 19.10.2026
//
package contractcall

import (
	"fmt"
	"strings"

	"go.flashlend.io/stxdapp/address"
	"go.flashlend.io/stxdapp/api"
	"go.flashlend.io/stxdapp/clarity"
	"go.flashlend.io/stxdapp/session"
	"go.flashlend.io/stxdapp/tx"
	"golang.org/x/xerrors"
)

var (
	// ErrNotSignedIn is returned when there is no active session.
	ErrNotSignedIn = xerrors.New("user not signed in")

	// ErrContractUninitialized is returned when no contract is supplied.
	ErrContractUninitialized = xerrors.New("contract is not initialized")

	// ErrContractNotFound is returned when the node does not know the
	// contract.
	ErrContractNotFound = xerrors.New("contract not found")
)

// InvalidInputError is returned when the input of an action is rejected
// before any request is sent.
type InvalidInputError struct {
	Message string
}

// InvalidInput creates a new invalid input error.
func InvalidInput(format string, args ...interface{}) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}

// Error implements error.
func (e *InvalidInputError) Error() string {
	return e.Message
}

// BroadcastError is returned when the node rejects a transaction.
type BroadcastError struct {
	TxID   string
	Reason string
	Err    string
}

// Error implements error.
func (e *BroadcastError) Error() string {
	if e.Reason == "" {
		return e.Err
	}

	return fmt.Sprintf("%s: %s", e.Err, e.Reason)
}

// Contract is the reference of a deployed contract.
type Contract struct {
	Address address.Address
	Name    string
}

// ParseContract parses a contract identifier "ADDR.name".
func ParseContract(id string) (Contract, error) {
	addr, name, found := strings.Cut(strings.TrimSpace(id), ".")
	if !found || name == "" {
		return Contract{}, xerrors.Errorf("invalid contract '%s': expected ADDR.name", id)
	}

	if len(name) > clarity.MaxNameLength {
		return Contract{}, xerrors.Errorf("invalid contract '%s': name too long", id)
	}

	_, err := address.Decode(address.Address(addr))
	if err != nil {
		return Contract{}, xerrors.Errorf("invalid contract '%s': %v", id, err)
	}

	return Contract{Address: address.Address(addr), Name: name}, nil
}

// IsZero returns true if the contract is not fully defined.
func (c Contract) IsZero() bool {
	return c.Address == "" || c.Name == ""
}

// String implements fmt.Stringer.
func (c Contract) String() string {
	return c.Address.String() + "." + c.Name
}

// Request is the description of a contract call. Empty fields are replaced
// by the defaults of the executor.
type Request struct {
	Contract       *Contract
	Function       string
	Args           []clarity.Value
	PostConditions []tx.PostCondition

	// Sender is the address of the user when the caller already resolved
	// it. Otherwise the executor resolves it from the session.
	Sender address.Address
}

// Result is the outcome of a broadcast transaction.
type Result struct {
	TxID     string
	Status   api.TxStatus
	Contract Contract
	Function string
	Sender   address.Address

	// Replayed is true when the result belongs to an identical request that
	// was already broadcast. The caller must not repeat its side effects.
	Replayed bool
}

// StateEvent is sent to the observers of the executor every time the
// loading flag or the error changes.
type StateEvent struct {
	Loading bool
	Err     error
}

// kindOf returns the label of the error used in the metrics.
func kindOf(err error) string {
	var invalid *InvalidInputError
	var network *api.NetworkError
	var broadcast *BroadcastError

	switch {
	case xerrors.Is(err, ErrNotSignedIn), xerrors.Is(err, session.ErrAddressNotFound):
		return "not-signed-in"
	case xerrors.Is(err, ErrContractUninitialized):
		return "uninitialized"
	case xerrors.Is(err, ErrContractNotFound):
		return "not-found"
	case xerrors.As(err, &invalid):
		return "invalid-input"
	case xerrors.As(err, &broadcast):
		return "broadcast"
	case xerrors.As(err, &network):
		return "network"
	default:
		return "other"
	}
}
