// Package network defines the parameters of the Stacks networks the clients
// can talk to.
package network

import (
	"strings"

	"go.flashlend.io/stxdapp/address"
	"golang.org/x/xerrors"
)

const (
	// TestnetName is the name of the test network.
	TestnetName = "testnet"
	// MainnetName is the name of the main network.
	MainnetName = "mainnet"
)

// Network gathers the parameters required to reach a node and to build
// transactions valid for its chain.
type Network struct {
	Name       string
	CoreAPIURL string
	ChainID    uint32
	TxVersion  byte
}

// Testnet is the public test network.
var Testnet = Network{
	Name:       TestnetName,
	CoreAPIURL: "https://api.testnet.hiro.so",
	ChainID:    0x80000000,
	TxVersion:  0x80,
}

// Mainnet is the public main network.
var Mainnet = Network{
	Name:       MainnetName,
	CoreAPIURL: "https://api.hiro.so",
	ChainID:    0x00000001,
	TxVersion:  0x00,
}

// FromName returns the network with the given name.
func FromName(name string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case TestnetName:
		return Testnet, nil
	case MainnetName:
		return Mainnet, nil
	default:
		return Network{}, xerrors.Errorf("unknown network '%s'", name)
	}
}

// WithAPIURL returns a copy of the network that uses a different node.
func (n Network) WithAPIURL(url string) Network {
	n.CoreAPIURL = strings.TrimRight(url, "/")
	return n
}

// IsMainnet returns true for the main network.
func (n Network) IsMainnet() bool {
	return n.TxVersion == Mainnet.TxVersion
}

// SingleSigVersion returns the address version of single-sig accounts on this
// network.
func (n Network) SingleSigVersion() address.Version {
	if n.IsMainnet() {
		return address.MainnetSingleSig
	}

	return address.TestnetSingleSig
}
