package api

import (
	"context"
	"fmt"
	"math/big"
	"net/http"

	"go.flashlend.io/stxdapp/address"
	"golang.org/x/xerrors"
)

// MicroPerSTX is the number of micro-STX in one STX.
const MicroPerSTX = 1_000_000

// Balance is the STX balance of an account.
type Balance struct {
	Micro *big.Int
}

// STX returns the balance in STX.
func (b Balance) STX() float64 {
	if b.Micro == nil {
		return 0
	}

	f, _ := new(big.Rat).SetFrac(b.Micro, big.NewInt(MicroPerSTX)).Float64()

	return f
}

// String implements fmt.Stringer. It returns the balance in STX with the six
// decimals.
func (b Balance) String() string {
	return FormatSTX(b.Micro)
}

// FormatSTX formats an amount of micro-STX as STX.
func FormatSTX(micro *big.Int) string {
	if micro == nil {
		return "0.000000"
	}

	q, r := new(big.Int).QuoRem(micro, big.NewInt(MicroPerSTX), new(big.Int))
	if micro.Sign() < 0 {
		return fmt.Sprintf("-%s.%06d", new(big.Int).Neg(q), new(big.Int).Neg(r).Int64())
	}

	return fmt.Sprintf("%s.%06d", q, r.Int64())
}

// ParseMicro parses an amount of micro-STX as sent by the API.
func ParseMicro(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, xerrors.Errorf("invalid amount '%s'", s)
	}

	return v, nil
}

type balancesResponse struct {
	STX *struct {
		Balance *string `json:"balance"`
	} `json:"stx"`
}

// Balance fetches the STX balance of the address.
func (c *Client) Balance(ctx context.Context, addr address.Address) (Balance, error) {
	const op = "balance"

	var resp balancesResponse

	err := c.getJSON(ctx, op, "/extended/v1/address/"+escape(addr.String())+"/balances", &resp)
	if err != nil {
		return Balance{}, err
	}

	if resp.STX == nil || resp.STX.Balance == nil {
		return Balance{}, &NetworkError{Op: op, Err: xerrors.New("Invalid balance data structure")}
	}

	micro, err := ParseMicro(*resp.STX.Balance)
	if err != nil {
		return Balance{}, &NetworkError{Op: op, Err: err}
	}

	return Balance{Micro: micro}, nil
}

type nonceResponse struct {
	PossibleNextNonce *uint64 `json:"possible_next_nonce"`
}

// Nonce returns the next nonce to use for a transaction sent by the address.
func (c *Client) Nonce(ctx context.Context, addr address.Address) (uint64, error) {
	const op = "nonce"

	var resp nonceResponse

	err := c.getJSON(ctx, op, "/extended/v1/address/"+escape(addr.String())+"/nonces", &resp)
	if err != nil {
		return 0, err
	}

	if resp.PossibleNextNonce == nil {
		return 0, &NetworkError{Op: op, Err: xerrors.New("missing next nonce")}
	}

	return *resp.PossibleNextNonce, nil
}

// FeeRate returns the fee rate in micro-STX per byte estimated by the node.
func (c *Client) FeeRate(ctx context.Context) (uint64, error) {
	const op = "fee-rate"

	var rate uint64

	err := c.getJSON(ctx, op, "/v2/fees/transfer", &rate)
	if err != nil {
		return 0, err
	}

	return rate, nil
}

// ContractExists returns true when the node knows the interface of the
// contract. Any non-success answer means the contract is not deployed, only
// transport failures are returned as errors.
func (c *Client) ContractExists(ctx context.Context, addr address.Address, name string) (bool, error) {
	path := "/v2/contracts/interface/" + escape(addr.String()) + "/" + escape(name)

	_, status, err := c.do(ctx, "contract-interface", http.MethodGet, path, nil, "")
	if err != nil {
		return false, err
	}

	return isSuccess(status), nil
}
