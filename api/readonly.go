package api

import (
	"context"

	"go.flashlend.io/stxdapp/address"
	"go.flashlend.io/stxdapp/clarity"
	"golang.org/x/xerrors"
)

type readOnlyRequest struct {
	Sender    string   `json:"sender"`
	Arguments []string `json:"arguments"`
}

type readOnlyResponse struct {
	Okay   bool   `json:"okay"`
	Result string `json:"result"`
	Cause  string `json:"cause"`
}

// CallReadOnly evaluates a read-only function of a contract and returns the
// decoded value.
func (c *Client) CallReadOnly(ctx context.Context, contract address.Address, name, function string,
	sender address.Address, args ...clarity.Value) (clarity.Value, error) {

	const op = "call-read"

	req := readOnlyRequest{
		Sender:    sender.String(),
		Arguments: make([]string, len(args)),
	}

	for i, arg := range args {
		hex, err := clarity.ToHex(arg)
		if err != nil {
			return nil, xerrors.Errorf("argument %d: %v", i, err)
		}

		req.Arguments[i] = hex
	}

	path := "/v2/contracts/call-read/" + escape(contract.String()) + "/" + escape(name) + "/" + escape(function)

	var resp readOnlyResponse

	err := c.postJSON(ctx, op, path, req, &resp)
	if err != nil {
		return nil, err
	}

	if !resp.Okay {
		return nil, xerrors.Errorf("read-only call of '%s' failed: %s", function, resp.Cause)
	}

	value, err := clarity.FromHex(resp.Result)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: xerrors.Errorf("malformed result: %v", err)}
	}

	return value, nil
}
