package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.flashlend.io/stxdapp/address"
	"golang.org/x/xerrors"
)

// TxStatus is the status of a transaction as reported by the indexer.
type TxStatus string

const (
	// StatusUnknown is used when the indexer does not know the transaction
	// yet.
	StatusUnknown TxStatus = ""

	StatusPending              TxStatus = "pending"
	StatusSuccess              TxStatus = "success"
	StatusAbortByResponse      TxStatus = "abort_by_response"
	StatusAbortByPostCondition TxStatus = "abort_by_post_condition"
)

// Terminal returns true if the status cannot change anymore.
func (s TxStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusAbortByResponse, StatusAbortByPostCondition:
		return true
	}

	return strings.HasPrefix(string(s), "dropped_")
}

// Success returns true if the transaction has been confirmed without error.
func (s TxStatus) Success() bool {
	return s == StatusSuccess
}

// String implements fmt.Stringer.
func (s TxStatus) String() string {
	if s == StatusUnknown {
		return "unknown"
	}

	return string(s)
}

// Transaction is the summary of a transaction returned by the indexer.
type Transaction struct {
	ID        string    `json:"tx_id"`
	Type      string    `json:"tx_type"`
	Status    TxStatus  `json:"tx_status"`
	Sender    string    `json:"sender_address"`
	Nonce     uint64    `json:"nonce"`
	Fee       string    `json:"fee_rate"`
	BlockTime time.Time `json:"-"`

	BurnBlockTimeISO string `json:"burn_block_time_iso"`

	ContractCall *struct {
		ContractID string `json:"contract_id"`
		Function   string `json:"function_name"`
	} `json:"contract_call,omitempty"`

	TokenTransfer *struct {
		Recipient string `json:"recipient_address"`
		Amount    string `json:"amount"`
	} `json:"token_transfer,omitempty"`
}

// Function returns the name of the called function, or an empty string if
// the transaction is not a contract call.
func (tx Transaction) Function() string {
	if tx.ContractCall == nil {
		return ""
	}

	return tx.ContractCall.Function
}

type txResponse struct {
	Transaction
	Error string `json:"error"`
}

// TxStatus returns the status of the transaction. A transaction not yet
// known by the indexer has the unknown status.
func (c *Client) TxStatus(ctx context.Context, txid string) (TxStatus, error) {
	const op = "tx-status"

	data, status, err := c.do(ctx, op, http.MethodGet, "/extended/v1/tx/"+escape(txid), nil, "")
	if err != nil {
		return StatusUnknown, err
	}

	if status == http.StatusNotFound {
		return StatusUnknown, nil
	}

	var resp txResponse

	err = decodeResponse(op, data, status, &resp)
	if err != nil {
		return StatusUnknown, err
	}

	return resp.Status, nil
}

type transactionsResponse struct {
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
	Total   int           `json:"total"`
	Results []Transaction `json:"results"`
}

// Transactions returns the most recent transactions of the address.
func (c *Client) Transactions(ctx context.Context, addr address.Address, limit int) ([]Transaction, error) {
	const op = "transactions"

	path := "/extended/v1/address/" + escape(addr.String()) + "/transactions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var resp transactionsResponse

	err := c.getJSON(ctx, op, path, &resp)
	if err != nil {
		return nil, err
	}

	for i, tx := range resp.Results {
		if tx.BurnBlockTimeISO == "" {
			continue
		}

		t, err := time.Parse(time.RFC3339, tx.BurnBlockTimeISO)
		if err == nil {
			resp.Results[i].BlockTime = t
		}
	}

	return resp.Results, nil
}

// BroadcastResult is the answer of the node to a broadcast. A rejected
// transaction has a non-empty error.
type BroadcastResult struct {
	TxID       string          `json:"txid"`
	Error      string          `json:"error"`
	Reason     string          `json:"reason"`
	ReasonData json.RawMessage `json:"reason_data,omitempty"`
}

// Rejected returns true if the node refused the transaction.
func (r BroadcastResult) Rejected() bool {
	return r.Error != ""
}

// Broadcast sends the signed transaction to the node. A rejection by the node
// is not an error but is reported in the result.
func (c *Client) Broadcast(ctx context.Context, raw []byte) (BroadcastResult, error) {
	const op = "broadcast"

	data, status, err := c.do(ctx, op, http.MethodPost, "/v2/transactions", raw, "application/octet-stream")
	if err != nil {
		return BroadcastResult{}, err
	}

	if isSuccess(status) {
		var txid string

		err = json.Unmarshal(data, &txid)
		if err != nil {
			txid = strings.TrimSpace(string(data))
		}

		return BroadcastResult{TxID: normalizeTxID(txid)}, nil
	}

	var res BroadcastResult

	err = json.Unmarshal(data, &res)
	if err != nil || res.Error == "" {
		return BroadcastResult{}, &NetworkError{Op: op, Status: status, Err: xerrors.New(truncate(data))}
	}

	res.TxID = normalizeTxID(res.TxID)

	return res, nil
}

func normalizeTxID(txid string) string {
	if txid == "" || strings.HasPrefix(txid, "0x") {
		return txid
	}

	return "0x" + txid
}
