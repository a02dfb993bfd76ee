package flashlend

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.flashlend.io/stxdapp/address"
	"go.flashlend.io/stxdapp/api"
	"golang.org/x/xerrors"
)

// DefaultHistoryLimit is the number of transactions fetched by default.
const DefaultHistoryLimit = 20

const explorerURL = "https://explorer.stacks.co"

// Entry is a transaction of the history of an account.
type Entry struct {
	TxID   string
	Type   string
	Status api.TxStatus
	Amount float64
	Sender string
	Time   time.Time
	// Local is true when the transaction is only known by the local
	// journal, usually because the indexer has not seen it yet.
	Local bool
}

// TypeLabel returns the human-readable label of a transaction type.
func TypeLabel(kind string) string {
	switch kind {
	case "token_transfer":
		return "Token Transfer"
	case "contract_call":
		return "Contract Call"
	case "smart_contract":
		return "Smart Contract"
	}

	runes := []rune(strings.ReplaceAll(kind, "_", " "))
	for i, r := range runes {
		if isWordRune(r) && (i == 0 || !isWordRune(runes[i-1])) {
			runes[i] = unicode.ToUpper(r)
		}
	}

	return string(runes)
}

func isWordRune(r rune) bool {
	return r == '_' || r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// ExplorerURL returns the link to the page of the address on the explorer.
func ExplorerURL(addr address.Address, network string) string {
	return fmt.Sprintf("%s/address/%s?chain=%s", explorerURL, addr, network)
}

// ExplorerURL returns the link to the page of the account in the explorer of
// the network of the service.
func (s *Service) ExplorerURL(addr address.Address) string {
	return ExplorerURL(addr, s.network)
}

// Transactions returns the most recent transactions of the account, newest
// first. Transactions of the local journal not yet indexed come first.
func (s *Service) Transactions(ctx context.Context, account address.Address, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	txs, err := s.reader.Transactions(ctx, account, limit)
	if err != nil {
		return nil, xerrors.Errorf("failed to fetch transactions: %w", err)
	}

	known := make(map[string]struct{}, len(txs))
	entries := []Entry{}

	for _, tx := range txs {
		known[tx.ID] = struct{}{}
		entries = append(entries, entryOf(tx))
	}

	if s.history == nil {
		return entries, nil
	}

	records, err := s.history.List(account, limit)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read the local history")
		return entries, nil
	}

	local := []Entry{}

	for _, rec := range records {
		if _, found := known[rec.TxID]; found {
			continue
		}

		amount, _ := strconv.ParseFloat(rec.Amount, 64)

		local = append(local, Entry{
			TxID:   rec.TxID,
			Type:   TypeLabel("contract_call"),
			Status: rec.Status,
			Amount: amount,
			Sender: rec.Sender,
			Time:   rec.CreatedAt,
			Local:  true,
		})
	}

	entries = append(local, entries...)
	if len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

func entryOf(tx api.Transaction) Entry {
	entry := Entry{
		TxID:   tx.ID,
		Type:   TypeLabel(tx.Type),
		Status: tx.Status,
		Sender: tx.Sender,
		Time:   tx.BlockTime,
	}

	if tx.TokenTransfer != nil {
		micro, err := api.ParseMicro(tx.TokenTransfer.Amount)
		if err == nil {
			entry.Amount = api.Balance{Micro: micro}.STX()
		}
	}

	return entry
}
