package tx

import (
	"context"

	"github.com/rs/zerolog"
	"go.flashlend.io/stxdapp"
	"go.flashlend.io/stxdapp/address"
	"go.flashlend.io/stxdapp/clarity"
	"go.flashlend.io/stxdapp/network"
	"golang.org/x/xerrors"
)

// DefaultMinFee is the minimum fee in micro-STX accepted by the nodes.
const DefaultMinFee = 180

// ContractCallOptions are the parameters of a contract call.
type ContractCallOptions struct {
	ContractAddress   address.Address
	ContractName      string
	FunctionName      string
	FunctionArgs      []clarity.Value
	Network           network.Network
	SenderKey         string
	PostConditions    []PostCondition
	PostConditionMode PostConditionMode
	AnchorMode        AnchorMode

	// Fee and Nonce are fetched from the node when nil.
	Fee   *uint64
	Nonce *uint64
}

// Source provides the account and fee information of the chain.
type Source interface {
	Nonce(ctx context.Context, addr address.Address) (uint64, error)
	FeeRate(ctx context.Context) (uint64, error)
}

// Builder creates signed contract-call transactions.
//
// - implements contractcall.Builder
type Builder struct {
	source Source
	minFee uint64
	logger zerolog.Logger
}

// BuilderOption is the type of options to create a builder.
type BuilderOption func(*Builder)

// WithMinFee sets the minimum fee of the transactions.
func WithMinFee(fee uint64) BuilderOption {
	return func(b *Builder) {
		b.minFee = fee
	}
}

// WithBuilderLogger sets the logger of the builder.
func WithBuilderLogger(logger zerolog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a new builder that fetches the nonces and the fee rate
// from the source.
func NewBuilder(source Source, opts ...BuilderOption) *Builder {
	b := &Builder{
		source: source,
		minFee: DefaultMinFee,
		logger: stxdapp.Logger.With().Str("component", "tx-builder").Logger(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// MakeContractCall builds and signs a contract call. The key is only used
// for the duration of the call.
func (b *Builder) MakeContractCall(ctx context.Context, opts ContractCallOptions) (*Transaction, error) {
	key, err := ParsePrivateKey(opts.SenderKey)
	if err != nil {
		return nil, xerrors.Errorf("sender key: %v", err)
	}

	contract, err := address.Decode(opts.ContractAddress)
	if err != nil {
		return nil, xerrors.Errorf("contract: %v", err)
	}

	anchor := opts.AnchorMode
	if anchor == 0 {
		anchor = AnchorAny
	}

	pcMode := opts.PostConditionMode
	if pcMode == 0 {
		pcMode = PostConditionDeny
	}

	tx := &Transaction{
		Version: opts.Network.TxVersion,
		ChainID: opts.Network.ChainID,
		Auth: SpendingCondition{
			Signer:     key.Signer(),
			Compressed: key.Compressed(),
		},
		AnchorMode:        anchor,
		PostConditionMode: pcMode,
		PostConditions:    opts.PostConditions,
		Payload: ContractCall{
			Contract: contract,
			Name:     opts.ContractName,
			Function: opts.FunctionName,
			Args:     opts.FunctionArgs,
		},
	}

	sender, err := key.Address(opts.Network.SingleSigVersion())
	if err != nil {
		return nil, xerrors.Errorf("sender address: %v", err)
	}

	if opts.Nonce != nil {
		tx.Auth.Nonce = *opts.Nonce
	} else {
		tx.Auth.Nonce, err = b.source.Nonce(ctx, sender)
		if err != nil {
			return nil, xerrors.Errorf("failed to fetch nonce: %w", err)
		}
	}

	if opts.Fee != nil {
		tx.Auth.Fee = *opts.Fee
	} else {
		tx.Auth.Fee, err = b.estimateFee(ctx, tx)
		if err != nil {
			return nil, xerrors.Errorf("failed to estimate fee: %w", err)
		}
	}

	err = tx.Sign(key)
	if err != nil {
		return nil, xerrors.Errorf("failed to sign: %v", err)
	}

	b.logger.Debug().
		Stringer("sender", sender).
		Str("function", opts.FunctionName).
		Uint64("nonce", tx.Auth.Nonce).
		Uint64("fee", tx.Auth.Fee).
		Msg("contract call built")

	return tx, nil
}

// estimateFee returns the fee rate multiplied by the size of the
// transaction, at least the minimum fee.
func (b *Builder) estimateFee(ctx context.Context, tx *Transaction) (uint64, error) {
	raw, err := tx.Serialize()
	if err != nil {
		return 0, xerrors.Errorf("couldn't serialize: %v", err)
	}

	rate, err := b.source.FeeRate(ctx)
	if err != nil {
		return 0, err
	}

	fee := rate * uint64(len(raw))
	if fee < b.minFee {
		fee = b.minFee
	}

	return fee, nil
}
