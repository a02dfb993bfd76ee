// Package prediction implements the actions of the prediction-market dApp:
// the creation of markets, the wagers and the payouts.
//
// Documentation Last Review: 19.10.2026
//
package prediction

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.flashlend.io/stxdapp"
	"go.flashlend.io/stxdapp/address"
	"go.flashlend.io/stxdapp/api"
	"go.flashlend.io/stxdapp/clarity"
	"go.flashlend.io/stxdapp/contractcall"
	"go.flashlend.io/stxdapp/internal/submit"
	"go.flashlend.io/stxdapp/network"
	"go.flashlend.io/stxdapp/session"
	"go.flashlend.io/stxdapp/tx"
	"golang.org/x/xerrors"
)

const (
	// MinChoices is the minimum number of choices of a market.
	MinChoices = 2
	// MaxChoices is the maximum number of choices of a market.
	MaxChoices = 20
)

// Reader is the read access to the contract.
type Reader interface {
	CallReadOnly(ctx context.Context, contract address.Address, name, function string,
		sender address.Address, args ...clarity.Value) (clarity.Value, error)
}

// Prediction is a market listed by the contract.
type Prediction struct {
	ID           uint64
	Query        string
	ClosingBlock uint64
}

// Market is the description of a new market.
type Market struct {
	Query        string
	Details      string
	ClosingBlock uint64
	Choices      []string
}

// Service implements the actions of the markets for the signed-in user.
type Service struct {
	contract  *contractcall.Contract
	submitter *submit.Submitter
	reader    Reader
	resolver  session.Resolver
	logger    zerolog.Logger
}

// Option is the type of options to create a service.
type Option func(*Service)

// WithContract sets the contract of the markets. Without it, the default
// contract of the executor is used.
func WithContract(c contractcall.Contract) Option {
	return func(s *Service) {
		s.contract = &c
	}
}

// WithResolver sets the resolver of the address of the user.
func WithResolver(r session.Resolver) Option {
	return func(s *Service) {
		s.resolver = r
	}
}

// WithLogger sets the logger of the service.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new service of the markets.
func NewService(submitter *submit.Submitter, reader Reader, opts ...Option) *Service {
	s := &Service{
		submitter: submitter,
		reader:    reader,
		resolver:  session.NewResolver(session.WithPreferredNetwork(network.MainnetName)),
		logger:    stxdapp.Logger.With().Str("component", "prediction").Logger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateMarket submits a new market. Blank choices are ignored.
func (s *Service) CreateMarket(ctx context.Context, sess *session.Session, m Market) (submit.Submission, error) {
	account, err := s.account(sess)
	if err != nil {
		return submit.Submission{}, err
	}

	query := strings.TrimSpace(m.Query)
	details := strings.TrimSpace(m.Details)

	switch {
	case query == "":
		return submit.Submission{}, contractcall.InvalidInput("Please enter a query")
	case details == "":
		return submit.Submission{}, contractcall.InvalidInput("Please enter the details")
	case m.ClosingBlock == 0:
		return submit.Submission{}, contractcall.InvalidInput("Please enter a closing block")
	}

	choices := clarity.List{}

	for _, choice := range m.Choices {
		choice = strings.TrimSpace(choice)
		if choice != "" {
			choices = append(choices, clarity.StringUTF8(choice))
		}
	}

	if len(choices) < MinChoices {
		return submit.Submission{}, contractcall.InvalidInput("Please enter at least %d choices", MinChoices)
	}

	if len(choices) > MaxChoices {
		return submit.Submission{}, contractcall.InvalidInput("A market has at most %d choices", MaxChoices)
	}

	req := contractcall.Request{
		Contract: s.contract,
		Function: "create-prediction-market",
		Args: []clarity.Value{
			clarity.StringUTF8(query),
			clarity.StringUTF8(details),
			clarity.NewUInt(m.ClosingBlock),
			choices,
		},
		PostConditions: []tx.PostCondition{},
		Sender:         account,
	}

	return s.submitter.Submit(ctx, sess, "create-market", "", req)
}

// PlaceWager wagers the amount of STX on the choice of the market. The
// transfer of the user is limited to the amount by a post-condition.
func (s *Service) PlaceWager(ctx context.Context, sess *session.Session, id, choice uint64,
	amount float64) (submit.Submission, error) {

	account, err := s.account(sess)
	if err != nil {
		return submit.Submission{}, err
	}

	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return submit.Submission{}, contractcall.InvalidInput("Please enter a valid wager amount")
	}

	// Amounts from 2^64 micro-STX do not fit in a uint.
	micro := math.Floor(amount * api.MicroPerSTX)
	if micro < 1 || micro >= float64(1<<64) {
		return submit.Submission{}, contractcall.InvalidInput("Please enter a valid wager amount")
	}

	req := contractcall.Request{
		Contract: s.contract,
		Function: "place-wager",
		Args:     []clarity.Value{clarity.NewUInt(id), clarity.NewUInt(choice), clarity.NewUInt(uint64(micro))},
		PostConditions: []tx.PostCondition{
			tx.NewSTXPostCondition(tx.Standard(account), tx.LessEqual, uint64(micro)),
		},
		Sender: account,
	}

	amountText := strconv.FormatFloat(amount, 'f', -1, 64)

	return s.submitter.Submit(ctx, sess, "place-wager", amountText, req)
}

// ClaimPayout claims the payout of a closed market, or the refund of the
// wagers of a cancelled one.
func (s *Service) ClaimPayout(ctx context.Context, sess *session.Session, id uint64) (submit.Submission, error) {
	account, err := s.account(sess)
	if err != nil {
		return submit.Submission{}, err
	}

	req := contractcall.Request{
		Contract: s.contract,
		Function: "claim-payout-or-refund",
		Args:     []clarity.Value{clarity.NewUInt(id)},
		// The payout is sent by the contract.
		PostConditions: []tx.PostCondition{},
		Sender:         account,
	}

	return s.submitter.Submit(ctx, sess, "claim-payout", "", req)
}

// ListPredictions returns the markets of the contract, as seen by the
// sender.
func (s *Service) ListPredictions(ctx context.Context, sender address.Address) ([]Prediction, error) {
	const function = "get-all-predictions"

	if s.contract == nil || s.contract.IsZero() {
		return nil, contractcall.ErrContractUninitialized
	}

	value, err := s.reader.CallReadOnly(ctx, s.contract.Address, s.contract.Name, function, sender)
	if err != nil {
		return nil, xerrors.Errorf("failed to fetch predictions: %w", err)
	}

	inner, err := clarity.Unwrap(value)
	if err != nil {
		return nil, xerrors.Errorf("%s: %v", function, err)
	}

	list, ok := inner.(clarity.List)
	if !ok {
		return nil, xerrors.Errorf("%s: expected list but got %v", function, inner)
	}

	predictions := make([]Prediction, len(list))

	for i, elem := range list {
		p, err := predictionOf(elem)
		if err != nil {
			return nil, xerrors.Errorf("%s: prediction %d: %v", function, i, err)
		}

		predictions[i] = p
	}

	return predictions, nil
}

// Account returns the address of the user of the session.
func (s *Service) Account(sess *session.Session) (address.Address, error) {
	return s.account(sess)
}

func (s *Service) account(sess *session.Session) (address.Address, error) {
	if !sess.SignedIn() {
		return "", contractcall.ErrNotSignedIn
	}

	account, found := s.resolver.Resolve(sess)
	if !found {
		return "", session.ErrAddressNotFound
	}

	return account, nil
}

func predictionOf(v clarity.Value) (Prediction, error) {
	tuple, ok := v.(clarity.Tuple)
	if !ok {
		return Prediction{}, xerrors.Errorf("expected tuple but got %v", v)
	}

	var p Prediction
	var err error

	p.ID, err = uintField(tuple, "id")
	if err != nil {
		return p, err
	}

	p.ClosingBlock, err = uintField(tuple, "closing-block")
	if err != nil {
		return p, err
	}

	switch query := tuple["query"].(type) {
	case clarity.StringUTF8:
		p.Query = string(query)
	case clarity.StringASCII:
		p.Query = string(query)
	case nil:
		return p, xerrors.New("missing field 'query'")
	default:
		return p, xerrors.Errorf("field 'query': expected string but got %v", query)
	}

	return p, nil
}

func uintField(t clarity.Tuple, key string) (uint64, error) {
	field, found := t[key]
	if !found {
		return 0, xerrors.Errorf("missing field '%s'", key)
	}

	n, err := clarity.AsUint64(field)
	if err != nil {
		return 0, xerrors.Errorf("field '%s': %v", key, err)
	}

	return n, nil
}
