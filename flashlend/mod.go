// Package flashlend implements the actions of the flash-loan dApp: the
// deposits and withdrawals of liquidity, the flash loans, the governance and
// the administration of the protocol, together with the dashboard and the
// history of the transactions of an account.
//
// Documentation Last Review: 19.10.2026
//
package flashlend

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.flashlend.io/stxdapp"
	"go.flashlend.io/stxdapp/address"
	"go.flashlend.io/stxdapp/api"
	"go.flashlend.io/stxdapp/clarity"
	"go.flashlend.io/stxdapp/contractcall"
	"go.flashlend.io/stxdapp/history"
	"go.flashlend.io/stxdapp/internal/submit"
	"go.flashlend.io/stxdapp/session"
	"go.flashlend.io/stxdapp/tx"
	"golang.org/x/xerrors"
)

// DefaultContract is the identifier of the deployed protocol.
const DefaultContract = "SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9.flash-lend"

// DefaultToken is the token of the deposits and the loans.
const DefaultToken = "STX"

// Reader is the read access to the chain needed by the service.
type Reader interface {
	Balance(ctx context.Context, addr address.Address) (api.Balance, error)
	ContractExists(ctx context.Context, addr address.Address, name string) (bool, error)
	CallReadOnly(ctx context.Context, contract address.Address, name, function string,
		sender address.Address, args ...clarity.Value) (clarity.Value, error)
	Transactions(ctx context.Context, addr address.Address, limit int) ([]api.Transaction, error)
}

// Service implements the actions of the protocol for the signed-in user.
type Service struct {
	sync.Mutex

	contract  contractcall.Contract
	submitter *submit.Submitter
	reader    Reader
	resolver  session.Resolver
	history   *history.Store
	network   string
	logger    zerolog.Logger

	// deposits is the amount of STX deposited per account, as known after the
	// last dashboard refresh and the submitted transactions.
	deposits map[address.Address]float64
}

// Option is the type of options to create a service.
type Option func(*Service)

// WithContract sets the contract of the protocol.
func WithContract(c contractcall.Contract) Option {
	return func(s *Service) {
		s.contract = c
	}
}

// WithResolver sets the resolver of the address of the user.
func WithResolver(r session.Resolver) Option {
	return func(s *Service) {
		s.resolver = r
	}
}

// WithHistory sets the local journal merged in the transaction history.
func WithHistory(store *history.Store) Option {
	return func(s *Service) {
		s.history = store
	}
}

// WithNetworkName sets the name of the network used in the explorer links.
func WithNetworkName(name string) Option {
	return func(s *Service) {
		s.network = name
	}
}

// WithLogger sets the logger of the service.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new service of the protocol.
func NewService(submitter *submit.Submitter, reader Reader, opts ...Option) (*Service, error) {
	contract, err := contractcall.ParseContract(DefaultContract)
	if err != nil {
		return nil, xerrors.Errorf("default contract: %v", err)
	}

	s := &Service{
		contract:  contract,
		submitter: submitter,
		reader:    reader,
		resolver:  session.NewResolver(),
		network:   "testnet",
		logger:    stxdapp.Logger.With().Str("component", "flashlend").Logger(),
		deposits:  make(map[address.Address]float64),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Contract returns the contract of the protocol.
func (s *Service) Contract() contractcall.Contract {
	return s.contract
}

// Deposit deposits the amount of STX in the protocol. The transaction is
// protected by a post-condition limiting the transfer of the user to the
// amount.
func (s *Service) Deposit(ctx context.Context, sess *session.Session, amount float64) (submit.Submission, error) {
	account, err := s.account(sess)
	if err != nil {
		return submit.Submission{}, err
	}

	micro, err := toMicro(amount, "Please enter a valid amount")
	if err != nil {
		return submit.Submission{}, err
	}

	req := contractcall.Request{
		Contract: &s.contract,
		Function: "deposit",
		Args:     []clarity.Value{clarity.NewUInt(micro)},
		Sender:   account,
		PostConditions: []tx.PostCondition{
			tx.NewSTXPostCondition(tx.Standard(account), tx.LessEqual, micro),
		},
	}

	sub, err := s.submitter.Submit(ctx, sess, "deposit", formatAmount(amount), req)
	if err != nil {
		return submit.Submission{}, err
	}

	if !sub.Replayed {
		s.adjustDeposits(account, amount)
	}

	return sub, nil
}

// Withdraw withdraws the amount of STX from the deposits of the user. The
// amount cannot exceed the deposits.
func (s *Service) Withdraw(ctx context.Context, sess *session.Session, amount float64) (submit.Submission, error) {
	account, err := s.account(sess)
	if err != nil {
		return submit.Submission{}, err
	}

	if amount <= 0 || math.IsNaN(amount) {
		return submit.Submission{}, contractcall.InvalidInput("Amount must be greater than 0")
	}

	deposited, err := s.Deposited(ctx, account)
	if err != nil {
		return submit.Submission{}, xerrors.Errorf("failed to fetch deposits: %w", err)
	}

	if amount > deposited {
		return submit.Submission{}, contractcall.InvalidInput(
			"Insufficient funds. You only have %s %s deposited.", formatAmount(deposited), DefaultToken)
	}

	micro, err := toMicro(amount, "Amount must be greater than 0")
	if err != nil {
		return submit.Submission{}, err
	}

	req := contractcall.Request{
		Contract: &s.contract,
		Function: "withdraw",
		Args:     []clarity.Value{clarity.NewUInt(micro)},
		Sender:   account,
		PostConditions: []tx.PostCondition{
			tx.NewSTXPostCondition(tx.Contract(s.contract.Address, s.contract.Name), tx.LessEqual, micro),
		},
	}

	sub, err := s.submitter.Submit(ctx, sess, "withdraw", formatAmount(amount), req)
	if err != nil {
		return submit.Submission{}, err
	}

	if !sub.Replayed {
		s.adjustDeposits(account, -amount)
	}

	return sub, nil
}

// FlashLoan borrows the amount of the token and sends it to the recipient
// within a single transaction.
func (s *Service) FlashLoan(ctx context.Context, sess *session.Session, amount float64,
	token, recipient string) (submit.Submission, error) {

	account, err := s.account(sess)
	if err != nil {
		return submit.Submission{}, err
	}

	micro, err := toMicro(amount, "Please enter a valid amount")
	if err != nil {
		return submit.Submission{}, err
	}

	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return submit.Submission{}, contractcall.InvalidInput("Please enter a recipient address")
	}

	to, err := clarity.Principal(recipient)
	if err != nil {
		return submit.Submission{}, contractcall.InvalidInput("Invalid recipient address: %v", err)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		token = DefaultToken
	}

	req := contractcall.Request{
		Contract: &s.contract,
		Function: "flash-loan",
		Args:     []clarity.Value{clarity.NewUInt(micro), clarity.StringASCII(token), to},
		Sender:   account,
		PostConditions: []tx.PostCondition{
			tx.NewSTXPostCondition(tx.Contract(s.contract.Address, s.contract.Name), tx.LessEqual, micro),
		},
	}

	return s.submitter.Submit(ctx, sess, "flash-loan", formatAmount(amount), req)
}

// CreateProposal submits a governance proposal.
func (s *Service) CreateProposal(ctx context.Context, sess *session.Session,
	description string) (submit.Submission, error) {

	account, err := s.account(sess)
	if err != nil {
		return submit.Submission{}, err
	}

	description = strings.TrimSpace(description)
	if description == "" {
		return submit.Submission{}, contractcall.InvalidInput("Please enter a proposal description")
	}

	req := contractcall.Request{
		Contract:       &s.contract,
		Function:       "create-proposal",
		Args:           []clarity.Value{clarity.StringUTF8(description)},
		PostConditions: []tx.PostCondition{},
		Sender:         account,
	}

	return s.submitter.Submit(ctx, sess, "create-proposal", "", req)
}

// Vote votes for or against the proposal.
func (s *Service) Vote(ctx context.Context, sess *session.Session, proposal uint64,
	support bool) (submit.Submission, error) {

	account, err := s.account(sess)
	if err != nil {
		return submit.Submission{}, err
	}

	req := contractcall.Request{
		Contract:       &s.contract,
		Function:       "vote-on-proposal",
		Args:           []clarity.Value{clarity.NewUInt(proposal), clarity.Bool(support)},
		PostConditions: []tx.PostCondition{},
		Sender:         account,
	}

	return s.submitter.Submit(ctx, sess, "vote", "", req)
}

// SetBorrowingLimit sets the maximum amount of STX the user can borrow.
func (s *Service) SetBorrowingLimit(ctx context.Context, sess *session.Session, user string,
	limit float64) (submit.Submission, error) {

	account, err := s.account(sess)
	if err != nil {
		return submit.Submission{}, err
	}

	user = strings.TrimSpace(user)
	if user == "" {
		return submit.Submission{}, contractcall.InvalidInput("Please enter a user address")
	}

	if limit < 0 || math.IsNaN(limit) || math.IsInf(limit, 0) {
		return submit.Submission{}, contractcall.InvalidInput("Please enter a valid borrowing limit")
	}

	micro, ok := microOf(limit)
	if !ok {
		return submit.Submission{}, contractcall.InvalidInput("Please enter a valid borrowing limit")
	}

	principal, err := clarity.Principal(user)
	if err != nil {
		return submit.Submission{}, contractcall.InvalidInput("Invalid user address: %v", err)
	}

	req := contractcall.Request{
		Contract:       &s.contract,
		Function:       "set-borrowing-limit",
		Args:           []clarity.Value{principal, clarity.NewUInt(micro)},
		PostConditions: []tx.PostCondition{},
		Sender:         account,
	}

	return s.submitter.Submit(ctx, sess, "set-borrowing-limit", formatAmount(limit), req)
}

// AddSupportedToken adds a token to the list of the tokens accepted by the
// protocol.
func (s *Service) AddSupportedToken(ctx context.Context, sess *session.Session,
	token, name, symbol string) (submit.Submission, error) {

	account, err := s.account(sess)
	if err != nil {
		return submit.Submission{}, err
	}

	token, name, symbol = strings.TrimSpace(token), strings.TrimSpace(name), strings.TrimSpace(symbol)

	switch {
	case token == "":
		return submit.Submission{}, contractcall.InvalidInput("Please enter a token address")
	case name == "":
		return submit.Submission{}, contractcall.InvalidInput("Please enter a token name")
	case symbol == "":
		return submit.Submission{}, contractcall.InvalidInput("Please enter a token symbol")
	}

	principal, err := clarity.Principal(token)
	if err != nil {
		return submit.Submission{}, contractcall.InvalidInput("Invalid token address: %v", err)
	}

	req := contractcall.Request{
		Contract:       &s.contract,
		Function:       "add-supported-token",
		Args:           []clarity.Value{principal, clarity.StringASCII(name), clarity.StringASCII(symbol)},
		PostConditions: []tx.PostCondition{},
		Sender:         account,
	}

	return s.submitter.Submit(ctx, sess, "add-supported-token", "", req)
}

// Deposited returns the amount of STX deposited by the account. The last
// known value is used when there is one.
func (s *Service) Deposited(ctx context.Context, account address.Address) (float64, error) {
	s.Lock()
	deposited, found := s.deposits[account]
	s.Unlock()

	if found {
		return deposited, nil
	}

	data, err := s.userData(ctx, account)
	if err != nil {
		return 0, err
	}

	return data.deposited, nil
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

func (s *Service) adjustDeposits(account address.Address, delta float64) {
	s.Lock()
	defer s.Unlock()

	deposited, found := s.deposits[account]
	if !found {
		return
	}

	deposited += delta
	if deposited < 0 {
		deposited = 0
	}

	s.deposits[account] = deposited
}

func (s *Service) setDeposits(account address.Address, deposited float64) {
	s.Lock()
	s.deposits[account] = deposited
	s.Unlock()
}

// toMicro converts a positive amount of STX in micro-STX, rounded down.
func toMicro(amount float64, msg string) (uint64, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, contractcall.InvalidInput(msg)
	}

	micro, ok := microOf(amount)
	if !ok || micro == 0 {
		return 0, contractcall.InvalidInput(msg)
	}

	return micro, nil
}

// maxMicro is 2^64, the first amount that does not fit in a uint.
const maxMicro = float64(1 << 64)

// microOf returns false when the amount in micro-STX does not fit in a uint.
func microOf(amount float64) (uint64, bool) {
	micro := math.Floor(amount * api.MicroPerSTX)
	if math.IsNaN(micro) || micro < 0 || micro >= maxMicro {
		return 0, false
	}

	return uint64(micro), true
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
