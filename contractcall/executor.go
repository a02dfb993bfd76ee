package contractcall

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.flashlend.io/stxdapp"
	"go.flashlend.io/stxdapp/address"
	"go.flashlend.io/stxdapp/api"
	"go.flashlend.io/stxdapp/clarity"
	"go.flashlend.io/stxdapp/network"
	"go.flashlend.io/stxdapp/session"
	"go.flashlend.io/stxdapp/tx"
	"go.flashlend.io/stxdapp/watch"
	"golang.org/x/sync/singleflight"
	"golang.org/x/xerrors"
)

// DefaultDedupWindow is the duration during which the result of a call is
// returned again for an identical request.
const DefaultDedupWindow = 2 * time.Second

var (
	promCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stxdapp_contract_calls_total",
		Help: "total number of contract calls executed",
	}, []string{"function"})

	promFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stxdapp_contract_call_failures_total",
		Help: "total number of failed contract calls per kind of error",
	}, []string{"kind"})

	promBroadcast = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stxdapp_broadcast_seconds",
		Help:    "latency of the broadcast of a transaction",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	stxdapp.PromCollectors = append(stxdapp.PromCollectors, promCalls, promFailures, promBroadcast)
}

// Builder creates signed contract-call transactions.
type Builder interface {
	MakeContractCall(ctx context.Context, opts tx.ContractCallOptions) (*tx.Transaction, error)
}

// Client is the subset of the node API used by the executor.
type Client interface {
	ContractExists(ctx context.Context, addr address.Address, name string) (bool, error)
	Broadcast(ctx context.Context, raw []byte) (api.BroadcastResult, error)
	TxStatus(ctx context.Context, txid string) (api.TxStatus, error)
}

// Executor executes contract calls on behalf of the signed-in session.
type Executor struct {
	builder  Builder
	client   Client
	resolver session.Resolver
	logger   zerolog.Logger
	watcher  *watch.Watcher

	network        network.Network
	contract       *Contract
	function       string
	args           []clarity.Value
	postConditions []tx.PostCondition
	pcMode         tx.PostConditionMode
	anchorMode     tx.AnchorMode
	dedupWindow    time.Duration

	sync.Mutex
	loading bool
	err     error
	recent  map[string]recentCall

	flight singleflight.Group
}

type recentCall struct {
	result Result
	at     time.Time
}

// Option is the type of options to create an executor.
type Option func(*Executor)

// WithContract sets the default contract.
func WithContract(c Contract) Option {
	return func(e *Executor) {
		e.contract = &c
	}
}

// WithFunction sets the default function.
func WithFunction(name string) Option {
	return func(e *Executor) {
		e.function = name
	}
}

// WithArgs sets the arguments used when a request has none.
func WithArgs(args ...clarity.Value) Option {
	return func(e *Executor) {
		e.args = args
	}
}

// WithPostConditions sets the post-conditions used when a request has none.
func WithPostConditions(pcs ...tx.PostCondition) Option {
	return func(e *Executor) {
		e.postConditions = pcs
	}
}

// WithPostConditionMode sets the post-condition mode. It defaults to deny.
func WithPostConditionMode(mode tx.PostConditionMode) Option {
	return func(e *Executor) {
		e.pcMode = mode
	}
}

// WithAnchorMode sets the anchor mode. It defaults to any.
func WithAnchorMode(mode tx.AnchorMode) Option {
	return func(e *Executor) {
		e.anchorMode = mode
	}
}

// WithNetwork sets the network of the transactions. It defaults to the
// testnet.
func WithNetwork(n network.Network) Option {
	return func(e *Executor) {
		e.network = n
	}
}

// WithDedupWindow sets the duration during which an identical request
// returns the previous result. Zero disables the replay, concurrent
// identical requests still share the same execution.
func WithDedupWindow(d time.Duration) Option {
	return func(e *Executor) {
		e.dedupWindow = d
	}
}

// WithResolver sets the resolver used to find the address of the sender.
func WithResolver(r session.Resolver) Option {
	return func(e *Executor) {
		e.resolver = r
	}
}

// WithLogger sets the logger of the executor.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates a new executor.
func NewExecutor(builder Builder, client Client, opts ...Option) *Executor {
	e := &Executor{
		builder:     builder,
		client:      client,
		resolver:    session.NewResolver(),
		logger:      stxdapp.Logger.With().Str("component", "contract-call").Logger(),
		watcher:     watch.NewWatcher(),
		network:     network.Testnet,
		pcMode:      tx.PostConditionDeny,
		anchorMode:  tx.AnchorAny,
		dedupWindow: DefaultDedupWindow,
		recent:      make(map[string]recentCall),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Loading returns true while a call is in progress.
func (e *Executor) Loading() bool {
	e.Lock()
	defer e.Unlock()

	return e.loading
}

// Err returns the error of the last call, or nil if it succeeded.
func (e *Executor) Err() error {
	e.Lock()
	defer e.Unlock()

	return e.err
}

// Watch adds an observer of the state of the executor. It receives
// StateEvent values.
func (e *Executor) Watch(obs watch.Observer) {
	e.watcher.Add(obs)
}

// Unwatch removes an observer.
func (e *Executor) Unwatch(obs watch.Observer) {
	e.watcher.Remove(obs)
}

// Execute executes the contract call with the key of the session. Identical
// requests running concurrently share the same execution.
func (e *Executor) Execute(ctx context.Context, sess *session.Session, req Request) (Result, error) {
	if sess == nil || !sess.SignedIn() {
		return Result{}, e.fail(ErrNotSignedIn)
	}

	contract := req.Contract
	if contract == nil {
		contract = e.contract
	}

	if contract == nil || contract.IsZero() {
		return Result{}, e.fail(ErrContractUninitialized)
	}

	function := req.Function
	if function == "" {
		function = e.function
	}

	if function == "" {
		return Result{}, e.fail(InvalidInput("function name is required"))
	}

	args := req.Args
	if len(args) == 0 {
		args = e.args
	}

	pcs := req.PostConditions
	if pcs == nil {
		pcs = e.postConditions
	}

	sender := req.Sender
	if sender == "" {
		var found bool

		sender, found = e.resolver.Resolve(sess)
		if !found {
			return Result{}, e.fail(session.ErrAddressNotFound)
		}
	}

	key, err := dedupKey(*contract, function, args, sender)
	if err != nil {
		return Result{}, e.fail(InvalidInput("invalid arguments: %v", err))
	}

	if res, found := e.replay(key); found {
		e.logger.Info().Str("txid", res.TxID).Msg("duplicate call ignored")

		res.Replayed = true
		return res, nil
	}

	// Only the request that runs the call sees it set.
	leader := false

	call := func() (interface{}, error) {
		leader = true

		res, err := e.execute(ctx, sess, *contract, function, args, pcs)
		if err != nil {
			return nil, err
		}

		res.Sender = sender
		e.remember(key, res)

		return res, nil
	}

	v, err, _ := e.flight.Do(key, call)
	if err != nil {
		return Result{}, err
	}

	res := v.(Result)

	if !leader {
		e.logger.Debug().Str("function", function).Msg("call shared with a concurrent request")

		res.Replayed = true
	}

	return res, nil
}

// Track starts a tracker of the status of the transaction of the result.
func (e *Executor) Track(ctx context.Context, res Result, opts ...watch.TrackerOption) *watch.Tracker {
	opts = append([]watch.TrackerOption{watch.WithTrackerLogger(e.logger)}, opts...)

	tracker := watch.NewTracker(e.client, res.TxID, opts...)
	tracker.Start(ctx)

	return tracker
}

func (e *Executor) execute(ctx context.Context, sess *session.Session, contract Contract,
	function string, args []clarity.Value, pcs []tx.PostCondition) (Result, error) {

	promCalls.WithLabelValues(function).Inc()

	e.setState(true, nil)
	defer e.setLoading(false)

	exists, err := e.client.ContractExists(ctx, contract.Address, contract.Name)
	if err != nil {
		return Result{}, e.fail(xerrors.Errorf("failed to check contract: %w", err))
	}

	if !exists {
		return Result{}, e.fail(xerrors.Errorf("%v: %w", contract, ErrContractNotFound))
	}

	senderKey, found := sess.AppPrivateKey()
	if !found {
		return Result{}, e.fail(xerrors.Errorf("session has no app private key: %w", ErrNotSignedIn))
	}

	opts := tx.ContractCallOptions{
		ContractAddress:   contract.Address,
		ContractName:      contract.Name,
		FunctionName:      function,
		FunctionArgs:      args,
		Network:           e.network,
		SenderKey:         senderKey,
		PostConditions:    pcs,
		PostConditionMode: e.pcMode,
		AnchorMode:        e.anchorMode,
	}

	transaction, err := e.builder.MakeContractCall(ctx, opts)
	if err != nil {
		return Result{}, e.fail(xerrors.Errorf("failed to build transaction: %w", err))
	}

	raw, err := transaction.Serialize()
	if err != nil {
		return Result{}, e.fail(xerrors.Errorf("failed to serialize transaction: %v", err))
	}

	start := time.Now()

	resp, err := e.client.Broadcast(ctx, raw)

	promBroadcast.Observe(time.Since(start).Seconds())

	if err != nil {
		return Result{}, e.fail(xerrors.Errorf("failed to broadcast: %w", err))
	}

	if resp.Rejected() {
		return Result{}, e.fail(&BroadcastError{TxID: resp.TxID, Reason: resp.Reason, Err: resp.Error})
	}

	e.logger.Info().
		Str("contract", contract.String()).
		Str("function", function).
		Str("txid", resp.TxID).
		Msg("transaction broadcast")

	return Result{
		TxID:     resp.TxID,
		Status:   api.StatusPending,
		Contract: contract,
		Function: function,
	}, nil
}

func (e *Executor) fail(err error) error {
	promFailures.WithLabelValues(kindOf(err)).Inc()

	e.logger.Warn().Err(err).Msg("contract call failed")

	e.Lock()
	loading := e.loading
	e.Unlock()

	e.setState(loading, err)

	return err
}

func (e *Executor) setLoading(loading bool) {
	e.Lock()
	err := e.err
	e.Unlock()

	e.setState(loading, err)
}

func (e *Executor) setState(loading bool, err error) {
	e.Lock()
	e.loading = loading
	e.err = err
	e.Unlock()

	e.watcher.Notify(StateEvent{Loading: loading, Err: err})
}

func (e *Executor) replay(key string) (Result, bool) {
	e.Lock()
	defer e.Unlock()

	now := time.Now()

	for k, call := range e.recent {
		if now.Sub(call.at) > e.dedupWindow {
			delete(e.recent, k)
		}
	}

	call, found := e.recent[key]

	return call.result, found
}

func (e *Executor) remember(key string, res Result) {
	if e.dedupWindow <= 0 {
		return
	}

	e.Lock()
	e.recent[key] = recentCall{result: res, at: time.Now()}
	e.Unlock()
}

func dedupKey(c Contract, function string, args []clarity.Value, sender address.Address) (string, error) {
	var b strings.Builder

	b.WriteString(c.String())
	b.WriteByte('/')
	b.WriteString(function)

	for _, arg := range args {
		hex, err := clarity.ToHex(arg)
		if err != nil {
			return "", err
		}

		b.WriteByte('/')
		b.WriteString(hex)
	}

	b.WriteByte('@')
	b.WriteString(sender.String())

	return b.String(), nil
}
