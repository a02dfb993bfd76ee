// Package dapp assembles the components shared by the controllers of the
// dApps: the client of the node, the executor of contract calls and the
// submitter that journals and tracks the transactions.
package dapp

import (
	"github.com/rs/zerolog"
	"go.flashlend.io/stxdapp"
	"go.flashlend.io/stxdapp/api"
	"go.flashlend.io/stxdapp/cli/node"
	"go.flashlend.io/stxdapp/config"
	"go.flashlend.io/stxdapp/contractcall"
	"go.flashlend.io/stxdapp/history"
	"go.flashlend.io/stxdapp/internal/submit"
	"go.flashlend.io/stxdapp/network"
	"go.flashlend.io/stxdapp/session"
	"go.flashlend.io/stxdapp/tx"
	"go.flashlend.io/stxdapp/watch"
	"golang.org/x/xerrors"
)

// Stack is the set of components of a dApp.
type Stack struct {
	Config    config.Config
	Network   network.Network
	Client    *api.Client
	Resolver  session.Resolver
	Executor  *contractcall.Executor
	Submitter *submit.Submitter
	History   *history.Store
	Logger    zerolog.Logger
}

// New creates the stack of the dApp with the dependencies of the injector.
// The configuration is required while the journal and the group of trackers
// are used when available. The contract is the default of the executor and
// can be nil.
func New(name string, n network.Network, contract *contractcall.Contract, inj node.Injector) (Stack, error) {
	var cfg *config.Config

	err := inj.Resolve(&cfg)
	if err != nil {
		return Stack{}, xerrors.Errorf("injector: %v", err)
	}

	logger := stxdapp.Logger.With().Str("dapp", name).Str("network", n.Name).Logger()

	client := api.NewClient(n,
		api.WithRateLimit(cfg.Limit(), cfg.RateBurst),
		api.WithLogger(logger))

	// The address is looked up for the network of the dApp first.
	resolver := session.NewResolver(
		session.WithPreferredNetwork(n.Name),
		session.WithOrigin(cfg.Origin),
		session.WithLogger(logger))

	opts := []contractcall.Option{
		contractcall.WithNetwork(n),
		contractcall.WithDedupWindow(cfg.DedupWindow),
		contractcall.WithResolver(resolver),
		contractcall.WithLogger(logger),
	}

	if contract != nil {
		opts = append(opts, contractcall.WithContract(*contract))
	}

	exec := contractcall.NewExecutor(tx.NewBuilder(client, tx.WithBuilderLogger(logger)), client, opts...)

	exec.Watch(watch.ObserverFunc(func(event interface{}) {
		evt, ok := event.(contractcall.StateEvent)
		if ok && evt.Err != nil {
			logger.Debug().Err(evt.Err).Msg("contract call failed")
		}
	}))

	subOpts := []submit.Option{submit.WithLogger(logger)}

	var store *history.Store
	if inj.Resolve(&store) == nil {
		subOpts = append(subOpts, submit.WithHistory(store))
	}

	var group *watch.Group
	if inj.Resolve(&group) == nil {
		subOpts = append(subOpts, submit.WithTracking(group, cfg.TrackInterval))
	}

	stack := Stack{
		Config:    *cfg,
		Network:   n,
		Client:    client,
		Resolver:  resolver,
		Executor:  exec,
		Submitter: submit.NewSubmitter(exec, subOpts...),
		History:   store,
		Logger:    logger,
	}

	return stack, nil
}

// ParseContract parses the identifier of the contract. An empty identifier
// returns nil.
func ParseContract(id string) (*contractcall.Contract, error) {
	if id == "" {
		return nil, nil
	}

	c, err := contractcall.ParseContract(id)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// Current returns the session of the holder of the injector. A missing holder
// is the same as a signed-out session.
func Current(inj node.Injector) *session.Session {
	var holder *session.Holder

	err := inj.Resolve(&holder)
	if err != nil {
		return nil
	}

	sess, _ := holder.Current()

	return sess
}
