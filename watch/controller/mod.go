// Package controller manages the polling loops of the daemon and implements
// the command to follow a transaction.
package controller

import (
	"context"
	"fmt"

	"go.flashlend.io/stxdapp/api"
	"go.flashlend.io/stxdapp/cli"
	"go.flashlend.io/stxdapp/cli/node"
	"go.flashlend.io/stxdapp/config"
	"go.flashlend.io/stxdapp/history"
	"go.flashlend.io/stxdapp/network"
	"go.flashlend.io/stxdapp/watch"
	"golang.org/x/xerrors"
)

// NewController returns the initializer of the polling loops.
func NewController() node.Initializer {
	return controller{}
}

// controller injects the *watch.Group shared by the trackers and the
// dashboards of the daemon.
//
// - implements node.Initializer
type controller struct{}

// SetCommands implements node.Initializer.
func (controller) SetCommands(builder node.Builder) {
	cmd := builder.SetCommand("watch")
	cmd.SetDescription("follow the transactions")

	sub := cmd.SetSubCommand("tx")
	sub.SetDescription("track a transaction until it is final")
	sub.SetFlags(
		cli.StringFlag{
			Name:     "txid",
			Usage:    "identifier of the transaction",
			Required: true,
		},
		cli.StringFlag{
			Name:  "network",
			Usage: "network of the transaction, testnet or mainnet",
		},
		cli.BoolFlag{
			Name:  "wait",
			Usage: "wait for the final status",
		},
		cli.DurationFlag{
			Name:  "interval",
			Usage: "interval between two status requests",
		},
	)
	sub.SetAction(builder.MakeAction(trackAction{}))
}

// OnStart implements node.Initializer.
func (controller) OnStart(flags cli.Flags, inj node.Injector) error {
	inj.Inject(watch.NewGroup())

	return nil
}

// OnStop implements node.Initializer. It stops every loop still running.
func (controller) OnStop(inj node.Injector) error {
	var group *watch.Group

	err := inj.Resolve(&group)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	group.StopAll()

	return nil
}

// trackAction tracks a transaction. The tracker runs in the background unless
// the caller waits for the final status.
//
// - implements node.ActionTemplate
type trackAction struct{}

// Execute implements node.ActionTemplate.
func (trackAction) Execute(ctx node.Context) error {
	var cfg *config.Config
	var group *watch.Group

	err := ctx.Injector.Resolve(&cfg)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	err = ctx.Injector.Resolve(&group)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	n, err := networkOf(*cfg, ctx.Flags.String("network"))
	if err != nil {
		return xerrors.Errorf("invalid network: %v", err)
	}

	interval := ctx.Flags.Duration("interval")
	if interval <= 0 {
		interval = cfg.TrackInterval
	}

	txid := ctx.Flags.String("txid")
	if txid == "" {
		return xerrors.New("missing transaction id")
	}

	client := api.NewClient(n, api.WithRateLimit(cfg.Limit(), cfg.RateBurst))

	opts := []watch.TrackerOption{watch.WithInterval(interval)}

	var store *history.Store
	if ctx.Injector.Resolve(&store) == nil {
		opts = append(opts, watch.WithObserver(store))
	}

	wait := ctx.Flags.Bool("wait")
	if wait {
		opts = append(opts, watch.WithObserver(watch.ObserverFunc(func(event interface{}) {
			evt, ok := event.(watch.StatusEvent)
			if ok {
				fmt.Fprintf(ctx.Out, "%s: %s\n", evt.TxID, evt.Status)
			}
		})))
	}

	tracker := watch.NewTracker(client, txid, opts...)

	if !wait {
		group.Add(tracker.Start(context.Background()))

		fmt.Fprintf(ctx.Out, "tracking %s on %s\n", txid, n.Name)

		return nil
	}

	handle := tracker.Start(ctx.Ctx)

	select {
	case <-handle.Done():
	case <-ctx.Ctx.Done():
	}

	// The observer writes to the output, which is closed once the action
	// returns.
	handle.Stop()
	<-handle.Done()

	status := tracker.Status()
	if !status.Terminal() {
		return xerrors.Errorf("stopped before the final status: %v", ctx.Ctx.Err())
	}

	if !status.Success() {
		return xerrors.Errorf("transaction %s failed with status %s", txid, status)
	}

	return nil
}

func networkOf(cfg config.Config, name string) (network.Network, error) {
	if name == "" {
		return cfg.FlashLendNetwork()
	}

	n, err := network.FromName(name)
	if err != nil {
		return n, err
	}

	if cfg.APIURL != "" {
		n = n.WithAPIURL(cfg.APIURL)
	}

	return n, nil
}
