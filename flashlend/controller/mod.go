// Package controller implements the commands of the flash-loan dApp.
//
// Documentation Last Review: 19.10.2026
//
package controller

import (
	"go.flashlend.io/stxdapp/cli"
	"go.flashlend.io/stxdapp/cli/node"
	"go.flashlend.io/stxdapp/config"
	"go.flashlend.io/stxdapp/flashlend"
	"go.flashlend.io/stxdapp/internal/dapp"
	"golang.org/x/xerrors"
)

// NewController returns the initializer of the flash-loan dApp. It expects
// the configuration to be injected, and uses the journal, the trackers and
// the session when they are.
func NewController() node.Initializer {
	return controller{}
}

// controller injects the *flashlend.Service.
//
// - implements node.Initializer
type controller struct{}

// SetCommands implements node.Initializer.
func (controller) SetCommands(builder node.Builder) {
	cmd := builder.SetCommand("flashlend")
	cmd.SetDescription("use the flash-loan protocol")

	sub := cmd.SetSubCommand("deposit")
	sub.SetDescription("deposit STX in the liquidity pool")
	sub.SetFlags(amountFlag("amount of STX to deposit"))
	sub.SetAction(builder.MakeAction(submitAction{fn: deposit}))

	sub = cmd.SetSubCommand("withdraw")
	sub.SetDescription("withdraw STX from the liquidity pool")
	sub.SetFlags(amountFlag("amount of STX to withdraw"))
	sub.SetAction(builder.MakeAction(submitAction{fn: withdraw}))

	sub = cmd.SetSubCommand("loan")
	sub.SetDescription("borrow and repay within a single transaction")
	sub.SetFlags(
		amountFlag("amount to borrow"),
		cli.StringFlag{
			Name:  "token",
			Usage: "token to borrow",
			Value: flashlend.DefaultToken,
		},
		cli.StringFlag{
			Name:     "recipient",
			Usage:    "principal receiving the loan",
			Required: true,
		},
	)
	sub.SetAction(builder.MakeAction(submitAction{fn: flashLoan}))

	sub = cmd.SetSubCommand("propose")
	sub.SetDescription("submit a governance proposal")
	sub.SetFlags(cli.StringFlag{
		Name:     "description",
		Usage:    "description of the proposal",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(submitAction{fn: propose}))

	sub = cmd.SetSubCommand("vote")
	sub.SetDescription("vote on a governance proposal")
	sub.SetFlags(
		cli.IntFlag{
			Name:     "proposal",
			Usage:    "identifier of the proposal",
			Required: true,
		},
		cli.BoolFlag{
			Name:  "against",
			Usage: "vote against the proposal",
		},
	)
	sub.SetAction(builder.MakeAction(submitAction{fn: vote}))

	sub = cmd.SetSubCommand("set-limit")
	sub.SetDescription("set the borrowing limit of a user")
	sub.SetFlags(
		cli.StringFlag{
			Name:     "user",
			Usage:    "principal of the user",
			Required: true,
		},
		cli.Float64Flag{
			Name:     "limit",
			Usage:    "maximum amount of STX the user can borrow",
			Required: true,
		},
	)
	sub.SetAction(builder.MakeAction(submitAction{fn: setLimit}))

	sub = cmd.SetSubCommand("add-token")
	sub.SetDescription("add a token supported by the protocol")
	sub.SetFlags(
		cli.StringFlag{
			Name:     "token",
			Usage:    "principal of the token contract",
			Required: true,
		},
		cli.StringFlag{
			Name:     "name",
			Usage:    "name of the token",
			Required: true,
		},
		cli.StringFlag{
			Name:     "symbol",
			Usage:    "symbol of the token",
			Required: true,
		},
	)
	sub.SetAction(builder.MakeAction(submitAction{fn: addToken}))

	sub = cmd.SetSubCommand("dashboard")
	sub.SetDescription("show the state of the protocol and of the account")
	sub.SetFlags(
		cli.BoolFlag{
			Name:  "watch",
			Usage: "refresh the dashboard periodically",
		},
		cli.DurationFlag{
			Name:  "interval",
			Usage: "interval between two refreshes",
		},
		cli.IntFlag{
			Name:  "count",
			Usage: "number of refreshes, zero to watch until the daemon stops",
		},
	)
	sub.SetAction(builder.MakeAction(dashboardAction{}))

	sub = cmd.SetSubCommand("history")
	sub.SetDescription("list the recent transactions of the account")
	sub.SetFlags(cli.IntFlag{
		Name:  "limit",
		Usage: "maximum number of transactions",
		Value: flashlend.DefaultHistoryLimit,
	})
	sub.SetAction(builder.MakeAction(historyAction{}))

	sub = cmd.SetSubCommand("explorer")
	sub.SetDescription("print the link to the account in the explorer")
	sub.SetAction(builder.MakeAction(explorerAction{}))
}

// OnStart implements node.Initializer. It creates the service of the
// protocol.
func (controller) OnStart(flags cli.Flags, inj node.Injector) error {
	var cfg *config.Config

	err := inj.Resolve(&cfg)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	n, err := cfg.FlashLendNetwork()
	if err != nil {
		return xerrors.Errorf("invalid network: %v", err)
	}

	contract, err := dapp.ParseContract(cfg.FlashLend.Contract)
	if err != nil {
		return xerrors.Errorf("invalid contract: %v", err)
	}

	stack, err := dapp.New("flashlend", n, contract, inj)
	if err != nil {
		return xerrors.Errorf("failed to create stack: %v", err)
	}

	opts := []flashlend.Option{
		flashlend.WithResolver(stack.Resolver),
		flashlend.WithNetworkName(n.Name),
		flashlend.WithLogger(stack.Logger),
	}

	if contract != nil {
		opts = append(opts, flashlend.WithContract(*contract))
	}

	if stack.History != nil {
		opts = append(opts, flashlend.WithHistory(stack.History))
	}

	svc, err := flashlend.NewService(stack.Submitter, stack.Client, opts...)
	if err != nil {
		return xerrors.Errorf("failed to create service: %v", err)
	}

	inj.Inject(svc)

	return nil
}

// OnStop implements node.Initializer. The trackers are stopped with the
// group.
func (controller) OnStop(node.Injector) error {
	return nil
}

func amountFlag(usage string) cli.Flag {
	return cli.Float64Flag{
		Name:     "amount",
		Usage:    usage,
		Required: true,
	}
}
