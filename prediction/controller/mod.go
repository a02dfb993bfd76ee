// Package controller implements the commands of the prediction-market dApp.
package controller

import (
	"fmt"

	"go.flashlend.io/stxdapp/cli"
	"go.flashlend.io/stxdapp/cli/node"
	"go.flashlend.io/stxdapp/config"
	"go.flashlend.io/stxdapp/internal/dapp"
	"go.flashlend.io/stxdapp/internal/submit"
	"go.flashlend.io/stxdapp/prediction"
	"golang.org/x/xerrors"
)

// NewController returns the initializer of the prediction-market dApp. It
// expects the configuration to be injected.
func NewController() node.Initializer {
	return controller{}
}

// controller injects the *prediction.Service.
//
// - implements node.Initializer
type controller struct{}

// SetCommands implements node.Initializer.
func (controller) SetCommands(builder node.Builder) {
	cmd := builder.SetCommand("prediction")
	cmd.SetDescription("use the prediction markets")

	sub := cmd.SetSubCommand("create")
	sub.SetDescription("create a market")
	sub.SetFlags(
		cli.StringFlag{
			Name:     "query",
			Usage:    "question of the market",
			Required: true,
		},
		cli.StringFlag{
			Name:     "details",
			Usage:    "details of the resolution",
			Required: true,
		},
		cli.IntFlag{
			Name:     "closing-block",
			Usage:    "block height at which the market closes",
			Required: true,
		},
		cli.StringSliceFlag{
			Name:     "choice",
			Usage:    "possible outcome, repeated for each choice",
			Required: true,
		},
	)
	sub.SetAction(builder.MakeAction(createAction{}))

	sub = cmd.SetSubCommand("wager")
	sub.SetDescription("wager STX on a choice of a market")
	sub.SetFlags(
		idFlag(),
		cli.IntFlag{
			Name:     "choice",
			Usage:    "index of the choice",
			Required: true,
		},
		cli.Float64Flag{
			Name:     "amount",
			Usage:    "amount of STX to wager",
			Required: true,
		},
	)
	sub.SetAction(builder.MakeAction(wagerAction{}))

	sub = cmd.SetSubCommand("claim")
	sub.SetDescription("claim the payout or the refund of a market")
	sub.SetFlags(idFlag())
	sub.SetAction(builder.MakeAction(claimAction{}))

	sub = cmd.SetSubCommand("list")
	sub.SetDescription("list the markets")
	sub.SetAction(builder.MakeAction(listAction{}))
}

// OnStart implements node.Initializer.
func (controller) OnStart(flags cli.Flags, inj node.Injector) error {
	var cfg *config.Config

	err := inj.Resolve(&cfg)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	n, err := cfg.PredictionNetwork()
	if err != nil {
		return xerrors.Errorf("invalid network: %v", err)
	}

	contract, err := dapp.ParseContract(cfg.Prediction.Contract)
	if err != nil {
		return xerrors.Errorf("invalid contract: %v", err)
	}

	stack, err := dapp.New("prediction", n, contract, inj)
	if err != nil {
		return xerrors.Errorf("failed to create stack: %v", err)
	}

	opts := []prediction.Option{
		prediction.WithResolver(stack.Resolver),
		prediction.WithLogger(stack.Logger),
	}

	if contract != nil {
		opts = append(opts, prediction.WithContract(*contract))
	} else {
		stack.Logger.Warn().Msg("no contract configured for the prediction markets")
	}

	inj.Inject(prediction.NewService(stack.Submitter, stack.Client, opts...))

	return nil
}

// OnStop implements node.Initializer.
func (controller) OnStop(node.Injector) error {
	return nil
}

// createAction creates a market.
//
// - implements node.ActionTemplate
type createAction struct{}

// Execute implements node.ActionTemplate.
func (createAction) Execute(ctx node.Context) error {
	svc, err := resolveService(ctx.Injector)
	if err != nil {
		return err
	}

	closing := ctx.Flags.Int("closing-block")
	if closing < 0 {
		return xerrors.Errorf("invalid closing block '%d'", closing)
	}

	market := prediction.Market{
		Query:        ctx.Flags.String("query"),
		Details:      ctx.Flags.String("details"),
		ClosingBlock: uint64(closing),
		Choices:      ctx.Flags.StringSlice("choice"),
	}

	sub, err := svc.CreateMarket(ctx.Ctx, dapp.Current(ctx.Injector), market)
	if err != nil {
		return err
	}

	printSubmission(ctx, sub)

	return nil
}

// wagerAction places a wager.
//
// - implements node.ActionTemplate
type wagerAction struct{}

// Execute implements node.ActionTemplate.
func (wagerAction) Execute(ctx node.Context) error {
	svc, err := resolveService(ctx.Injector)
	if err != nil {
		return err
	}

	id, choice := ctx.Flags.Int("id"), ctx.Flags.Int("choice")
	if id < 0 || choice < 0 {
		return xerrors.New("market and choice must be positive")
	}

	sub, err := svc.PlaceWager(ctx.Ctx, dapp.Current(ctx.Injector), uint64(id), uint64(choice),
		ctx.Flags.Float64("amount"))
	if err != nil {
		return err
	}

	printSubmission(ctx, sub)

	return nil
}

// claimAction claims the payout or the refund of a market.
//
// - implements node.ActionTemplate
type claimAction struct{}

// Execute implements node.ActionTemplate.
func (claimAction) Execute(ctx node.Context) error {
	svc, err := resolveService(ctx.Injector)
	if err != nil {
		return err
	}

	id := ctx.Flags.Int("id")
	if id < 0 {
		return xerrors.Errorf("invalid market '%d'", id)
	}

	sub, err := svc.ClaimPayout(ctx.Ctx, dapp.Current(ctx.Injector), uint64(id))
	if err != nil {
		return err
	}

	printSubmission(ctx, sub)

	return nil
}

// listAction lists the markets of the contract.
//
// - implements node.ActionTemplate
type listAction struct{}

// Execute implements node.ActionTemplate.
func (listAction) Execute(ctx node.Context) error {
	svc, err := resolveService(ctx.Injector)
	if err != nil {
		return err
	}

	account, err := svc.Account(dapp.Current(ctx.Injector))
	if err != nil {
		return err
	}

	predictions, err := svc.ListPredictions(ctx.Ctx, account)
	if err != nil {
		return err
	}

	if len(predictions) == 0 {
		fmt.Fprintln(ctx.Out, "no market")
		return nil
	}

	for _, p := range predictions {
		fmt.Fprintf(ctx.Out, "#%d %s (closes at block %d)\n", p.ID, p.Query, p.ClosingBlock)
	}

	return nil
}

func resolveService(inj node.Injector) (*prediction.Service, error) {
	var svc *prediction.Service

	err := inj.Resolve(&svc)
	if err != nil {
		return nil, xerrors.Errorf("injector: %v", err)
	}

	return svc, nil
}

func printSubmission(ctx node.Context, sub submit.Submission) {
	fmt.Fprintf(ctx.Out, "%s submitted: %s (%s)\n", sub.Action, sub.TxID, sub.Status)
}

func idFlag() cli.Flag {
	return cli.IntFlag{
		Name:     "id",
		Usage:    "identifier of the market",
		Required: true,
	}
}
