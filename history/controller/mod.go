// Package controller opens the journal of transactions when the daemon starts
// and implements the commands to browse it.
package controller

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.flashlend.io/stxdapp/address"
	"go.flashlend.io/stxdapp/cli"
	"go.flashlend.io/stxdapp/cli/node"
	"go.flashlend.io/stxdapp/config"
	"go.flashlend.io/stxdapp/history"
	"go.flashlend.io/stxdapp/store/kv"
	"golang.org/x/xerrors"
)

const defaultLimit = 20

// NewController returns the initializer of the journal. It expects the
// configuration to be injected.
func NewController() node.Initializer {
	return controller{}
}

// controller injects the kv.DB and the *history.Store.
//
// - implements node.Initializer
type controller struct{}

// SetCommands implements node.Initializer.
func (controller) SetCommands(builder node.Builder) {
	cmd := builder.SetCommand("history")
	cmd.SetDescription("browse the journal of the submitted transactions")

	sub := cmd.SetSubCommand("list")
	sub.SetDescription("list the most recent transactions")
	sub.SetFlags(
		cli.StringFlag{
			Name:  "sender",
			Usage: "only list the transactions of this address",
		},
		cli.IntFlag{
			Name:  "limit",
			Usage: "maximum number of transactions",
			Value: defaultLimit,
		},
	)
	sub.SetAction(builder.MakeAction(listAction{}))

	sub = cmd.SetSubCommand("show")
	sub.SetDescription("show a transaction")
	sub.SetFlags(cli.StringFlag{
		Name:     "txid",
		Usage:    "identifier of the transaction",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(showAction{}))
}

// OnStart implements node.Initializer. It opens the database at the path of
// the configuration.
func (controller) OnStart(flags cli.Flags, inj node.Injector) error {
	var cfg *config.Config

	err := inj.Resolve(&cfg)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	path := cfg.HistoryPath
	if path == "" {
		path = filepath.Join(flags.Path(node.ConfigFlag), "history.db")
	}

	err = os.MkdirAll(filepath.Dir(path), 0700)
	if err != nil {
		return xerrors.Errorf("couldn't make path: %v", err)
	}

	db, err := kv.New(path)
	if err != nil {
		return xerrors.Errorf("failed to open history: %v", err)
	}

	inj.Inject(db)
	inj.Inject(history.NewStore(db))

	return nil
}

// OnStop implements node.Initializer. It closes the database.
func (controller) OnStop(inj node.Injector) error {
	var db kv.DB

	err := inj.Resolve(&db)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	err = db.Close()
	if err != nil {
		return xerrors.Errorf("failed to close history: %v", err)
	}

	return nil
}

// listAction prints the most recent records of the journal.
//
// - implements node.ActionTemplate
type listAction struct{}

// Execute implements node.ActionTemplate.
func (listAction) Execute(ctx node.Context) error {
	var store *history.Store

	err := ctx.Injector.Resolve(&store)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	sender := address.Address(ctx.Flags.String("sender"))
	if sender != "" {
		_, err = address.Decode(sender)
		if err != nil {
			return xerrors.Errorf("invalid sender: %v", err)
		}
	}

	records, err := store.List(sender, ctx.Flags.Int("limit"))
	if err != nil {
		return xerrors.Errorf("failed to list: %v", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(ctx.Out, "no transaction")
		return nil
	}

	for _, rec := range records {
		printRecord(ctx.Out, rec)
	}

	return nil
}

// showAction prints a record of the journal.
//
// - implements node.ActionTemplate
type showAction struct{}

// Execute implements node.ActionTemplate.
func (showAction) Execute(ctx node.Context) error {
	var store *history.Store

	err := ctx.Injector.Resolve(&store)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	rec, err := store.GetByTxID(ctx.Flags.String("txid"))
	if err != nil {
		return xerrors.Errorf("failed to get: %v", err)
	}

	fmt.Fprintf(ctx.Out, "ID:       %s\n", rec.ID)
	fmt.Fprintf(ctx.Out, "TxID:     %s\n", rec.TxID)
	fmt.Fprintf(ctx.Out, "Action:   %s\n", rec.Action)
	fmt.Fprintf(ctx.Out, "Contract: %s\n", rec.Contract)
	fmt.Fprintf(ctx.Out, "Function: %s\n", rec.Function)
	fmt.Fprintf(ctx.Out, "Sender:   %s\n", rec.Sender)
	fmt.Fprintf(ctx.Out, "Amount:   %s\n", rec.Amount)
	fmt.Fprintf(ctx.Out, "Status:   %s\n", rec.Status)
	fmt.Fprintf(ctx.Out, "Created:  %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))

	return nil
}

func printRecord(out io.Writer, rec history.Record) {
	amount := rec.Amount
	if amount == "" {
		amount = "-"
	}

	fmt.Fprintf(out, "%s %s %-16s %12s %s\n",
		rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.TxID, rec.Action, amount, rec.Status)
}
