package controller

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.flashlend.io/stxdapp/cli"
	"go.flashlend.io/stxdapp/cli/node"
	"go.flashlend.io/stxdapp/config"
	"go.flashlend.io/stxdapp/flashlend"
	"go.flashlend.io/stxdapp/internal/dapp"
	"go.flashlend.io/stxdapp/internal/submit"
	"go.flashlend.io/stxdapp/session"
	"golang.org/x/xerrors"
)

const timeLayout = "2006-01-02 15:04:05"

type submitFunc func(ctx context.Context, svc *flashlend.Service, sess *session.Session,
	flags cli.Flags) (submit.Submission, error)

// submitAction submits a transaction of the protocol with the current
// session.
//
// - implements node.ActionTemplate
type submitAction struct {
	fn submitFunc
}

// Execute implements node.ActionTemplate.
func (a submitAction) Execute(ctx node.Context) error {
	svc, err := resolveService(ctx.Injector)
	if err != nil {
		return err
	}

	sub, err := a.fn(ctx.Ctx, svc, dapp.Current(ctx.Injector), ctx.Flags)
	if err != nil {
		return err
	}

	printSubmission(ctx.Out, sub)

	return nil
}

func deposit(ctx context.Context, svc *flashlend.Service, sess *session.Session,
	flags cli.Flags) (submit.Submission, error) {

	return svc.Deposit(ctx, sess, flags.Float64("amount"))
}

func withdraw(ctx context.Context, svc *flashlend.Service, sess *session.Session,
	flags cli.Flags) (submit.Submission, error) {

	return svc.Withdraw(ctx, sess, flags.Float64("amount"))
}

func flashLoan(ctx context.Context, svc *flashlend.Service, sess *session.Session,
	flags cli.Flags) (submit.Submission, error) {

	return svc.FlashLoan(ctx, sess, flags.Float64("amount"), flags.String("token"), flags.String("recipient"))
}

func propose(ctx context.Context, svc *flashlend.Service, sess *session.Session,
	flags cli.Flags) (submit.Submission, error) {

	return svc.CreateProposal(ctx, sess, flags.String("description"))
}

func vote(ctx context.Context, svc *flashlend.Service, sess *session.Session,
	flags cli.Flags) (submit.Submission, error) {

	proposal := flags.Int("proposal")
	if proposal < 0 {
		return submit.Submission{}, xerrors.Errorf("invalid proposal '%d'", proposal)
	}

	return svc.Vote(ctx, sess, uint64(proposal), !flags.Bool("against"))
}

func setLimit(ctx context.Context, svc *flashlend.Service, sess *session.Session,
	flags cli.Flags) (submit.Submission, error) {

	return svc.SetBorrowingLimit(ctx, sess, flags.String("user"), flags.Float64("limit"))
}

func addToken(ctx context.Context, svc *flashlend.Service, sess *session.Session,
	flags cli.Flags) (submit.Submission, error) {

	return svc.AddSupportedToken(ctx, sess, flags.String("token"), flags.String("name"), flags.String("symbol"))
}

// dashboardAction prints the dashboard of the account, once or at each
// refresh.
//
// - implements node.ActionTemplate
type dashboardAction struct{}

// Execute implements node.ActionTemplate.
func (dashboardAction) Execute(ctx node.Context) error {
	svc, err := resolveService(ctx.Injector)
	if err != nil {
		return err
	}

	account, err := svc.Account(dapp.Current(ctx.Injector))
	if err != nil {
		return err
	}

	if !ctx.Flags.Bool("watch") {
		d, err := svc.Dashboard(ctx.Ctx, account)
		if err != nil {
			return err
		}

		printDashboard(ctx.Out, d)

		return nil
	}

	interval := ctx.Flags.Duration("interval")
	if interval <= 0 {
		interval = dashboardInterval(ctx.Injector)
	}

	count := ctx.Flags.Int("count")
	refreshes := 0
	done := make(chan struct{})

	handle := svc.WatchDashboard(ctx.Ctx, account, interval, func(d flashlend.Dashboard, err error) {
		if err != nil {
			fmt.Fprintf(ctx.Out, "refresh failed: %v\n", err)
		} else {
			printDashboard(ctx.Out, d)
		}

		refreshes++
		if refreshes == count {
			close(done)
		}
	})

	select {
	case <-done:
	case <-handle.Done():
	}

	handle.Stop()
	<-handle.Done()

	return nil
}

// historyAction prints the recent transactions of the account.
//
// - implements node.ActionTemplate
type historyAction struct{}

// Execute implements node.ActionTemplate.
func (historyAction) Execute(ctx node.Context) error {
	svc, err := resolveService(ctx.Injector)
	if err != nil {
		return err
	}

	account, err := svc.Account(dapp.Current(ctx.Injector))
	if err != nil {
		return err
	}

	entries, err := svc.Transactions(ctx.Ctx, account, ctx.Flags.Int("limit"))
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(ctx.Out, "No transactions found")
		return nil
	}

	for _, entry := range entries {
		local := ""
		if entry.Local {
			local = " (local)"
		}

		fmt.Fprintf(ctx.Out, "%s %-20s %-24s %12.6f %s%s\n", entry.Time.Format(timeLayout),
			entry.Type, entry.Status, entry.Amount, entry.TxID, local)
	}

	return nil
}

// explorerAction prints the link to the account in the explorer.
//
// - implements node.ActionTemplate
type explorerAction struct{}

// Execute implements node.ActionTemplate.
func (explorerAction) Execute(ctx node.Context) error {
	svc, err := resolveService(ctx.Injector)
	if err != nil {
		return err
	}

	account, err := svc.Account(dapp.Current(ctx.Injector))
	if err != nil {
		return err
	}

	fmt.Fprintln(ctx.Out, svc.ExplorerURL(account))

	return nil
}

func resolveService(inj node.Injector) (*flashlend.Service, error) {
	var svc *flashlend.Service

	err := inj.Resolve(&svc)
	if err != nil {
		return nil, xerrors.Errorf("injector: %v", err)
	}

	return svc, nil
}

func dashboardInterval(inj node.Injector) time.Duration {
	var cfg *config.Config

	if inj.Resolve(&cfg) != nil {
		return flashlend.DashboardInterval
	}

	return cfg.DashboardInterval
}

func printSubmission(out io.Writer, sub submit.Submission) {
	fmt.Fprintf(out, "%s submitted: %s (%s)\n", sub.Action, sub.TxID, sub.Status)
}

func printDashboard(out io.Writer, d flashlend.Dashboard) {
	fmt.Fprintf(out, "Account:         %s\n", d.Account)
	fmt.Fprintf(out, "Balance:         %s STX\n", d.Balance)

	if !d.Deployed {
		fmt.Fprintln(out, flashlend.ErrNotDeployed.Error())
		return
	}

	fmt.Fprintf(out, "Total liquidity: %.6f STX\n", d.TotalLiquidity)
	fmt.Fprintf(out, "Flash loan fee:  %.2f%%\n", d.FlashLoanFee)
	fmt.Fprintf(out, "Deposited:       %.6f STX\n", d.Deposited)
	fmt.Fprintf(out, "Rewards:         %.6f STX\n", d.Rewards)
	fmt.Fprintf(out, "Updated:         %s\n", d.UpdatedAt.Format(timeLayout))
}
