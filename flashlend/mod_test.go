package flashlend

import (
	"context"
	"math"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.flashlend.io/stxdapp/address"
	"go.flashlend.io/stxdapp/api"
	"go.flashlend.io/stxdapp/clarity"
	"go.flashlend.io/stxdapp/contractcall"
	"go.flashlend.io/stxdapp/history"
	"go.flashlend.io/stxdapp/internal/submit"
	"go.flashlend.io/stxdapp/session"
	"go.flashlend.io/stxdapp/store/kv"
	"go.flashlend.io/stxdapp/testing/fake"
	"go.flashlend.io/stxdapp/tx"
	"go.flashlend.io/stxdapp/watch"
	"golang.org/x/time/rate"
	"golang.org/x/xerrors"
)

const (
	testKey     = "edf9aee84d9b7abc145504dde6726c64f369d37ee34ded868fabd876c26570bc01"
	testAccount = address.Address("ST000000000000000000002AMW42H")
	otherUser   = "SP000000000000000000002Q6VF78"
)

func TestService_Deposit(t *testing.T) {
	svc, exec, _ := newService(t)

	sub, err := svc.Deposit(context.Background(), makeSession(t), 1.5)
	require.NoError(t, err)
	require.Equal(t, "deposit", sub.Action)
	require.Equal(t, "1.5", sub.Amount)

	req := exec.last()
	require.Equal(t, "deposit", req.Function)
	require.Equal(t, DefaultContract, req.Contract.String())
	require.Equal(t, []clarity.Value{clarity.NewUInt(1_500_000)}, req.Args)
	require.Equal(t, []tx.PostCondition{
		tx.NewSTXPostCondition(tx.Standard(testAccount), tx.LessEqual, 1_500_000),
	}, req.PostConditions)
}

func TestService_Deposit_InvalidAmount(t *testing.T) {
	svc, exec, _ := newService(t)

	for _, amount := range []float64{0, -1, math.NaN(), math.Inf(1), 0.0000001, 1e20, math.MaxFloat64} {
		_, err := svc.Deposit(context.Background(), makeSession(t), amount)
		require.EqualError(t, err, "Please enter a valid amount")

		var invalid *contractcall.InvalidInputError
		require.True(t, xerrors.As(err, &invalid))
	}

	require.Equal(t, 0, exec.count())
}

func TestService_Account(t *testing.T) {
	svc, exec, _ := newService(t)

	_, err := svc.Deposit(context.Background(), nil, 1)
	require.Equal(t, contractcall.ErrNotSignedIn, err)

	sess, err := session.Decode([]byte(`{"appPrivateKey":"` + testKey + `"}`))
	require.NoError(t, err)

	_, err = svc.Deposit(context.Background(), sess, 1)
	require.Equal(t, session.ErrAddressNotFound, err)
	require.Equal(t, 0, exec.count())
}

func TestService_Withdraw(t *testing.T) {
	svc, exec, node := newService(t)

	_, err := svc.Withdraw(context.Background(), makeSession(t), 0)
	require.EqualError(t, err, "Amount must be greater than 0")
	require.Equal(t, 0, node.Hits("call-read"))

	_, err = svc.Withdraw(context.Background(), makeSession(t), 600)
	require.EqualError(t, err, "Insufficient funds. You only have 500 STX deposited.")
	require.Equal(t, 1, node.Hits("call-read"))

	sub, err := svc.Withdraw(context.Background(), makeSession(t), 200)
	require.NoError(t, err)
	require.Equal(t, "withdraw", sub.Function)
	require.Equal(t, []clarity.Value{clarity.NewUInt(200_000_000)}, exec.last().Args)

	_, err = svc.Withdraw(context.Background(), makeSession(t), 300.5)
	require.EqualError(t, err, "Insufficient funds. You only have 300 STX deposited.")

	deposited, err := svc.Deposited(context.Background(), testAccount)
	require.NoError(t, err)
	require.Equal(t, 300.0, deposited)

	_, err = svc.Deposit(context.Background(), makeSession(t), 0.25)
	require.NoError(t, err)

	deposited, err = svc.Deposited(context.Background(), testAccount)
	require.NoError(t, err)
	require.Equal(t, 300.25, deposited)

	// The cache avoids a read for each check.
	require.Equal(t, 1, node.Hits("call-read"))
}

func TestService_Withdraw_ReadFailure(t *testing.T) {
	svc, exec, node := newService(t)

	node.Lock()
	node.ReadOnly = nil
	node.Unlock()

	_, err := svc.Withdraw(context.Background(), makeSession(t), 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to fetch deposits: ")
	require.Equal(t, 0, exec.count())
}

func TestService_FlashLoan(t *testing.T) {
	svc, exec, _ := newService(t)

	_, err := svc.FlashLoan(context.Background(), makeSession(t), 0, "STX", otherUser)
	require.EqualError(t, err, "Please enter a valid amount")

	_, err = svc.FlashLoan(context.Background(), makeSession(t), 10, "STX", " ")
	require.EqualError(t, err, "Please enter a recipient address")

	_, err = svc.FlashLoan(context.Background(), makeSession(t), 10, "STX", "nope")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Invalid recipient address: ")
	require.Equal(t, 0, exec.count())

	_, err = svc.FlashLoan(context.Background(), makeSession(t), 10, "", otherUser)
	require.NoError(t, err)

	req := exec.last()
	require.Equal(t, "flash-loan", req.Function)
	require.Len(t, req.Args, 3)
	require.Equal(t, clarity.NewUInt(10_000_000), req.Args[0])
	require.Equal(t, clarity.StringASCII("STX"), req.Args[1])
	require.Equal(t, "'"+otherUser, req.Args[2].String())
}

func TestService_Governance(t *testing.T) {
	svc, exec, _ := newService(t)

	_, err := svc.CreateProposal(context.Background(), makeSession(t), "  ")
	require.EqualError(t, err, "Please enter a proposal description")
	require.Equal(t, 0, exec.count())

	_, err = svc.CreateProposal(context.Background(), makeSession(t), " Lower the fee ")
	require.NoError(t, err)
	require.Equal(t, "create-proposal", exec.last().Function)
	require.Equal(t, []clarity.Value{clarity.StringUTF8("Lower the fee")}, exec.last().Args)
	require.NotNil(t, exec.last().PostConditions)

	_, err = svc.Vote(context.Background(), makeSession(t), 3, false)
	require.NoError(t, err)
	require.Equal(t, "vote-on-proposal", exec.last().Function)
	require.Equal(t, []clarity.Value{clarity.NewUInt(3), clarity.Bool(false)}, exec.last().Args)
}

func TestService_Admin(t *testing.T) {
	svc, exec, _ := newService(t)

	_, err := svc.SetBorrowingLimit(context.Background(), makeSession(t), "", 10)
	require.EqualError(t, err, "Please enter a user address")

	_, err = svc.SetBorrowingLimit(context.Background(), makeSession(t), otherUser, -1)
	require.EqualError(t, err, "Please enter a valid borrowing limit")

	_, err = svc.SetBorrowingLimit(context.Background(), makeSession(t), otherUser, 1e20)
	require.EqualError(t, err, "Please enter a valid borrowing limit")

	var invalid *contractcall.InvalidInputError
	require.True(t, xerrors.As(err, &invalid))
	require.Equal(t, 0, exec.count())

	_, err = svc.SetBorrowingLimit(context.Background(), makeSession(t), otherUser, 18_000_000_000_000)
	require.NoError(t, err)
	require.Equal(t, clarity.NewUInt(18_000_000_000_000_000_000), exec.last().Args[1])

	_, err = svc.SetBorrowingLimit(context.Background(), makeSession(t), otherUser, 0)
	require.NoError(t, err)
	require.Equal(t, "set-borrowing-limit", exec.last().Function)
	require.Equal(t, clarity.NewUInt(0), exec.last().Args[1])

	_, err = svc.AddSupportedToken(context.Background(), makeSession(t), "", "Name", "SYM")
	require.EqualError(t, err, "Please enter a token address")

	_, err = svc.AddSupportedToken(context.Background(), makeSession(t), otherUser, "", "SYM")
	require.EqualError(t, err, "Please enter a token name")

	_, err = svc.AddSupportedToken(context.Background(), makeSession(t), otherUser, "Name", "")
	require.EqualError(t, err, "Please enter a token symbol")

	_, err = svc.AddSupportedToken(context.Background(), makeSession(t), otherUser+".token", "Name", "SYM")
	require.NoError(t, err)
	require.Equal(t, "add-supported-token", exec.last().Function)
	require.Equal(t, "'"+otherUser+".token", exec.last().Args[0].String())
	require.Equal(t, 3, exec.count())
}

func TestService_Dashboard(t *testing.T) {
	svc, _, node := newService(t)

	d, err := svc.Dashboard(context.Background(), testAccount)
	require.NoError(t, err)
	require.True(t, d.Deployed)
	require.Equal(t, 2.5, d.Balance.STX())
	require.Equal(t, 1000.0, d.TotalLiquidity)
	require.Equal(t, 0.5, d.FlashLoanFee)
	require.Equal(t, 500.0, d.Deposited)
	require.Equal(t, 1.0, d.Rewards)
	require.False(t, d.UpdatedAt.IsZero())

	node.Lock()
	delete(node.Contracts, DefaultContract)
	node.Unlock()

	d, err = svc.Dashboard(context.Background(), testAccount)
	require.NoError(t, err)
	require.False(t, d.Deployed)
	require.Equal(t, 0.0, d.TotalLiquidity)
	require.Equal(t, 2.5, d.Balance.STX())
}

func TestService_Dashboard_Failures(t *testing.T) {
	svc, _, node := newService(t)

	node.Lock()
	delete(node.Balances, testAccount.String())
	node.Unlock()

	_, err := svc.Dashboard(context.Background(), testAccount)
	require.EqualError(t, err, "failed to fetch wallet balance: balance: Invalid balance data structure")

	node.Lock()
	node.Balances[testAccount.String()] = "1"
	node.ReadOnly = func(contract, function string, args []string) (string, bool) {
		return "0x0703", true
	}
	node.Unlock()

	_, err = svc.Dashboard(context.Background(), testAccount)
	require.EqualError(t, err, "failed to fetch protocol data: get-total-liquidity: expected uint but got true")
}

func TestService_Dashboard_UnknownUser(t *testing.T) {
	svc, _, node := newService(t)

	node.Lock()
	base := node.ReadOnly
	node.ReadOnly = func(contract, function string, args []string) (string, bool) {
		if function == "get-user-data" {
			return mustHex(t, clarity.Ok(clarity.None())), true
		}
		return base(contract, function, args)
	}
	node.Unlock()

	d, err := svc.Dashboard(context.Background(), testAccount)
	require.NoError(t, err)
	require.Equal(t, 0.0, d.Deposited)

	_, err = svc.Withdraw(context.Background(), makeSession(t), 1)
	require.EqualError(t, err, "Insufficient funds. You only have 0 STX deposited.")
}

func TestService_WatchDashboard(t *testing.T) {
	svc, _, _ := newService(t)

	type update struct {
		d   Dashboard
		err error
	}

	updates := make(chan update, 10)

	h := svc.WatchDashboard(context.Background(), testAccount, time.Millisecond, func(d Dashboard, err error) {
		select {
		case updates <- update{d: d, err: err}:
		default:
		}
	})

	for i := 0; i < 2; i++ {
		select {
		case u := <-updates:
			require.NoError(t, u.err)
			require.True(t, u.d.Deployed)
		case <-time.After(time.Second):
			t.Fatal("dashboard not refreshed")
		}
	}

	h.Stop()
	<-h.Done()
}

func TestTypeLabel(t *testing.T) {
	require.Equal(t, "Token Transfer", TypeLabel("token_transfer"))
	require.Equal(t, "Contract Call", TypeLabel("contract_call"))
	require.Equal(t, "Smart Contract", TypeLabel("smart_contract"))
	require.Equal(t, "Coinbase", TypeLabel("coinbase"))
	require.Equal(t, "Poison Microblock", TypeLabel("poison_microblock"))
	require.Equal(t, "Tenure-Change", TypeLabel("tenure-change"))
	require.Equal(t, "", TypeLabel(""))
}

func TestExplorerURL(t *testing.T) {
	require.Equal(t, "https://explorer.stacks.co/address/"+testAccount.String()+"?chain=testnet",
		ExplorerURL(testAccount, "testnet"))
}

func TestService_Transactions(t *testing.T) {
	node := fake.NewNode()
	defer node.Close()

	node.Transactions[testAccount.String()] = []map[string]interface{}{
		{
			"tx_id":          "0x02",
			"tx_type":        "token_transfer",
			"tx_status":      "success",
			"sender_address": testAccount.String(),
			"token_transfer": map[string]string{"recipient_address": otherUser, "amount": "2500000"},
		},
		{"tx_id": "0x01", "tx_type": "contract_call", "tx_status": "success"},
	}

	store := newHistory(t)

	for _, txid := range []string{"0x01", "0x03"} {
		_, err := store.Add(history.Record{
			TxID:   txid,
			Sender: testAccount.String(),
			Amount: "4",
			Status: api.StatusPending,
		})
		require.NoError(t, err)
	}

	svc, err := NewService(submit.NewSubmitter(&fakeExecutor{}), newClient(node),
		WithHistory(store))
	require.NoError(t, err)

	entries, err := svc.Transactions(context.Background(), testAccount, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	require.Equal(t, "0x03", entries[0].TxID)
	require.True(t, entries[0].Local)
	require.Equal(t, 4.0, entries[0].Amount)

	require.Equal(t, "0x02", entries[1].TxID)
	require.Equal(t, "Token Transfer", entries[1].Type)
	require.Equal(t, 2.5, entries[1].Amount)

	require.Equal(t, "Contract Call", entries[2].Type)
	require.False(t, entries[2].Local)

	entries, err = svc.Transactions(context.Background(), testAccount, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	node.Fail = true

	_, err = svc.Transactions(context.Background(), testAccount, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to fetch transactions: ")
}

// The scenario submits a deposit through the whole stack: executor, builder,
// journal and tracker.
func TestService_DepositScenario(t *testing.T) {
	node := newNode(t)
	node.Deploy(DefaultContract)

	client := newClient(node)
	exec := contractcall.NewExecutor(tx.NewBuilder(client), client)
	store := newHistory(t)
	group := watch.NewGroup()

	defer group.StopAll()

	submitter := submit.NewSubmitter(exec,
		submit.WithHistory(store),
		submit.WithTracking(group, time.Millisecond))

	svc, err := NewService(submitter, client, WithHistory(store))
	require.NoError(t, err)

	sub, err := svc.Deposit(context.Background(), makeSession(t), 2)
	require.NoError(t, err)
	require.NotNil(t, sub.Tracker)
	require.Len(t, node.Broadcasts(), 1)
	require.Equal(t, fake.TxID(node.Broadcasts()[0]), sub.TxID)

	rec, err := store.GetByTxID(sub.TxID)
	require.NoError(t, err)
	require.Equal(t, "deposit", rec.Action)
	require.Equal(t, "2", rec.Amount)
	require.Equal(t, testAccount.String(), rec.Sender)

	node.SetStatus(sub.TxID, "success")

	select {
	case <-sub.Tracker.Start(context.Background()).Done():
	case <-time.After(time.Second):
		t.Fatal("tracker did not stop")
	}

	rec, err = store.GetByTxID(sub.TxID)
	require.NoError(t, err)
	require.Equal(t, api.StatusSuccess, rec.Status)
}

// An identical withdrawal submitted twice is broadcast and accounted once.
func TestService_WithdrawDuplicate(t *testing.T) {
	node := newNode(t)
	node.Deploy(DefaultContract)
	serveReadOnly(t, node)

	client := newClient(node)
	exec := contractcall.NewExecutor(tx.NewBuilder(client), client)
	store := newHistory(t)

	svc, err := NewService(submit.NewSubmitter(exec, submit.WithHistory(store)), client, WithHistory(store))
	require.NoError(t, err)

	first, err := svc.Withdraw(context.Background(), makeSession(t), 200)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	second, err := svc.Withdraw(context.Background(), makeSession(t), 200)
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, first.TxID, second.TxID)
	require.Len(t, node.Broadcasts(), 1)

	deposited, err := svc.Deposited(context.Background(), testAccount)
	require.NoError(t, err)
	require.Equal(t, 300.0, deposited)

	records, err := store.List(testAccount, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, first.TxID, records[0].TxID)
}

// -----------------------------------------------------------------------------
// Utility functions

func makeSession(t *testing.T) *session.Session {
	sess, err := session.Decode([]byte(`{
		"appPrivateKey": "` + testKey + `",
		"profile": {"stxAddress": {"testnet": "` + testAccount.String() + `"}}
	}`))
	require.NoError(t, err)

	return sess
}

func mustHex(t *testing.T, v clarity.Value) string {
	hex, err := clarity.ToHex(v)
	require.NoError(t, err)

	return hex
}

func newNode(t *testing.T) *fake.Node {
	node := fake.NewNode()
	t.Cleanup(node.Close)

	node.Balances[testAccount.String()] = "2500000"

	return node
}

func newHistory(t *testing.T) *history.Store {
	db, err := kv.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return history.NewStore(db)
}

func newClient(node *fake.Node) *api.Client {
	return api.NewClient(node.Network(), api.WithRateLimit(rate.Inf, 0))
}

// serveReadOnly answers the read-only functions of the protocol for an
// account with 500 STX deposited.
func serveReadOnly(t *testing.T, node *fake.Node) {
	results := map[string]string{
		"get-total-liquidity": mustHex(t, clarity.Ok(clarity.NewUInt(1_000_000_000))),
		"get-flash-loan-fee":  mustHex(t, clarity.Ok(clarity.NewUInt(50))),
		"get-user-data": mustHex(t, clarity.Ok(clarity.Some(clarity.Tuple{
			"deposited": clarity.NewUInt(500_000_000),
			"rewards":   clarity.NewUInt(1_000_000),
		}))),
	}

	user, err := clarity.Principal(testAccount.String())
	require.NoError(t, err)

	userArgs := []string{mustHex(t, user)}

	node.ReadOnly = func(contract, function string, args []string) (string, bool) {
		res, found := results[function]
		if !found {
			return "UndefinedFunction", false
		}

		if function == "get-user-data" && !reflect.DeepEqual(args, userArgs) {
			return "BadFunctionArgument", false
		}

		return res, true
	}
}

func newService(t *testing.T) (*Service, *fakeExecutor, *fake.Node) {
	node := newNode(t)
	node.Deploy(DefaultContract)
	serveReadOnly(t, node)

	exec := &fakeExecutor{}

	svc, err := NewService(submit.NewSubmitter(exec), newClient(node))
	require.NoError(t, err)

	return svc, exec, node
}

type fakeExecutor struct {
	sync.Mutex
	requests []contractcall.Request
}

func (e *fakeExecutor) Execute(ctx context.Context, sess *session.Session,
	req contractcall.Request) (contractcall.Result, error) {

	e.Lock()
	e.requests = append(e.requests, req)
	e.Unlock()

	return contractcall.Result{
		TxID:     "0x01",
		Status:   api.StatusPending,
		Contract: *req.Contract,
		Function: req.Function,
		Sender:   testAccount,
	}, nil
}

func (e *fakeExecutor) Track(ctx context.Context, res contractcall.Result,
	opts ...watch.TrackerOption) *watch.Tracker {

	return watch.NewTracker(nil, res.TxID, opts...)
}

func (e *fakeExecutor) count() int {
	e.Lock()
	defer e.Unlock()

	return len(e.requests)
}

func (e *fakeExecutor) last() contractcall.Request {
	e.Lock()
	defer e.Unlock()

	return e.requests[len(e.requests)-1]
}
