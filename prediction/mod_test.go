package prediction

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.flashlend.io/stxdapp/address"
	"go.flashlend.io/stxdapp/api"
	"go.flashlend.io/stxdapp/clarity"
	"go.flashlend.io/stxdapp/contractcall"
	"go.flashlend.io/stxdapp/internal/submit"
	"go.flashlend.io/stxdapp/session"
	"go.flashlend.io/stxdapp/testing/fake"
	"go.flashlend.io/stxdapp/tx"
	"go.flashlend.io/stxdapp/watch"
)

const (
	testKey      = "edf9aee84d9b7abc145504dde6726c64f369d37ee34ded868fabd876c26570bc01"
	testAccount  = address.Address("SP000000000000000000002Q6VF78")
	testContract = "SP000000000000000000002Q6VF78.prediction-market"
)

func TestService_CreateMarket(t *testing.T) {
	svc, exec := newService(t)

	_, err := svc.CreateMarket(context.Background(), makeSession(t), Market{
		Query:        " Will it rain? ",
		Details:      "At noon",
		ClosingBlock: 120,
		Choices:      []string{" yes ", "", "  ", "no"},
	})
	require.NoError(t, err)

	req := exec.last()
	require.Equal(t, "create-prediction-market", req.Function)
	require.Equal(t, testContract, req.Contract.String())
	require.Equal(t, []clarity.Value{
		clarity.StringUTF8("Will it rain?"),
		clarity.StringUTF8("At noon"),
		clarity.NewUInt(120),
		clarity.List{clarity.StringUTF8("yes"), clarity.StringUTF8("no")},
	}, req.Args)
}

func TestService_CreateMarket_Invalid(t *testing.T) {
	svc, exec := newService(t)

	valid := Market{Query: "q", Details: "d", ClosingBlock: 1, Choices: []string{"a", "b"}}

	tooMany := make([]string, MaxChoices+1)
	for i := range tooMany {
		tooMany[i] = "choice"
	}

	table := []struct {
		edit func(*Market)
		msg  string
	}{
		{func(m *Market) { m.Query = " " }, "Please enter a query"},
		{func(m *Market) { m.Details = "" }, "Please enter the details"},
		{func(m *Market) { m.ClosingBlock = 0 }, "Please enter a closing block"},
		{func(m *Market) { m.Choices = []string{"a", " "} }, "Please enter at least 2 choices"},
		{func(m *Market) { m.Choices = tooMany }, "A market has at most 20 choices"},
	}

	for _, entry := range table {
		m := valid
		entry.edit(&m)

		_, err := svc.CreateMarket(context.Background(), makeSession(t), m)
		require.EqualError(t, err, entry.msg)
	}

	require.Equal(t, 0, exec.count())

	valid.Choices = tooMany[:MaxChoices]

	_, err := svc.CreateMarket(context.Background(), makeSession(t), valid)
	require.NoError(t, err)
}

func TestService_PlaceWager(t *testing.T) {
	svc, exec := newService(t)

	for _, amount := range []float64{0, -2, 0.0000001, 1e20} {
		_, err := svc.PlaceWager(context.Background(), makeSession(t), 1, 0, amount)
		require.EqualError(t, err, "Please enter a valid wager amount")
	}

	require.Equal(t, 0, exec.count())

	sub, err := svc.PlaceWager(context.Background(), makeSession(t), 4, 1, 12.5)
	require.NoError(t, err)
	require.Equal(t, "12.5", sub.Amount)

	req := exec.last()
	require.Equal(t, "place-wager", req.Function)
	require.Equal(t, []clarity.Value{clarity.NewUInt(4), clarity.NewUInt(1), clarity.NewUInt(12_500_000)}, req.Args)
	require.Equal(t, []tx.PostCondition{
		tx.NewSTXPostCondition(tx.Standard(testAccount), tx.LessEqual, 12_500_000),
	}, req.PostConditions)
}

func TestService_ClaimPayout(t *testing.T) {
	svc, exec := newService(t)

	sub, err := svc.ClaimPayout(context.Background(), makeSession(t), 7)
	require.NoError(t, err)
	require.Equal(t, "claim-payout", sub.Action)
	require.Equal(t, "claim-payout-or-refund", exec.last().Function)
	require.Equal(t, []clarity.Value{clarity.NewUInt(7)}, exec.last().Args)
}

func TestService_NotSignedIn(t *testing.T) {
	svc, exec := newService(t)

	_, err := svc.ClaimPayout(context.Background(), nil, 7)
	require.Equal(t, contractcall.ErrNotSignedIn, err)

	_, err = svc.Account(nil)
	require.Equal(t, contractcall.ErrNotSignedIn, err)

	require.Equal(t, 0, exec.count())
}

func TestService_MainnetFirst(t *testing.T) {
	svc, _ := newService(t)

	sess, err := session.Decode([]byte(`{"profile": {"stxAddress": {
		"testnet": "ST000000000000000000002AMW42H",
		"mainnet": "` + testAccount.String() + `"
	}}}`))
	require.NoError(t, err)

	account, err := svc.Account(sess)
	require.NoError(t, err)
	require.Equal(t, testAccount, account)
}

func TestService_ListPredictions(t *testing.T) {
	node := fake.NewNode()
	defer node.Close()

	node.Deploy(testContract)

	result := clarity.Ok(clarity.List{
		clarity.Tuple{
			"id":            clarity.NewUInt(0),
			"query":         clarity.StringUTF8("Will it rain?"),
			"closing-block": clarity.NewUInt(120),
		},
		clarity.Tuple{
			"id":            clarity.NewUInt(1),
			"query":         clarity.StringASCII("Who wins?"),
			"closing-block": clarity.NewUInt(300),
		},
	})

	node.ReadOnly = func(contract, function string, args []string) (string, bool) {
		if function != "get-all-predictions" || len(args) != 0 {
			return "UndefinedFunction", false
		}

		return mustHex(t, result), true
	}

	svc := NewService(submit.NewSubmitter(&fakeExecutor{}), api.NewClient(node.Network()),
		WithContract(mustContract(t)))

	predictions, err := svc.ListPredictions(context.Background(), testAccount)
	require.NoError(t, err)
	require.Equal(t, []Prediction{
		{ID: 0, Query: "Will it rain?", ClosingBlock: 120},
		{ID: 1, Query: "Who wins?", ClosingBlock: 300},
	}, predictions)

	node.Lock()
	result = clarity.Ok(clarity.List{clarity.Tuple{"id": clarity.NewUInt(0)}})
	node.Unlock()

	_, err = svc.ListPredictions(context.Background(), testAccount)
	require.EqualError(t, err, "get-all-predictions: prediction 0: missing field 'closing-block'")

	node.Lock()
	result = clarity.Ok(clarity.List{})
	node.Unlock()

	predictions, err = svc.ListPredictions(context.Background(), testAccount)
	require.NoError(t, err)
	require.Empty(t, predictions)

	node.Lock()
	node.Fail = true
	node.Unlock()

	_, err = svc.ListPredictions(context.Background(), testAccount)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to fetch predictions: ")
}

func TestService_Uninitialized(t *testing.T) {
	svc := NewService(submit.NewSubmitter(&fakeExecutor{}), nil)

	_, err := svc.ListPredictions(context.Background(), testAccount)
	require.Equal(t, contractcall.ErrContractUninitialized, err)

	node := fake.NewNode()
	defer node.Close()

	client := api.NewClient(node.Network())
	exec := contractcall.NewExecutor(tx.NewBuilder(client), client, contractcall.WithNetwork(node.Network()))

	svc = NewService(submit.NewSubmitter(exec), client)

	_, err = svc.ClaimPayout(context.Background(), makeSession(t), 1)
	require.Equal(t, contractcall.ErrContractUninitialized, err)
	require.Empty(t, node.Broadcasts())
}

func TestService_WagerScenario(t *testing.T) {
	node := fake.NewNode()
	defer node.Close()

	node.Deploy(testContract)

	client := api.NewClient(node.Network())
	exec := contractcall.NewExecutor(tx.NewBuilder(client), client,
		contractcall.WithNetwork(node.Network()),
		contractcall.WithResolver(session.NewResolver(session.WithPreferredNetwork("mainnet"))))

	group := watch.NewGroup()
	defer group.StopAll()

	svc := NewService(submit.NewSubmitter(exec, submit.WithTracking(group, time.Millisecond)), client,
		WithContract(mustContract(t)))

	sub, err := svc.PlaceWager(context.Background(), makeSession(t), 0, 1, 3)
	require.NoError(t, err)
	require.Equal(t, testAccount, sub.Sender)
	require.Len(t, node.Broadcasts(), 1)
	require.Equal(t, 1, group.Len())

	node.SetStatus(sub.TxID, "abort_by_post_condition")

	select {
	case <-sub.Tracker.Start(context.Background()).Done():
	case <-time.After(time.Second):
		t.Fatal("tracker did not stop")
	}

	require.Equal(t, api.StatusAbortByPostCondition, sub.Tracker.Status())
}

// -----------------------------------------------------------------------------
// Utility functions

func makeSession(t *testing.T) *session.Session {
	sess, err := session.Decode([]byte(`{
		"appPrivateKey": "` + testKey + `",
		"profile": {"stxAddress": {"mainnet": "` + testAccount.String() + `"}}
	}`))
	require.NoError(t, err)

	return sess
}

func mustContract(t *testing.T) contractcall.Contract {
	c, err := contractcall.ParseContract(testContract)
	require.NoError(t, err)

	return c
}

func mustHex(t *testing.T, v clarity.Value) string {
	hex, err := clarity.ToHex(v)
	require.NoError(t, err)

	return hex
}

func newService(t *testing.T) (*Service, *fakeExecutor) {
	exec := &fakeExecutor{}

	return NewService(submit.NewSubmitter(exec), nil, WithContract(mustContract(t))), exec
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

	return contractcall.Result{TxID: "0x01", Status: api.StatusPending, Function: req.Function}, nil
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
