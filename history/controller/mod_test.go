package controller

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.flashlend.io/stxdapp/api"
	"go.flashlend.io/stxdapp/cli/node"
	"go.flashlend.io/stxdapp/config"
	"go.flashlend.io/stxdapp/history"
)

const testAccount = "ST000000000000000000002AMW42H"

func TestController_SetCommands(t *testing.T) {
	builder := node.NewBuilder()

	NewController().SetCommands(builder)

	app := builder.Build()
	require.NotNil(t, app)
}

func TestController_OnStart(t *testing.T) {
	inj, store := startController(t)

	_, err := store.Add(history.Record{TxID: "0x01", Action: "deposit", Sender: testAccount})
	require.NoError(t, err)

	require.NoError(t, NewController().OnStop(inj))
}

func TestController_MissingConfig_OnStart(t *testing.T) {
	err := NewController().OnStart(node.FlagSet{}, node.NewInjector())
	require.EqualError(t, err, "injector: couldn't find dependency for '*config.Config'")
}

func TestController_MissingDB_OnStop(t *testing.T) {
	err := NewController().OnStop(node.NewInjector())
	require.EqualError(t, err, "injector: couldn't find dependency for 'kv.DB'")
}

func TestListAction_Execute(t *testing.T) {
	inj, store := startController(t)
	defer NewController().OnStop(inj)

	out := new(bytes.Buffer)
	ctx := node.Context{
		Injector: inj,
		Flags:    node.FlagSet{"limit": 20},
		Out:      out,
	}

	err := listAction{}.Execute(ctx)
	require.NoError(t, err)
	require.Equal(t, "no transaction\n", out.String())

	_, err = store.Add(history.Record{
		TxID:   "0x01",
		Action: "deposit",
		Sender: testAccount,
		Amount: "1.5",
		Status: api.StatusPending,
	})
	require.NoError(t, err)

	_, err = store.Add(history.Record{
		TxID:   "0x02",
		Action: "vote",
		Sender: "SP000000000000000000002Q6VF78",
	})
	require.NoError(t, err)

	out.Reset()
	err = listAction{}.Execute(ctx)
	require.NoError(t, err)
	require.Contains(t, out.String(), "0x01 deposit")
	require.Contains(t, out.String(), "0x02 vote")
	require.Contains(t, out.String(), "pending")

	out.Reset()
	ctx.Flags = node.FlagSet{"sender": testAccount, "limit": 20}
	err = listAction{}.Execute(ctx)
	require.NoError(t, err)
	require.Contains(t, out.String(), "0x01")
	require.NotContains(t, out.String(), "0x02")

	ctx.Flags = node.FlagSet{"sender": "not an address"}
	err = listAction{}.Execute(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid sender: ")

	err = listAction{}.Execute(node.Context{Injector: node.NewInjector()})
	require.EqualError(t, err, "injector: couldn't find dependency for '*history.Store'")
}

func TestShowAction_Execute(t *testing.T) {
	inj, store := startController(t)
	defer NewController().OnStop(inj)

	_, err := store.Add(history.Record{
		TxID:     "0x01",
		Action:   "withdraw",
		Contract: "SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9.flash-lend",
		Function: "withdraw",
		Sender:   testAccount,
		Amount:   "2",
	})
	require.NoError(t, err)

	out := new(bytes.Buffer)
	ctx := node.Context{
		Injector: inj,
		Flags:    node.FlagSet{"txid": "0x01"},
		Out:      out,
	}

	err = showAction{}.Execute(ctx)
	require.NoError(t, err)
	require.Contains(t, out.String(), "Action:   withdraw\n")
	require.Contains(t, out.String(), "Status:   unknown\n")

	ctx.Flags = node.FlagSet{"txid": "0x02"}
	err = showAction{}.Execute(ctx)
	require.EqualError(t, err, "failed to get: 0x02: record not found")
}

// -----------------------------------------------------------------------------
// Utility functions

func startController(t *testing.T) (node.Injector, *history.Store) {
	cfg := config.Default()
	cfg.HistoryPath = filepath.Join(t.TempDir(), "journal", "history.db")

	inj := node.NewInjector()
	inj.Inject(&cfg)

	err := NewController().OnStart(node.FlagSet{}, inj)
	require.NoError(t, err)

	var store *history.Store
	require.NoError(t, inj.Resolve(&store))

	return inj, store
}
