package dapp

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.flashlend.io/stxdapp/cli/node"
	"go.flashlend.io/stxdapp/config"
	"go.flashlend.io/stxdapp/network"
	"go.flashlend.io/stxdapp/session"
	"go.flashlend.io/stxdapp/watch"
)

func TestNew(t *testing.T) {
	inj := node.NewInjector()

	_, err := New("test", network.Testnet, nil, inj)
	require.EqualError(t, err, "injector: couldn't find dependency for '*config.Config'")

	cfg := config.Default()
	inj.Inject(&cfg)

	stack, err := New("test", network.Mainnet, nil, inj)
	require.NoError(t, err)
	require.Equal(t, network.Mainnet, stack.Client.Network())
	require.NotNil(t, stack.Executor)
	require.NotNil(t, stack.Submitter)
	require.Nil(t, stack.History)

	inj.Inject(watch.NewGroup())

	contract, err := ParseContract("SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9.flash-lend")
	require.NoError(t, err)

	stack, err = New("test", network.Testnet, contract, inj)
	require.NoError(t, err)
	require.Equal(t, network.Testnet, stack.Network)
}

func TestParseContract(t *testing.T) {
	c, err := ParseContract("")
	require.NoError(t, err)
	require.Nil(t, c)

	c, err = ParseContract("SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9.flash-lend")
	require.NoError(t, err)
	require.Equal(t, "flash-lend", c.Name)

	_, err = ParseContract("flash-lend")
	require.EqualError(t, err, "invalid contract 'flash-lend': expected ADDR.name")
}

func TestCurrent(t *testing.T) {
	inj := node.NewInjector()
	require.Nil(t, Current(inj))

	holder := session.NewHolder(session.NewResolver())
	inj.Inject(holder)
	require.Nil(t, Current(inj))

	sess, err := session.Decode([]byte(`{"profile": {"stxAddress": "ST000000000000000000002AMW42H"}}`))
	require.NoError(t, err)

	_, err = holder.SignIn(sess)
	require.NoError(t, err)
	require.Same(t, sess, Current(inj))
}
