package node

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.flashlend.io/stxdapp/cli"
	"go.flashlend.io/stxdapp/testing/fake"
	"golang.org/x/xerrors"
)

func TestUnixClient_Send(t *testing.T) {
	path := filepath.Join(socketDir(t), SocketName)
	reqs := replyWith(t, path, reply{Output: "balance: 10 STX"}, reply{Output: "nonce: 3"})

	out := new(bytes.Buffer)
	client := unixClient{path: path, out: out, timeout: time.Second, dial: net.DialTimeout}

	err := client.Send(3, FlagSet{"amount": 1.5})
	require.NoError(t, err)
	require.Equal(t, "balance: 10 STX\nnonce: 3\n", out.String())

	req := <-reqs
	require.Equal(t, uint16(3), req.Action)
	require.Equal(t, 1.5, req.Flags.Float64("amount"))
}

func TestUnixClient_ErrorReply_Send(t *testing.T) {
	path := filepath.Join(socketDir(t), SocketName)
	replyWith(t, path, reply{Output: "first"}, reply{Error: "command error: oops"})

	out := new(bytes.Buffer)
	client := unixClient{path: path, out: out, timeout: time.Second, dial: net.DialTimeout}

	err := client.Send(0, nil)
	require.EqualError(t, err, "command error: oops")
	require.Equal(t, "first\n", out.String())
}

func TestUnixClient_Failures_Send(t *testing.T) {
	client := unixClient{
		dial: func(string, string, time.Duration) (net.Conn, error) {
			return nil, fake.GetError()
		},
	}

	err := client.Send(0, nil)
	require.EqualError(t, err, fake.Err("couldn't open connection"))

	client.dial = func(string, string, time.Duration) (net.Conn, error) {
		return badConn{}, nil
	}

	err = client.Send(0, nil)
	require.EqualError(t, err, fake.Err("couldn't write to daemon"))

	client.dial = func(string, string, time.Duration) (net.Conn, error) {
		return badConn{counter: fake.NewCounter(1)}, nil
	}

	err = client.Send(0, nil)
	require.EqualError(t, err, fake.Err("fail to decode reply"))
}

func TestUnixDaemon_Listen(t *testing.T) {
	actions := &actionMap{}
	actions.add(fakeAction{amount: 2.5})
	actions.add(fakeAction{err: fake.GetError()})

	daemon := newUnixDaemon(filepath.Join(socketDir(t), SocketName), NewInjector(), actions)
	daemon.timeout = 50 * time.Millisecond

	require.NoError(t, daemon.Listen())
	defer daemon.Close()

	out := new(bytes.Buffer)
	client := unixClient{path: daemon.path, out: out, timeout: time.Second, dial: net.DialTimeout}

	err := client.Send(0, FlagSet{"amount": 2.5})
	require.NoError(t, err)
	require.Equal(t, "deposited\n", out.String())

	err = client.Send(0, FlagSet{})
	require.EqualError(t, err, "command error: missing flag amount")

	err = client.Send(1, nil)
	require.EqualError(t, err, fake.Err("command error"))

	err = client.Send(2, nil)
	require.EqualError(t, err, "unknown action 2")
}

func TestUnixDaemon_MalformedRequest_Listen(t *testing.T) {
	daemon := newUnixDaemon(filepath.Join(socketDir(t), SocketName), NewInjector(), &actionMap{})
	daemon.timeout = 50 * time.Millisecond

	require.NoError(t, daemon.Listen())
	defer daemon.Close()

	conn, err := net.DialTimeout("unix", daemon.path, time.Second)
	require.NoError(t, err)

	defer conn.Close()

	_, err = conn.Write([]byte("deposit 2.5\n"))
	require.NoError(t, err)

	var msg reply
	require.NoError(t, json.NewDecoder(conn).Decode(&msg))
	require.Contains(t, msg.Error, "malformed request: ")
}

func TestUnixDaemon_Probe_Listen(t *testing.T) {
	daemon := newUnixDaemon(filepath.Join(socketDir(t), SocketName), NewInjector(), &actionMap{})

	require.NoError(t, daemon.Listen())
	defer daemon.Close()

	conn, err := net.DialTimeout("unix", daemon.path, time.Second)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

func TestUnixDaemon_FailBind_Listen(t *testing.T) {
	daemon := newUnixDaemon("", NewInjector(), &actionMap{})
	daemon.listen = func(string, string) (net.Listener, error) {
		return nil, fake.GetError()
	}

	err := daemon.Listen()
	require.EqualError(t, err, fake.Err("couldn't bind socket"))
}

func TestUnixDaemon_Close(t *testing.T) {
	started := make(chan struct{})

	actions := &actionMap{}
	actions.add(blockingAction{started: started})

	daemon := newUnixDaemon(filepath.Join(socketDir(t), SocketName), NewInjector(), actions)
	require.NoError(t, daemon.Listen())

	client := unixClient{path: daemon.path, out: new(bytes.Buffer), timeout: time.Second, dial: net.DialTimeout}

	errs := make(chan error, 1)
	go func() {
		errs <- client.Send(0, nil)
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("command not started")
	}

	require.NoError(t, daemon.Close())

	select {
	case err := <-errs:
		require.EqualError(t, err, "command error: context canceled")
	case <-time.After(time.Second):
		t.Fatal("command not cancelled")
	}
}

func TestUnixDaemon_BrokenConn_Serve(t *testing.T) {
	logger, check := fake.CheckLog("couldn't reply to the client")

	daemon := newUnixDaemon("", NewInjector(), &actionMap{})
	daemon.logger = logger

	daemon.serve(badConn{})

	check(t)
}

func TestReplyWriter_Write(t *testing.T) {
	buffer := new(bytes.Buffer)

	n, err := replyWriter{enc: json.NewEncoder(buffer)}.Write([]byte("tx submitted"))
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.Equal(t, `{"output":"tx submitted"}`+"\n", buffer.String())

	n, err = replyWriter{enc: json.NewEncoder(fake.BadWriter{})}.Write([]byte("tx submitted"))
	require.Equal(t, 0, n)
	require.EqualError(t, err, fake.Err("couldn't send output"))
}

func TestUnixFactory(t *testing.T) {
	factory := unixFactory{actions: &actionMap{}}
	flags := FlagSet{ConfigFlag: "cfgdir"}

	client, err := factory.ClientFromContext(flags)
	require.NoError(t, err)
	require.Equal(t, filepath.Join("cfgdir", SocketName), client.(unixClient).path)

	daemon, err := factory.DaemonFromContext(flags)
	require.NoError(t, err)
	require.Equal(t, filepath.Join("cfgdir", SocketName), daemon.(*unixDaemon).path)
}

// -----------------------------------------------------------------------------
// Utility functions

// socketDir returns a short folder as the path of a UNIX socket is limited in
// length, which t.TempDir can exceed.
func socketDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "stx")
	require.NoError(t, err)

	t.Cleanup(func() { os.RemoveAll(dir) })

	return dir
}

// replyWith accepts a single connection, forwards the request and answers
// with the replies.
func replyWith(t *testing.T, path string, replies ...reply) <-chan request {
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)

	reqs := make(chan request, 1)

	go func() {
		defer ln.Close()

		conn, err := ln.Accept()
		if err != nil {
			return
		}

		defer conn.Close()

		var req request
		if json.NewDecoder(conn).Decode(&req) != nil {
			return
		}

		reqs <- req

		enc := json.NewEncoder(conn)
		for _, r := range replies {
			enc.Encode(r)
		}
	}()

	return reqs
}

type fakeInitializer struct {
	err     error
	errStop error
	calls   *fake.Call
}

func (c fakeInitializer) SetCommands(Builder) {}

func (c fakeInitializer) OnStart(cli.Flags, Injector) error {
	if c.calls != nil {
		c.calls.Add("start")
	}

	return c.err
}

func (c fakeInitializer) OnStop(Injector) error {
	if c.calls != nil {
		c.calls.Add("stop")
	}

	return c.errStop
}

type fakeClient struct {
	err   error
	calls *fake.Call
}

func (c fakeClient) Send(action uint16, flags FlagSet) error {
	c.calls.Add(action, flags)
	return c.err
}

type fakeDaemon struct {
	err      error
	errClose error
}

func (d fakeDaemon) Listen() error {
	return d.err
}

func (d fakeDaemon) Close() error {
	return d.errClose
}

type fakeFactory struct {
	err       error
	errClient error
	errDaemon error
	errClose  error
	calls     *fake.Call
}

func (f fakeFactory) ClientFromContext(cli.Flags) (Client, error) {
	return fakeClient{err: f.errClient, calls: f.calls}, f.err
}

func (f fakeFactory) DaemonFromContext(cli.Flags) (Daemon, error) {
	return fakeDaemon{err: f.errDaemon, errClose: f.errClose}, f.err
}

type fakeAction struct {
	err    error
	amount float64
}

func (a fakeAction) Execute(req Context) error {
	if a.err != nil {
		return a.err
	}

	if a.amount != 0 && req.Flags.Float64("amount") != a.amount {
		return xerrors.New("missing flag amount")
	}

	req.Out.Write([]byte("deposited"))
	return nil
}

type blockingAction struct {
	started chan struct{}
}

func (a blockingAction) Execute(req Context) error {
	close(a.started)

	<-req.Ctx.Done()

	return req.Ctx.Err()
}

type badConn struct {
	net.Conn

	counter *fake.Counter
}

func (conn badConn) Read(data []byte) (int, error) {
	return 0, fake.GetError()
}

func (conn badConn) Write(data []byte) (int, error) {
	if !conn.counter.Done() {
		conn.counter.Decrease()
		return len(data), nil
	}

	return 0, fake.GetError()
}

func (badConn) SetReadDeadline(time.Time) error {
	return nil
}

func (badConn) Close() error {
	return nil
}
