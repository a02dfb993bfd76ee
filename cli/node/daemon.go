package node

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.flashlend.io/stxdapp"
	"go.flashlend.io/stxdapp/cli"
	"golang.org/x/xerrors"
)

// SocketName is the file name of the daemon socket inside the config folder.
const SocketName = "daemon.sock"

// requestTimeout is the time allowed to a client to deliver its request. The
// execution of the command is not bounded.
const requestTimeout = 30 * time.Second

var promCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "stxdapp_daemon_commands_total",
	Help: "commands executed by the daemon, by outcome",
}, []string{"outcome"})

func init() {
	stxdapp.PromCollectors = append(stxdapp.PromCollectors, promCommands)
}

// request is the message a client writes once per connection.
type request struct {
	Action uint16  `json:"action"`
	Flags  FlagSet `json:"flags"`
}

// reply is a message streamed back by the daemon. A reply with an error is
// always the last one.
type reply struct {
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

type dialer func(network, addr string, timeout time.Duration) (net.Conn, error)

// unixClient sends a request to the daemon and copies the replies to the
// output.
//
// - implements node.Client
type unixClient struct {
	path    string
	out     io.Writer
	timeout time.Duration
	dial    dialer
}

// Send implements node.Client.
func (c unixClient) Send(action uint16, flags FlagSet) error {
	conn, err := c.dial("unix", c.path, c.timeout)
	if err != nil {
		return xerrors.Errorf("couldn't open connection: %v", err)
	}

	defer conn.Close()

	err = json.NewEncoder(conn).Encode(request{Action: action, Flags: flags})
	if err != nil {
		return xerrors.Errorf("couldn't write to daemon: %v", err)
	}

	dec := json.NewDecoder(conn)

	for {
		var msg reply

		err = dec.Decode(&msg)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return xerrors.Errorf("fail to decode reply: %v", err)
		}

		if msg.Error != "" {
			return xerrors.New(msg.Error)
		}

		fmt.Fprintln(c.out, msg.Output)
	}
}

// unixDaemon serves the actions on a UNIX socket. Access is granted by the
// file permissions of the socket.
//
// - implements node.Daemon
type unixDaemon struct {
	logger  zerolog.Logger
	path    string
	inj     Injector
	actions *actionMap
	timeout time.Duration
	listen  func(network, addr string) (net.Listener, error)

	wg     sync.WaitGroup
	stop   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

func newUnixDaemon(path string, inj Injector, actions *actionMap) *unixDaemon {
	ctx, cancel := context.WithCancel(context.Background())

	return &unixDaemon{
		logger:  stxdapp.Logger.With().Str("daemon", path).Logger(),
		path:    path,
		inj:     inj,
		actions: actions,
		timeout: requestTimeout,
		listen:  net.Listen,
		stop:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Listen implements node.Daemon. It binds the socket and accepts the
// connections in the background.
func (d *unixDaemon) Listen() error {
	ln, err := d.listen("unix", d.path)
	if err != nil {
		return xerrors.Errorf("couldn't bind socket: %v", err)
	}

	d.wg.Add(2)

	go func() {
		defer d.wg.Done()

		<-d.stop
		d.cancel()
		ln.Close()
	}()

	go func() {
		defer d.wg.Done()
		d.acceptLoop(ln)
	}()

	return nil
}

func (d *unixDaemon) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-d.stop:
			default:
				d.logger.Err(err).Msg("daemon closed unexpectedly")
			}
			return
		}

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.serve(conn)
		}()
	}
}

func (d *unixDaemon) serve(conn net.Conn) {
	defer conn.Close()

	logger := d.logger.With().Str("request", xid.New().String()).Logger()

	conn.SetReadDeadline(time.Now().Add(d.timeout))

	var req request

	err := json.NewDecoder(conn).Decode(&req)
	if err == io.EOF {
		// A client probing the socket closes without a request.
		return
	}
	if err != nil {
		d.fail(logger, conn, "malformed", xerrors.Errorf("malformed request: %v", err))
		return
	}

	conn.SetReadDeadline(time.Time{})

	if req.Flags == nil {
		req.Flags = FlagSet{}
	}

	logger.Debug().
		Uint16("action", req.Action).
		Interface("flags", req.Flags).
		Msg("command received")

	tmpl := d.actions.Get(req.Action)
	if tmpl == nil {
		d.fail(logger, conn, "unknown", xerrors.Errorf("unknown action %d", req.Action))
		return
	}

	start := time.Now()

	err = tmpl.Execute(Context{
		Ctx:      d.ctx,
		Injector: d.inj,
		Flags:    req.Flags,
		Out:      replyWriter{enc: json.NewEncoder(conn)},
	})
	if err != nil {
		d.fail(logger, conn, "error", xerrors.Errorf("command error: %v", err))
		return
	}

	promCommands.WithLabelValues("ok").Inc()

	logger.Debug().Dur("took", time.Since(start)).Msg("command done")
}

func (d *unixDaemon) fail(logger zerolog.Logger, conn net.Conn, outcome string, err error) {
	promCommands.WithLabelValues(outcome).Inc()

	logger.Debug().Err(err).Msg("command failed")

	err = json.NewEncoder(conn).Encode(reply{Error: err.Error()})
	if err != nil {
		logger.Warn().Err(err).Msg("couldn't reply to the client")
	}
}

// Close implements node.Daemon. It cancels the context of the running commands
// and returns when they are done.
func (d *unixDaemon) Close() error {
	close(d.stop)
	d.cancel()
	d.wg.Wait()

	return nil
}

// replyWriter turns each write of an action into a reply message.
//
// - implements io.Writer
type replyWriter struct {
	enc *json.Encoder
}

// Write implements io.Writer.
func (w replyWriter) Write(data []byte) (int, error) {
	err := w.enc.Encode(reply{Output: string(data)})
	if err != nil {
		return 0, xerrors.Errorf("couldn't send output: %v", err)
	}

	return len(data), nil
}

// unixFactory creates the daemon and its clients from the config folder of
// the command line.
//
// - implements node.DaemonFactory
type unixFactory struct {
	inj     Injector
	actions *actionMap
	out     io.Writer
}

// ClientFromContext implements node.DaemonFactory.
func (f unixFactory) ClientFromContext(flags cli.Flags) (Client, error) {
	return unixClient{
		path:    socketPath(flags),
		out:     f.out,
		timeout: requestTimeout,
		dial:    net.DialTimeout,
	}, nil
}

// DaemonFromContext implements node.DaemonFactory.
func (f unixFactory) DaemonFromContext(flags cli.Flags) (Daemon, error) {
	return newUnixDaemon(socketPath(flags), f.inj, f.actions), nil
}

func socketPath(flags cli.Flags) string {
	return filepath.Join(flags.Path(ConfigFlag), SocketName)
}
