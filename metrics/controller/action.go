package controller

import (
	"fmt"
	gohttp "net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.flashlend.io/stxdapp"
	"go.flashlend.io/stxdapp/cli/node"
	"go.flashlend.io/stxdapp/metrics/http"
	"golang.org/x/xerrors"
)

// startAction starts the server and registers the collectors of the packages
// in a dedicated registry.
//
// - implements node.ActionTemplate
type startAction struct{}

// Execute implements node.ActionTemplate.
func (startAction) Execute(ctx node.Context) error {
	var running *http.Server

	err := ctx.Injector.Resolve(&running)
	if err == nil && running.Addr() != nil {
		return xerrors.Errorf("metrics server already running on %s", running.Addr())
	}

	registry := prometheus.NewRegistry()

	for _, c := range append([]prometheus.Collector{prometheus.NewGoCollector()}, stxdapp.PromCollectors...) {
		err = registry.Register(c)
		if err != nil {
			return xerrors.Errorf("failed to register collector: %v", err)
		}
	}

	srv := http.NewServer(ctx.Flags.String("addr"))
	srv.Handle(ctx.Flags.String("path"), promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv.Handle("/healthz", gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		w.Write([]byte("ok"))
	}))

	err = srv.Start()
	if err != nil {
		return xerrors.Errorf("failed to start server: %v", err)
	}

	ctx.Injector.Inject(srv)

	fmt.Fprintf(ctx.Out, "started metrics server on %s", srv.Addr())

	return nil
}

// stopAction stops the server.
//
// - implements node.ActionTemplate
type stopAction struct{}

// Execute implements node.ActionTemplate.
func (stopAction) Execute(ctx node.Context) error {
	var srv *http.Server

	err := ctx.Injector.Resolve(&srv)
	if err != nil {
		return xerrors.New("metrics server is not running")
	}

	err = srv.Stop()
	if err != nil {
		return xerrors.Errorf("failed to stop server: %v", err)
	}

	fmt.Fprint(ctx.Out, "metrics server stopped")

	return nil
}
