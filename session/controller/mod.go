// Package controller holds the wallet session of the daemon and implements the
// commands to sign in and out.
package controller

import (
	"fmt"

	"go.flashlend.io/stxdapp/cli"
	"go.flashlend.io/stxdapp/cli/node"
	"go.flashlend.io/stxdapp/config"
	"go.flashlend.io/stxdapp/session"
	"golang.org/x/xerrors"
)

// SessionFlag is the flag of the start command to sign in with a session file
// when the daemon starts.
const SessionFlag = "session"

// NewController returns the initializer of the session. It expects the
// configuration to be injected.
func NewController() node.Initializer {
	return controller{}
}

// controller injects the *session.Holder.
//
// - implements node.Initializer
type controller struct{}

// SetCommands implements node.Initializer.
func (controller) SetCommands(builder node.Builder) {
	builder.SetStartFlags(cli.StringFlag{
		Name:  SessionFlag,
		Usage: "path to a session file to sign in with",
	})

	cmd := builder.SetCommand("session")
	cmd.SetDescription("manage the wallet session")

	sub := cmd.SetSubCommand("load")
	sub.SetDescription("sign in with the session exported by the wallet")
	sub.SetFlags(cli.StringFlag{
		Name:     "file",
		Usage:    "absolute path to the session file",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(loadAction{}))

	sub = cmd.SetSubCommand("show")
	sub.SetDescription("show the address of the session")
	sub.SetAction(builder.MakeAction(showAction{}))

	sub = cmd.SetSubCommand("signout")
	sub.SetDescription("forget the session")
	sub.SetAction(builder.MakeAction(signOutAction{}))
}

// OnStart implements node.Initializer. The session file of the start command
// is loaded if any.
func (controller) OnStart(flags cli.Flags, inj node.Injector) error {
	var cfg *config.Config

	err := inj.Resolve(&cfg)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	resolver := session.NewResolver(
		session.WithPreferredNetwork(cfg.PreferredNetwork),
		session.WithOrigin(cfg.Origin),
	)

	holder := session.NewHolder(resolver)

	path := flags.Path(SessionFlag)
	if path != "" {
		_, err = signIn(holder, path)
		if err != nil {
			return xerrors.Errorf("failed to sign in: %v", err)
		}
	}

	inj.Inject(holder)

	return nil
}

// OnStop implements node.Initializer.
func (controller) OnStop(inj node.Injector) error {
	var holder *session.Holder

	err := inj.Resolve(&holder)
	if err == nil {
		holder.SignOut()
	}

	return nil
}

// loadAction signs in with a session file.
//
// - implements node.ActionTemplate
type loadAction struct{}

// Execute implements node.ActionTemplate.
func (loadAction) Execute(ctx node.Context) error {
	var holder *session.Holder

	err := ctx.Injector.Resolve(&holder)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	addr, err := signIn(holder, ctx.Flags.Path("file"))
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "signed in as %s\n", addr)

	return nil
}

// showAction prints the address of the session.
//
// - implements node.ActionTemplate
type showAction struct{}

// Execute implements node.ActionTemplate.
func (showAction) Execute(ctx node.Context) error {
	var holder *session.Holder

	err := ctx.Injector.Resolve(&holder)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	sess, addr := holder.Current()
	if sess == nil {
		fmt.Fprintln(ctx.Out, "signed out")
		return nil
	}

	fmt.Fprintf(ctx.Out, "signed in as %s\n", addr)

	_, found := sess.AppPrivateKey()
	if !found {
		fmt.Fprintln(ctx.Out, "the session has no signing key")
	}

	return nil
}

// signOutAction forgets the session.
//
// - implements node.ActionTemplate
type signOutAction struct{}

// Execute implements node.ActionTemplate.
func (signOutAction) Execute(ctx node.Context) error {
	var holder *session.Holder

	err := ctx.Injector.Resolve(&holder)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	holder.SignOut()

	fmt.Fprintln(ctx.Out, "signed out")

	return nil
}

func signIn(holder *session.Holder, path string) (string, error) {
	sess, err := session.LoadFile(path)
	if err != nil {
		return "", err
	}

	addr, err := holder.SignIn(sess)
	if err != nil {
		return "", err
	}

	return addr.String(), nil
}
