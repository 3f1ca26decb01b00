/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

// Package gatekeeper implements the Session Gatekeeper: the
// USER -> AWAITING_PASS -> VERIFYING -> INSTALLING state machine that turns
// a raw control connection into an established, privilege-dropped session.
// It is a sibling of package install rather than a dependent of it — the
// Installer interface below is satisfied structurally by install.Installer,
// keeping the two packages decoupled so cmds/ftpd is the only place that
// wires them together.
package gatekeeper

import (
	"context"
	"fmt"
	"net"

	"github.com/goftpd/goftpd"
	"github.com/goftpd/goftpd/policy"
)

// Installer performs the Privilege Installer's 13-step sequence against an
// already-verified session, evaluated against the scope the Config Resolver
// settled on. Satisfied by install.Installer.
type Installer interface {
	Install(ctx context.Context, session *goftpd.SessionContext, scope *policy.Scope) error
}

// Admission reports current session counts for MaxClients/MaxClientsPerHost
// enforcement. Satisfied by *goftpd.Server.
type Admission interface {
	Counts(host string) (total, perHost int)
}

// Config bundles the per-vhost policy limits the Gatekeeper enforces ahead
// of any credential check.
type Config struct {
	MaxClients        int
	MaxClientsPerHost int
	MaxLoginAttempts  int
}

// Gatekeeper is a goftpd.Handler implementing the initial state of every
// control connection: awaiting USER, then PASS, then handing a verified
// session to the Installer.
type Gatekeeper struct {
	Root       *policy.Scope
	VHost      string
	Identity   goftpd.Identity
	Installer  Installer
	Admission  Admission
	Logger     goftpd.Logger
	Config     Config
}

// New returns a Gatekeeper ready to be set as a Server's initial Handler.
func New(root *policy.Scope, vhost string, idp goftpd.Identity, installer Installer, admission Admission, logger goftpd.Logger, cfg Config) *Gatekeeper {
	return &Gatekeeper{
		Root:      root,
		VHost:     vhost,
		Identity:  idp,
		Installer: installer,
		Admission: admission,
		Logger:    logger,
		Config:    cfg,
	}
}

// Handle dispatches by command verb. Any verb other than USER/PASS received
// before LoggedIn is a sequence error (spec.md §7): "Login with USER first."
func (g *Gatekeeper) Handle(req *goftpd.Request, resp goftpd.Response) error {
	switch req.Verb {
	case "USER":
		return g.handleUser(req, resp)
	case "PASS":
		return resp.Reply(goftpd.NewReply(goftpd.StatusBadSequence, goftpd.TextLoginWithUserFirst))
	default:
		return resp.Reply(goftpd.NewReply(goftpd.StatusBadSequence, goftpd.TextLoginWithUserFirst))
	}
}

func (g *Gatekeeper) handleUser(req *goftpd.Request, resp goftpd.Response) error {
	if req.Arg == "" {
		return resp.Reply(goftpd.NewReply(goftpd.StatusNeedParam, goftpd.TextUserNeedsParam))
	}

	session := req.Session
	remoteHost := hostOf(session)
	if !policy.HostAllowed(g.Root, remoteHost) {
		admissionRejectedReply := goftpd.NewReply(goftpd.StatusLoginIncorrect, goftpd.TextLoginIncorrect)
		return resp.Reply(admissionRejectedReply)
	}

	if g.Config.MaxClients > 0 || g.Config.MaxClientsPerHost > 0 {
		total, perHost := g.Admission.Counts(remoteHost)
		if g.Config.MaxClients > 0 && total > g.Config.MaxClients {
			return resp.Reply(g.limitReply("MaxClients", g.Config.MaxClients, "Sorry, the maximum number of allowed clients (%m) are already connected."))
		}
		if g.Config.MaxClientsPerHost > 0 && perHost > g.Config.MaxClientsPerHost {
			return resp.Reply(g.limitReply("MaxClientsPerHost", g.Config.MaxClientsPerHost, "Sorry, the maximum number of connections (%m) from your host are already reached."))
		}
	}

	groups, err := g.Identity.Groups(req.Context(), req.Arg)
	if err != nil {
		groups = goftpd.GroupMembership{}
	}

	session.Attempt = &goftpd.LoginAttempt{RequestedUser: req.Arg, RemoteAddr: session.RemoteAddr, VirtualHost: g.VHost}
	session.Groups = groups

	target, err := policy.Resolve(g.Root, g.VHost, req.Arg, groups)
	if err != nil {
		return g.handleResolveFailure(req, resp, remoteHost, err)
	}

	pending := &pendingTarget{gk: g, target: target}

	if target.Anonymous {
		resp.Next(pending)
		return resp.Reply(goftpd.NewReply(goftpd.StatusNeedPassword, goftpd.TextAnonPasswordPrompt))
	}

	resp.Next(pending)
	return resp.Reply(goftpd.NewReply(goftpd.StatusNeedPassword, fmt.Sprintf(goftpd.TextPasswordRequiredFmt, req.Arg), goftpd.SubUser(req.Arg)))
}

// handleResolveFailure implements spec.md §4.4's LoginPasswordPrompt branch:
// when the Config Resolver already knows USER will fail (unknown alias, a
// LIMIT deny, or an AuthAliasOnly rejection), the default behavior is still
// to prompt for a password so a USER probe cannot be used to enumerate valid
// account names; only when LoginPasswordPrompt is explicitly off does the
// connection close immediately without a PASS round-trip.
func (g *Gatekeeper) handleResolveFailure(req *goftpd.Request, resp goftpd.Response, remoteHost string, resolveErr error) error {
	prompt, _ := g.scope().GetString("LoginPasswordPrompt")
	if prompt == "off" {
		if g.Logger != nil {
			g.Logger.Record(req.Context(), map[string]string{
				"event":  "login-refused",
				"user":   req.Arg,
				"peer":   remoteHost,
				"reason": "resolution-failed",
			})
		}
		_ = resp.Reply(goftpd.NewReply(goftpd.StatusLoginIncorrect, goftpd.TextLoginIncorrect))
		return fmt.Errorf("gatekeeper: login rejected at USER time by LoginPasswordPrompt off: %w", resolveErr)
	}

	resp.Next(&pendingTarget{gk: g, target: nil})
	return resp.Reply(goftpd.NewReply(goftpd.StatusNeedPassword, fmt.Sprintf(goftpd.TextPasswordRequiredFmt, req.Arg), goftpd.SubUser(req.Arg)))
}

// scope returns the scope USER-time directives (LoginPasswordPrompt,
// MaxClients[PerHost] message templates) are read from: the named virtual
// host if one is configured, otherwise the server root.
func (g *Gatekeeper) scope() *policy.Scope {
	if g.VHost != "" {
		if vh := g.Root.Child(policy.KindVirtualHost, g.VHost); vh != nil {
			return vh
		}
	}
	return g.Root
}

// limitReply builds the 530 reply for a MaxClients/MaxClientsPerHost
// rejection, using the directive's optional message argument
// (MaxClientsPerHost 1 "Only one from %m") in place of defaultText when one
// is configured, with %m expanded to limit either way.
func (g *Gatekeeper) limitReply(directive string, limit int, defaultText string) goftpd.Reply {
	text := defaultText
	if args, ok := g.scope().Get(directive); ok && len(args) >= 2 {
		text = args[1]
	}
	return goftpd.NewReply(goftpd.StatusLoginIncorrect, text, goftpd.SubLimit(limit))
}

func hostOf(session *goftpd.SessionContext) string {
	if session == nil || session.RemoteAddr == nil {
		return ""
	}
	addr := session.RemoteAddr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
