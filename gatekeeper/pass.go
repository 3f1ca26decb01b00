/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

package gatekeeper

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/goftpd/goftpd"
	"github.com/goftpd/goftpd/policy"
)

// pendingTarget is the Handler a connection is handed off to by Next after
// a USER command resolves successfully; it awaits PASS (a sequence-breaking
// command resets the exchange). A refused PASS below MaxLoginAttempts
// re-arms it, so the client may send PASS again. target is nil when
// USER-time resolution already failed but LoginPasswordPrompt deferred the
// failure to PASS (spec.md §4.4), so no identity lookup or verification
// needs to run: the verdict is already known.
type pendingTarget struct {
	gk     *Gatekeeper
	target *policy.Target
}

func (p *pendingTarget) Handle(req *goftpd.Request, resp goftpd.Response) error {
	if req.Verb != "PASS" {
		return resp.Reply(goftpd.NewReply(goftpd.StatusBadSequence, goftpd.TextLoginWithUserFirst))
	}
	if req.Arg == "" {
		return resp.Reply(goftpd.NewReply(goftpd.StatusNeedParam, goftpd.TextPassNeedsParam))
	}

	g := p.gk
	session := req.Session
	ctx := req.Context()

	session.LoginAttempts++

	attempt := session.Attempt
	attempt.Cleartext = []byte(req.Arg)

	if p.target == nil {
		attempt.Zero()
		err := g.refuseLogin(ctx, session, resp, attempt, errors.New("gatekeeper: login rejected by deferred resolution failure"))
		if err == nil {
			resp.Next(p)
		}
		return err
	}

	rec, lookupErr := g.Identity.Lookup(ctx, p.target.LookupName)
	if lookupErr != nil && !p.target.Anonymous {
		rec = nil
	}

	result, verifyErr := policy.Verify(ctx, g.Identity, p.target, rec, attempt, session.Groups)
	if verifyErr != nil {
		err := g.refuseLogin(ctx, session, resp, attempt, verifyErr)
		if err == nil {
			resp.Next(p)
		}
		return err
	}

	session.Identity = rec

	// spec.md §4.3 step 3 promotion: a group-password fallback hit either
	// adopts the matched anonymous scope as this login's binding, or, if the
	// match lived outside any <Anonymous> block, leaves the login non-anon
	// but records the matched group so the Installer rewrites the primary
	// GID from it (spec.md §4.5 step 4).
	if result.AdoptAnon != nil {
		p.target = &policy.Target{Scope: result.AdoptAnon, LookupName: p.target.LookupName, Anonymous: true, AnonOwner: result.AdoptAnon.Name}
	} else if result.AnonGroup != "" {
		session.AnonGroupOverride = result.AnonGroup
	}

	if p.target.Anonymous {
		rootDir, _ := policy.DefaultRoot(p.target.Scope, session.Groups)
		owner := rec
		if owner == nil {
			owner = &goftpd.IdentityRecord{Name: p.target.AnonOwner, IsAnon: true}
		}
		session.Anon = &goftpd.AnonymousBinding{Owner: *owner, RootDir: rootDir}
	}

	if err := g.Installer.Install(ctx, session, p.target.Scope); err != nil {
		if g.Logger != nil {
			g.Logger.Errorf(ctx, "privilege install failed for %s: %s", attempt.RequestedUser, err)
		}
		_ = resp.Reply(goftpd.NewReply(goftpd.StatusLoginIncorrect, goftpd.TextLoginIncorrect))
		return goftpd.ErrInstallFailed
	}

	session.LoggedIn = true
	if g.Logger != nil {
		g.Logger.Record(ctx, map[string]string{
			"event": "login-ok",
			"user":  attempt.RequestedUser,
			"peer":  hostOf(session),
		})
	}

	grant := goftpd.TextDefaultAnonGrant
	if !p.target.Anonymous {
		grant = goftpd.TextDefaultUserGrant
	}
	if msg, ok := p.target.Scope.GetString("AccessGrantMsg"); ok {
		grant = msg
	}

	if path, ok := p.target.Scope.GetString("DisplayLogin"); ok {
		if banner, err := os.ReadFile(path); err == nil {
			session.DisplayLogin = strings.TrimRight(string(banner), "\r\n")
			grant = session.DisplayLogin + "\n" + grant
		} else if g.Logger != nil {
			g.Logger.Errorf(ctx, "DisplayLogin %q: %s", path, err)
		}
	}

	return resp.Reply(goftpd.NewReply(goftpd.StatusLoginOK, grant, goftpd.SubUser(attempt.RequestedUser)))
}

// refuseLogin records the audit entry for a failed PASS (spec.md §7, with
// the specific backend reason never surfaced on the wire), then either sends
// the terminal refusal and ends the session (MaxLoginAttempts reached) or
// sends a plain failure response and leaves the connection in AWAITING_PASS.
func (g *Gatekeeper) refuseLogin(ctx context.Context, session *goftpd.SessionContext, resp goftpd.Response, attempt *goftpd.LoginAttempt, failure error) error {
	reason := refusalReason(failure)
	critical := errors.Is(failure, goftpd.ErrRootLoginDenied)

	if g.Logger != nil {
		fields := map[string]string{
			"event":  "login-refused",
			"user":   attempt.RequestedUser,
			"peer":   hostOf(session),
			"reason": reason,
		}
		if critical {
			fields["level"] = "critical"
			g.Logger.Errorf(ctx, "root login refused for %s from %s", attempt.RequestedUser, hostOf(session))
		}
		g.Logger.Record(ctx, fields)
	}

	if g.Config.MaxLoginAttempts > 0 && session.LoginAttempts >= g.Config.MaxLoginAttempts {
		_ = resp.Reply(goftpd.NewReply(goftpd.StatusLoginIncorrect, goftpd.TextLoginIncorrect))
		if g.Logger != nil {
			g.Logger.Record(ctx, map[string]string{
				"event": "login-refused-max-attempts",
				"user":  attempt.RequestedUser,
				"peer":  hostOf(session),
			})
		}
		return errors.New("gatekeeper: maximum login attempts exceeded")
	}

	return resp.Reply(goftpd.NewReply(goftpd.StatusLoginIncorrect, goftpd.TextLoginIncorrect))
}

// refusalReason maps a Verify/resolution failure to an audit-log reason
// string, keeping the wire response uniform (spec.md §7: "never reveal
// which specific check failed") while the specific cause still reaches the
// operator's log.
func refusalReason(err error) string {
	switch {
	case errors.Is(err, goftpd.ErrRootLoginDenied):
		return "root-login-denied"
	case errors.Is(err, goftpd.ErrAccessDenied):
		return "access-denied"
	case errors.Is(err, goftpd.ErrPasswordExpired):
		return "password-expired"
	case errors.Is(err, goftpd.ErrAccountDisabled):
		return "account-disabled"
	case errors.Is(err, goftpd.ErrNoSuchUser):
		return "no-such-user"
	default:
		return "bad-password"
	}
}
