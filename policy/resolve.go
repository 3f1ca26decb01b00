/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

package policy

import (
	"fmt"

	"github.com/goftpd/goftpd"
	"github.com/goftpd/goftpd/cmds/ftpd/config/groupexpr"
)

// Target is what Resolve produces: the scope a login will be evaluated
// against, whether it resolved to an anonymous binding, and the name to
// actually look up in the Identity Provider Facade (after alias
// substitution).
type Target struct {
	Scope       *Scope
	LookupName  string
	Anonymous   bool
	AnonOwner   string // set when Anonymous: the real account owning the anon root
}

// Resolve implements the Config Resolver operation: given the server's root
// scope, the virtual host a connection was accepted on, and the raw name
// from a USER command, it applies UserAlias/AuthAliasOnly substitution and
// AnonymousGroup matching to decide which account to authenticate against
// and under which scope.
func Resolve(root *Scope, vhost, requestedUser string, groups goftpd.GroupMembership) (*Target, error) {
	scope := root
	if vhost != "" {
		if vh := root.Child(KindVirtualHost, vhost); vh != nil {
			scope = vh
		}
	}

	name := requestedUser
	aliased := false
	for _, alias := range scope.GetAll("UserAlias") {
		// UserAlias <alias> <real-name>
		if len(alias) == 2 && alias[0] == requestedUser {
			name = alias[1]
			aliased = true
			break
		}
	}

	if authAliasOnly, ok := scope.GetString("AuthAliasOnly"); ok && authAliasOnly == "on" && !aliased {
		return nil, fmt.Errorf("%w: AuthAliasOnly requires a UserAlias match for %q", goftpd.ErrAccessDenied, requestedUser)
	}

	if anonExpr, ok := scope.GetString("AnonymousGroup"); ok && groupexpr.Match(anonExpr, groups.Names) {
		anon := scope.ChildrenOfKind(KindAnonymous)
		for _, a := range anon {
			if a.Name == name || a.Name == "*" {
				return &Target{Scope: a, LookupName: name, Anonymous: true, AnonOwner: a.Name}, nil
			}
		}
	}

	if anonScope := scope.Child(KindAnonymous, name); anonScope != nil {
		return &Target{Scope: anonScope, LookupName: name, Anonymous: true, AnonOwner: name}, nil
	}

	if denyExpr, ok := scope.GetString("DenyGroup"); ok && groupexpr.Match(denyExpr, groups.Names) {
		return nil, fmt.Errorf("%w: DenyGroup matched for %q", goftpd.ErrAccessDenied, name)
	}

	return &Target{Scope: scope, LookupName: name, Anonymous: false}, nil
}

// DefaultRoot evaluates the DefaultRoot directive(s) at scope, in the
// teacher-adjacent "first matching group-expr wins" order, returning the
// chroot path to use. It returns ("", false) when no DefaultRoot directive
// applies; the caller picks the fallback (install.Installer uses "/" for a
// real account and the anon owner's home for an anonymous login).
func DefaultRoot(scope *Scope, groups goftpd.GroupMembership) (string, bool) {
	entries := scope.GetAll("DefaultRoot")
	exprs := make([]string, 0, len(entries))
	for _, e := range entries {
		if len(e) >= 2 {
			exprs = append(exprs, e[1])
		} else {
			exprs = append(exprs, "*")
		}
	}
	idx, ok := groupexpr.FirstMatch(exprs, groups.Names)
	if !ok {
		return "", false
	}
	return entries[idx][0], true
}

// DefaultChdir evaluates the DefaultChdir directive(s) at scope, mirroring
// DefaultRoot's first-matching-group-expr-wins evaluation, and returns the
// configured initial working directory for matching logins. Returns ("",
// false) when no DefaultChdir directive applies.
func DefaultChdir(scope *Scope, groups goftpd.GroupMembership) (string, bool) {
	entries := scope.GetAll("DefaultChdir")
	exprs := make([]string, 0, len(entries))
	for _, e := range entries {
		if len(e) >= 2 {
			exprs = append(exprs, e[1])
		} else {
			exprs = append(exprs, "*")
		}
	}
	idx, ok := groupexpr.FirstMatch(exprs, groups.Names)
	if !ok {
		return "", false
	}
	return entries[idx][0], true
}

// HostAllowed applies the AllowDenyOrder/Allow/Deny host ACL at scope
// against remoteHost, returning false when the peer must be rejected before
// any credential check runs.
func HostAllowed(scope *Scope, remoteHost string) bool {
	order, _ := scope.GetString("AllowDenyOrder")
	allow := matchesAny(scope.GetLocal("Allow"), remoteHost)
	deny := matchesAny(scope.GetLocal("Deny"), remoteHost)

	switch order {
	case "allow,deny":
		if deny {
			return false
		}
		return allow || len(scope.GetLocal("Allow")) == 0
	case "deny,allow":
		if allow {
			return true
		}
		return !deny
	default:
		// no AllowDenyOrder at this scope: allow unless a Deny entry
		// matches and no Allow entry does.
		return !deny || allow
	}
}

func matchesAny(entries [][]string, host string) bool {
	for _, e := range entries {
		if len(e) == 0 {
			continue
		}
		if cidrContains(e[0], host) {
			return true
		}
	}
	return false
}
