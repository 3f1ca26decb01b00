/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

// Package groupexpr matches a user's group membership against the
// comma-separated group-expression syntax used by AnonymousGroup,
// DefaultRoot, and DenyGroup directives. Adapted, at a much smaller scale,
// from the teacher's command-pattern authorizer
// (cmds/server/config/authorizers/stringy), which matches a single string
// against a set of accept/reject patterns; here the patterns are group
// names and the subject is a membership set rather than a command line.
package groupexpr

import "strings"

// Match reports whether groups satisfies expr. expr is a comma-separated
// list of group names; every term must hold for Match to return true
// (implicit AND, matching mod_auth.c's DenyGroup/AnonymousGroup semantics).
// A term prefixed with "!" is satisfied when the group is absent. The
// special expression "*" always matches.
func Match(expr string, groups []string) bool {
	expr = strings.TrimSpace(expr)
	if expr == "*" || expr == "" {
		return expr == "*"
	}

	has := make(map[string]bool, len(groups))
	for _, g := range groups {
		has[g] = true
	}

	for _, term := range strings.Split(expr, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if strings.HasPrefix(term, "!") {
			if has[strings.TrimPrefix(term, "!")] {
				return false
			}
			continue
		}
		if !has[term] {
			return false
		}
	}
	return true
}

// FirstMatch returns the first expression in exprs that Match accepts for
// groups, along with its index. Used by DefaultRoot, which may list several
// "<path> <group-expr>" pairs and takes the first one that applies.
func FirstMatch(exprs []string, groups []string) (int, bool) {
	for i, e := range exprs {
		if Match(e, groups) {
			return i, true
		}
	}
	return -1, false
}
