/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

package goftpd

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes named in spec.md §7. Session-fatal
// errors (ErrInstallFailed) terminate the connection immediately without a
// wire reply beyond what has already been sent; verdict errors
// (ErrLoginIncorrect, ErrAccessDenied) map to a single uniform 530 on the
// wire per spec.md's "never reveal which check failed" rule.
var (
	// ErrNoSuchUser is returned by Identity.Lookup for an unknown name.
	ErrNoSuchUser = errors.New("goftpd: no such user")

	// ErrLoginIncorrect covers any credential mismatch: bad password, bad
	// group password fallback, or an identity lookup failure that must not
	// be distinguishable from a bad password on the wire.
	ErrLoginIncorrect = errors.New("goftpd: login incorrect")

	// ErrAccessDenied covers policy-level refusals that are not credential
	// mismatches: DenyGroup match, host ACL deny, root login refusal.
	ErrAccessDenied = errors.New("goftpd: access denied")

	// ErrAdmissionRejected covers MaxClients/MaxClientsPerHost rejection.
	ErrAdmissionRejected = errors.New("goftpd: admission rejected")

	// ErrLoginTimeout covers the TimeoutLogin backstop firing before a
	// session reached LoggedIn.
	ErrLoginTimeout = errors.New("goftpd: login timeout")

	// ErrInstallFailed is session-fatal: the verdict was positive but the
	// Privilege Installer could not complete the 13-step sequence. The
	// connection is torn down without attempting to continue in any
	// unprivileged or partially-privileged state.
	ErrInstallFailed = errors.New("goftpd: privilege install failed")

	// ErrBadSequence covers a PASS received with no prior USER, or a second
	// USER/PASS after LoggedIn is already true.
	ErrBadSequence = errors.New("goftpd: bad command sequence")

	// ErrPasswordExpired and ErrAccountDisabled give the audit log a
	// specific reason (spec.md §7) for a credential failure that would
	// otherwise collapse into ErrLoginIncorrect on the wire.
	ErrPasswordExpired = errors.New("goftpd: password expired")
	ErrAccountDisabled = errors.New("goftpd: account disabled")

	// ErrRootLoginDenied covers a verified uid-0 credential refused because
	// RootLogin is not enabled in scope. It wraps ErrAccessDenied so generic
	// policy-failure handling still matches it, while letting callers that
	// need the critical-severity audit distinction check for it specifically.
	ErrRootLoginDenied = fmt.Errorf("goftpd: root login denied: %w", ErrAccessDenied)
)
