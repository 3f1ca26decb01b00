/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

package goftpd

import (
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LoginAttempt is the record of one USER/PASS exchange as typed by the
// client, before any alias resolution or verification has run. Cleartext is
// filled in when PASS arrives and zeroed in place by Zero.
type LoginAttempt struct {
	RequestedUser string
	Cleartext     []byte
	RemoteAddr    net.Addr
	VirtualHost   string
	StartedAt     time.Time
}

// Zero overwrites the cleartext password buffer in place. Called by
// policy.Verify once its final verdict has been reached (see SPEC_FULL.md's
// Open Question #1 resolution), and directly by the Gatekeeper when a PASS
// is refused without running Verify.
func (a *LoginAttempt) Zero() {
	for i := range a.Cleartext {
		a.Cleartext[i] = 0
	}
}

// IdentityRecord is what the Identity Provider Facade returns for a resolved
// account: UID/GID, home directory, shell, and the password hash to verify
// against (or nil for anonymous-style accounts with no local password).
type IdentityRecord struct {
	Name      string
	UID       int
	GID       int
	Home      string
	Shell     string
	PassHash  []byte
	IsAnon    bool
}

// GroupMembership is the resolved set of supplementary group names and gids
// an IdentityRecord belongs to, used for AnonymousGroup/DefaultRoot/DenyGroup
// group-expression matching.
type GroupMembership struct {
	Names []string
	GIDs  []int
}

// Has reports whether name is among the membership's group names.
func (g GroupMembership) Has(name string) bool {
	for _, n := range g.Names {
		if n == name {
			return true
		}
	}
	return false
}

// AnonymousBinding describes how an anonymous login maps onto a real local
// account: the owning account's IdentityRecord plus the configured root
// directory for anonymous sessions under that account.
type AnonymousBinding struct {
	Owner   IdentityRecord
	RootDir string
}

// SessionContext is the accumulated, per-connection state threaded through
// the Config Resolver, Credential Verifier, Session Gatekeeper and Privilege
// Installer. It is built incrementally as a login proceeds and is considered
// immutable once the Installer has run (fields are only read afterward).
type SessionContext struct {
	ID          string
	RemoteAddr  net.Addr
	VirtualHost string

	Attempt  *LoginAttempt
	Identity *IdentityRecord
	Groups   GroupMembership
	Anon     *AnonymousBinding

	// AnonGroupOverride is set by the Credential Verifier's group-password
	// fallback (spec.md §4.3 step 3) when the matched GroupPassword lives
	// outside any anonymous block: the login stays non-anon, but the
	// Privilege Installer rewrites the primary GID from this group's record
	// (spec.md §4.5 step 4).
	AnonGroupOverride string

	LoginAttempts int
	LoggedIn      bool
	EstablishedAt time.Time

	// Home is the working directory the session is left in once the
	// Privilege Installer completes, always relative to whatever root the
	// installer chrooted into (or absolute, when no chroot applied).
	Home string

	// IsAnon, AsciiMode, and HidePassword mirror the SessionContext flags
	// named in spec.md §3; ProcPrefix is the ps-style display string built
	// from the installed identity once login completes.
	IsAnon       bool
	AsciiMode    bool
	HidePassword bool
	ProcPrefix   string

	DisplayLogin string
}

// sessionRegistry tracks live sessions for admission-control counting
// (MaxClients, MaxClientsPerHost), mirroring the teacher's mutex+map+gauge
// session tracker.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*SessionContext
	byHost   map[string]int
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		sessions: make(map[string]*SessionContext),
		byHost:   make(map[string]int),
	}
}

func hostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// Add registers a new session and returns the total client count and the
// count for the session's peer host, both post-increment.
func (r *sessionRegistry) Add(s *SessionContext) (total, perHost int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	host := hostOf(s.RemoteAddr)
	r.byHost[host]++
	sessionsActive.Inc()
	return len(r.sessions), r.byHost[host]
}

// Remove deregisters a session by id.
func (r *sessionRegistry) Remove(id string, addr net.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	host := hostOf(addr)
	if r.byHost[host] > 0 {
		r.byHost[host]--
	}
	if r.byHost[host] == 0 {
		delete(r.byHost, host)
	}
	sessionsActive.Dec()
}

// Counts returns the current total session count and the count for host,
// without mutating the registry. Used by the Gatekeeper's admission check;
// the counts already include the asking session, which Server.handle Adds
// when the connection is accepted.
func (r *sessionRegistry) Counts(host string) (total, perHost int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), r.byHost[host]
}

var sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "goftpd",
	Name:      "sessions_active",
	Help:      "Number of control connections currently established.",
})
