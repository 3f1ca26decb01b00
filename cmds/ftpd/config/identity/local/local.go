/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

// Package local implements goftpd.Identity against the host's passwd/group
// database (os/user) with bcrypt-hashed passwords supplied through
// configuration, grounded on the teacher's bcrypt authenticator
// (cmds/server/config/authenticators/bcrypt/bcrypt.go) but restructured from
// a tq.Handler into the Identity Provider Facade's Lookup/Groups/Authenticate
// shape.
package local

import (
	"context"
	"fmt"
	"os/user"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/goftpd/goftpd"
)

// PasswordSource supplies the bcrypt hash to check a user or group password
// against. The default implementation reads from an in-memory map built at
// load time from UserPassword/GroupPassword directives; config/identity/
// keychain supplies an alternate implementation that indirects through a
// secret store.
type PasswordSource interface {
	UserHash(name string) ([]byte, bool)
	GroupHash(name string) ([]byte, bool)
}

// StaticPasswords is the simplest PasswordSource: a fixed map populated from
// configuration, matching the teacher's "hash if present in options" escape
// hatch in bcrypt.go.
type StaticPasswords struct {
	Users  map[string][]byte
	Groups map[string][]byte
}

func (s StaticPasswords) UserHash(name string) ([]byte, bool) {
	h, ok := s.Users[name]
	return h, ok
}

func (s StaticPasswords) GroupHash(name string) ([]byte, bool) {
	h, ok := s.Groups[name]
	return h, ok
}

// Identity implements goftpd.Identity against os/user plus a PasswordSource.
type Identity struct {
	Passwords PasswordSource
	Logger    goftpd.Logger
}

// New returns an Identity backend.
func New(passwords PasswordSource, logger goftpd.Logger) *Identity {
	return &Identity{Passwords: passwords, Logger: logger}
}

func recordFromUser(u *user.User) (*goftpd.IdentityRecord, error) {
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, fmt.Errorf("local: unparsable uid %q for %s: %w", u.Uid, u.Username, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return nil, fmt.Errorf("local: unparsable gid %q for %s: %w", u.Gid, u.Username, err)
	}
	return &goftpd.IdentityRecord{
		Name:  u.Username,
		UID:   uid,
		GID:   gid,
		Home:  u.HomeDir,
		Shell: "/bin/sh",
	}, nil
}

// Lookup implements goftpd.Identity.
func (id *Identity) Lookup(ctx context.Context, name string) (*goftpd.IdentityRecord, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", goftpd.ErrNoSuchUser, name)
	}
	rec, err := recordFromUser(u)
	if err != nil {
		return nil, err
	}
	if hash, ok := id.Passwords.UserHash(name); ok {
		rec.PassHash = hash
	}
	return rec, nil
}

// LookupUID implements goftpd.Identity.
func (id *Identity) LookupUID(ctx context.Context, uid int) (*goftpd.IdentityRecord, error) {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return nil, fmt.Errorf("%w: uid %d", goftpd.ErrNoSuchUser, uid)
	}
	return recordFromUser(u)
}

// Groups implements goftpd.Identity.
func (id *Identity) Groups(ctx context.Context, name string) (goftpd.GroupMembership, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return goftpd.GroupMembership{}, fmt.Errorf("%w: %s", goftpd.ErrNoSuchUser, name)
	}
	gidStrs, err := u.GroupIds()
	if err != nil {
		return goftpd.GroupMembership{}, fmt.Errorf("local: group lookup for %s: %w", name, err)
	}
	membership := goftpd.GroupMembership{}
	for _, gs := range gidStrs {
		gid, convErr := strconv.Atoi(gs)
		if convErr != nil {
			continue
		}
		membership.GIDs = append(membership.GIDs, gid)
		if g, gerr := user.LookupGroupId(gs); gerr == nil {
			membership.Names = append(membership.Names, g.Name)
		}
	}
	return membership, nil
}

// Authenticate implements goftpd.Identity. With no bcrypt hash on file for
// rec, the backend has nothing to check against, which reads as an unknown
// account rather than a bad password (spec.md §4.3 step 4's distinct
// no-such-user verdict).
func (id *Identity) Authenticate(ctx context.Context, rec *goftpd.IdentityRecord, cleartext []byte) (goftpd.AuthOutcome, error) {
	hash := rec.PassHash
	if hash == nil {
		if h, ok := id.Passwords.UserHash(rec.Name); ok {
			hash = h
		}
	}
	if hash == nil {
		return goftpd.AuthNoSuchUser, nil
	}
	return id.Check(ctx, hash, cleartext)
}

// Check implements goftpd.Identity: compares cleartext against an
// already-resolved bcrypt hash, for the UserPassword inline-secret path
// (spec.md §4.3 step 2) where the hash came from configuration rather than
// a backend lookup.
func (id *Identity) Check(ctx context.Context, stored []byte, cleartext []byte) (goftpd.AuthOutcome, error) {
	if err := bcrypt.CompareHashAndPassword(stored, cleartext); err != nil {
		if id.Logger != nil {
			id.Logger.Debugf(ctx, "bcrypt mismatch")
		}
		return goftpd.AuthBadPassword, nil
	}
	return goftpd.AuthOK, nil
}

// GroupAuthenticate implements goftpd.Identity.
func (id *Identity) GroupAuthenticate(ctx context.Context, groupName string, cleartext []byte) (bool, error) {
	hash, ok := id.Passwords.GroupHash(groupName)
	if !ok {
		return false, nil
	}
	if err := bcrypt.CompareHashAndPassword(hash, cleartext); err != nil {
		return false, nil
	}
	return true, nil
}

// LookupGroupGID implements goftpd.Identity, resolving an anon-group
// override (spec.md §4.5 step 4) to the gid the Privilege Installer should
// install as the session's primary group.
func (id *Identity) LookupGroupGID(ctx context.Context, name string) (int, error) {
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, fmt.Errorf("local: group %q: %w", name, err)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, fmt.Errorf("local: unparsable gid %q for group %s: %w", g.Gid, name, err)
	}
	return gid, nil
}
