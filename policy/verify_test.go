/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/goftpd/goftpd"
	"github.com/stretchr/testify/require"
)

type stubIdentity struct {
	outcome goftpd.AuthOutcome
	authErr error
	groupOK map[string]bool
}

func (s *stubIdentity) Lookup(ctx context.Context, name string) (*goftpd.IdentityRecord, error) {
	return nil, nil
}
func (s *stubIdentity) LookupUID(ctx context.Context, uid int) (*goftpd.IdentityRecord, error) {
	return nil, nil
}
func (s *stubIdentity) Groups(ctx context.Context, name string) (goftpd.GroupMembership, error) {
	return goftpd.GroupMembership{}, nil
}
func (s *stubIdentity) LookupGroupGID(ctx context.Context, name string) (int, error) {
	return 0, nil
}
func (s *stubIdentity) Authenticate(ctx context.Context, rec *goftpd.IdentityRecord, cleartext []byte) (goftpd.AuthOutcome, error) {
	return s.outcome, s.authErr
}
func (s *stubIdentity) Check(ctx context.Context, stored []byte, cleartext []byte) (goftpd.AuthOutcome, error) {
	return s.outcome, s.authErr
}
func (s *stubIdentity) GroupAuthenticate(ctx context.Context, groupName string, cleartext []byte) (bool, error) {
	return s.groupOK[groupName], nil
}

func TestVerifyAnonymousNoPasswordShortcut(t *testing.T) {
	anon := NewScope(KindAnonymous, "ftp", nil)
	target := &Target{Scope: anon, Anonymous: true}
	attempt := &goftpd.LoginAttempt{Cleartext: []byte("me@example.com")}

	_, err := Verify(context.Background(), &stubIdentity{}, target, nil, attempt, goftpd.GroupMembership{})
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, attempt.Cleartext)
}

func TestVerifyAnonymousRequiresPasswordWhenConfigured(t *testing.T) {
	anon := NewScope(KindAnonymous, "ftp", nil)
	anon.Set("AnonRequirePassword", "on")
	target := &Target{Scope: anon, Anonymous: true}

	attempt := &goftpd.LoginAttempt{Cleartext: []byte{}}
	_, err := Verify(context.Background(), &stubIdentity{}, target, nil, attempt, goftpd.GroupMembership{})
	require.Error(t, err)
	require.True(t, errors.Is(err, goftpd.ErrLoginIncorrect))
}

func TestVerifyPrimaryCheckSuccess(t *testing.T) {
	scope := NewScope(KindServer, "", nil)
	target := &Target{Scope: scope}
	rec := &goftpd.IdentityRecord{Name: "alice", UID: 1000}
	attempt := &goftpd.LoginAttempt{Cleartext: []byte("correct horse")}

	result, err := Verify(context.Background(), &stubIdentity{outcome: goftpd.AuthOK}, target, rec, attempt, goftpd.GroupMembership{})
	require.NoError(t, err)
	require.NotNil(t, result)
}

// TestVerifyPrimaryCheckUsesInlineSecretWhenPassHashPresent covers spec.md
// §4.3 step 2: a UserPassword-resolved hash on the record routes through
// Check against that hash, not a full backend Authenticate.
func TestVerifyPrimaryCheckUsesInlineSecretWhenPassHashPresent(t *testing.T) {
	scope := NewScope(KindServer, "", nil)
	target := &Target{Scope: scope}
	rec := &goftpd.IdentityRecord{Name: "alice", UID: 1000, PassHash: []byte("some-hash")}
	attempt := &goftpd.LoginAttempt{Cleartext: []byte("correct horse")}

	idp := &stubIdentity{outcome: goftpd.AuthOK}
	result, err := Verify(context.Background(), idp, target, rec, attempt, goftpd.GroupMembership{})
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestVerifyGroupPasswordFallback(t *testing.T) {
	scope := NewScope(KindServer, "", nil)
	scope.Set("GroupPassword", "shared")
	target := &Target{Scope: scope}
	rec := &goftpd.IdentityRecord{Name: "alice", UID: 1000}
	attempt := &goftpd.LoginAttempt{Cleartext: []byte("group-secret")}

	idp := &stubIdentity{outcome: goftpd.AuthBadPassword, groupOK: map[string]bool{"shared": true}}
	result, err := Verify(context.Background(), idp, target, rec, attempt, goftpd.GroupMembership{Names: []string{"shared"}})
	require.NoError(t, err)
	require.Equal(t, "shared", result.AnonGroup)
}

// TestVerifyGroupPasswordFallbackRequiresMembership covers the review's
// membership gate: a correct group password for a group the user doesn't
// belong to must not grant access.
func TestVerifyGroupPasswordFallbackRequiresMembership(t *testing.T) {
	scope := NewScope(KindServer, "", nil)
	scope.Set("GroupPassword", "shared")
	target := &Target{Scope: scope}
	rec := &goftpd.IdentityRecord{Name: "alice", UID: 1000}
	attempt := &goftpd.LoginAttempt{Cleartext: []byte("group-secret")}

	idp := &stubIdentity{outcome: goftpd.AuthBadPassword, groupOK: map[string]bool{"shared": true}}
	_, err := Verify(context.Background(), idp, target, rec, attempt, goftpd.GroupMembership{Names: []string{"other"}})
	require.Error(t, err)
	require.True(t, errors.Is(err, goftpd.ErrLoginIncorrect))
}

// TestVerifyGroupPasswordFallbackAdoptsAnonScope covers spec.md §4.3 step 3:
// a group-password match inside an <Anonymous> block promotes the login to
// that anonymous binding.
func TestVerifyGroupPasswordFallbackAdoptsAnonScope(t *testing.T) {
	vhost := NewScope(KindVirtualHost, "example.com", nil)
	anon := NewScope(KindAnonymous, "ftp", vhost)
	anon.Set("GroupPassword", "uploaders")
	target := &Target{Scope: anon}
	rec := &goftpd.IdentityRecord{Name: "alice", UID: 1000}
	attempt := &goftpd.LoginAttempt{Cleartext: []byte("group-secret")}

	idp := &stubIdentity{outcome: goftpd.AuthBadPassword, groupOK: map[string]bool{"uploaders": true}}
	result, err := Verify(context.Background(), idp, target, rec, attempt, goftpd.GroupMembership{Names: []string{"uploaders"}})
	require.NoError(t, err)
	require.Equal(t, anon, result.AdoptAnon)
}

func TestVerifyReportsLoginIncorrectWhenAllChecksFail(t *testing.T) {
	scope := NewScope(KindServer, "", nil)
	scope.Set("GroupPassword", "shared")
	target := &Target{Scope: scope}
	rec := &goftpd.IdentityRecord{Name: "alice", UID: 1000}
	attempt := &goftpd.LoginAttempt{Cleartext: []byte("wrong")}

	idp := &stubIdentity{outcome: goftpd.AuthBadPassword, groupOK: map[string]bool{"shared": false}}
	_, err := Verify(context.Background(), idp, target, rec, attempt, goftpd.GroupMembership{Names: []string{"shared"}})
	require.Error(t, err)
	require.True(t, errors.Is(err, goftpd.ErrLoginIncorrect))
}

func TestVerifyReportsNoSuchUser(t *testing.T) {
	scope := NewScope(KindServer, "", nil)
	target := &Target{Scope: scope}
	attempt := &goftpd.LoginAttempt{Cleartext: []byte("anything")}

	_, err := Verify(context.Background(), &stubIdentity{}, target, nil, attempt, goftpd.GroupMembership{})
	require.Error(t, err)
	require.True(t, errors.Is(err, goftpd.ErrNoSuchUser))
}

// TestVerifyRootLoginRefusedWithoutDirective covers spec.md §4.3/E2E
// scenario 6: a verified uid-0 credential is refused by default.
func TestVerifyRootLoginRefusedWithoutDirective(t *testing.T) {
	scope := NewScope(KindServer, "", nil)
	target := &Target{Scope: scope}
	rec := &goftpd.IdentityRecord{Name: "root", UID: 0}
	attempt := &goftpd.LoginAttempt{Cleartext: []byte("toor")}

	_, err := Verify(context.Background(), &stubIdentity{outcome: goftpd.AuthOK}, target, rec, attempt, goftpd.GroupMembership{})
	require.Error(t, err)
	require.True(t, errors.Is(err, goftpd.ErrRootLoginDenied))
	require.True(t, errors.Is(err, goftpd.ErrAccessDenied))
}

func TestVerifyRootLoginAllowedWithDirective(t *testing.T) {
	scope := NewScope(KindServer, "", nil)
	scope.Set("RootLogin", "on")
	target := &Target{Scope: scope}
	rec := &goftpd.IdentityRecord{Name: "root", UID: 0}
	attempt := &goftpd.LoginAttempt{Cleartext: []byte("toor")}

	_, err := Verify(context.Background(), &stubIdentity{outcome: goftpd.AuthOK}, target, rec, attempt, goftpd.GroupMembership{})
	require.NoError(t, err)
}
