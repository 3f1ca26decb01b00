/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/goftpd/goftpd"
	"github.com/goftpd/goftpd/policy"
	"github.com/stretchr/testify/require"
)

func TestTargetRealAccount(t *testing.T) {
	in := New(nil, nil)
	scope := policy.NewScope(policy.KindServer, "", nil)
	session := &goftpd.SessionContext{
		Identity: &goftpd.IdentityRecord{Name: "alice", UID: 1000, GID: 1000, Home: "/home/alice"},
	}
	rec, root, cwd, err := in.target(session, scope)
	require.NoError(t, err)
	require.Equal(t, "alice", rec.Name)
	require.Equal(t, "/", root)
	require.Equal(t, "/", cwd)
}

func TestTargetAnonymousUsesOwnerHomeWhenNoRootDir(t *testing.T) {
	in := New(nil, nil)
	scope := policy.NewScope(policy.KindAnonymous, "ftp", nil)
	session := &goftpd.SessionContext{
		Anon: &goftpd.AnonymousBinding{
			Owner: goftpd.IdentityRecord{Name: "ftp", UID: 14, GID: 50, Home: "/srv/ftp"},
		},
	}
	rec, root, _, err := in.target(session, scope)
	require.NoError(t, err)
	require.Equal(t, "ftp", rec.Name)
	require.Equal(t, "/srv/ftp", root)
}

func TestTargetAnonymousPrefersConfiguredRootDir(t *testing.T) {
	in := New(nil, nil)
	scope := policy.NewScope(policy.KindAnonymous, "ftp", nil)
	session := &goftpd.SessionContext{
		Anon: &goftpd.AnonymousBinding{
			Owner:   goftpd.IdentityRecord{Name: "ftp", UID: 14, GID: 50, Home: "/home/ftp"},
			RootDir: "/srv/anon-root",
		},
	}
	_, root, _, err := in.target(session, scope)
	require.NoError(t, err)
	require.Equal(t, "/srv/anon-root", root)
}

func TestTargetErrorsWithNoIdentity(t *testing.T) {
	in := New(nil, nil)
	scope := policy.NewScope(policy.KindServer, "", nil)
	session := &goftpd.SessionContext{ID: "abc"}
	_, _, _, err := in.target(session, scope)
	require.Error(t, err)
}

func TestTargetNonAnonDefaultRootRewritesCwd(t *testing.T) {
	in := New(nil, nil)
	scope := policy.NewScope(policy.KindVirtualHost, "example.com", nil)
	scope.Set("DefaultRoot", "/jail", "staff")

	session := &goftpd.SessionContext{
		Identity: &goftpd.IdentityRecord{Name: "dave", UID: 1000, GID: 1000, Home: "/jail/home/dave"},
		Groups:   goftpd.GroupMembership{Names: []string{"staff"}},
	}

	rec, root, cwd, err := in.target(session, scope)
	require.NoError(t, err)
	require.Equal(t, "dave", rec.Name)
	require.Equal(t, "/jail", root)
	require.Equal(t, "/home/dave", cwd)
}

func TestTargetNonAnonDefaultRootOutsideHomeResetsCwd(t *testing.T) {
	in := New(nil, nil)
	scope := policy.NewScope(policy.KindVirtualHost, "example.com", nil)
	scope.Set("DefaultRoot", "/jail", "*")

	session := &goftpd.SessionContext{
		Identity: &goftpd.IdentityRecord{Name: "carol", UID: 1001, GID: 1001, Home: "/home/carol"},
	}

	_, root, cwd, err := in.target(session, scope)
	require.NoError(t, err)
	require.Equal(t, "/jail", root)
	require.Equal(t, "/", cwd)
}

func TestTargetDefaultChdirOverridesRewrittenCwd(t *testing.T) {
	in := New(nil, nil)
	scope := policy.NewScope(policy.KindVirtualHost, "example.com", nil)
	scope.Set("DefaultRoot", "/jail", "*")
	scope.Set("DefaultChdir", "/pub", "*")

	session := &goftpd.SessionContext{
		Identity: &goftpd.IdentityRecord{Name: "dave", UID: 1000, GID: 1000, Home: "/jail/home/dave"},
	}

	_, _, cwd, err := in.target(session, scope)
	require.NoError(t, err)
	require.Equal(t, "/pub", cwd)
}

func TestCanonicalAnonRootAppendsRequestedNameWhenUserDirRootOn(t *testing.T) {
	scope := policy.NewScope(policy.KindAnonymous, "ftp", nil)
	scope.Set("UserDirRoot", "on")
	session := &goftpd.SessionContext{
		Attempt: &goftpd.LoginAttempt{RequestedUser: "anonymous"},
		Anon:    &goftpd.AnonymousBinding{Owner: goftpd.IdentityRecord{Name: "ftp", Home: "/srv/ftp"}},
	}

	root := canonicalAnonRoot(scope, session, "/srv/ftp", "ftp")
	require.Equal(t, "/srv/ftp/anonymous", root)
}

func TestCanonicalAnonRootSkipsAppendWhenRequestedNameIsOwner(t *testing.T) {
	scope := policy.NewScope(policy.KindAnonymous, "ftp", nil)
	scope.Set("UserDirRoot", "on")
	session := &goftpd.SessionContext{
		Attempt: &goftpd.LoginAttempt{RequestedUser: "ftp"},
		Anon:    &goftpd.AnonymousBinding{Owner: goftpd.IdentityRecord{Name: "ftp", Home: "/srv/ftp"}},
	}

	root := canonicalAnonRoot(scope, session, "/srv/ftp", "ftp")
	require.Equal(t, "/srv/ftp", root)
}

func TestCanonicalAnonRootLeavesRootAloneWhenDirectiveOff(t *testing.T) {
	scope := policy.NewScope(policy.KindAnonymous, "ftp", nil)
	session := &goftpd.SessionContext{
		Attempt: &goftpd.LoginAttempt{RequestedUser: "anonymous"},
		Anon:    &goftpd.AnonymousBinding{Owner: goftpd.IdentityRecord{Name: "ftp", Home: "/srv/ftp"}},
	}

	root := canonicalAnonRoot(scope, session, "/srv/ftp", "ftp")
	require.Equal(t, "/srv/ftp", root)
}

func TestRewriteCwd(t *testing.T) {
	require.Equal(t, "/home/dave", rewriteCwd("/jail", "/jail/home/dave"))
	require.Equal(t, "/", rewriteCwd("/jail", "/jail"))
	require.Equal(t, "/", rewriteCwd("/jail", "/home/carol"))
	require.Equal(t, "/home/carol", rewriteCwd("/", "/home/carol"))
}

// stubIdentity satisfies goftpd.Identity with just enough behavior to drive
// the Install-level tests below: LookupGroupGID for the anon-group primary-
// GID rewrite (spec.md §4.5 step 4). The other methods are unused by Install
// and are never called by these tests.
type stubIdentity struct {
	groupGIDs map[string]int
}

func (s stubIdentity) Lookup(ctx context.Context, name string) (*goftpd.IdentityRecord, error) {
	return nil, goftpd.ErrNoSuchUser
}

func (s stubIdentity) LookupUID(ctx context.Context, uid int) (*goftpd.IdentityRecord, error) {
	return nil, goftpd.ErrNoSuchUser
}

func (s stubIdentity) Groups(ctx context.Context, name string) (goftpd.GroupMembership, error) {
	return goftpd.GroupMembership{}, nil
}

func (s stubIdentity) LookupGroupGID(ctx context.Context, name string) (int, error) {
	gid, ok := s.groupGIDs[name]
	if !ok {
		return 0, fmt.Errorf("no such group: %s", name)
	}
	return gid, nil
}

func (s stubIdentity) Authenticate(ctx context.Context, rec *goftpd.IdentityRecord, cleartext []byte) (goftpd.AuthOutcome, error) {
	return goftpd.AuthOK, nil
}

func (s stubIdentity) Check(ctx context.Context, stored []byte, cleartext []byte) (goftpd.AuthOutcome, error) {
	return goftpd.AuthOK, nil
}

func (s stubIdentity) GroupAuthenticate(ctx context.Context, groupName string, cleartext []byte) (bool, error) {
	return true, nil
}

func TestInstallRejectsDenyGroupAtFinalScope(t *testing.T) {
	scope := policy.NewScope(policy.KindVirtualHost, "example.com", nil)
	scope.Set("DenyGroup", "banned")

	in := New(stubIdentity{}, nil)
	session := &goftpd.SessionContext{
		Identity: &goftpd.IdentityRecord{Name: "mallory", UID: 1000, GID: 1000, Home: "/home/mallory"},
		Groups:   goftpd.GroupMembership{Names: []string{"banned"}},
	}

	err := in.Install(context.Background(), session, scope)
	require.Error(t, err)
	require.True(t, errors.Is(err, goftpd.ErrAccessDenied))
}

func TestInstallRejectsDeniedUserInUseFtpUsers(t *testing.T) {
	dir := t.TempDir()
	deniedPath := filepath.Join(dir, "ftpusers")
	require.NoError(t, os.WriteFile(deniedPath, []byte("# denied accounts\nmallory\n"), 0644))

	scope := policy.NewScope(policy.KindVirtualHost, "example.com", nil)
	scope.Set("UseFtpUsers", "on")

	in := New(stubIdentity{}, nil)
	in.DeniedUsersPath = deniedPath
	session := &goftpd.SessionContext{
		Identity: &goftpd.IdentityRecord{Name: "mallory", UID: 1000, GID: 1000, Home: "/home/mallory"},
	}

	err := in.Install(context.Background(), session, scope)
	require.Error(t, err)
	require.True(t, errors.Is(err, goftpd.ErrAccessDenied))
}

func TestInstallRejectsShellNotInRequireValidShell(t *testing.T) {
	dir := t.TempDir()
	shellsPath := filepath.Join(dir, "shells")
	require.NoError(t, os.WriteFile(shellsPath, []byte("/bin/bash\n/bin/zsh\n"), 0644))

	scope := policy.NewScope(policy.KindVirtualHost, "example.com", nil)
	scope.Set("RequireValidShell", "on")

	in := New(stubIdentity{}, nil)
	in.ValidShellsPath = shellsPath
	session := &goftpd.SessionContext{
		Identity: &goftpd.IdentityRecord{Name: "dave", UID: 1000, GID: 1000, Home: "/home/dave", Shell: "/bin/nologin"},
	}

	err := in.Install(context.Background(), session, scope)
	require.Error(t, err)
	require.True(t, errors.Is(err, goftpd.ErrAccessDenied))
}

func TestInstallerIdentityResolvesAnonGroupGID(t *testing.T) {
	in := New(stubIdentity{groupGIDs: map[string]int{"ftp-uploaders": 5000}}, nil)
	gid, err := in.Identity.LookupGroupGID(context.Background(), "ftp-uploaders")
	require.NoError(t, err)
	require.Equal(t, 5000, gid)
}
