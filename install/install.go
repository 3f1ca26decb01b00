/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

// Package install implements the Privilege Installer: the irreversible
// sequence that takes a verified SessionContext and drops the serving
// goroutine's OS-thread credentials down to the target account before any
// post-login command is processed. There is no restore step — once a
// session's privileges are installed, install.Installer never unwinds them;
// a failure partway through is session-fatal (gatekeeper.pendingTarget
// treats a non-nil error from Install as fatal and closes the connection).
package install

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goftpd/goftpd"
	"github.com/goftpd/goftpd/cmds/ftpd/config/groupexpr"
	"github.com/goftpd/goftpd/policy"
)

// Installer drops privileges for a verified session, implementing
// gatekeeper.Installer structurally.
type Installer struct {
	Identity goftpd.Identity
	Logger   goftpd.Logger

	// UmaskValue, when non-zero, is applied with syscall.Umask before the
	// chroot, matching the teacher-adjacent reference's practice of
	// tightening file creation mode ahead of a privilege drop.
	UmaskValue int

	// ValidShellsPath and DeniedUsersPath back RequireValidShell and
	// UseFtpUsers respectively. Defaulted by New to the traditional system
	// paths; overridable so tests don't depend on host files.
	ValidShellsPath string
	DeniedUsersPath string

	// TransferLogPath and WtmpLogPath are the fallback destinations for the
	// TransferLog/WtmpLog directives when a scope doesn't name its own path.
	TransferLogPath string
	WtmpLogPath     string
}

// New returns an Installer wired to idp for the anon-group GID lookup of
// step 4.
func New(idp goftpd.Identity, logger goftpd.Logger) *Installer {
	return &Installer{
		Identity:        idp,
		Logger:          logger,
		ValidShellsPath: "/etc/shells",
		DeniedUsersPath: "/etc/ftpusers",
		TransferLogPath: "/var/log/goftpd/xferlog",
		WtmpLogPath:     "/var/log/goftpd/wtmp",
	}
}

// target resolves the uid/gid/chroot-root/cwd this session must install,
// applying UserDirRoot (anon) or DefaultRoot/DefaultChdir (real accounts).
func (in *Installer) target(session *goftpd.SessionContext, scope *policy.Scope) (rec goftpd.IdentityRecord, chrootRoot, cwd string, err error) {
	if session.Anon != nil {
		rec = session.Anon.Owner
		chrootRoot = canonicalAnonRoot(scope, session, session.Anon.RootDir, session.Anon.Owner.Name)
		cwd = "/"
		if dir, ok := policy.DefaultChdir(scope, session.Groups); ok {
			cwd = dir
		}
		return rec, chrootRoot, cwd, nil
	}

	if session.Identity == nil {
		return rec, "", "", fmt.Errorf("install: no identity resolved for session %s", session.ID)
	}
	rec = *session.Identity

	chrootRoot = "/"
	cwd = "/"
	if declared, ok := policy.DefaultRoot(scope, session.Groups); ok {
		chrootRoot = declared
		cwd = rewriteCwd(chrootRoot, rec.Home)
	}
	if dir, ok := policy.DefaultChdir(scope, session.Groups); ok {
		cwd = dir
	}
	return rec, chrootRoot, cwd, nil
}

// canonicalAnonRoot implements the UserDirRoot directive: when on, the
// requested login name is appended under the declared anon root, giving
// each aliased anon user (login "anonymous" under root /srv/ftp ->
// /srv/ftp/anonymous) a distinct
// subtree. The append is skipped when the requested name already names the
// anon block's own owner (spec.md §9 Open Question 2): that login already
// *is* the root, and appending it a second time under itself would chroot
// into a directory that normally doesn't exist.
func canonicalAnonRoot(scope *policy.Scope, session *goftpd.SessionContext, declaredRoot, ownerName string) string {
	root := declaredRoot
	if root == "" {
		root = session.Anon.Owner.Home
	}

	useDirRoot, _ := scope.GetString("UserDirRoot")
	requested := ""
	if session.Attempt != nil {
		requested = session.Attempt.RequestedUser
	}
	if useDirRoot == "on" && requested != "" && requested != ownerName {
		root = filepath.Join(root, requested)
	}
	return filepath.Clean(root)
}

// rewriteCwd relocates home onto the working directory a session should be
// left in once chrooted to root (spec.md §4.5 step 11, E2E scenario 5): a
// home inside root becomes the root-relative remainder; a home outside root
// (or root itself) resets to "/", since the pre-chroot path has no meaning
// once the filesystem root moves.
func rewriteCwd(root, home string) string {
	root = filepath.Clean(root)
	home = filepath.Clean(home)
	if root == "" || root == "/" {
		return home
	}
	if home == root {
		return "/"
	}
	prefix := root
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if strings.HasPrefix(home, prefix) {
		return "/" + strings.TrimPrefix(home, prefix)
	}
	return "/"
}

// Install performs the Privilege Installer's ordered, irreversible sequence
// (spec.md §4.5):
//  1. RequireValidShell
//  2. UseFtpUsers
//  3. UserDirRoot (folded into target's root resolution)
//  4. anon-group primary-GID rewrite
//  5. DenyGroup re-check at the final scope
//  6. list the scope's directory blocks in a debug log
//  7. TransferLog/WtmpLog writes
//  8. stat the resolved root
//  9. apply the configured umask
//  10. lock the calling goroutine to its OS thread
//  11. chroot, set groups, signal-block, drop gid/uid, verify, then chdir
//  12. no per-directory configuration overlay is built; directory blocks
//     are not applied to the session
//  13. SessionContext flag population and the install audit record
func (in *Installer) Install(ctx context.Context, session *goftpd.SessionContext, scope *policy.Scope) error {
	rec, chrootRoot, cwd, err := in.target(session, scope)
	if err != nil {
		return err
	}

	if shell, _ := scope.GetString("RequireValidShell"); shell == "on" {
		ok, err := shellAllowed(in.ValidShellsPath, rec.Shell)
		if err != nil && in.Logger != nil {
			in.Logger.Errorf(ctx, "RequireValidShell: reading %q: %s", in.ValidShellsPath, err)
		}
		if err == nil && !ok {
			return fmt.Errorf("install: %w: shell %q is not listed in %s", goftpd.ErrAccessDenied, rec.Shell, in.ValidShellsPath)
		}
	}

	if useFtpUsers, _ := scope.GetString("UseFtpUsers"); useFtpUsers == "on" {
		denied, err := userDenied(in.DeniedUsersPath, rec.Name)
		if err != nil && in.Logger != nil {
			in.Logger.Errorf(ctx, "UseFtpUsers: reading %q: %s", in.DeniedUsersPath, err)
		}
		if denied {
			return fmt.Errorf("install: %w: %s is listed in %s", goftpd.ErrAccessDenied, rec.Name, in.DeniedUsersPath)
		}
	}

	if session.AnonGroupOverride != "" {
		gid, err := in.Identity.LookupGroupGID(ctx, session.AnonGroupOverride)
		if err != nil {
			return fmt.Errorf("install: resolving anon-group %q gid: %w", session.AnonGroupOverride, err)
		}
		rec.GID = gid
	}

	if denyExpr, ok := scope.GetString("DenyGroup"); ok && groupexpr.Match(denyExpr, session.Groups.Names) {
		return fmt.Errorf("install: %w: DenyGroup matched at final scope for %q", goftpd.ErrAccessDenied, rec.Name)
	}

	dirs := scope.ChildrenOfKind(policy.KindDirectory)
	if in.Logger != nil && len(dirs) > 0 {
		names := make([]string, len(dirs))
		for i, d := range dirs {
			names[i] = d.Name
		}
		in.Logger.Debugf(ctx, "install: %d directory block(s) in scope for %s: %s", len(dirs), rec.Name, strings.Join(names, ","))
	}

	in.writeLogs(ctx, scope, rec, session)

	if chrootRoot != "" {
		if fi, statErr := os.Stat(chrootRoot); statErr != nil || !fi.IsDir() {
			return fmt.Errorf("install: root %q is not a usable directory: %v", chrootRoot, statErr)
		}
	}

	if in.UmaskValue != 0 {
		applyUmask(in.UmaskValue)
	}

	runtime.LockOSThread()
	// never LockOSThread's counterpart Unlock: the credential drop below
	// must never leak onto a goroutine scheduled onto this OS thread after
	// this one, and unlocking would let the Go scheduler reuse the thread
	// for unrelated work with these reduced (or mismatched) credentials.

	if err := dropPrivileges(rec, session.Groups.GIDs, chrootRoot); err != nil {
		return fmt.Errorf("install: %w", err)
	}

	showSymlinks, _ := scope.GetString("ShowSymlinks")
	resolvedCwd, err := installChdir(cwd, showSymlinks != "off")
	if err != nil {
		return fmt.Errorf("install: %w", err)
	}

	session.Home = resolvedCwd
	session.IsAnon = session.Anon != nil
	session.AsciiMode = true
	session.HidePassword = true
	session.ProcPrefix = fmt.Sprintf("goftpd: %s", rec.Name)
	session.EstablishedAt = time.Now()

	if in.Logger != nil {
		in.Logger.Record(ctx, map[string]string{
			"event": "privilege-install",
			"user":  rec.Name,
			"uid":   fmt.Sprintf("%d", rec.UID),
			"gid":   fmt.Sprintf("%d", rec.GID),
			"root":  chrootRoot,
			"cwd":   session.Home,
		})
	}
	return nil
}

// installChdir changes into cwd after the privilege drop and chroot have
// already happened, honoring ShowSymlinks (spec.md §4.5 step 11): when off,
// the directory is canonicalized with EvalSymlinks first, so a symlinked
// cwd is reported and entered by its real path rather than the link name.
func installChdir(cwd string, showSymlinks bool) (string, error) {
	if cwd == "" {
		cwd = "/"
	}
	target := cwd
	if !showSymlinks {
		if resolved, err := filepath.EvalSymlinks(cwd); err == nil {
			target = resolved
		}
	}
	if err := os.Chdir(target); err != nil {
		return "", fmt.Errorf("chdir %q: %w", target, err)
	}
	return filepath.Clean(target), nil
}

// writeLogs appends TransferLog/WtmpLog entries for the new session ahead
// of the privilege drop (spec.md §4.5 step 7), while the process can still
// reach paths outside the eventual chroot. Failures are logged, not fatal:
// an unwritable audit log must not block a login that is otherwise valid.
func (in *Installer) writeLogs(ctx context.Context, scope *policy.Scope, rec goftpd.IdentityRecord, session *goftpd.SessionContext) {
	transferLog := in.TransferLogPath
	if path, ok := scope.GetString("TransferLog"); ok {
		transferLog = path
	}
	wtmpLog := in.WtmpLogPath
	if path, ok := scope.GetString("WtmpLog"); ok {
		wtmpLog = path
	}

	line := fmt.Sprintf("%s login user=%s uid=%d peer=%s\n", time.Now().UTC().Format(time.RFC3339), rec.Name, rec.UID, hostOf(session))
	for _, path := range []string{transferLog, wtmpLog} {
		if path == "" {
			continue
		}
		if err := appendLine(path, line); err != nil && in.Logger != nil {
			in.Logger.Errorf(ctx, "install: writing %q: %s", path, err)
		}
	}
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line)
	return err
}

func hostOf(session *goftpd.SessionContext) string {
	if session == nil || session.RemoteAddr == nil {
		return ""
	}
	return session.RemoteAddr.String()
}

// shellAllowed implements RequireValidShell: rec.Shell must appear as a
// non-comment, non-blank line in the shells file.
func shellAllowed(path, shell string) (bool, error) {
	if shell == "" {
		return false, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == shell {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// userDenied implements UseFtpUsers: traditionally named /etc/ftpusers,
// this file lists accounts explicitly denied FTP login (the inverse sense
// of a "shells" allow-list).
func userDenied(path, name string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == name {
			return true, nil
		}
	}
	return false, scanner.Err()
}
