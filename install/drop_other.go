//go:build !linux

/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

package install

import (
	"errors"

	"github.com/goftpd/goftpd"
)

// dropPrivileges fails closed on non-Linux platforms: chroot/Setresuid/
// Setresgid are Linux-specific primitives in golang.org/x/sys/unix, and a
// daemon that cannot actually drop privileges must refuse to serve rather
// than run requests as the account that started it.
func dropPrivileges(rec goftpd.IdentityRecord, gids []int, root string) error {
	return errors.New("install: privilege drop is only implemented on linux")
}

func applyUmask(mask int) {}
