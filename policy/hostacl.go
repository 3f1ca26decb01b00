/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

package policy

import "net"

// cidrContains reports whether host falls inside cidrOrIP, which may be a
// single IP address or a CIDR block. Grounded on the teacher's
// cmds/server/config/secret/prefix/provider.go CIDR-matching loop,
// repurposed from picking a per-peer secret to admission allow/deny.
func cidrContains(cidrOrIP, host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}

	if _, ipnet, err := net.ParseCIDR(cidrOrIP); err == nil {
		return ipnet.Contains(ip)
	}

	target := net.ParseIP(cidrOrIP)
	return target != nil && target.Equal(ip)
}
