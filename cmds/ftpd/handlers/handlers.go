/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

// Package handlers is the daemon's entry-point construction: it wires a
// loaded policy.Scope tree, an Identity Provider Facade backend, and a
// Privilege Installer into a goftpd.Server ready to Serve one virtual
// host's listener, using the same entry-point-factory role the teacher's
// handlers.Start played for AAA dispatch.
package handlers

import (
	"github.com/goftpd/goftpd"
	"github.com/goftpd/goftpd/gatekeeper"
	"github.com/goftpd/goftpd/policy"
)

// NewVirtualHost builds a goftpd.Server for a single virtual host: the
// Server doubles as the Gatekeeper's Admission source, so it's built first
// with a nil handler and wired back via SetHandler once the Gatekeeper
// exists, per Server.SetHandler's two-phase wiring.
func NewVirtualHost(
	logger goftpd.Logger,
	root *policy.Scope,
	vhost string,
	idp goftpd.Identity,
	installer gatekeeper.Installer,
	cfg gatekeeper.Config,
	opts ...goftpd.Option,
) *goftpd.Server {
	server := goftpd.NewServer(logger, nil, opts...)
	gk := gatekeeper.New(root, vhost, idp, installer, server, logger, cfg)
	server.SetHandler(gk)
	return server
}
