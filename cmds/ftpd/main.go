/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"

	"github.com/goftpd/goftpd"
	"github.com/goftpd/goftpd/cmds/ftpd/config/identity/local"
	"github.com/goftpd/goftpd/cmds/ftpd/exporter"
	"github.com/goftpd/goftpd/cmds/ftpd/handlers"
	"github.com/goftpd/goftpd/cmds/ftpd/loader"
	"github.com/goftpd/goftpd/cmds/ftpd/loader/fsnotify"
	"github.com/goftpd/goftpd/cmds/ftpd/loader/yaml"
	"github.com/goftpd/goftpd/cmds/ftpd/log"
	"github.com/goftpd/goftpd/gatekeeper"
	"github.com/goftpd/goftpd/install"
	"github.com/goftpd/goftpd/policy"
)

var (
	configPath        = flag.String("config", "goftpd.yaml", "the string path representing the storage location of the server config")
	level             = flag.Int("level", 30, "log levels; 10 = error, 20 = info, 30 = debug")
	maxClients        = flag.Int("max-clients", 0, "global limit on simultaneous sessions, 0 disables the check")
	maxClientsPerHost = flag.Int("max-clients-per-host", 0, "global limit on simultaneous sessions from one peer address, 0 disables the check")
	maxLoginAttempts  = flag.Int("max-login-attempts", 3, "failed PASS attempts allowed before a control connection is closed")
)

func main() {
	flag.Parse()
	logger := log.New(*level, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		if err := exporter.StartPromHTTP(); err != nil {
			logger.Errorf(ctx, "failed to start prometheus http exporter: %v", err)
		}
	}()

	ld, err := loader.NewLocalConfig(ctx, *configPath, fsnotify.New(ctx, yaml.New(), logger), logger)
	if err != nil {
		logger.Fatalf(ctx, "error fetching config: %v", err)
		return
	}

	built := <-ld.Built()

	cfg := gatekeeper.Config{
		MaxClients:        *maxClients,
		MaxClientsPerHost: *maxClientsPerHost,
		MaxLoginAttempts:  *maxLoginAttempts,
	}

	idp := local.New(local.StaticPasswords{
		Users:  built.UserPasswords,
		Groups: built.GroupPasswords,
	}, logger)
	installer := install.New(idp, logger)

	servers, err := startVirtualHosts(ctx, logger, built.Root, idp, installer, cfg)
	if err != nil {
		logger.Fatalf(ctx, "error starting virtual hosts: %v", err)
		return
	}
	if len(servers) == 0 {
		logger.Fatalf(ctx, "no virtual hosts configured, nothing to serve")
		return
	}

	// hot reload: every subsequent Built bundle re-points each already
	// running server's Gatekeeper at the freshly rebuilt scope tree and
	// identity backend. Adding or removing virtual hosts at runtime is not
	// supported; that requires opening/closing listeners, out of scope for
	// a config hot-reload.
	go func() {
		for b := range ld.Built() {
			idp := local.New(local.StaticPasswords{Users: b.UserPasswords, Groups: b.GroupPasswords}, logger)
			for vhost, server := range servers {
				server.SetHandler(gatekeeper.New(b.Root, vhost, idp, installer, server, logger, cfg))
			}
			logger.Infof(ctx, "reloaded configuration across %d virtual host(s)", len(servers))
		}
	}()

	<-ctx.Done()
}

// startVirtualHosts binds one listener and one goftpd.Server per configured
// virtual host and starts serving each in its own goroutine.
func startVirtualHosts(ctx context.Context, logger goftpd.Logger, root *policy.Scope, idp goftpd.Identity, installer gatekeeper.Installer, cfg gatekeeper.Config) (map[string]*goftpd.Server, error) {
	servers := make(map[string]*goftpd.Server)
	for _, vh := range root.ChildrenOfKind(policy.KindVirtualHost) {
		addr, ok := vh.GetString("ListenAddr")
		if !ok {
			return nil, fmt.Errorf("virtual host %q has no ListenAddr directive", vh.Name)
		}

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("virtual host %q: listen %s: %w", vh.Name, addr, err)
		}
		tcpListener, ok := listener.(*net.TCPListener)
		if !ok {
			return nil, fmt.Errorf("virtual host %q: listener must be tcp-based", vh.Name)
		}

		server := handlers.NewVirtualHost(logger, root, vh.Name, idp, installer, cfg)
		servers[vh.Name] = server

		logger.Infof(ctx, "serving virtual host %q on %v", vh.Name, tcpListener.Addr())
		go func(vhost string, l *net.TCPListener, s *goftpd.Server) {
			if err := s.Serve(ctx, l); err != nil {
				logger.Errorf(ctx, "virtual host %q: serve error: %v", vhost, err)
			}
		}(vh.Name, tcpListener, server)
	}
	return servers, nil
}
