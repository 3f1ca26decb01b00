/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

package loader

import (
	"fmt"

	"github.com/goftpd/goftpd/cmds/ftpd/config"
	"github.com/goftpd/goftpd/policy"
)

// Built bundles everything one config update produces: the directive scope
// tree plus the local password material the identity/local backend needs,
// which has no home in the scope tree since it isn't a directive consulted
// by the Config Resolver or Credential Verifier.
type Built struct {
	Root           *policy.Scope
	UserPasswords  map[string][]byte
	GroupPasswords map[string][]byte
}

// BuildAll turns an unmarshaled config.ServerConfig into a Built bundle.
func BuildAll(cfg config.ServerConfig) (*Built, error) {
	root, err := Build(cfg)
	if err != nil {
		return nil, err
	}

	users := make(map[string][]byte, len(cfg.UserPasswords))
	for _, up := range cfg.UserPasswords {
		if up.Hash != "" {
			users[up.User] = []byte(up.Hash)
		}
	}
	groups := make(map[string][]byte, len(cfg.GroupPasswords))
	for _, gp := range cfg.GroupPasswords {
		if gp.Hash != "" {
			groups[gp.Group] = []byte(gp.Hash)
		}
	}

	return &Built{Root: root, UserPasswords: users, GroupPasswords: groups}, nil
}

// Build turns an unmarshaled config.ServerConfig into a policy.Scope tree:
// the server root, its directives and nested Anonymous/Directory blocks,
// then each VirtualHost and its own nested blocks.
func Build(cfg config.ServerConfig) (*policy.Scope, error) {
	root := policy.NewScope(policy.KindServer, "", nil)
	applyDirectives(root, cfg.Directives)
	for _, d := range cfg.Directory {
		buildDirectory(root, d)
	}
	for _, a := range cfg.Anonymous {
		if err := buildAnonymous(root, a); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool, len(cfg.VirtualHosts))
	for _, vh := range cfg.VirtualHosts {
		if vh.Name == "" {
			return nil, fmt.Errorf("loader: virtual host missing a name")
		}
		if seen[vh.Name] {
			return nil, fmt.Errorf("loader: duplicate virtual host %q", vh.Name)
		}
		seen[vh.Name] = true

		vhScope := policy.NewScope(policy.KindVirtualHost, vh.Name, root)
		if vh.ListenAddr != "" {
			vhScope.Set("ListenAddr", vh.ListenAddr)
		}
		applyDirectives(vhScope, vh.Directives)
		for _, d := range vh.Directory {
			buildDirectory(vhScope, d)
		}
		for _, a := range vh.Anonymous {
			if err := buildAnonymous(vhScope, a); err != nil {
				return nil, err
			}
		}
	}
	return root, nil
}

func applyDirectives(s *policy.Scope, directives []config.Directive) {
	for _, d := range directives {
		s.Set(d.Name, d.Args...)
	}
}

func buildDirectory(parent *policy.Scope, d config.DirectoryBlock) {
	s := policy.NewScope(policy.KindDirectory, d.Path, parent)
	applyDirectives(s, d.Directives)
}

func buildAnonymous(parent *policy.Scope, a config.AnonymousBlock) error {
	if a.User == "" {
		return fmt.Errorf("loader: anonymous block missing a user")
	}
	s := policy.NewScope(policy.KindAnonymous, a.User, parent)
	applyDirectives(s, a.Directives)
	for _, d := range a.Directory {
		buildDirectory(s, d)
	}
	return nil
}
