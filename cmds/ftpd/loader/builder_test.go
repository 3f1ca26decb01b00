/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

package loader

import (
	"testing"

	"github.com/goftpd/goftpd/cmds/ftpd/config"
	"github.com/goftpd/goftpd/policy"
)

func TestBuildServerScopeDirectives(t *testing.T) {
	cfg := config.ServerConfig{
		Directives: []config.Directive{
			{Name: "MaxClients", Args: []string{"100"}},
		},
	}
	root, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build: %s", err)
	}
	v, ok := root.GetString("MaxClients")
	if !ok || v != "100" {
		t.Fatalf("MaxClients = %q, %v", v, ok)
	}
}

func TestBuildVirtualHostAnonymousAndDirectory(t *testing.T) {
	cfg := config.ServerConfig{
		VirtualHosts: []config.VirtualHostBlock{
			{
				Name:       "ftp.example.com",
				ListenAddr: ":2121",
				Directives: []config.Directive{
					{Name: "AllowDenyOrder", Args: []string{"allow,deny"}},
				},
				Anonymous: []config.AnonymousBlock{
					{
						User: "ftp",
						Directives: []config.Directive{
							{Name: "DefaultRoot", Args: []string{"/srv/ftp"}},
						},
						Directory: []config.DirectoryBlock{
							{Path: "/incoming", Directives: []config.Directive{{Name: "DenyGroup", Args: []string{"banned"}}}},
						},
					},
				},
			},
		},
	}

	root, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build: %s", err)
	}

	vh := root.Child(policy.KindVirtualHost, "ftp.example.com")
	if vh == nil {
		t.Fatal("expected virtual host scope")
	}
	if _, ok := vh.GetString("AllowDenyOrder"); !ok {
		t.Fatal("expected AllowDenyOrder on virtual host")
	}

	anon := vh.Child(policy.KindAnonymous, "ftp")
	if anon == nil {
		t.Fatal("expected anonymous scope")
	}
	if v, _ := anon.GetString("DefaultRoot"); v != "/srv/ftp" {
		t.Fatalf("DefaultRoot = %q", v)
	}

	dir := anon.Child(policy.KindDirectory, "/incoming")
	if dir == nil {
		t.Fatal("expected directory scope")
	}
	if local := dir.GetLocal("DenyGroup"); len(local) != 1 || local[0][0] != "banned" {
		t.Fatalf("DenyGroup = %v", local)
	}
}

func TestBuildRejectsDuplicateVirtualHost(t *testing.T) {
	cfg := config.ServerConfig{
		VirtualHosts: []config.VirtualHostBlock{
			{Name: "dup"},
			{Name: "dup"},
		},
	}
	if _, err := Build(cfg); err == nil {
		t.Fatal("expected error for duplicate virtual host name")
	}
}

func TestBuildRejectsAnonymousWithoutUser(t *testing.T) {
	cfg := config.ServerConfig{
		Anonymous: []config.AnonymousBlock{{}},
	}
	if _, err := Build(cfg); err == nil {
		t.Fatal("expected error for anonymous block missing user")
	}
}

func TestBuildAllCollectsPasswordMaterial(t *testing.T) {
	cfg := config.ServerConfig{
		VirtualHosts: []config.VirtualHostBlock{{Name: "v"}},
		UserPasswords: []config.UserPassword{
			{User: "alice", Hash: "$2a$10$examplehash"},
			{User: "bob"},
		},
		GroupPasswords: []config.GroupPassword{
			{Group: "staff", Hash: "$2a$10$grouphash"},
		},
	}
	b, err := BuildAll(cfg)
	if err != nil {
		t.Fatalf("BuildAll: %s", err)
	}
	if string(b.UserPasswords["alice"]) != "$2a$10$examplehash" {
		t.Fatalf("alice hash = %q", b.UserPasswords["alice"])
	}
	if _, ok := b.UserPasswords["bob"]; ok {
		t.Fatal("bob has no hash configured, should be absent")
	}
	if string(b.GroupPasswords["staff"]) != "$2a$10$grouphash" {
		t.Fatalf("staff hash = %q", b.GroupPasswords["staff"])
	}
}
