/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

// Package config holds the YAML-shaped configuration types the loader
// unmarshals a server's on-disk configuration into, before Build() turns
// them into a policy.Scope tree. Generalized from the teacher's
// User/Group/ServerConfig AAA-scoping shape (cmds/server/config/types.go)
// to FTP directive scoping (UserAlias, AuthAliasOnly, DefaultRoot,
// AnonymousGroup, DenyGroup, AllowDenyOrder, MaxClients...).
package config

// Directive is one "Name arg1 arg2 ..." configuration line. Directives that
// may repeat within a single block (UserAlias, Allow, Deny, DefaultRoot,
// GroupPassword) simply appear multiple times in a Block's Directives slice.
type Directive struct {
	Name string   `yaml:"name" json:"name"`
	Args []string `yaml:"args" json:"args"`
}

// UserPassword names an inline bcrypt hash or a keychain indirection for a
// local account's password, mirroring the teacher's bcrypt-authenticator
// "hash if present in options" escape hatch.
type UserPassword struct {
	User         string `yaml:"user" json:"user"`
	Hash         string `yaml:"hash,omitempty" json:"hash,omitempty"`
	KeychainKey  string `yaml:"keychain_key,omitempty" json:"keychain_key,omitempty"`
}

// GroupPassword is UserPassword's group-scoped counterpart, used by the
// Credential Verifier's group-password fallback step.
type GroupPassword struct {
	Group       string `yaml:"group" json:"group"`
	Hash        string `yaml:"hash,omitempty" json:"hash,omitempty"`
	KeychainKey string `yaml:"keychain_key,omitempty" json:"keychain_key,omitempty"`
}

// DirectoryBlock configures a single <Directory> scope.
type DirectoryBlock struct {
	Path       string      `yaml:"path" json:"path"`
	Directives []Directive `yaml:"directives,omitempty" json:"directives,omitempty"`
}

// AnonymousBlock configures a single <Anonymous> scope: the local account
// name anonymous logins map onto, plus any directives scoped under it
// (DefaultRoot, AnonRequirePassword, DisplayLogin, nested Directory blocks).
type AnonymousBlock struct {
	User       string           `yaml:"user" json:"user"`
	Directives []Directive      `yaml:"directives,omitempty" json:"directives,omitempty"`
	Directory  []DirectoryBlock `yaml:"directory,omitempty" json:"directory,omitempty"`
}

// VirtualHostBlock configures a single <VirtualHost> scope.
type VirtualHostBlock struct {
	Name       string           `yaml:"name" json:"name"`
	ListenAddr string           `yaml:"listen_addr" json:"listen_addr"`
	Directives []Directive      `yaml:"directives,omitempty" json:"directives,omitempty"`
	Anonymous  []AnonymousBlock `yaml:"anonymous,omitempty" json:"anonymous,omitempty"`
	Directory  []DirectoryBlock `yaml:"directory,omitempty" json:"directory,omitempty"`
}

// ServerConfig is the top-level shape unmarshaled from a server's YAML
// configuration file: server-scope directives plus any number of virtual
// hosts, each able to nest Anonymous and Directory blocks.
type ServerConfig struct {
	Directives     []Directive        `yaml:"directives,omitempty" json:"directives,omitempty"`
	VirtualHosts   []VirtualHostBlock `yaml:"virtual_hosts,omitempty" json:"virtual_hosts,omitempty"`
	Anonymous      []AnonymousBlock   `yaml:"anonymous,omitempty" json:"anonymous,omitempty"`
	Directory      []DirectoryBlock   `yaml:"directory,omitempty" json:"directory,omitempty"`
	UserPasswords  []UserPassword     `yaml:"user_passwords,omitempty" json:"user_passwords,omitempty"`
	GroupPasswords []GroupPassword    `yaml:"group_passwords,omitempty" json:"group_passwords,omitempty"`
}
