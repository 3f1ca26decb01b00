/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

// Package keychain implements local.PasswordSource by indirecting
// UserPassword/GroupPassword directives through a secret-store lookup
// instead of holding the bcrypt hash inline in configuration, grounded on
// the teacher's cmds/server/config/secret/keychain.go Add-closure pattern.
package keychain

import "context"

// Secret fetches a bcrypt hash by group and key from wherever the deployment
// actually stores secrets (a vault, an encrypted file, etc). This package
// ships no Secret implementation; the caller of New supplies one.
type Secret func(ctx context.Context, group, key string) ([]byte, error)

// Entry names where a single UserPassword/GroupPassword directive's hash
// lives in the keychain.
type Entry struct {
	Group string
	Key   string
}

// New returns a Keychain-backed PasswordSource. users/groups map a local
// name to the Entry naming its secret; fetch is called lazily on every
// UserHash/GroupHash call, never cached, so a secret rotation takes
// effect on the next login attempt.
func New(fetch Secret, users, groups map[string]Entry) *Keychain {
	return &Keychain{fetch: fetch, users: users, groups: groups}
}

// Keychain is a secret-store-indirected local.PasswordSource.
type Keychain struct {
	fetch  Secret
	users  map[string]Entry
	groups map[string]Entry
}

// UserHash implements local.PasswordSource.
func (k *Keychain) UserHash(name string) ([]byte, bool) {
	e, ok := k.users[name]
	if !ok {
		return nil, false
	}
	hash, err := k.fetch(context.Background(), e.Group, e.Key)
	if err != nil {
		return nil, false
	}
	return hash, true
}

// GroupHash implements local.PasswordSource.
func (k *Keychain) GroupHash(name string) ([]byte, bool) {
	e, ok := k.groups[name]
	if !ok {
		return nil, false
	}
	hash, err := k.fetch(context.Background(), e.Group, e.Key)
	if err != nil {
		return nil, false
	}
	return hash, true
}
