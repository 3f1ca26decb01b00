/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

// Package policy implements the Config Resolver and Credential Verifier: a
// layered directive scope tree and the Resolve/Verify operations that walk
// it, generalized from the teacher's AAA-scoped config tree
// (cmds/server/config/types.go) to FTP directive scoping.
package policy

// Kind identifies a Scope's position in the server -> vhost -> anonymous ->
// directory nesting.
type Kind int

const (
	KindServer Kind = iota
	KindVirtualHost
	KindAnonymous
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindVirtualHost:
		return "vhost"
	case KindAnonymous:
		return "anonymous"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Scope is one node of the directive tree: a named block (the server block,
// a <VirtualHost>, an <Anonymous>, or a <Directory>) holding zero or more
// directive values and pointing at its parent for inherited lookups.
type Scope struct {
	Kind   Kind
	Name   string
	Parent *Scope

	Children   []*Scope
	directives map[string][][]string
}

// NewScope creates a Scope of the given kind and name, linked under parent.
// parent may be nil only for the server root.
func NewScope(kind Kind, name string, parent *Scope) *Scope {
	s := &Scope{
		Kind:       kind,
		Name:       name,
		Parent:     parent,
		directives: make(map[string][][]string),
	}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	return s
}

// Set appends one occurrence of directive with the given argument tuple.
// Every call appends, so directives that may repeat (Allow, Deny, UserAlias)
// accumulate; a second Set of a single-valued directive does not replace the
// first, since Get returns the first occurrence.
func (s *Scope) Set(directive string, args ...string) {
	s.directives[directive] = append(s.directives[directive], args)
}

// Get returns the first argument tuple for directive at this scope,
// searching up through Parent scopes if not found locally. The bool result
// reports whether the directive was found anywhere in the chain.
func (s *Scope) Get(directive string) ([]string, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if v, ok := cur.directives[directive]; ok && len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

// GetLocal returns directive's value tuples set directly on this scope, not
// searching parents. Used for directives like Allow/Deny where inheriting
// the parent's list would change evaluation order rather than extend it.
func (s *Scope) GetLocal(directive string) [][]string {
	return s.directives[directive]
}

// GetAll returns every occurrence of directive found by walking from this
// scope up to the root, innermost first. Used for directives such as
// UserAlias where both a vhost-level and server-level definition can apply.
func (s *Scope) GetAll(directive string) [][]string {
	var out [][]string
	for cur := s; cur != nil; cur = cur.Parent {
		out = append(out, cur.directives[directive]...)
	}
	return out
}

// GetString is a convenience wrapper over Get for single-argument directives.
func (s *Scope) GetString(directive string) (string, bool) {
	v, ok := s.Get(directive)
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// Child returns the first direct child of the given kind and name, or nil.
func (s *Scope) Child(kind Kind, name string) *Scope {
	for _, c := range s.Children {
		if c.Kind == kind && c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenOfKind returns all direct children of the given kind.
func (s *Scope) ChildrenOfKind(kind Kind) []*Scope {
	var out []*Scope
	for _, c := range s.Children {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}
