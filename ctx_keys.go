/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.

 Use this file to store context keys
*/

package goftpd

// ContextKey is used in Request contexts
type ContextKey string

// ContextReqID is the per-command request id, assigned fresh for every command line read
// off the control channel.
const ContextReqID ContextKey = "reqID"

// ContextConnRemoteAddr is used to store the net.Conn remoteAddr within a session.  This value
// is present in any sub contexts that share the underlying net.Conn.
const ContextConnRemoteAddr ContextKey = "conn-remote-addr"

// ContextUser stores the original-user as typed in the most recently accepted USER command.
const ContextUser ContextKey = "user"

// ContextVirtualHost stores the name of the virtual host scope a connection was accepted on.
const ContextVirtualHost ContextKey = "vhost"
