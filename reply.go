/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

package goftpd

import (
	"fmt"
	"strings"
)

// Status is an FTP control-channel reply code as per spec.md's wire response table.
type Status int

// Reply codes consumed by the Session Gatekeeper and Privilege Installer. These are the
// only codes the auth/session-establishment core ever emits; the post-login command
// modules own the rest of the FTP status space.
const (
	StatusReady              Status = 220
	StatusClosing             Status = 221
	StatusLoginOK             Status = 230
	StatusNeedPassword        Status = 331
	StatusTimeout             Status = 421
	StatusBadSequence         Status = 503
	StatusLoginIncorrect      Status = 530
	StatusNeedParam           Status = 500
)

// Reply is a single control-channel line: "<code> <text>\r\n".
type Reply struct {
	Code Status
	Text string
}

// NewReply builds a Reply, expanding %u to user and %m to limit in text.
func NewReply(code Status, text string, subs ...Sub) Reply {
	for _, s := range subs {
		text = strings.ReplaceAll(text, s.token, s.value)
	}
	return Reply{Code: code, Text: text}
}

// Sub is a template substitution for a reply's text, e.g. %u -> username, %m -> limit.
type Sub struct {
	token string
	value string
}

// SubUser expands %u to the supplied user name.
func SubUser(name string) Sub { return Sub{token: "%u", value: name} }

// SubLimit expands %m to the supplied limit value.
func SubLimit(n int) Sub { return Sub{token: "%m", value: fmt.Sprintf("%d", n)} }

// MarshalText renders the reply as wire bytes, including the trailing CRLF.
// A Text containing "\n" (e.g. a DisplayLogin banner prepended ahead of the
// grant line) is rendered as an RFC 959 multi-line reply: every line but the
// last uses "code-text", the last uses "code text".
func (r Reply) MarshalText() ([]byte, error) {
	lines := strings.Split(r.Text, "\n")
	if len(lines) == 1 {
		return []byte(fmt.Sprintf("%d %s\r\n", r.Code, r.Text)), nil
	}
	var b strings.Builder
	for i, line := range lines {
		sep := "-"
		if i == len(lines)-1 {
			sep = " "
		}
		fmt.Fprintf(&b, "%d%s%s\r\n", r.Code, sep, line)
	}
	return []byte(b.String()), nil
}

// String implements fmt.Stringer for logging.
func (r Reply) String() string {
	return fmt.Sprintf("%d %s", r.Code, r.Text)
}

// Fields returns fields compatible with a structured logger.
func (r Reply) Fields() map[string]string {
	return map[string]string{
		"reply-code": fmt.Sprintf("%d", r.Code),
		"reply-text": r.Text,
	}
}

// Standard reply texts, kept generic per spec.md §7 ("never reveal which specific check
// failed" on the wire). Operator-configurable variants (AccessGrantMsg, MaxClients templates)
// are built by the Gatekeeper/Installer via NewReply with Sub values.
const (
	TextLoginIncorrect       = "Login incorrect."
	TextAlreadyLoggedIn      = "You are already logged in!"
	TextLoginWithUserFirst   = "Login with USER first."
	TextPasswordRequiredFmt  = "Password required for %s."
	TextAnonPasswordPrompt   = "Anonymous login ok, send your complete e-mail address as password."
	TextLoginTimeoutFmt      = "Login Timeout (%d seconds): closing control connection."
	TextUserNeedsParam       = "'USER': command requires a parameter."
	TextPassNeedsParam       = "'PASS': command requires a parameter."
	TextDefaultAnonGrant     = "Anonymous access granted, restrictions apply."
	TextDefaultUserGrant     = "User %u logged in."
)
