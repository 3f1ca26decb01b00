/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

// Package syslog writes structured audit entries (login-ok, login-refused,
// privilege-install, ...) to the system log service as JSON lines. Windows
// is unsupported, matching log/syslog's own platform restriction.
package syslog

import (
	"context"
	"encoding/json"
)

// loggerProvider is the event logger an Auditor falls back to when a record
// itself cannot be written to syslog.
type loggerProvider interface {
	Errorf(ctx context.Context, format string, args ...interface{})
}

// writer is the subset of *syslog.Writer an Auditor needs, narrowed so
// tests can exercise Record's marshal/redact logic without a live syslog
// daemon.
type writer interface {
	Write(b []byte) (int, error)
}

// Auditor writes Record entries to syslog as JSON, sorted by key so output
// is diffable across entries.
type Auditor struct {
	logger loggerProvider
	writer writer
}

// New returns an Auditor writing to w, falling back to l on write failure.
// In production w is a *syslog.Writer dialed with syslog.Dial or syslog.New.
func New(l loggerProvider, w writer) *Auditor {
	return &Auditor{logger: l, writer: w}
}

// Record implements goftpd.Logger's audit hook: obscured keys are redacted
// in place before marshaling, matching every other Logger implementation in
// this tree so a server can point its Logger at this Auditor directly, or
// fan a single event out to several. json.Marshal emits map[string]string
// keys in sorted order, so entries are diffable across writes without any
// extra bookkeeping here.
func (a *Auditor) Record(ctx context.Context, fields map[string]string, obscure ...string) {
	for _, key := range obscure {
		if _, ok := fields[key]; ok {
			fields[key] = "<obscured>"
		}
	}

	line, err := json.Marshal(fields)
	if err != nil {
		if a.logger != nil {
			a.logger.Errorf(ctx, "syslog audit: marshal record: %s", err)
		}
		return
	}
	if _, err := a.writer.Write(line); err != nil {
		if a.logger != nil {
			a.logger.Errorf(ctx, "syslog audit: write record: %s", err)
		}
	}
}
