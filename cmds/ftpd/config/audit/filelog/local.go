/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

// Package local writes structured audit entries to a local file via a
// log.Logger, as a syslog-free alternative to config/audit/syslog.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
)

// loggerProvider is the event logger an Auditor falls back to when a record
// itself cannot be written.
type loggerProvider interface {
	Errorf(ctx context.Context, format string, args ...interface{})
}

// auditLogger is the subset of *log.Logger an Auditor writes through.
type auditLogger interface {
	Printf(format string, args ...interface{})
}

// Option sets optional Auditor construction behavior.
type Option func(a *Auditor)

// SetSinkFile opens path for appending and writes every entry through it,
// one JSON object per line.
func SetSinkFile(path string) Option {
	return func(a *Auditor) {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			a.openErr = err
			return
		}
		a.sink = log.New(f, "", log.Ldate|log.Ltime)
	}
}

// SetSink uses l directly as the audit sink, letting callers supply their
// own *log.Logger (e.g. one already wired to log rotation).
func SetSink(l auditLogger) Option {
	return func(a *Auditor) { a.sink = l }
}

// Auditor writes Record entries as JSON lines through a log.Logger.
type Auditor struct {
	logger  loggerProvider
	sink    auditLogger
	openErr error
}

// New returns an Auditor. A sink must be supplied via SetSinkFile or SetSink.
func New(l loggerProvider, opts ...Option) (*Auditor, error) {
	a := &Auditor{logger: l}
	for _, opt := range opts {
		opt(a)
	}
	if a.openErr != nil {
		return nil, fmt.Errorf("filelog: %w", a.openErr)
	}
	if a.sink == nil {
		return nil, fmt.Errorf("filelog: a sink is required, call SetSinkFile or SetSink")
	}
	return a, nil
}

// Record implements goftpd.Logger's audit hook.
func (a *Auditor) Record(ctx context.Context, fields map[string]string, obscure ...string) {
	for _, key := range obscure {
		if _, ok := fields[key]; ok {
			fields[key] = "<obscured>"
		}
	}

	line, err := json.Marshal(fields)
	if err != nil {
		if a.logger != nil {
			a.logger.Errorf(ctx, "filelog audit: marshal record: %s", err)
		}
		return
	}
	a.sink.Printf("%s", line)
}
