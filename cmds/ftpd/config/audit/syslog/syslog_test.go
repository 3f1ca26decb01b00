/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

package syslog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type stubWriter struct {
	lines [][]byte
	err   error
}

func (s *stubWriter) Write(b []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.lines = append(s.lines, append([]byte(nil), b...))
	return len(b), nil
}

type stubLogger struct {
	errs []string
}

func (s *stubLogger) Errorf(ctx context.Context, format string, args ...interface{}) {
	s.errs = append(s.errs, format)
}

func TestRecordWritesJSONLine(t *testing.T) {
	w := &stubWriter{}
	a := New(nil, w)

	a.Record(context.Background(), map[string]string{"event": "login-ok", "user": "alice"})

	if len(w.lines) != 1 {
		t.Fatalf("expected one write, got %d", len(w.lines))
	}
	var got map[string]string
	if err := json.Unmarshal(w.lines[0], &got); err != nil {
		t.Fatalf("unmarshal written line: %v", err)
	}
	if got["event"] != "login-ok" || got["user"] != "alice" {
		t.Fatalf("unexpected fields: %v", got)
	}
}

func TestRecordObscuresKeys(t *testing.T) {
	w := &stubWriter{}
	a := New(nil, w)

	a.Record(context.Background(), map[string]string{"event": "login-ok", "password": "hunter2"}, "password")

	var got map[string]string
	if err := json.Unmarshal(w.lines[0], &got); err != nil {
		t.Fatalf("unmarshal written line: %v", err)
	}
	if got["password"] != "<obscured>" {
		t.Fatalf("expected password to be obscured, got %q", got["password"])
	}
}

func TestRecordFallsBackToLoggerOnWriteError(t *testing.T) {
	w := &stubWriter{err: errors.New("syslog unreachable")}
	l := &stubLogger{}
	a := New(l, w)

	a.Record(context.Background(), map[string]string{"event": "login-ok"})

	if len(l.errs) != 1 {
		t.Fatalf("expected the write failure to be reported via the fallback logger, got %d calls", len(l.errs))
	}
}
