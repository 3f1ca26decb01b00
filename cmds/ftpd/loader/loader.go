/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

// Package loader provides an injectable config loading mechanism that turns
// unmarshaled YAML configuration into policy.Scope trees, rebuilding on
// every change the underlying source reports.
package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/goftpd/goftpd/cmds/ftpd/config"
)

// loggerProvider provides the logging implementation
type loggerProvider interface {
	Infof(ctx context.Context, format string, args ...interface{})
	Errorf(ctx context.Context, format string, args ...interface{})
	Debugf(ctx context.Context, format string, args ...interface{})
}

// unmarshaled represents a config unmarshaller that provides an unmarshalled config
type unmarshaled interface {
	Config() chan config.ServerConfig
}

// localloader represents a config loader
type localloader interface {
	Load(path string) error
	unmarshaled
}

// NewLocalConfig will create a new Loader that will take loader provided config and turn it into
// a policy.Scope tree.
func NewLocalConfig(ctx context.Context, path string, ll localloader, logger loggerProvider) (*Loader, error) {
	if err := ll.Load(path); err != nil {
		return nil, err
	}
	return NewLoader(ctx, ll, logger)
}

// NewLoader starts the update loop that watches l.Config() and rebuilds a
// policy.Scope tree on every change.
func NewLoader(ctx context.Context, l unmarshaled, logger loggerProvider) (*Loader, error) {
	if logger == nil {
		return nil, fmt.Errorf("loader: please provide a logger")
	}
	wl := &Loader{
		unmarshaled:    l,
		loggerProvider: logger,
		ctx:            ctx,
		built:          make(chan *Built, 1),
		warm:           make(chan struct{}),
	}
	go wl.updates()
	return wl, nil
}

// Loader watches an unmarshaled config source and turns every update into a
// policy.Scope tree.
type Loader struct {
	unmarshaled
	loggerProvider
	ctx   context.Context
	built chan *Built
	warm  chan struct{}
}

// BlockUntilLoaded will block until the first config update has been built.
func (l *Loader) BlockUntilLoaded() {
	<-l.warm
}

// Built emits a freshly built Built bundle every time the underlying
// configuration source reports a change. The channel is buffered by one and
// always holds the newest bundle, never a backlog of stale ones.
func (l *Loader) Built() <-chan *Built {
	return l.built
}

// updates is the protected build loop for Loader.
func (l *Loader) updates() {
	var warm sync.Once
	for cfg := range l.Config() {
		b, err := BuildAll(cfg)
		if err != nil {
			l.Errorf(l.ctx, "config build failed, keeping previous scope tree: %s", err)
			continue
		}
		l.Infof(l.ctx, "rebuilt scope tree from config source")

		select {
		case l.built <- b:
		default:
			// drop whatever stale bundle is pending; the newest always wins
			select {
			case <-l.built:
			default:
			}
			l.built <- b
		}
		warm.Do(func() { close(l.warm) })
	}
}
