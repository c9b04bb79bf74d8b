// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle collects the cleanup functions of long-lived resources
// (listeners, database pools, redis clients) and runs them on shutdown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/mcp-authbridge/pkg/logger"
)

// CleanupFunc releases a resource.
type CleanupFunc func(ctx context.Context) error

type cleanup struct {
	label string
	fn    CleanupFunc
}

// Registry holds cleanup functions until Shutdown runs them.
type Registry struct {
	mu       sync.Mutex
	cleanups []cleanup
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds fn under a descriptive label used in logs.
func (r *Registry) Register(label string, fn CleanupFunc) error {
	if fn == nil {
		return errors.New("cleanup function is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanups = append(r.cleanups, cleanup{label: label, fn: fn})
	return nil
}

// RegisterCloser registers a Close method that takes no context.
func (r *Registry) RegisterCloser(label string, closeFn func() error) error {
	if closeFn == nil {
		return errors.New("cleanup function is required")
	}
	return r.Register(label, func(context.Context) error { return closeFn() })
}

// Len returns the number of pending cleanup functions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cleanups)
}

// Shutdown runs every registered function concurrently and waits for all of
// them. Failures and panics are logged and never stop the others. The list is
// cleared first, so a second call only runs functions registered since.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	pending := r.cleanups
	r.cleanups = nil
	r.mu.Unlock()

	var g errgroup.Group
	for _, c := range pending {
		g.Go(func() error {
			if err := run(ctx, c); err != nil {
				logger.Errorw("Fatal error in cleanup function", "label", c.label, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func run(ctx context.Context, c cleanup) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	logger.Debugw("running cleanup", "label", c.label)
	return c.fn(ctx)
}
