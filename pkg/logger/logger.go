// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logger holds the process-wide slog logger of the auth bridge.
//
// Long-lived components take a *slog.Logger from [Get]. Request handlers use
// [FromContext], which returns the logger the HTTP middleware stored with the
// request id, method and path already attached.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/spf13/viper"

	"github.com/stacklok/toolhive-core/env"
	"github.com/stacklok/toolhive-core/logging"
)

// UnstructuredLogsEnv switches output from JSON to text when true.
const UnstructuredLogsEnv = "UNSTRUCTURED_LOGS"

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(logging.New())
}

// Options selects the output of a logger built by New.
type Options struct {
	Debug  bool
	Text   bool
	Output io.Writer
}

// OptionsFromEnv reads UnstructuredLogsEnv from r. Unset or unparsable
// values select JSON.
func OptionsFromEnv(r env.Reader, debug bool) Options {
	text, err := strconv.ParseBool(r.Getenv(UnstructuredLogsEnv))
	return Options{Debug: debug, Text: err == nil && text}
}

// New builds a logger without installing it.
func New(o Options) *slog.Logger {
	var opts []logging.Option
	if o.Text {
		opts = append(opts, logging.WithFormat(logging.FormatText))
	}
	if o.Debug {
		opts = append(opts, logging.WithLevel(slog.LevelDebug))
	}
	if o.Output != nil {
		opts = append(opts, logging.WithOutput(o.Output))
	}
	return logging.New(opts...)
}

// Initialize installs the process logger from the environment and the
// "debug" configuration key.
func Initialize() {
	current.Store(New(OptionsFromEnv(&env.OSReader{}, viper.GetBool("debug"))))
}

// Get returns the process logger.
func Get() *slog.Logger {
	return current.Load()
}

// Set replaces the process logger and returns a func restoring the previous one.
func Set(l *slog.Logger) (restore func()) {
	prev := current.Swap(l)
	return func() { current.Store(prev) }
}

type ctxKey struct{}

// WithContext returns a copy of ctx carrying l. A nil l leaves ctx unchanged.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or the process logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return Get()
}

// Debug logs msg on the process logger.
func Debug(msg string) { Get().Debug(msg) }

// Debugw logs msg with key-value pairs on the process logger.
func Debugw(msg string, kv ...any) { Get().Debug(msg, kv...) }

// Info logs msg on the process logger.
func Info(msg string) { Get().Info(msg) }

// Infow logs msg with key-value pairs on the process logger.
func Infow(msg string, kv ...any) { Get().Info(msg, kv...) }

// Warn logs msg on the process logger.
func Warn(msg string) { Get().Warn(msg) }

// Warnw logs msg with key-value pairs on the process logger.
func Warnw(msg string, kv ...any) { Get().Warn(msg, kv...) }

// Errorw logs msg with key-value pairs on the process logger.
func Errorw(msg string, kv ...any) { Get().Error(msg, kv...) }

// PrintfLogger adapts printf-style client library logging (go-redis) to the
// context logger. Lines are logged at warn level, tagged with Component.
type PrintfLogger struct {
	Component string
}

// Printf implements the go-redis logging interface.
func (p PrintfLogger) Printf(ctx context.Context, format string, v ...any) {
	FromContext(ctx).Warn(fmt.Sprintf(format, v...), "component", p.Component)
}
