// Copyright 2025 The A2A Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides context-scoped structured logging for host components.
//
// Components receive a logger through the context. Constructors which accept
// a *slog.Logger attach it with [AttachLogger]; everything below them calls
// the package-level functions and picks the logger up again. When no logger
// was attached, slog.Default() is used.
package log

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// AttachLogger returns a context carrying the provided logger. Package-level
// logging functions called with the returned context will use it.
func AttachLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom extracts the logger attached to ctx, falling back to slog.Default().
func LoggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// Debug logs at slog.LevelDebug using the context logger.
func Debug(ctx context.Context, msg string, args ...any) {
	LoggerFrom(ctx).DebugContext(ctx, msg, args...)
}

// Info logs at slog.LevelInfo using the context logger.
func Info(ctx context.Context, msg string, args ...any) {
	LoggerFrom(ctx).InfoContext(ctx, msg, args...)
}

// Warn logs at slog.LevelWarn using the context logger.
func Warn(ctx context.Context, msg string, args ...any) {
	LoggerFrom(ctx).WarnContext(ctx, msg, args...)
}

// Error logs at slog.LevelError using the context logger. The error is
// recorded as an "error" attribute; args are additional key-value pairs.
func Error(ctx context.Context, msg string, err error, args ...any) {
	logger := LoggerFrom(ctx)
	attrs := make([]any, 0, len(args)+1)
	attrs = append(attrs, args...)
	attrs = append(attrs, slog.Any("error", err))
	logger.ErrorContext(ctx, msg, attrs...)
}
