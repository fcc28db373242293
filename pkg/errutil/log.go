// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil bridges oops errors into structured logs and test assertions.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// Attrs returns slog key/value pairs describing err. Oops errors contribute
// their code and context; other errors only their message.
func Attrs(err error) []any {
	if err == nil {
		return nil
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err.Error()}
	}

	attrs := []any{"error", oopsErr.Error()}
	if code, ok := any(oopsErr.Code()).(string); ok && code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}

// LogError logs err at error level with its code and context.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error, extra ...any) {
	Log(ctx, logger, slog.LevelError, msg, err, extra...)
}

// Log logs err at level with its code and context followed by extra attributes.
func Log(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, err error, extra ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	args := append(Attrs(err), extra...)
	logger.Log(ctx, level, msg, args...)
}
