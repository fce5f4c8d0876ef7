// Package logctx carries a scoped zerolog logger through context.Context.
package logctx

import (
	"context"

	"github.com/rs/zerolog"
)

type key struct{}

var k key

func Into(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, k, l)
}

// From returns the logger stored in ctx, or fallback.
func From(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return fallback
	}
	if l, ok := ctx.Value(k).(zerolog.Logger); ok {
		return l
	}
	return fallback
}

// With adds fields to the ctx logger (or fallback) and stores the result back,
// so calls made further down with ctx log the same fields.
func With(ctx context.Context, fallback zerolog.Logger, fields func(zerolog.Context) zerolog.Context) (context.Context, zerolog.Logger) {
	l := fields(From(ctx, fallback).With()).Logger()
	return Into(ctx, l), l
}
