// Package snsctx carries per-call transport flags through a context.
package snsctx

import "context"

type verboseKey struct{}

// IsVerbose reports whether transports should dump raw frames.
func IsVerbose(ctx context.Context) bool {
	v, _ := ctx.Value(verboseKey{}).(bool)
	return v
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, verboseKey{}, value)
}
