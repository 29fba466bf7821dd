package model

import (
	"context"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	callerContextKey contextKey = "caller"
)

// WithCaller adds the authenticated Caller to the context
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	if caller == nil {
		return ctx
	}
	return context.WithValue(ctx, callerContextKey, caller)
}

// GetCaller retrieves the authenticated Caller from the context
func GetCaller(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(callerContextKey).(*Caller)
	return caller, ok && caller != nil
}
