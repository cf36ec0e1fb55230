package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxSubject ctxKey = iota
	ctxRole
)

var ErrNoIdentity = errors.New("no identity in context")

// WithIdentity stores the verified caller on the request context.
func WithIdentity(ctx context.Context, subject, role string) context.Context {
	ctx = context.WithValue(ctx, ctxSubject, subject)
	return context.WithValue(ctx, ctxRole, role)
}

func Subject(ctx context.Context) (string, error) {
	if v, ok := ctx.Value(ctxSubject).(string); ok && v != "" {
		return v, nil
	}
	return "", ErrNoIdentity
}

func Role(ctx context.Context) (string, error) {
	if v, ok := ctx.Value(ctxRole).(string); ok && v != "" {
		return v, nil
	}
	return "", ErrNoIdentity
}
