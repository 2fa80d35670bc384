package controller

import (
	"context"

	"github.com/sharetube/watchparty/internal/service/auth"
)

type contextKey int

const (
	identityCtxKey contextKey = iota
)

func (c *controller) getIdentityFromCtx(ctx context.Context) auth.Identity {
	identity, ok := ctx.Value(identityCtxKey).(auth.Identity)
	if !ok {
		return auth.Identity{}
	}

	return identity
}
