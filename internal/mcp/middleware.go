package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type contextKey int

const ownerIDKey contextKey = iota

// getOwnerID extracts the owner ID from context.
func getOwnerID(ctx context.Context) string {
	v, _ := ctx.Value(ownerIDKey).(string)
	return v
}

// ownerMiddleware tags every request with the owner the stores are scoped
// to. The server only ever serves that owner.
func ownerMiddleware(ownerID string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx = context.WithValue(ctx, ownerIDKey, ownerID)
			return next(ctx, method, req)
		}
	}
}
