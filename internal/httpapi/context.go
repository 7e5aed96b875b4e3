package httpapi

import (
	"context"
	"errors"
)

// errServerShutdown is the cancellation cause of requests cut off by the
// server shutting down.
var errServerShutdown = errors.New("server shutting down")

// serverBaseCtx is canceled on shutdown; in-flight streams end with it.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts derives from req, keeping its values, and also ends it when
// base is done. The returned cancel func must be called when the handler ends.
func joinContexts(base, req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(req)
	stop := context.AfterFunc(base, func() { cancel(errServerShutdown) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}
