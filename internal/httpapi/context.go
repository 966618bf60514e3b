package httpapi

import "context"

// serverBaseCtx is canceled on shutdown; long-lived handlers such as the
// event stream end with it. Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts returns a context derived from a that also ends when b does.
// Calling cancel detaches it from b.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// controlContext bounds a handler's wait on the control loop.
func controlContext(r context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r, controlTimeout)
}
