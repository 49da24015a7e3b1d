package clientupdater

import "context"

// CancelToken wraps a context.CancelFunc for one in-flight StartUpdate
// call. Earlier updaters tracked cancellation with a single shared
// terminate_update boolean consulted between files; this is the same
// idea made cooperative and scoped to one call instead of global.
type CancelToken struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCancelToken derives a cancellable context from parent.
func NewCancelToken(parent context.Context) *CancelToken {
	ctx, cancel := context.WithCancel(parent)
	return &CancelToken{ctx: ctx, cancel: cancel}
}

// Cancel requests cancellation. Safe to call on a nil token.
func (c *CancelToken) Cancel() {
	if c != nil && c.cancel != nil {
		c.cancel()
	}
}

// Context returns the token's context, or context.Background for a nil
// token so callers never need a nil check before use.
func (c *CancelToken) Context() context.Context {
	if c == nil {
		return context.Background()
	}
	return c.ctx
}

// Requested reports whether Cancel has been called.
func (c *CancelToken) Requested() bool {
	return c != nil && c.ctx.Err() != nil
}
