package engine

import "net/http"

// Context is the shared object carried from the startup hook through
// every invocation of the process function to the shutdown hook. It
// pairs a typed Session handle (the network client the orchestrator
// constructs in step 6 of the run sequence) with an open map for
// user-defined state, per the "context as open map" design note: the
// core never needs dynamic typing, only the Session field plus
// whatever the user's startup hook stashed in Extra.
type Context struct {
	Session *http.Client
	Extra   map[string]any
}

// NewContext wraps the extension values returned by the startup hook.
// A nil map is normalized to an empty one so callers can always index
// into Extra without a nil check.
func NewContext(extra map[string]any) *Context {
	if extra == nil {
		extra = make(map[string]any)
	}
	return &Context{Extra: extra}
}

// Get returns a user-defined value stashed in Extra by the startup
// hook or by the process function itself.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.Extra[key]
	return v, ok
}

// Set stores a user-defined value in Extra. Callers must not invoke
// this concurrently with dispatch; per the resource-discipline table,
// the context map is written only outside the run loop.
func (c *Context) Set(key string, value any) {
	c.Extra[key] = value
}
