package workflow

import "fmt"

// MessageKey is the context variable that always holds the inbound user
// message. The engine sets it before the first traversal step.
const MessageKey = "user_message"

// Context is the mutable variable bag carried through one execution.
// It is owned by a single execution call and must not be shared between
// concurrent runs.
type Context map[string]interface{}

// NewContext returns an empty context.
func NewContext() Context {
	return make(Context)
}

// Get returns the value for key and whether it is present.
func (c Context) Get(key string) (interface{}, bool) {
	v, ok := c[key]
	return v, ok
}

// Set stores a value under key.
func (c Context) Set(key string, value interface{}) {
	c[key] = value
}

// Snapshot returns a shallow copy of the context.
func (c Context) Snapshot() map[string]interface{} {
	out := make(map[string]interface{}, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// text renders a context value for template substitution.
func text(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
