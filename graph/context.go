package graph

// Context carries the training-mode flag that gates graph recording. It is
// an explicit value threaded through Call, never a process-global mutable
// — callers who need a shared mode across a module tree store one Context
// on the tree's root and pass it down through Forward calls.
type Context struct {
	training bool
}

// NewContext returns a Context in training mode.
func NewContext() *Context {
	return &Context{training: true}
}

// Training reports whether graph-building is currently active.
func (c *Context) Training() bool { return c.training }

// SetTraining toggles the training-mode flag.
func (c *Context) SetTraining(training bool) { c.training = training }
