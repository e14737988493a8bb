// Package nn implements the module tree: named parameters, buffers and
// submodules arranged depth-first, with training-mode propagation and
// state-dict import/export. Individual layers (nn/layers) embed a
// *Module and register their own parameters/buffers against it.
package nn

import (
	"sort"
	"strings"

	"github.com/rz-123/TinyAI-sub001/errs"
	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/tensor"
	"github.com/rz-123/TinyAI-sub001/xlog"
)

var log = xlog.For("nn")

// Module is one node of the parameter/buffer/submodule tree. The zero
// value is not usable; construct with New.
type Module struct {
	kind string

	params     map[string]*graph.Node
	paramOrder []string

	buffers     map[string]*tensor.Tensor
	bufferOrder []string

	submodules map[string]*Module
	subOrder   []string

	ctx      *graph.Context
	training bool

	lazyPending bool
	lazyShape   tensor.Shape
	lazyInit    func(inputShape tensor.Shape) error
}

// New returns an empty module tagged with kind (e.g. "Linear", "LSTM"),
// used only for diagnostics — it never appears in state-dict paths.
func New(kind string) *Module {
	return &Module{
		kind:       kind,
		params:     make(map[string]*graph.Node),
		buffers:    make(map[string]*tensor.Tensor),
		submodules: make(map[string]*Module),
		ctx:        graph.NewContext(),
		training:   true,
	}
}

// Kind returns the module's diagnostic type tag.
func (m *Module) Kind() string { return m.kind }

// Context returns the graph.Context shared by this module and every
// submodule registered under it.
func (m *Module) Context() *graph.Context { return m.ctx }

// RegisterParameter wraps value as a trainable parameter named name and
// returns its Node. Fails with NameCollision if name is already taken by
// a parameter, buffer or submodule at this level.
func (m *Module) RegisterParameter(name string, value *tensor.Tensor) (*graph.Node, error) {
	if err := m.checkNameFree(name); err != nil {
		return nil, err
	}
	n := graph.NewParameter(value, name)
	m.params[name] = n
	m.paramOrder = append(m.paramOrder, name)
	return n, nil
}

// RegisterBuffer stores value as non-trainable state named name (running
// statistics, precomputed constants).
func (m *Module) RegisterBuffer(name string, value *tensor.Tensor) error {
	if err := m.checkNameFree(name); err != nil {
		return err
	}
	m.buffers[name] = value
	m.bufferOrder = append(m.bufferOrder, name)
	return nil
}

// RegisterSubmodule attaches child under name, sharing this module's
// graph.Context so training-mode toggles propagate downward uniformly.
func (m *Module) RegisterSubmodule(name string, child *Module) error {
	if err := m.checkNameFree(name); err != nil {
		return err
	}
	child.Apply(func(c *Module) {
		c.ctx = m.ctx
		c.training = m.training
	})
	m.submodules[name] = child
	m.subOrder = append(m.subOrder, name)
	return nil
}

func (m *Module) checkNameFree(name string) error {
	if _, ok := m.params[name]; ok {
		return errs.Newf(errs.NameCollision, "RegisterName", "%q already registered as a parameter", name)
	}
	if _, ok := m.buffers[name]; ok {
		return errs.Newf(errs.NameCollision, "RegisterName", "%q already registered as a buffer", name)
	}
	if _, ok := m.submodules[name]; ok {
		return errs.Newf(errs.NameCollision, "RegisterName", "%q already registered as a submodule", name)
	}
	return nil
}

// Buffer looks up a buffer registered directly on this module.
func (m *Module) Buffer(name string) (*tensor.Tensor, bool) {
	t, ok := m.buffers[name]
	return t, ok
}

// SetBuffer replaces the tensor stored under an existing buffer name (used
// by BatchNorm to reset and update its running statistics).
func (m *Module) SetBuffer(name string, value *tensor.Tensor) error {
	if _, ok := m.buffers[name]; !ok {
		return errs.Newf(errs.StateDictMismatch, "SetBuffer", "no buffer named %q", name)
	}
	m.buffers[name] = value
	return nil
}

// Parameter looks up a parameter registered directly on this module.
func (m *Module) Parameter(name string) (*graph.Node, bool) {
	n, ok := m.params[name]
	return n, ok
}

// Submodule looks up a child registered directly on this module.
func (m *Module) Submodule(name string) (*Module, bool) {
	c, ok := m.submodules[name]
	return c, ok
}

// NamedParameter pairs a fully-qualified dot-joined path with its Node.
type NamedParameter struct {
	Path string
	Node *graph.Node
}

// NamedBuffer pairs a fully-qualified dot-joined path with its Tensor.
type NamedBuffer struct {
	Path   string
	Tensor *tensor.Tensor
}

// NamedSubmodule pairs a fully-qualified dot-joined path with its Module.
type NamedSubmodule struct {
	Path   string
	Module *Module
}

// NamedParameters walks the tree depth-first, pre-order, returning every
// parameter with its fully-qualified path (submodule names joined by ".").
func (m *Module) NamedParameters() []NamedParameter {
	var out []NamedParameter
	m.walkParameters("", &out)
	return out
}

func (m *Module) walkParameters(prefix string, out *[]NamedParameter) {
	for _, name := range m.paramOrder {
		*out = append(*out, NamedParameter{Path: joinPath(prefix, name), Node: m.params[name]})
	}
	for _, name := range m.subOrder {
		m.submodules[name].walkParameters(joinPath(prefix, name), out)
	}
}

// NamedBuffers walks the tree depth-first, pre-order, returning every buffer.
func (m *Module) NamedBuffers() []NamedBuffer {
	var out []NamedBuffer
	m.walkBuffers("", &out)
	return out
}

func (m *Module) walkBuffers(prefix string, out *[]NamedBuffer) {
	for _, name := range m.bufferOrder {
		*out = append(*out, NamedBuffer{Path: joinPath(prefix, name), Tensor: m.buffers[name]})
	}
	for _, name := range m.subOrder {
		m.submodules[name].walkBuffers(joinPath(prefix, name), out)
	}
}

// NamedSubmodules walks the tree depth-first, pre-order, returning every submodule.
func (m *Module) NamedSubmodules() []NamedSubmodule {
	var out []NamedSubmodule
	m.walkSubmodules("", &out)
	return out
}

func (m *Module) walkSubmodules(prefix string, out *[]NamedSubmodule) {
	for _, name := range m.subOrder {
		path := joinPath(prefix, name)
		child := m.submodules[name]
		*out = append(*out, NamedSubmodule{Path: path, Module: child})
		child.walkSubmodules(path, out)
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// Train recursively puts this module and every submodule into training mode.
func (m *Module) Train() {
	m.training = true
	m.ctx.SetTraining(true)
	for _, name := range m.subOrder {
		m.submodules[name].Train()
	}
}

// Eval recursively puts this module and every submodule into evaluation mode.
func (m *Module) Eval() {
	m.training = false
	m.ctx.SetTraining(false)
	for _, name := range m.subOrder {
		m.submodules[name].Eval()
	}
}

// IsTraining reports the module's current mode.
func (m *Module) IsTraining() bool { return m.training }

// ClearGrads recursively clears every parameter's accumulated gradient.
func (m *Module) ClearGrads() {
	for _, p := range m.params {
		p.ClearGrad()
	}
	for _, c := range m.submodules {
		c.ClearGrads()
	}
}

// DeferInit marks this module as a LazyModule: fn is not run now, it runs
// exactly once, inside the first ResolveLazy call, against the shape of
// that call's input (e.g. a LazyLinear inferring in_features from the
// first batch it sees). Until then IsLazyPending reports true and the
// module carries no parameters.
func (m *Module) DeferInit(fn func(inputShape tensor.Shape) error) {
	m.lazyPending = true
	m.lazyInit = fn
}

// IsLazyPending reports whether a deferred initializer registered via
// DeferInit is still awaiting its first ResolveLazy call.
func (m *Module) IsLazyPending() bool { return m.lazyPending }

// ResolveLazy runs this module's deferred initializer on the first call,
// recording inputShape as the shape parameters were created from. Every
// later call must present the same shape; a changed shape is a fatal
// LazyInitFailure, since the parameters it would imply no longer match
// what was already created. Modules with no deferred initializer treat
// this as a no-op, so non-lazy layers never need to call it.
func (m *Module) ResolveLazy(inputShape tensor.Shape) error {
	if m.lazyInit == nil {
		return nil
	}
	if m.lazyPending {
		if err := m.lazyInit(inputShape); err != nil {
			return err
		}
		m.lazyPending = false
		m.lazyShape = inputShape.Clone()
		return nil
	}
	if !inputShape.Equal(m.lazyShape) {
		return errs.Newf(errs.LazyInitFailure, "ResolveLazy", "input shape changed from %s to %s after lazy initialization", m.lazyShape, inputShape)
	}
	return nil
}

// Apply recursively invokes fn on this module and every submodule,
// post-order (children visited before the module itself), matching the
// order a caller would use to reinitialize leaves before their parents
// read aggregate shapes from them.
func (m *Module) Apply(fn func(*Module)) {
	for _, name := range m.subOrder {
		m.submodules[name].Apply(fn)
	}
	fn(m)
}

// StateDict exports every parameter and buffer tensor keyed by its
// fully-qualified path, suitable for checkpointing.
func (m *Module) StateDict() map[string]*tensor.Tensor {
	dict := make(map[string]*tensor.Tensor)
	for _, np := range m.NamedParameters() {
		dict[np.Path] = np.Node.Value()
	}
	for _, nb := range m.NamedBuffers() {
		dict[nb.Path] = nb.Tensor
	}
	return dict
}

// LoadStateDict copies tensors from dict into matching parameters and
// buffers by path. In strict mode, any dict key absent from the module
// or any module entry absent from dict, or a shape mismatch on a matched
// entry, is a StateDictMismatch error. In non-strict mode, unmatched keys
// on either side and shape-mismatched entries are skipped with a warning.
func (m *Module) LoadStateDict(dict map[string]*tensor.Tensor, strict bool) error {
	matched := make(map[string]bool, len(dict))

	for _, np := range m.NamedParameters() {
		src, ok := dict[np.Path]
		if !ok {
			if strict {
				return errs.Newf(errs.StateDictMismatch, "LoadStateDict", "missing parameter %q", np.Path)
			}
			log.Warn().Str("path", np.Path).Msg("state dict missing parameter, skipping")
			continue
		}
		matched[np.Path] = true
		if !src.Shape().Equal(np.Node.Value().Shape()) {
			if !strict {
				log.Warn().Str("path", np.Path).Msg("state dict shape mismatch for parameter, skipping")
				continue
			}
			return errs.Newf(errs.StateDictMismatch, "LoadStateDict", "parameter %q shape %s does not match checkpoint shape %s", np.Path, np.Node.Value().Shape(), src.Shape())
		}
		np.Node.SetGrad(nil)
		overwriteValue(np.Node.Value(), src)
	}

	for _, nb := range m.NamedBuffers() {
		src, ok := dict[nb.Path]
		if !ok {
			if strict {
				return errs.Newf(errs.StateDictMismatch, "LoadStateDict", "missing buffer %q", nb.Path)
			}
			log.Warn().Str("path", nb.Path).Msg("state dict missing buffer, skipping")
			continue
		}
		matched[nb.Path] = true
		if !src.Shape().Equal(nb.Tensor.Shape()) {
			if !strict {
				log.Warn().Str("path", nb.Path).Msg("state dict shape mismatch for buffer, skipping")
				continue
			}
			return errs.Newf(errs.StateDictMismatch, "LoadStateDict", "buffer %q shape %s does not match checkpoint shape %s", nb.Path, nb.Tensor.Shape(), src.Shape())
		}
		overwriteValue(nb.Tensor, src)
	}

	if !strict {
		for k := range dict {
			if !matched[k] {
				log.Warn().Str("path", k).Msg("state dict entry has no matching parameter or buffer, skipping")
			}
		}
	}
	if strict && len(matched) != len(dict) {
		var extra []string
		for k := range dict {
			if !matched[k] {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		return errs.Newf(errs.StateDictMismatch, "LoadStateDict", "checkpoint has unused keys: %s", strings.Join(extra, ", "))
	}
	return nil
}

func overwriteValue(dst, src *tensor.Tensor) {
	for i, v := range src.Data() {
		dst.Set(i, v)
	}
}
