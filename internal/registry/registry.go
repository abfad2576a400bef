package registry

import (
	"github.com/eriksjaastad/pptmail-mcp-go/internal/tools"
)

type entry struct {
	session    tools.Session
	descriptor tools.Descriptor
}

// Registry merges the tools of several servers into one namespace. It is
// populated once during bootstrap and then only read by the agent loop.
type Registry struct {
	entries     map[string]entry
	descriptors []tools.Descriptor
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// Register binds every descriptor to session. A name registered earlier by
// another server is shadowed by the later registration.
func (r *Registry) Register(session tools.Session, descriptors []tools.Descriptor) {
	for _, d := range descriptors {
		r.entries[d.Name] = entry{session: session, descriptor: d}
		r.descriptors = append(r.descriptors, d)
	}
}

// Resolve returns the session owning name and its descriptor.
func (r *Registry) Resolve(name string) (tools.Session, tools.Descriptor, bool) {
	e, ok := r.entries[name]
	if !ok || e.session == nil {
		return nil, tools.Descriptor{}, false
	}
	return e.session, e.descriptor, true
}

// Descriptors returns all registered descriptors in registration order,
// including shadowed ones.
func (r *Registry) Descriptors() []tools.Descriptor {
	out := make([]tools.Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		names = append(names, d.Name)
	}
	return names
}
