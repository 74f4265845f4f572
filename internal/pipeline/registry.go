package pipeline

// Registry maps handler ids to handlers, preserving registration order for
// deterministic routing over the available set.
type Registry struct {
	handlers map[string]Handler
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

func (r *Registry) Register(h Handler) {
	if h == nil {
		return
	}
	id := h.ID()
	if _, dup := r.handlers[id]; !dup {
		r.order = append(r.order, id)
	}
	r.handlers[id] = h
}

func (r *Registry) Get(id string) (Handler, bool) {
	h, ok := r.handlers[id]
	return h, ok
}

// IDs returns the registered handler ids in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
