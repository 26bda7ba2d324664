package workflow

import (
	"sort"
	"sync"
)

// HandlerRegistry maps stage type tags to handlers.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]StageHandler
}

// NewHandlerRegistry creates a new empty HandlerRegistry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]StageHandler)}
}

// Register installs h for stageType, replacing any previous handler.
func (r *HandlerRegistry) Register(stageType string, h StageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[stageType] = h
}

// RegisterFunc installs fn for stageType.
func (r *HandlerRegistry) RegisterFunc(stageType string, fn HandlerFunc) {
	r.Register(stageType, fn)
}

// Unregister removes the handler for stageType.
func (r *HandlerRegistry) Unregister(stageType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, stageType)
}

// Get retrieves the handler for stageType.
func (r *HandlerRegistry) Get(stageType string) (StageHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[stageType]
	return h, ok
}

// Wrap replaces every registered handler with wrap(type, handler).
// Handlers registered afterwards are not wrapped.
func (r *HandlerRegistry) Wrap(wrap func(stageType string, h StageHandler) StageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for t, h := range r.handlers {
		r.handlers[t] = wrap(t, h)
	}
}

// List returns sorted type tags of all registered handlers.
func (r *HandlerRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
