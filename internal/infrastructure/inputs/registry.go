package inputs

import (
	"fmt"
	"sync"

	"github.com/akave-ai/meteringest/internal/model"
)

// Registry holds registered envelope decoders. Registration order is the
// detection order, so the most specific envelopes go first.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
	order    []string
}

// NewRegistry returns a new Registry.
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[string]Decoder),
	}
}

// Register adds decoders. Re-registering a name replaces it in place.
func (r *Registry) Register(decoders ...Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range decoders {
		if _, ok := r.decoders[d.Name()]; !ok {
			r.order = append(r.order, d.Name())
		}
		r.decoders[d.Name()] = d
	}
}

// Get returns the decoder registered under name.
func (r *Registry) Get(name string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[name]
	return d, ok
}

// ListRegistered returns all registered input type names in detection order.
func (r *Registry) ListRegistered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// GetTypeInfo returns the description of the given input type. ok is false if the type is not registered.
func (r *Registry) GetTypeInfo(name string) (info InputTypeInfo, ok bool) {
	d, ok := r.Get(name)
	if !ok {
		return InputTypeInfo{}, false
	}
	return d.TypeInfo(), true
}

// AllTypesInfo returns descriptions of all registered input types in detection order.
func (r *Registry) AllTypesInfo() []InputTypeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]InputTypeInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.decoders[name].TypeInfo())
	}
	return out
}

// Detect returns the first decoder, in registration order, whose Match accepts payload.
func (r *Registry) Detect(payload []byte) (Decoder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		if d := r.decoders[name]; d.Match(payload) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: no input type recognises the payload", ErrInvalidPayload)
}

// Decode unwraps payload with the named decoder, or with the detected one
// when name is empty. It returns the name of the decoder used.
func (r *Registry) Decode(name string, payload []byte) (string, model.RawReport, error) {
	var (
		d  Decoder
		ok bool
	)
	if name == "" {
		var err error
		if d, err = r.Detect(payload); err != nil {
			return "", nil, err
		}
	} else if d, ok = r.Get(name); !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownInput, name)
	}
	report, err := d.Decode(payload)
	if err != nil {
		return d.Name(), nil, fmt.Errorf("%s input: %w", d.Name(), err)
	}
	return d.Name(), report, nil
}
