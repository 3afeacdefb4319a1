package keypad

import "sync"

// Registry holds the mutable state of every key in a layout.
type Registry struct {
	mu   sync.RWMutex
	keys []KeyState
}

// NewRegistry creates a registry with all keys released and unlit.
func NewRegistry(layout Layout) *Registry {
	return &Registry{keys: make([]KeyState, layout.KeyCount())}
}

// Len returns the number of keys.
func (r *Registry) Len() int {
	return len(r.keys)
}

// Key returns the state of key index.
func (r *Registry) Key(index int) (KeyState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index < 0 || index >= len(r.keys) {
		return KeyState{}, unknownKey(index)
	}
	return r.keys[index], nil
}

// SetPressed records the pressed flag of key index.
func (r *Registry) SetPressed(index int, pressed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.keys) {
		return unknownKey(index)
	}
	r.keys[index].Pressed = pressed
	return nil
}

// SetColor records the indicator colour of key index.
func (r *Registry) SetColor(index int, c Color) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.keys) {
		return unknownKey(index)
	}
	r.keys[index].Color = c
	return nil
}

// Clear turns every indicator off. Pressed flags are left alone.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.keys {
		r.keys[i].Color = Off
	}
}

// Snapshot returns a copy of every key state, indexed by key.
func (r *Registry) Snapshot() []KeyState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]KeyState, len(r.keys))
	copy(out, r.keys)
	return out
}
