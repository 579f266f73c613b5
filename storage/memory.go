package storage

// NewMemory returns a new in-memory Store.
func NewMemory() (Store, error) {
	return OpenPebble(Options{InMemory: true})
}
