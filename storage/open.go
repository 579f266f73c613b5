package storage

import "fmt"

const (
	BackendPebble = "pebble"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Open returns a Store using the named backend.
func Open(backend string, opts Options) (Store, error) {
	switch backend {
	case BackendPebble, "":
		return OpenPebble(opts)
	case BackendBadger:
		return OpenBadger(opts)
	case BackendMemory:
		opts.InMemory = true
		return OpenPebble(opts)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
