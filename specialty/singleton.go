package specialty

import "sync"

var (
	globalRegistry *Registry
	globalOnce     sync.Once
)

// Global returns the process-wide registry, loading the built-in catalogue
// on first use. The embedded catalogue is part of the binary, so failing
// to load it panics.
func Global() *Registry {
	globalOnce.Do(func() {
		if globalRegistry != nil {
			return
		}
		r, err := NewDefaultRegistry()
		if err != nil {
			panic(err)
		}
		globalRegistry = r
	})
	return globalRegistry
}
