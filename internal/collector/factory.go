package collector

import (
	"fmt"
	"runtime"
)

// ErrUnsupportedPlatform is returned by New when the host OS has no
// collector implementation. Per spec.md §7 this is fatal at startup.
type ErrUnsupportedPlatform struct {
	OS string
}

func (e *ErrUnsupportedPlatform) Error() string {
	return fmt.Sprintf("unsupported platform: %s", e.OS)
}

// factories holds one constructor per supported GOOS. Each platform
// file (linux.go, darwin.go, windows.go) registers itself from an
// init() guarded by a //go:build tag, so only the constructor for the
// OS actually being compiled ever exists in the binary — grounded on
// original_source's collectors/factory.py dict-of-constructors shape,
// adapted to Go's per-file build-tag idiom instead of a runtime dict
// of importable classes.
var factories = map[string]func() Collector{}

func registerFactory(goos string, fn func() Collector) {
	factories[goos] = fn
}

// New selects the Collector implementation for the detected host OS,
// grounded on original_source's collectors/factory.py (get_collector).
func New() (Collector, error) {
	return newForGOOS(runtime.GOOS)
}

func newForGOOS(goos string) (Collector, error) {
	fn, ok := factories[goos]
	if !ok {
		return nil, &ErrUnsupportedPlatform{OS: goos}
	}
	return fn(), nil
}
