//go:build dev

package runtime

// protect runs fn. In development builds panics propagate to aid
// debugging and fast failure.
func protect(_ *Instance, _ string, fn func() error) error {
	return fn()
}
