//go:build !unix

package fsutil

// Only the in-process mutex applies on platforms without flock.
func lockFile(path string) (func(), error) {
	return func() {}, nil
}
