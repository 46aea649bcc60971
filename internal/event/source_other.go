//go:build !linux && !windows

package event

// NewPlatformSource returns the input source for this platform.
// No hook is available; the stream is empty and idle is always 0.
func NewPlatformSource() Source {
	return NewNopSource()
}
