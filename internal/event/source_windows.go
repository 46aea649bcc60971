//go:build windows

package event

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	kernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procGetLastInputInfo = user32.NewProc("GetLastInputInfo")
	procGetTickCount     = kernel32.NewProc("GetTickCount")
)

type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

// WindowsSource answers idle queries via GetLastInputInfo. Event delivery
// requires a low-level hook running a message pump, which the service
// build does not carry; the stream degrades to empty.
type WindowsSource struct {
	NopSource
}

// NewPlatformSource returns the input source for this platform.
func NewPlatformSource() Source {
	return &WindowsSource{NopSource: *NewNopSource()}
}

// IdleSeconds implements Source.
func (s *WindowsSource) IdleSeconds() (int, error) {
	info := lastInputInfo{cbSize: uint32(unsafe.Sizeof(lastInputInfo{}))}

	ret, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
	if ret == 0 {
		return 0, err
	}

	tick, _, _ := procGetTickCount.Call()
	elapsedMs := uint32(tick) - info.dwTime

	return int(elapsedMs / 1000), nil
}
