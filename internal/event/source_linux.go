//go:build linux

package event

import (
	"bufio"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

// LinuxSource reads keyboard and mouse events from /dev/input and answers
// idle queries over D-Bus. Requires membership in the input group (or
// root); when no device can be opened the stream is simply empty.
type LinuxSource struct {
	mu      sync.Mutex
	ch      chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	done    []chan struct{}
	stopped bool

	// Accumulated absolute cursor position from relative motion.
	posMu sync.Mutex
	x, y  float64

	// Left/right position in a MouseMove is best-effort on evdev; the
	// engine only consumes deltas so the origin does not matter.
}

// NewPlatformSource returns the input source for this platform.
func NewPlatformSource() Source {
	return &LinuxSource{ch: make(chan Event, 4096)}
}

// Start implements Source. Devices that cannot be opened are skipped.
func (s *LinuxSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, dev := range findInputDevices() {
		f, err := os.OpenFile(dev, os.O_RDONLY, 0)
		if err != nil {
			continue
		}
		done := make(chan struct{})
		s.done = append(s.done, done)
		go s.readLoop(f, done)
	}

	return nil
}

// Stop implements Source.
func (s *LinuxSource) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	done := s.done
	s.mu.Unlock()

	for _, d := range done {
		<-d
	}
	close(s.ch)
	return nil
}

// Events implements Source.
func (s *LinuxSource) Events() <-chan Event { return s.ch }

// IdleSeconds implements Source, asking the session screensaver service.
func (s *LinuxSource) IdleSeconds() (int, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return 0, err
	}

	obj := conn.Object("org.freedesktop.ScreenSaver", "/org/freedesktop/ScreenSaver")
	var idleMs uint32
	call := obj.Call("org.freedesktop.ScreenSaver.GetSessionIdleTime", 0)
	if call.Err != nil {
		return 0, call.Err
	}
	if err := call.Store(&idleMs); err != nil {
		return 0, err
	}

	return int(idleMs / 1000), nil
}

// Linux input_event constants.
const (
	evKey = 0x01
	evRel = 0x02

	relX     = 0x00
	relY     = 0x01
	relWheel = 0x08

	btnLeft   = 0x110
	btnRight  = 0x111
	btnMiddle = 0x112

	valueRelease = 0
	valuePress   = 1
)

// linux input_event is 24 bytes on 64-bit: timeval(16) + type(2) + code(2) + value(4).
const inputEventSize = 24

func (s *LinuxSource) readLoop(f *os.File, done chan struct{}) {
	defer close(done)
	defer f.Close()

	buf := make([]byte, inputEventSize)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		n, err := f.Read(buf)
		if err != nil {
			return
		}
		if n < inputEventSize {
			continue
		}

		typ := binary.LittleEndian.Uint16(buf[16:18])
		code := binary.LittleEndian.Uint16(buf[18:20])
		value := int32(binary.LittleEndian.Uint32(buf[20:24]))
		now := time.Now()

		switch typ {
		case evKey:
			s.handleKey(code, value, now)
		case evRel:
			s.handleRel(code, value, now)
		}
	}
}

func (s *LinuxSource) handleKey(code uint16, value int32, now time.Time) {
	if value != valuePress && value != valueRelease {
		return // key repeat
	}

	if code >= btnLeft && code <= btnMiddle {
		kind := KindMouseDown
		if value == valueRelease {
			kind = KindMouseUp
		}
		s.emit(Event{Kind: kind, Timestamp: now, Button: evdevButton(code)})
		return
	}

	kind := KindKeyDown
	if value == valueRelease {
		kind = KindKeyUp
	}
	s.emit(Event{Kind: kind, Timestamp: now, KeyCode: code})
}

func (s *LinuxSource) handleRel(code uint16, value int32, now time.Time) {
	switch code {
	case relWheel:
		s.emit(Event{Kind: KindWheel, Timestamp: now})
	case relX, relY:
		s.posMu.Lock()
		if code == relX {
			s.x += float64(value)
		} else {
			s.y += float64(value)
		}
		x, y := s.x, s.y
		s.posMu.Unlock()
		s.emit(Event{Kind: KindMouseMove, Timestamp: now, X: x, Y: y})
	}
}

func (s *LinuxSource) emit(ev Event) {
	select {
	case s.ch <- ev:
	default:
		// Drop under backpressure; the collector works on rates, not
		// exact totals, and blocking the device reader stalls the hook.
	}
}

func evdevButton(code uint16) Button {
	switch code {
	case btnLeft:
		return ButtonLeft
	case btnRight:
		return ButtonRight
	case btnMiddle:
		return ButtonMiddle
	default:
		return ButtonNone
	}
}

// findInputDevices scans /proc/bus/input/devices for keyboards and mice.
func findInputDevices() []string {
	var devices []string

	f, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return devices
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var currentHandler string
	wanted := false

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "H: Handlers=") {
			for _, part := range strings.Fields(line) {
				if strings.HasPrefix(part, "event") {
					currentHandler = "/dev/input/" + part
				}
			}
			// Mouse handlers are tagged directly
			if strings.Contains(line, "mouse") {
				wanted = true
			}
		}

		if strings.HasPrefix(line, "B: KEY=") && len(line) > 10 {
			wanted = true
		}

		if line == "" {
			if wanted && currentHandler != "" {
				devices = append(devices, currentHandler)
			}
			currentHandler = ""
			wanted = false
		}
	}

	// Stable by-id names as a fallback
	for _, pattern := range []string{"/dev/input/by-id/*-kbd", "/dev/input/by-id/*-mouse"} {
		matches, _ := filepath.Glob(pattern)
		devices = append(devices, matches...)
	}

	return dedupe(devices)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
