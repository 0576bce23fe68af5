package device

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDeviceUnavailable is returned when a queue cannot be opened on a device.
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrQueueClosed is reported for work submitted to a closed queue.
	ErrQueueClosed = errors.New("queue closed")
	// ErrUnknownPlatform is returned when a name does not match a known platform.
	ErrUnknownPlatform = errors.New("unknown platform")
	// ErrNotBuilt indicates the platform was not compiled into this binary.
	ErrNotBuilt = errors.New("opencl support requires building with '-tags opencl'")
)

// Platform enumerates devices and opens queues on them.
type Platform interface {
	Name() string
	Devices() ([]Descriptor, error)
	// Open creates a new queue on d. Failures wrap ErrDeviceUnavailable.
	Open(d Descriptor) (Queue, error)
	// OpenHost creates a host-fallback queue, which needs no device.
	OpenHost() (Queue, error)
}

const (
	PlatformNative = "native"
	PlatformOpenCL = "opencl"
)

// NormalizePlatform maps user input to a canonical platform name.
func NormalizePlatform(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "native", "go", "cpu":
		return PlatformNative
	case "opencl", "cl", "gpu":
		return PlatformOpenCL
	default:
		return name
	}
}

// SupportedPlatforms returns the platforms understood by NewPlatform.
func SupportedPlatforms() []string {
	return []string{PlatformNative, PlatformOpenCL}
}

// NewPlatform constructs the requested platform.
func NewPlatform(name string) (Platform, error) {
	switch NormalizePlatform(name) {
	case PlatformNative:
		return NewNativePlatform(), nil
	case PlatformOpenCL:
		return newOpenCLPlatform()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, name)
	}
}
