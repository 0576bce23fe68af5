package device

import "strings"

// Class describes the kind of compute device behind a queue.
type Class string

const (
	ClassGPU         Class = "GPU"
	ClassCPU         Class = "CPU"
	ClassAccelerator Class = "Accelerator"
	ClassHost        Class = "Host"
	ClassUnknown     Class = "Unknown"
)

// ParseClass maps a device type string reported by a runtime onto a Class.
func ParseClass(s string) Class {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GPU":
		return ClassGPU
	case "CPU":
		return ClassCPU
	case "ACCELERATOR", "ACC":
		return ClassAccelerator
	case "HOST":
		return ClassHost
	default:
		return ClassUnknown
	}
}

// OpenCL cl_device_type bits.
const (
	clDeviceTypeCPU         uint64 = 1 << 1
	clDeviceTypeGPU         uint64 = 1 << 2
	clDeviceTypeAccelerator uint64 = 1 << 3
)

// classFromCL maps an OpenCL device type bitmask onto a Class. GPU wins over
// CPU, CPU over accelerator.
func classFromCL(t uint64) Class {
	switch {
	case t&clDeviceTypeGPU != 0:
		return ClassGPU
	case t&clDeviceTypeCPU != 0:
		return ClassCPU
	case t&clDeviceTypeAccelerator != 0:
		return ClassAccelerator
	default:
		return ClassUnknown
	}
}

// Descriptor captures what is known about an enumerated device. Descriptors are
// values and are never modified after enumeration.
type Descriptor struct {
	Platform        string   `json:"platform"`
	Name            string   `json:"name"`
	Vendor          string   `json:"vendor"`
	Version         string   `json:"version,omitempty"`
	Class           Class    `json:"class"`
	Usable          bool     `json:"usable"`
	MaxComputeUnits uint32   `json:"maxComputeUnits"`
	Extensions      []string `json:"extensions,omitempty"`
}

func (d Descriptor) String() string {
	if d.Vendor == "" {
		return d.Name
	}
	return d.Name + " (" + d.Vendor + ")"
}
