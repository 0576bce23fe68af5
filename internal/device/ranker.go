package device

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// RejectScore marks a device that must not be used.
	RejectScore = -1
	// GPUScore is the preference given to GPUs by AcceleratorRanker.
	GPUScore = 500
	// AcceleratorScore is the preference given to other accelerators.
	AcceleratorScore = 400
)

// DefaultDisfavoredVendors lists vendor substrings rejected by default.
var DefaultDisfavoredVendors = []string{"NVIDIA"}

// Ranker scores a device; higher is better and negative scores reject the device.
type Ranker interface {
	Score(d Descriptor) int
}

// RankerFunc adapts an ordinary function to the Ranker interface.
type RankerFunc func(d Descriptor) int

func (f RankerFunc) Score(d Descriptor) int { return f(d) }

// AcceleratorRanker accepts GPUs and other accelerators from vendors that are
// not disfavored. CPUs and host devices are always rejected.
type AcceleratorRanker struct {
	Disfavored []string
}

// NewAcceleratorRanker returns a ranker disfavoring the given vendor substrings,
// or DefaultDisfavoredVendors when none are given.
func NewAcceleratorRanker(disfavored ...string) AcceleratorRanker {
	if len(disfavored) == 0 {
		disfavored = DefaultDisfavoredVendors
	}
	return AcceleratorRanker{Disfavored: disfavored}
}

func (r AcceleratorRanker) Score(d Descriptor) int {
	if !d.Usable {
		return RejectScore
	}

	vendor := strings.ToUpper(d.Vendor)
	for _, v := range r.Disfavored {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v != "" && strings.Contains(vendor, v) {
			return RejectScore
		}
	}

	switch d.Class {
	case ClassGPU:
		return GPUScore
	case ClassAccelerator:
		return AcceleratorScore
	default:
		return RejectScore
	}
}

// Ranked pairs a descriptor with its score.
type Ranked struct {
	Device Descriptor `json:"device"`
	Score  int        `json:"score"`
}

// Accepted reports whether the score passed the ranker.
func (r Ranked) Accepted() bool { return r.Score >= 0 }

// Rank scores every descriptor and returns them best first. The sort is stable,
// so enumeration order breaks ties.
func Rank(devices []Descriptor, r Ranker) []Ranked {
	out := make([]Ranked, len(devices))
	for i, d := range devices {
		out[i] = Ranked{Device: d, Score: r.Score(d)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Best returns the highest scoring accepted device.
func Best(devices []Descriptor, r Ranker) (Descriptor, error) {
	ranked := Rank(devices, r)
	if len(ranked) == 0 || !ranked[0].Accepted() {
		return Descriptor{}, fmt.Errorf("%w: no device accepted by ranker among %d", ErrDeviceUnavailable, len(devices))
	}
	return ranked[0].Device, nil
}

// FirstOfClass returns the first usable device of the requested class.
func FirstOfClass(devices []Descriptor, class Class) (Descriptor, error) {
	for _, d := range devices {
		if d.Class == class && d.Usable {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("%w: no usable %s device", ErrDeviceUnavailable, class)
}
