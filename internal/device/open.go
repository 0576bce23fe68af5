package device

import (
	"log/slog"
)

// Counts is the number of queues requested per device class.
type Counts struct {
	Accelerator int `json:"accelerator"`
	CPU         int `json:"cpu"`
	Host        int `json:"host"`
}

// OpenQueues opens the requested queues on p: accelerators chosen by ranker
// first, then CPU queues, then host-fallback queues. A failed open only
// reduces the number of queues returned; the caller decides whether an
// empty result is fatal.
func OpenQueues(p Platform, counts Counts, ranker Ranker, logger *slog.Logger) []Queue {
	if logger == nil {
		logger = slog.Default()
	}

	devices, err := p.Devices()
	if err != nil {
		logger.Warn("Device enumeration failed", "platform", p.Name(), "error", err)
		devices = nil
	}

	var queues []Queue
	open := func(class Class, slot int, pick func() (Descriptor, error)) {
		d, err := pick()
		if err != nil {
			logger.Warn("Skipping queue", "class", class, "slot", slot, "error", err)
			return
		}
		q, err := p.Open(d)
		if err != nil {
			logger.Warn("Failed to open queue", "class", class, "slot", slot, "device", d.String(), "error", err)
			return
		}
		logger.Info("Opened queue", "queue", q.ID(), "device", d.String())
		queues = append(queues, q)
	}

	for i := 0; i < counts.Accelerator; i++ {
		open(ClassAccelerator, i, func() (Descriptor, error) {
			return Best(devices, ranker)
		})
	}
	for i := 0; i < counts.CPU; i++ {
		open(ClassCPU, i, func() (Descriptor, error) {
			return FirstOfClass(devices, ClassCPU)
		})
	}
	for i := 0; i < counts.Host; i++ {
		q, err := p.OpenHost()
		if err != nil {
			logger.Warn("Failed to open host queue", "slot", i, "error", err)
			continue
		}
		logger.Info("Opened queue", "queue", q.ID(), "device", "Host")
		queues = append(queues, q)
	}

	return queues
}

// CloseAll closes every queue and returns the number that failed to close.
func CloseAll(queues []Queue, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	failed := 0
	for _, q := range queues {
		if err := q.Close(); err != nil {
			logger.Error("Failed to close queue", "queue", q.ID(), "error", err)
			failed++
		}
	}
	return failed
}
