package bench

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cwbudde/queuebench/internal/device"
	"github.com/cwbudde/queuebench/internal/kernel"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// FailurePolicy decides what happens to the rest of a batch when a task fails.
type FailurePolicy string

const (
	// ContinueOnError records the failure and keeps running the remaining tasks.
	ContinueOnError FailurePolicy = "continue"
	// AbortOnError skips every task that has not started yet. Tasks already
	// running still finish and release their queue.
	AbortOnError FailurePolicy = "abort"
)

// ParseFailurePolicy maps user input to a policy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continue", "skip":
		return ContinueOnError, nil
	case "abort", "stop":
		return AbortOnError, nil
	default:
		return "", fmt.Errorf("%w: unknown failure policy %q", ErrInvalidConfig, s)
	}
}

// Config holds everything needed for one benchmark run.
type Config struct {
	Workers           int           `json:"workers"`
	Queues            device.Counts `json:"queues"`
	Tasks             int           `json:"tasks"`
	BufferSize        int           `json:"bufferSize"`
	Iterations        int           `json:"iterations"`
	Kernel            string        `json:"kernel"`
	Platform          string        `json:"platform"`
	DisfavoredVendors []string      `json:"disfavoredVendors"`
	FailurePolicy     FailurePolicy `json:"failurePolicy"`
	// AcquireTimeout bounds the wait for an idle queue; zero waits forever.
	AcquireTimeout   time.Duration `json:"acquireTimeout,omitempty"`
	ProgressInterval time.Duration `json:"progressInterval"`
}

// DefaultConfig returns the stock settings: 4 workers, 2 accelerator
// queues, 2 CPU queues, no host queues and 100 tasks.
func DefaultConfig() Config {
	return Config{
		Workers:           4,
		Queues:            device.Counts{Accelerator: 2, CPU: 2, Host: 0},
		Tasks:             100,
		BufferSize:        kernel.DefaultBufferSize,
		Iterations:        kernel.DefaultIterations,
		Kernel:            "affine",
		Platform:          device.PlatformNative,
		DisfavoredVendors: append([]string(nil), device.DefaultDisfavoredVendors...),
		FailurePolicy:     ContinueOnError,
		ProgressInterval:  time.Second,
	}
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalidConfig, c.Workers)
	case c.Tasks < 0:
		return fmt.Errorf("%w: tasks must be >= 0, got %d", ErrInvalidConfig, c.Tasks)
	case c.Queues.Accelerator < 0 || c.Queues.CPU < 0 || c.Queues.Host < 0:
		return fmt.Errorf("%w: queue counts must be >= 0, got %+v", ErrInvalidConfig, c.Queues)
	case c.BufferSize < 1:
		return fmt.Errorf("%w: buffer size must be >= 1, got %d", ErrInvalidConfig, c.BufferSize)
	case c.Iterations < 1:
		return fmt.Errorf("%w: iterations must be >= 1, got %d", ErrInvalidConfig, c.Iterations)
	case c.AcquireTimeout < 0:
		return fmt.Errorf("%w: acquire timeout must be >= 0", ErrInvalidConfig)
	case c.ProgressInterval < 0:
		return fmt.Errorf("%w: progress interval must be >= 0", ErrInvalidConfig)
	}

	if _, err := ParseFailurePolicy(string(c.FailurePolicy)); err != nil {
		return err
	}
	if _, err := kernel.ByName(c.Kernel, c.Iterations); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch device.NormalizePlatform(c.Platform) {
	case device.PlatformNative, device.PlatformOpenCL:
	default:
		return fmt.Errorf("%w: %w: %s", ErrInvalidConfig, device.ErrUnknownPlatform, c.Platform)
	}
	return nil
}
