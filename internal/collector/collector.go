// Package collector defines the platform-abstracted Collector contract
// spec.md §4.1 requires: one implementation per OS family, all exposing
// the same five sampling capabilities. The shape (a narrow interface
// plus a CommandRunner seam for testability) is grounded on the
// teacher's internal/collector package (Collector interface,
// CommandRunner/ExecCommandRunner).
package collector

import (
	"context"
	"os/exec"
	"time"

	"github.com/baikal/syswatch/internal/event"
)

// CommandRunner abstracts external command execution for testability,
// kept verbatim in spirit from the teacher's identically named type.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecCommandRunner is the default CommandRunner using os/exec.
type ExecCommandRunner struct{}

func (r *ExecCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Collector is the platform contract every OS implementation satisfies.
// Per-item failures (a vanished process, a malformed packet) are never
// propagated as errors — they are skipped, per spec.md §4.1/§7. No count
// of skipped items is kept.
type Collector interface {
	// CollectProcessEvents snapshots all visible processes.
	CollectProcessEvents(ctx context.Context) ([]event.UnifiedEvent, error)

	// CollectServiceEvents returns at most limit newest service-state
	// changes (0 means the implementation's default of 50).
	CollectServiceEvents(ctx context.Context, limit int) ([]event.UnifiedEvent, error)

	// CollectNetworkEvents streams one event per observed packet onto
	// the returned channel until ctx is cancelled or the underlying
	// socket closes. The channel is closed when collection stops.
	CollectNetworkEvents(ctx context.Context) (<-chan event.UnifiedEvent, error)

	// CollectHardwareEvents emits a hardware_spike event for every
	// process at or above the given CPU/memory thresholds.
	CollectHardwareEvents(ctx context.Context, cpuThreshold, memThreshold float64) ([]event.UnifiedEvent, error)

	// CollectMalwareEvents runs the behavioral scan for this platform.
	CollectMalwareEvents(ctx context.Context) ([]event.UnifiedEvent, error)
}

// DefaultServiceLimit is used when CollectServiceEvents is called with
// limit <= 0, per spec.md §4.1 ("at most limit (default 50)").
const DefaultServiceLimit = 50

// DefaultHardwareCPUThreshold and DefaultHardwareMemThreshold match the
// monitor scheduler's fixed hardware-monitor call (spec.md §4.3).
const (
	DefaultHardwareCPUThreshold = 40.0
	DefaultHardwareMemThreshold = 40.0
)

// now returns the current UTC instant; collectors use this instead of
// time.Now() directly purely so tests can substitute a fixed clock if a
// future revision needs it (none do yet — kept trivial intentionally).
func now() time.Time { return time.Now().UTC() }
