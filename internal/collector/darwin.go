//go:build darwin

// Darwin collector: process sampling via the ps(1) wire format (no /proc
// on macOS), launchctl for service state (grounded on original_source's
// collectors/mac.py collect_service_events column parsing of
// "launchctl list"), and the shared gopacket/malware helpers for the
// remaining two capabilities.
package collector

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/baikal/syswatch/internal/event"
	"github.com/baikal/syswatch/internal/logging"
)

func init() {
	registerFactory("darwin", func() Collector { return NewDarwinCollector() })
}

// DarwinCollector implements Collector for macOS hosts.
type DarwinCollector struct {
	runner CommandRunner
}

// NewDarwinCollector builds a DarwinCollector using os/exec for ps and
// launchctl, same external-process shape as the teacher's CommandRunner
// seam.
func NewDarwinCollector() *DarwinCollector {
	return &DarwinCollector{runner: &ExecCommandRunner{}}
}

type darwinProcSample struct {
	pid        int
	name       string
	username   string
	cpuPercent float64
	memPercent float64
	exe        string
	cmdline    []string
}

// psSample shells out to ps once, parsing the %cpu/%mem/comm/args columns
// directly rather than sampling /proc, since macOS exposes none.
func (c *DarwinCollector) psSample(ctx context.Context) ([]darwinProcSample, error) {
	out, err := c.runner.Run(ctx, "ps", "-axo", "pid=,user=,pcpu=,pmem=,comm=,args=")
	if err != nil {
		return nil, err
	}

	var samples []darwinProcSample
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		cpu, _ := strconv.ParseFloat(fields[2], 64)
		mem, _ := strconv.ParseFloat(fields[3], 64)
		args := fields[5:]
		if len(args) == 0 {
			args = fields[4:5]
		}
		samples = append(samples, darwinProcSample{
			pid:        pid,
			username:   fields[1],
			cpuPercent: cpu,
			memPercent: mem,
			name:       fields[4],
			exe:        fields[4],
			cmdline:    args,
		})
	}
	return samples, nil
}

func (c *DarwinCollector) CollectProcessEvents(ctx context.Context) ([]event.UnifiedEvent, error) {
	samples, err := c.psSample(ctx)
	if err != nil {
		logging.WithComponent("collector.darwin").Warn().Err(err).Msg("ps read failed")
		return nil, nil
	}
	events := make([]event.UnifiedEvent, 0, len(samples))
	for _, s := range samples {
		name := s.name
		if name == "" {
			name = "unknown"
		}
		details := event.ProcessDetails{
			PID:           s.pid,
			Name:          name,
			Username:      s.username,
			CPUPercent:    s.cpuPercent,
			MemoryPercent: s.memPercent,
			Exe:           s.exe,
			Cmdline:       s.cmdline,
		}
		events = append(events, event.UnifiedEvent{
			Timestamp: now(),
			Type:      event.TypeProcess,
			Details:   details.Map(),
			Metadata:  map[string]string{"os": "darwin", "collector": "ps"},
		})
	}
	return events, nil
}

// CollectServiceEvents parses "launchctl list" column output (pid, status,
// label), skipping the header line, exactly as the original's
// collect_service_events does.
func (c *DarwinCollector) CollectServiceEvents(ctx context.Context, limit int) ([]event.UnifiedEvent, error) {
	if limit <= 0 {
		limit = DefaultServiceLimit
	}
	out, err := c.runner.Run(ctx, "launchctl", "list")
	if err != nil {
		logging.WithComponent("collector.darwin").Warn().Err(err).Msg("launchctl read failed")
		return nil, nil
	}

	var events []event.UnifiedEvent
	scanner := bufio.NewScanner(bytes.NewReader(out))
	first := true
	for scanner.Scan() && len(events) < limit {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		pidField, status, label := fields[0], fields[1], fields[2]
		pid, _ := strconv.Atoi(pidField)

		details := event.ServiceEventDetails{
			ServiceName: label,
			Status:      status,
			PID:         pid,
		}
		events = append(events, event.UnifiedEvent{
			Timestamp: now(),
			Type:      event.TypeServiceEvent,
			Details:   details.Map(),
			Metadata:  map[string]string{"os": "darwin", "collector": "launchctl"},
		})
	}
	return events, nil
}

func (c *DarwinCollector) CollectNetworkEvents(ctx context.Context) (<-chan event.UnifiedEvent, error) {
	handle, err := openPacketSource()
	if err != nil {
		logging.WithComponent("collector.darwin").Warn().Err(err).Msg("packet capture unavailable")
		empty := make(chan event.UnifiedEvent)
		close(empty)
		return empty, nil
	}
	return streamPackets(ctx, handle, "darwin"), nil
}

func (c *DarwinCollector) CollectHardwareEvents(ctx context.Context, cpuThreshold, memThreshold float64) ([]event.UnifiedEvent, error) {
	samples, err := c.psSample(ctx)
	if err != nil {
		return nil, nil
	}
	var events []event.UnifiedEvent
	for _, s := range samples {
		if s.cpuPercent < cpuThreshold && s.memPercent < memThreshold {
			continue
		}
		details := event.HardwareSpikeDetails{
			SubType:  "RESOURCE_HOG",
			PID:      s.pid,
			Name:     s.name,
			Username: s.username,
			Exe:      s.exe,
			Metrics: event.HardwareSpikeMetrics{
				CPUPercent:    s.cpuPercent,
				MemoryPercent: s.memPercent,
			},
		}
		events = append(events, event.UnifiedEvent{
			Timestamp: now(),
			Type:      event.TypeHardwareSpike,
			Details:   details.Map(),
			Metadata:  map[string]string{"os": "darwin", "collector": "ps"},
		})
	}
	return events, nil
}

func (c *DarwinCollector) CollectMalwareEvents(ctx context.Context) ([]event.UnifiedEvent, error) {
	procs, err := c.CollectProcessEvents(ctx)
	if err != nil {
		return nil, nil
	}
	return malwareEventsFromProcesses(ctx, procs, "darwin"), nil
}
