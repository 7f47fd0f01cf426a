//go:build windows

// Windows collector: process sampling via a two-pass WMI/CIM query (same
// delta-CPU shape as the teacher's /proc two-pass sampling in
// internal/collector/process.go, translated to PowerShell's Get-CimInstance
// since Windows has no /proc), and System-log reads via Get-WinEvent with
// an in-memory watermark — grounded on original_source's
// collectors/windows.py (win32evtlog.ReadEventLog backwards-sequential)
// and spec.md §4.1's "per-collector watermark tracks the last-seen record
// number" requirement, which the original's raw win32evtlog read doesn't
// implement but spec.md calls for explicitly.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/baikal/syswatch/internal/event"
	"github.com/baikal/syswatch/internal/logging"
)

func init() {
	registerFactory("windows", func() Collector { return NewWindowsCollector() })
}

// WindowsCollector implements Collector for Windows hosts via PowerShell,
// the same external-process seam the teacher's CommandRunner formalizes.
type WindowsCollector struct {
	runner CommandRunner

	mu            sync.Mutex
	lastRecordID  int64
	watermarkInit bool
}

// NewWindowsCollector builds a WindowsCollector. The watermark starts
// unset; the first CollectServiceEvents call establishes it from the
// newest record seen and returns that full page, matching the "first
// call has no prior watermark" reading of spec.md §4.1.
func NewWindowsCollector() *WindowsCollector {
	return &WindowsCollector{runner: &ExecCommandRunner{}}
}

func (c *WindowsCollector) powershell(ctx context.Context, script string) ([]byte, error) {
	return c.runner.Run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
}

type cimProcess struct {
	ProcessId       int    `json:"ProcessId"`
	Name            string `json:"Name"`
	ExecutablePath  string `json:"ExecutablePath"`
	CommandLine     string `json:"CommandLine"`
	WorkingSetSize  int64  `json:"WorkingSetSize"`
	UserModeTime    int64  `json:"UserModeTime"`
	KernelModeTime  int64  `json:"KernelModeTime"`
}

const cimProcessScript = `Get-CimInstance Win32_Process | Select-Object ProcessId,Name,ExecutablePath,CommandLine,WorkingSetSize,UserModeTime,KernelModeTime | ConvertTo-Json -Compress`

func (c *WindowsCollector) sampleProcesses(ctx context.Context) ([]cimProcess, error) {
	out, err := c.powershell(ctx, cimProcessScript)
	if err != nil {
		return nil, err
	}
	return parseCIMProcessJSON(out)
}

// parseCIMProcessJSON tolerates both the single-object and array shapes
// ConvertTo-Json emits depending on result count.
func parseCIMProcessJSON(out []byte) ([]cimProcess, error) {
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []cimProcess
		if err := json.Unmarshal(out, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var single cimProcess
	if err := json.Unmarshal(out, &single); err != nil {
		return nil, err
	}
	return []cimProcess{single}, nil
}

// totalPhysicalMemoryBytes queries Win32_ComputerSystem once for the
// percent-of-total memory calculation CollectProcessEvents needs.
func (c *WindowsCollector) totalPhysicalMemoryBytes(ctx context.Context) int64 {
	out, err := c.powershell(ctx, `(Get-CimInstance Win32_ComputerSystem).TotalPhysicalMemory`)
	if err != nil {
		return 0
	}
	v, _ := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	return v
}

func (c *WindowsCollector) CollectProcessEvents(ctx context.Context) ([]event.UnifiedEvent, error) {
	totalMem := c.totalPhysicalMemoryBytes(ctx)

	pass1, err := c.sampleProcesses(ctx)
	if err != nil {
		logging.WithComponent("collector.windows").Warn().Err(err).Msg("process sample failed")
		return nil, nil
	}
	const interval = 200 * time.Millisecond
	select {
	case <-time.After(interval):
	case <-ctx.Done():
		return nil, nil
	}
	pass2, err := c.sampleProcesses(ctx)
	if err != nil {
		logging.WithComponent("collector.windows").Warn().Err(err).Msg("process sample failed")
		return nil, nil
	}

	byPID := make(map[int]cimProcess, len(pass1))
	for _, p := range pass1 {
		byPID[p.ProcessId] = p
	}

	events := make([]event.UnifiedEvent, 0, len(pass2))
	for _, p2 := range pass2 {
		cpuPct := 0.0
		if p1, ok := byPID[p2.ProcessId]; ok {
			// UserModeTime/KernelModeTime are in 100ns ticks.
			deltaTicks := (p2.UserModeTime + p2.KernelModeTime) - (p1.UserModeTime + p1.KernelModeTime)
			cpuPct = float64(deltaTicks) / 1e7 / interval.Seconds() * 100
		}
		memPct := 0.0
		if totalMem > 0 {
			memPct = float64(p2.WorkingSetSize) / float64(totalMem) * 100
		}

		name := p2.Name
		if name == "" {
			name = "unknown"
		}

		details := event.ProcessDetails{
			PID:           p2.ProcessId,
			Name:          name,
			CPUPercent:    cpuPct,
			MemoryPercent: memPct,
			Exe:           p2.ExecutablePath,
			Cmdline:       strings.Fields(p2.CommandLine),
		}
		events = append(events, event.UnifiedEvent{
			Timestamp: now(),
			Type:      event.TypeProcess,
			Details:   details.Map(),
			Metadata:  map[string]string{"os": "windows", "collector": "cim"},
		})
	}
	return events, nil
}

type winEventRecord struct {
	RecordId     int64  `json:"RecordId"`
	Id           int    `json:"Id"`
	LevelDisplayName string `json:"LevelDisplayName"`
	Message      string `json:"Message"`
	TimeCreated  string `json:"TimeCreated"`
	ProviderName string `json:"ProviderName"`
}

// CollectServiceEvents reads the System log backwards via Get-WinEvent,
// limited to `limit` records, then filters to only records newer than the
// watermark established by the previous call — spec.md §4.1's Windows
// watermark requirement.
func (c *WindowsCollector) CollectServiceEvents(ctx context.Context, limit int) ([]event.UnifiedEvent, error) {
	if limit <= 0 {
		limit = DefaultServiceLimit
	}

	script := fmt.Sprintf(
		`Get-WinEvent -LogName System -MaxEvents %d | Select-Object RecordId,Id,LevelDisplayName,Message,TimeCreated,ProviderName | ConvertTo-Json -Compress`,
		limit,
	)
	out, err := c.powershell(ctx, script)
	if err != nil {
		logging.WithComponent("collector.windows").Warn().Err(err).Msg("Get-WinEvent failed")
		return nil, nil
	}

	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return nil, nil
	}
	var records []winEventRecord
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(out, &records); err != nil {
			return nil, nil
		}
	} else {
		var single winEventRecord
		if err := json.Unmarshal(out, &single); err != nil {
			return nil, nil
		}
		records = []winEventRecord{single}
	}

	c.mu.Lock()
	watermark := c.lastRecordID
	hadWatermark := c.watermarkInit
	var maxSeen int64
	events := make([]event.UnifiedEvent, 0, len(records))
	for _, r := range records {
		if r.RecordId > maxSeen {
			maxSeen = r.RecordId
		}
		if hadWatermark && r.RecordId <= watermark {
			continue
		}
		details := event.ServiceEventDetails{
			EventID:       r.Id,
			Level:         r.LevelDisplayName,
			Message:       r.Message,
			TimeGenerated: r.TimeCreated,
		}
		events = append(events, event.UnifiedEvent{
			Timestamp: now(),
			Type:      event.TypeServiceEvent,
			Details:   details.Map(),
			Metadata:  map[string]string{"os": "windows", "collector": "event_log"},
		})
	}
	if maxSeen > c.lastRecordID {
		c.lastRecordID = maxSeen
	}
	c.watermarkInit = true
	c.mu.Unlock()

	return events, nil
}

func (c *WindowsCollector) CollectNetworkEvents(ctx context.Context) (<-chan event.UnifiedEvent, error) {
	handle, err := openPacketSource()
	if err != nil {
		logging.WithComponent("collector.windows").Warn().Err(err).Msg("packet capture unavailable")
		empty := make(chan event.UnifiedEvent)
		close(empty)
		return empty, nil
	}
	return streamPackets(ctx, handle, "windows"), nil
}

func (c *WindowsCollector) CollectHardwareEvents(ctx context.Context, cpuThreshold, memThreshold float64) ([]event.UnifiedEvent, error) {
	procs, err := c.CollectProcessEvents(ctx)
	if err != nil {
		return nil, nil
	}
	var events []event.UnifiedEvent
	for _, p := range procs {
		cpu, _ := p.Details["cpu_percent"].(float64)
		mem, _ := p.Details["memory_percent"].(float64)
		if cpu < cpuThreshold && mem < memThreshold {
			continue
		}
		details := event.HardwareSpikeDetails{
			SubType: "RESOURCE_HOG",
			PID:     p.Details["pid"].(int),
			Name:    p.Details["name"].(string),
			Exe:     p.Details["exe"].(string),
			Metrics: event.HardwareSpikeMetrics{
				CPUPercent:    cpu,
				MemoryPercent: mem,
			},
		}
		events = append(events, event.UnifiedEvent{
			Timestamp: now(),
			Type:      event.TypeHardwareSpike,
			Details:   details.Map(),
			Metadata:  map[string]string{"os": "windows", "collector": "cim"},
		})
	}
	return events, nil
}

func (c *WindowsCollector) CollectMalwareEvents(ctx context.Context) ([]event.UnifiedEvent, error) {
	procs, err := c.CollectProcessEvents(ctx)
	if err != nil {
		return nil, nil
	}
	return malwareEventsFromProcesses(ctx, procs, "windows"), nil
}
