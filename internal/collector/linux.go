//go:build linux

// Linux collector: /proc-based process sampling (two-pass CPU delta,
// grounded on the teacher's internal/collector/process.go
// ProcessCollector.Collect/readProcPID/readAllPIDs), systemd for service
// state (grounded on original_source's collectors/linux.py
// collect_service_events), and the shared gopacket/malware helpers for
// the remaining two capabilities.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/baikal/syswatch/internal/event"
	"github.com/baikal/syswatch/internal/logging"
)

func init() {
	registerFactory("linux", func() Collector { return NewLinuxCollector() })
}

// LinuxCollector implements Collector for Linux hosts.
type LinuxCollector struct {
	procRoot string
	runner   CommandRunner
}

// NewLinuxCollector builds a LinuxCollector rooted at /proc.
func NewLinuxCollector() *LinuxCollector {
	return &LinuxCollector{
		procRoot: "/proc",
		runner:   &ExecCommandRunner{},
	}
}

type linuxProcStat struct {
	comm  string
	state string
	utime uint64
	stime uint64
	uid   int
}

func (c *LinuxCollector) readProcPID(pid int) (linuxProcStat, error) {
	pidPath := filepath.Join(c.procRoot, strconv.Itoa(pid))

	statData, err := os.ReadFile(filepath.Join(pidPath, "stat"))
	if err != nil {
		return linuxProcStat{}, err
	}
	statStr := string(statData)
	commStart := strings.Index(statStr, "(")
	commEnd := strings.LastIndex(statStr, ")")
	if commStart < 0 || commEnd < 0 {
		return linuxProcStat{}, fmt.Errorf("malformed stat for pid %d", pid)
	}
	ps := linuxProcStat{comm: statStr[commStart+1 : commEnd]}
	rest := strings.Fields(statStr[commEnd+2:])
	if len(rest) > 0 {
		ps.state = rest[0]
	}
	if len(rest) > 12 {
		ps.utime, _ = strconv.ParseUint(rest[11], 10, 64)
		ps.stime, _ = strconv.ParseUint(rest[12], 10, 64)
	}

	if statusData, err := os.ReadFile(filepath.Join(pidPath, "status")); err == nil {
		for _, line := range strings.Split(string(statusData), "\n") {
			if strings.HasPrefix(line, "Uid:") {
				fields := strings.Fields(line)
				if len(fields) >= 2 {
					ps.uid, _ = strconv.Atoi(fields[1])
				}
			}
		}
	}
	return ps, nil
}

func (c *LinuxCollector) totalMemoryBytes() int64 {
	data, err := os.ReadFile(filepath.Join(c.procRoot, "meminfo"))
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "MemTotal:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				v, _ := strconv.ParseInt(fields[1], 10, 64)
				return v * 1024
			}
		}
	}
	return 0
}

func (c *LinuxCollector) listPIDs() []int {
	entries, err := os.ReadDir(c.procRoot)
	if err != nil {
		return nil
	}
	var pids []int
	for _, e := range entries {
		if pid, err := strconv.Atoi(e.Name()); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids
}

func usernameForUID(uid int) string {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return strconv.Itoa(uid)
	}
	return u.Username
}

// procSample is the common per-PID view produced by one sampling pass,
// shared by CollectProcessEvents and CollectHardwareEvents so both walk
// /proc exactly once per call.
type procSample struct {
	pid        int
	name       string
	username   string
	exe        string
	cmdline    []string
	cpuPercent float64
	memPercent float64
}

func (c *LinuxCollector) sampleProcesses(ctx context.Context, interval time.Duration) []procSample {
	totalMem := c.totalMemoryBytes()
	const clkTck = 100.0

	pass1 := make(map[int]linuxProcStat)
	for _, pid := range c.listPIDs() {
		if ps, err := c.readProcPID(pid); err == nil {
			pass1[pid] = ps
		}
	}

	select {
	case <-time.After(interval):
	case <-ctx.Done():
	}

	var samples []procSample
	for _, pid := range c.listPIDs() {
		p2, err := c.readProcPID(pid)
		if err != nil {
			continue
		}
		if p2.state == "Z" {
			continue
		}

		cpuPct := 0.0
		if p1, ok := pass1[pid]; ok {
			delta := float64((p2.utime + p2.stime) - (p1.utime + p1.stime))
			if interval.Seconds() > 0 {
				cpuPct = delta / clkTck / interval.Seconds() * 100
			}
		}

		rssKB := c.readRSSKB(pid)
		memPct := 0.0
		if totalMem > 0 {
			memPct = float64(rssKB*1024) / float64(totalMem) * 100
		}

		exe, _ := os.Readlink(filepath.Join(c.procRoot, strconv.Itoa(pid), "exe"))
		cmdline := c.readCmdline(pid)

		name := p2.comm
		if name == "" {
			name = "unknown"
		}

		samples = append(samples, procSample{
			pid:        pid,
			name:       name,
			username:   usernameForUID(p2.uid),
			exe:        exe,
			cmdline:    cmdline,
			cpuPercent: cpuPct,
			memPercent: memPct,
		})
	}
	return samples
}

func (c *LinuxCollector) readRSSKB(pid int) int64 {
	data, err := os.ReadFile(filepath.Join(c.procRoot, strconv.Itoa(pid), "status"))
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "VmRSS:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				v, _ := strconv.ParseInt(fields[1], 10, 64)
				return v
			}
		}
	}
	return 0
}

func (c *LinuxCollector) readCmdline(pid int) []string {
	data, err := os.ReadFile(filepath.Join(c.procRoot, strconv.Itoa(pid), "cmdline"))
	if err != nil {
		return nil
	}
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *LinuxCollector) CollectProcessEvents(ctx context.Context) ([]event.UnifiedEvent, error) {
	samples := c.sampleProcesses(ctx, 200*time.Millisecond)
	events := make([]event.UnifiedEvent, 0, len(samples))
	for _, s := range samples {
		details := event.ProcessDetails{
			PID:           s.pid,
			Name:          s.name,
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
			Metadata:  map[string]string{"os": "linux", "collector": "procfs"},
		})
	}
	return events, nil
}

type systemdUnit struct {
	Unit        string `json:"unit"`
	Load        string `json:"load"`
	Active      string `json:"active"`
	Sub         string `json:"sub"`
	Description string `json:"description"`
}

// CollectServiceEvents lists systemd service units in every state (--all)
// and returns at most limit of them, in systemctl's order. Linux keeps no
// watermark: each call lists the units afresh.
func (c *LinuxCollector) CollectServiceEvents(ctx context.Context, limit int) ([]event.UnifiedEvent, error) {
	if limit <= 0 {
		limit = DefaultServiceLimit
	}
	out, err := c.runner.Run(ctx, "systemctl", "list-units", "--type=service", "--all", "--no-pager", "--output=json")
	if err != nil {
		logging.WithComponent("collector.linux").Warn().Err(err).Msg("systemctl read failed")
		return nil, nil
	}

	var units []systemdUnit
	if err := json.Unmarshal(out, &units); err != nil {
		logging.WithComponent("collector.linux").Warn().Err(err).Msg("systemctl output not valid json")
		return nil, nil
	}

	if len(units) > limit {
		units = units[:limit]
	}

	events := make([]event.UnifiedEvent, 0, len(units))
	for _, u := range units {
		details := event.ServiceEventDetails{
			ServiceName: u.Unit,
			Status:      u.Active + "/" + u.Sub,
			Description: u.Description,
		}
		events = append(events, event.UnifiedEvent{
			Timestamp: now(),
			Type:      event.TypeServiceEvent,
			Details:   details.Map(),
			Metadata:  map[string]string{"os": "linux", "collector": "systemd"},
		})
	}
	return events, nil
}

func (c *LinuxCollector) CollectNetworkEvents(ctx context.Context) (<-chan event.UnifiedEvent, error) {
	handle, err := openPacketSource()
	if err != nil {
		logging.WithComponent("collector.linux").Warn().Err(err).Msg("packet capture unavailable")
		empty := make(chan event.UnifiedEvent)
		close(empty)
		return empty, nil
	}
	return streamPackets(ctx, handle, "linux"), nil
}

func (c *LinuxCollector) CollectHardwareEvents(ctx context.Context, cpuThreshold, memThreshold float64) ([]event.UnifiedEvent, error) {
	samples := c.sampleProcesses(ctx, 200*time.Millisecond)
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
			Metadata:  map[string]string{"os": "linux", "collector": "procfs"},
		})
	}
	return events, nil
}

func (c *LinuxCollector) CollectMalwareEvents(ctx context.Context) ([]event.UnifiedEvent, error) {
	procs, err := c.CollectProcessEvents(ctx)
	if err != nil {
		return nil, nil
	}
	return malwareEventsFromProcesses(ctx, procs, "linux"), nil
}
