// Shared behavioral scan producing malware_alert events. original_source
// has no dedicated malware collector file, but vt_check.py and
// rag/classifier.py establish that suspicious processes are scored with a
// reasons list; the actual path/permission heuristics are grounded on the
// teacher's internal/executor/security.go (SecurityChecker.VerifyBinary:
// allowed-directory membership, world-writable bit).
package collector

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/baikal/syswatch/internal/event"
)

// trustedDirs mirrors the teacher's AllowedBinaryPaths: executables living
// outside these directories are one signal of a dropped/staged binary.
var trustedDirs = []string{
	"/usr/bin",
	"/usr/sbin",
	"/usr/local/bin",
	"/usr/local/sbin",
	"/bin",
	"/sbin",
	"/Applications",
	"/System",
	"C:\\Windows",
	"C:\\Program Files",
}

// suspiciousPathFragments flags locations malware commonly stages from.
var suspiciousPathFragments = []string{
	"/tmp/", "/dev/shm/", "/var/tmp/",
	"\\Temp\\", "\\AppData\\Local\\Temp\\",
}

// scanProcessForMalware inspects one process's executable path and returns
// a risk score plus human reasons, or ok=false if nothing is suspicious.
// This is pure and platform-agnostic; each OS collector supplies the
// (pid, name, exe) triples from its own process enumeration.
func scanProcessForMalware(pid int, name, exe string) (event.MalwareAlertDetails, bool) {
	if exe == "" {
		return event.MalwareAlertDetails{}, false
	}

	var reasons []string
	score := 0

	lowerExe := strings.ToLower(exe)
	for _, frag := range suspiciousPathFragments {
		if strings.Contains(lowerExe, strings.ToLower(frag)) {
			reasons = append(reasons, "executable runs from a temp/staging directory: "+exe)
			score += 4
			break
		}
	}

	trusted := false
	for _, dir := range trustedDirs {
		if strings.HasPrefix(exe, dir) {
			trusted = true
			break
		}
	}
	if !trusted {
		reasons = append(reasons, "executable is outside all trusted directories")
		score += 2
	}

	if info, err := os.Stat(exe); err == nil {
		if info.Mode().Perm()&0002 != 0 {
			reasons = append(reasons, "executable is world-writable")
			score += 3
		}
	}

	base := strings.ToLower(filepath.Base(exe))
	if strings.Contains(base, "xmrig") || strings.Contains(base, "minerd") || strings.Contains(base, "cryptonight") {
		reasons = append(reasons, "process name matches known miner binary pattern")
		score += 5
	}

	if len(reasons) == 0 {
		return event.MalwareAlertDetails{}, false
	}

	return event.MalwareAlertDetails{
		Name:      name,
		Exe:       exe,
		RiskScore: score,
		Reasons:   reasons,
	}, true
}

// malwareEventsFromProcesses turns the subset of already-collected process
// events that look suspicious into malware_alert events. Collectors call
// this against their own CollectProcessEvents output to avoid a second,
// separate process enumeration pass.
func malwareEventsFromProcesses(_ context.Context, procs []event.UnifiedEvent, osName string) []event.UnifiedEvent {
	var out []event.UnifiedEvent
	for _, p := range procs {
		pid, _ := p.Details["pid"].(int)
		name, _ := p.Details["name"].(string)
		exe, _ := p.Details["exe"].(string)

		details, ok := scanProcessForMalware(pid, name, exe)
		if !ok {
			continue
		}
		out = append(out, event.UnifiedEvent{
			Timestamp: now(),
			Type:      event.TypeMalwareAlert,
			Details:   details.Map(),
			Metadata:  map[string]string{"os": osName, "collector": "heuristic"},
		})
	}
	return out
}
