package analysis

// suspiciousExeFragments mirrors spec.md §4.5's process-scoring substring
// list verbatim.
var suspiciousExeFragments = []string{
	"tmp", "private", "cache", "shm", "var/tmp", "appdata\\local\\temp",
}

var privilegedUsernames = []string{"root", "system", "nt authority\\system"}

var benignConnectionStatuses = []string{"established", "listen", "none", ""}

// Process runs the additive process-scoring rules of spec.md §4.5 against
// a "process" event's details map.
func Process(details map[string]any) Finding {
	var reasons []string
	score := 0

	pid := getInt(details, "pid")
	name := getString(details, "name")
	exe := getString(details, "exe")
	username := getString(details, "username")
	cpu := getFloat(details, "cpu_percent")
	mem := getFloat(details, "memory_percent")

	if exe == "" {
		score += 2
		reasons = append(reasons, "process has no executable path")
	} else {
		if containsAny(exe, suspiciousExeFragments...) {
			score += 2
			reasons = append(reasons, "executable path looks like a temp/staging location: "+exe)
		}
		if len(exe) > 260 {
			score += 1
			reasons = append(reasons, "executable path exceeds 260 characters")
		}
	}

	switch {
	case cpu > 50:
		score += 2
		reasons = append(reasons, "cpu usage above 50%")
	case cpu > 20:
		score += 1
		reasons = append(reasons, "cpu usage above 20%")
	}

	switch {
	case mem > 20:
		score += 2
		reasons = append(reasons, "memory usage above 20%")
	case mem > 10:
		score += 1
		reasons = append(reasons, "memory usage above 10%")
	}

	if equalsFold(username, privilegedUsernames...) && (cpu > 10 || mem > 10) {
		score += 2
		reasons = append(reasons, "privileged user with elevated resource usage: "+username)
	}

	for _, c := range connectionMaps(details["connections"]) {
		if isSuspiciousConnection(c) {
			score += 1
			reasons = append(reasons, "connection to remote peer in non-standard state")
		}
	}

	return Finding{
		RiskScore: score,
		Reasons:   reasons,
		Fields: map[string]any{
			"pid":  pid,
			"name": name,
			"exe":  exe,
		},
	}
}

// connectionMaps tolerates both the []map[string]any shape ProcessDetails.Map
// builds in-process and the []any-of-map[string]any shape a JSON round trip
// through SQL or the vector store produces.
func connectionMaps(raw any) []map[string]any {
	switch v := raw.(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func isSuspiciousConnection(c map[string]any) bool {
	remote := getString(c, "remote_address")
	if remote == "" {
		return false
	}
	status := getString(c, "status")
	return !equalsFold(status, benignConnectionStatuses...)
}
