package analysis

var criticalServiceLevels = []string{"error", "critical", "fatal"}

// Service runs spec.md §4.5's service_event scoring rules: a bad level
// adds 2, a crash/stop event ID adds 1; the two are independent.
func Service(details map[string]any) Finding {
	var reasons []string
	score := 0

	serviceName := getString(details, "service_name")
	level := getString(details, "level")
	eventID := getInt(details, "event_id")

	if equalsFold(level, criticalServiceLevels...) {
		score += 2
		reasons = append(reasons, "service reported level "+level)
	}

	if eventID == 7031 || eventID == 7034 {
		score += 1
		reasons = append(reasons, "service crash/unexpected-termination event id")
	}

	return Finding{
		RiskScore: score,
		Reasons:   reasons,
		Fields: map[string]any{
			"service_name": serviceName,
			"event_id":     eventID,
		},
	}
}
