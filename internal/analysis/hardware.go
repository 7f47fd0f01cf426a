package analysis

// hardwareScoreCap is spec.md §4.5's clamp for hardware_spike scoring.
const hardwareScoreCap = 10

// Hardware runs spec.md §4.5's hardware_spike scoring rules, clamped to
// hardwareScoreCap. "metrics" is read as a nested map, tolerating both the
// in-process map[string]any shape and a JSON-decoded one.
func Hardware(details map[string]any) Finding {
	var reasons []string
	score := 0

	subType := getString(details, "sub_type")
	exe := getString(details, "exe")
	metrics := nestedMap(details["metrics"])

	cpu := getFloat(metrics, "cpu_percent")
	mem := getFloat(metrics, "memory_percent")
	gpuMem := getFloat(metrics, "gpu_memory_mb")
	gpuLoad := getFloat(metrics, "gpu_load_percent")

	switch {
	case cpu > 80:
		score += 3
		reasons = append(reasons, "cpu usage above 80%")
	case cpu > 50:
		score += 1
		reasons = append(reasons, "cpu usage above 50%")
	}

	if gpuMem > 1000 {
		score += 2
		reasons = append(reasons, "gpu memory above 1000MB")
	}

	switch {
	case mem > 70:
		score += 4
		reasons = append(reasons, "memory usage above 70%")
	case mem > 40:
		score += 2
		reasons = append(reasons, "memory usage above 40%")
	}

	suspiciousExe := exe != "" && containsAny(exe, suspiciousExeFragments...)
	if suspiciousExe && (cpu > 30 || gpuLoad > 500) {
		score += 4
		reasons = append(reasons, "resource spike from a temp/staging executable: "+exe)
	}

	if subType == "GPU_USAGE" && exe == "" {
		score += 1
		reasons = append(reasons, "gpu usage spike with no attributable executable")
	}

	score = clamp(score, hardwareScoreCap)

	return Finding{
		RiskScore: score,
		Reasons:   reasons,
		Fields: map[string]any{
			"sub_type": subType,
			"exe":      exe,
		},
	}
}

func nestedMap(raw any) map[string]any {
	if m, ok := raw.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
