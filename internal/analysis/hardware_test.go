package analysis

import "testing"

// TestHardwareTempPathSpikeClampsToCap matches spec.md §8's worked
// example: cpu>80(+3), memory>70(+4), suspicious-exe-with-cpu>30(+4) = 11,
// clamped to 10.
func TestHardwareTempPathSpikeClampsToCap(t *testing.T) {
	f := Hardware(map[string]any{
		"sub_type": "RESOURCE_HOG",
		"exe":      "/tmp/hog",
		"metrics": map[string]any{
			"cpu_percent":    90.0,
			"memory_percent": 75.0,
		},
	})
	if f.RiskScore != hardwareScoreCap {
		t.Fatalf("expected clamp to %d, got %d (reasons=%v)", hardwareScoreCap, f.RiskScore, f.Reasons)
	}
}

func TestHardwareBenignLowUsage(t *testing.T) {
	f := Hardware(map[string]any{
		"sub_type": "RESOURCE_HOG",
		"exe":      "/usr/bin/chrome",
		"metrics": map[string]any{
			"cpu_percent":    10.0,
			"memory_percent": 15.0,
		},
	})
	if f.RiskScore != 0 {
		t.Fatalf("expected 0, got %d", f.RiskScore)
	}
}

func TestHardwareGPUUsageWithNoExeAddsPoint(t *testing.T) {
	f := Hardware(map[string]any{
		"sub_type": "GPU_USAGE",
		"metrics":  map[string]any{},
	})
	if f.RiskScore != 1 {
		t.Fatalf("expected 1, got %d", f.RiskScore)
	}
}
