package analysis

import "testing"

// TestProcessCryptojackerScoring matches the rule table in spec.md §4.5
// literally: no-exe(0, exe present) + tmp-path(2) + cpu>50(2) +
// privileged-user-with-usage(2) = 6. The narrative worked example in the
// same document arrives at 8 by a different arithmetic path; this test
// follows the normative rule table, which §8's property 4 names as the
// authority ("risk_score equals the sum of the matching rule weights").
func TestProcessCryptojackerScoring(t *testing.T) {
	details := map[string]any{
		"pid":            42,
		"name":           "miner",
		"exe":            "/tmp/x",
		"cpu_percent":    85.0,
		"memory_percent": 5.0,
		"username":       "root",
		"connections":    []map[string]any{},
	}
	f := Process(details)
	if f.RiskScore != 6 {
		t.Fatalf("expected risk score 6, got %d (reasons=%v)", f.RiskScore, f.Reasons)
	}
	if len(f.Reasons) != 3 {
		t.Fatalf("expected 3 reasons, got %d: %v", len(f.Reasons), f.Reasons)
	}
}

func TestProcessBenignBrowserScoring(t *testing.T) {
	details := map[string]any{
		"pid":            1000,
		"name":           "firefox",
		"exe":            "/usr/bin/firefox",
		"cpu_percent":    5.0,
		"memory_percent": 3.0,
		"username":       "alice",
		"connections": []map[string]any{
			{"remote_address": "1.2.3.4", "status": "ESTABLISHED"},
		},
	}
	f := Process(details)
	if f.RiskScore != 0 {
		t.Fatalf("expected risk score 0, got %d (reasons=%v)", f.RiskScore, f.Reasons)
	}
}

func TestProcessMissingExeAdds2(t *testing.T) {
	f := Process(map[string]any{"pid": 1, "name": "x"})
	if f.RiskScore != 2 {
		t.Fatalf("expected 2, got %d", f.RiskScore)
	}
}

// TestProcessSuspiciousConnectionJSONShape feeds connections in the []any
// shape a JSON round trip produces: no exe (+2) + one remote peer in
// CLOSE_WAIT (+1) = 3.
func TestProcessSuspiciousConnectionJSONShape(t *testing.T) {
	details := map[string]any{
		"connections": []any{
			map[string]any{"remote_address": "5.6.7.8", "status": "CLOSE_WAIT"},
		},
	}
	f := Process(details)
	if f.RiskScore != 3 {
		t.Fatalf("expected 3, got %d", f.RiskScore)
	}
}
