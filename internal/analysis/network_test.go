package analysis

import "testing"

func TestNetworkPrivateDestinationNoExternalPoint(t *testing.T) {
	f := Network(map[string]any{"dst": "10.0.0.1", "proto": "tcp", "length": 100.0})
	if f.RiskScore != 0 {
		t.Fatalf("expected 0, got %d", f.RiskScore)
	}
}

func TestNetworkExternalDestinationAddsPoint(t *testing.T) {
	f := Network(map[string]any{"dst": "8.8.8.8", "proto": "tcp", "length": 100.0})
	if f.RiskScore != 1 {
		t.Fatalf("expected 1, got %d", f.RiskScore)
	}
}

// TestNetworkICMPTunnelScoring matches spec.md §8's worked example:
// length>2000 (+1), icmp protocol (+1), public destination (+1) = 3.
func TestNetworkICMPTunnelScoring(t *testing.T) {
	f := Network(map[string]any{"dst": "8.8.8.8", "proto": "icmp", "length": 3000.0})
	if f.RiskScore != 3 {
		t.Fatalf("expected 3, got %d (reasons=%v)", f.RiskScore, f.Reasons)
	}
}

func TestNetworkBroadcastIsNotExternal(t *testing.T) {
	f := Network(map[string]any{"dst": "255.255.255.255", "proto": "tcp", "length": 1.0})
	if f.RiskScore != 0 {
		t.Fatalf("expected 0, got %d", f.RiskScore)
	}
}
