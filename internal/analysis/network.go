package analysis

import "strings"

var suspiciousProtocols = []string{"icmp", "raw", "gre"}

// Network runs the additive network-flow scoring rules of spec.md §4.5.
func Network(details map[string]any) Finding {
	var reasons []string
	score := 0

	src := getString(details, "src")
	dst := getString(details, "dst")
	proto := strings.ToLower(getString(details, "proto"))
	length := getFloat(details, "length")

	if length > 2000 {
		score += 1
		reasons = append(reasons, "packet length above 2000 bytes")
	}

	if equalsFold(proto, suspiciousProtocols...) {
		score += 1
		reasons = append(reasons, "suspicious protocol: "+proto)
	}

	if dst != "" && !isPrivateOrBroadcast(dst) {
		score += 1
		reasons = append(reasons, "destination is a public address: "+dst)
	}

	return Finding{
		RiskScore: score,
		Reasons:   reasons,
		Fields: map[string]any{
			"src":   src,
			"dst":   dst,
			"proto": proto,
		},
	}
}

// isPrivateOrBroadcast matches spec.md §4.5's literal private-range prefix
// list plus the broadcast exception; it is a textual prefix check, not a
// CIDR parse, since the spec specifies it that way ("10./", "192.168./",
// "127./", "fe80:/").
func isPrivateOrBroadcast(addr string) bool {
	if addr == "255.255.255.255" {
		return true
	}
	prefixes := []string{"10.", "192.168.", "127.", "fe80:"}
	for _, p := range prefixes {
		if strings.HasPrefix(addr, p) {
			return true
		}
	}
	return false
}
