// Package event defines UnifiedEvent, the single normalized record that
// flows from every collector through the queue, the writer, and the
// analysis engine. Sub-schemas per event type are carried inside Details
// as a plain map so the pipeline itself stays schema-stable; variant
// builders below keep construction typo-proof without tying the wire
// shape to a Go type per variant.
package event

import (
	"fmt"
	"time"
)

// ClockSkewTolerance bounds how far into the future a collector-stamped
// timestamp may drift before Validate rejects it (spec.md §3).
const ClockSkewTolerance = 1 * time.Second

// Type is the closed set of UnifiedEvent variants.
type Type string

const (
	TypeProcess       Type = "process"
	TypeServiceEvent  Type = "service_event"
	TypeNetworkFlow   Type = "network_flow"
	TypeHardwareSpike Type = "hardware_spike"
	TypeMalwareAlert  Type = "malware_alert"
)

// validTypes is the closed enum used to reject unknown producer output
// at the writer boundary.
var validTypes = map[Type]bool{
	TypeProcess:       true,
	TypeServiceEvent:  true,
	TypeNetworkFlow:   true,
	TypeHardwareSpike: true,
	TypeMalwareAlert:  true,
}

// UnifiedEvent is the sole inter-component record.
type UnifiedEvent struct {
	Timestamp time.Time
	Type      Type
	Details   map[string]any
	Metadata  map[string]string
}

// Validate rejects events whose Type is outside the closed enum. Producer
// bugs (an unknown type reaching the writer) must be caught here, not
// downstream.
func (e UnifiedEvent) Validate() error {
	if !validTypes[e.Type] {
		return fmt.Errorf("event: unknown type %q", e.Type)
	}
	if e.Details == nil {
		return fmt.Errorf("event: nil details")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event: zero timestamp")
	}
	if e.Timestamp.After(time.Now().Add(ClockSkewTolerance)) {
		return fmt.Errorf("event: timestamp %s is too far in the future", e.Timestamp)
	}
	return nil
}

// Connection describes one process network connection (process variant).
type Connection struct {
	LocalAddress  string `json:"local_address,omitempty"`
	LocalPort     int    `json:"local_port,omitempty"`
	RemoteAddress string `json:"remote_address,omitempty"`
	RemotePort    int    `json:"remote_port,omitempty"`
	Status        string `json:"status,omitempty"`
}

// ProcessDetails holds the required fields for the "process" variant.
type ProcessDetails struct {
	PID           int
	Name          string
	Username      string
	CPUPercent    float64
	MemoryPercent float64
	Exe           string
	Cmdline       []string
	Connections   []Connection
}

// Map builds the map[string]any payload for Details, matching the stable
// key names spec.md §3 requires for the "process" variant.
func (p ProcessDetails) Map() map[string]any {
	conns := make([]map[string]any, 0, len(p.Connections))
	for _, c := range p.Connections {
		conns = append(conns, map[string]any{
			"local_address":  c.LocalAddress,
			"local_port":     c.LocalPort,
			"remote_address": c.RemoteAddress,
			"remote_port":    c.RemotePort,
			"status":         c.Status,
		})
	}
	name := p.Name
	if name == "" {
		name = "unknown"
	}
	return map[string]any{
		"pid":            p.PID,
		"name":           name,
		"username":       p.Username,
		"cpu_percent":    p.CPUPercent,
		"memory_percent": p.MemoryPercent,
		"exe":            p.Exe,
		"cmdline":        p.Cmdline,
		"connections":    conns,
	}
}

// ServiceEventDetails holds the fields for the "service_event" variant.
type ServiceEventDetails struct {
	ServiceName   string
	Status        string
	PID           int
	Description   string
	EventID       int
	Level         string
	Message       string
	TimeGenerated string
}

func (s ServiceEventDetails) Map() map[string]any {
	return map[string]any{
		"service_name":   s.ServiceName,
		"status":         s.Status,
		"pid":            s.PID,
		"description":    s.Description,
		"event_id":       s.EventID,
		"level":          s.Level,
		"message":        s.Message,
		"time_generated": s.TimeGenerated,
	}
}

// NetworkFlowDetails holds the fields for the "network_flow" variant.
type NetworkFlowDetails struct {
	Src     string
	Dst     string
	Proto   string
	Length  int64
	Summary string
}

func (n NetworkFlowDetails) Map() map[string]any {
	return map[string]any{
		"src":     n.Src,
		"dst":     n.Dst,
		"proto":   n.Proto,
		"length":  n.Length,
		"summary": n.Summary,
	}
}

// HardwareSpikeMetrics is the "metrics" sub-object of a hardware_spike event.
type HardwareSpikeMetrics struct {
	CPUPercent    float64
	MemoryPercent float64
	GPUMemoryMB   float64
	GPULoadPct    float64
}

// HardwareSpikeDetails holds the fields for the "hardware_spike" variant.
type HardwareSpikeDetails struct {
	SubType  string
	PID      int
	Name     string
	Username string
	Exe      string
	Metrics  HardwareSpikeMetrics
}

func (h HardwareSpikeDetails) Map() map[string]any {
	return map[string]any{
		"sub_type": h.SubType,
		"pid":      h.PID,
		"name":     h.Name,
		"username": h.Username,
		"exe":      h.Exe,
		"metrics": map[string]any{
			"cpu_percent":     h.Metrics.CPUPercent,
			"memory_percent":  h.Metrics.MemoryPercent,
			"gpu_memory_mb":   h.Metrics.GPUMemoryMB,
			"gpu_load_percent": h.Metrics.GPULoadPct,
		},
	}
}

// MalwareAlertDetails holds the fields for the "malware_alert" variant.
type MalwareAlertDetails struct {
	Name      string
	Exe       string
	RiskScore int
	Reasons   []string
}

func (m MalwareAlertDetails) Map() map[string]any {
	return map[string]any{
		"name":       m.Name,
		"exe":        m.Exe,
		"risk_score": m.RiskScore,
		"reasons":    m.Reasons,
	}
}
