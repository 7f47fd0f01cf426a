package event

import (
	"testing"
	"time"
)

func TestValidateRejectsUnknownType(t *testing.T) {
	e := UnifiedEvent{
		Timestamp: time.Now(),
		Type:      Type("bogus"),
		Details:   map[string]any{},
		Metadata:  map[string]string{},
	}
	if err := e.Validate(); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestValidateAcceptsKnownTypes(t *testing.T) {
	for _, typ := range []Type{TypeProcess, TypeServiceEvent, TypeNetworkFlow, TypeHardwareSpike, TypeMalwareAlert} {
		e := UnifiedEvent{
			Timestamp: time.Now(),
			Type:      typ,
			Details:   map[string]any{"x": 1},
			Metadata:  map[string]string{},
		}
		if err := e.Validate(); err != nil {
			t.Fatalf("type %s: unexpected error: %v", typ, err)
		}
	}
}

func TestValidateRejectsNilDetails(t *testing.T) {
	e := UnifiedEvent{Timestamp: time.Now(), Type: TypeProcess}
	if err := e.Validate(); err == nil {
		t.Fatal("expected error for nil details")
	}
}

func TestProcessDetailsMapFallbackName(t *testing.T) {
	p := ProcessDetails{PID: 42}
	m := p.Map()
	if m["name"] != "unknown" {
		t.Fatalf("expected fallback name 'unknown', got %v", m["name"])
	}
}
