package document

import (
	"strings"
	"testing"
	"time"

	"github.com/baikal/syswatch/internal/event"
)

func sampleEvent() event.UnifiedEvent {
	return event.UnifiedEvent{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Type:      event.TypeProcess,
		Details: event.ProcessDetails{
			PID: 42, Name: "miner", Exe: "/tmp/x", CPUPercent: 85, Username: "root",
		}.Map(),
		Metadata: map[string]string{"os": "linux", "collector": "proc"},
	}
}

func TestProjectDeterministicModuloID(t *testing.T) {
	e := sampleEvent()
	d1 := Project(e)
	d2 := Project(e)

	if d1.Text != d2.Text {
		t.Fatalf("text differs:\n%s\nvs\n%s", d1.Text, d2.Text)
	}
	for k := range d1.Metadata {
		if d1.Metadata[k] != d2.Metadata[k] {
			t.Fatalf("metadata[%s] differs: %s vs %s", k, d1.Metadata[k], d2.Metadata[k])
		}
	}
	if d1.ID == d2.ID {
		t.Fatal("expected distinct IDs across re-projections of the same logical event")
	}
}

func TestProjectTextStructure(t *testing.T) {
	d := Project(sampleEvent())
	lines := strings.Split(d.Text, "\n")
	if lines[0] != "Event Type: process" {
		t.Fatalf("unexpected first line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "Timestamp: 2026-01-02T03:04:05") {
		t.Fatalf("unexpected second line: %q", lines[1])
	}
	if !strings.Contains(d.Text, "pid: 42") {
		t.Fatalf("expected details flattened into text, got: %s", d.Text)
	}
	if !strings.Contains(d.Text, "os: linux") {
		t.Fatalf("expected metadata flattened into text, got: %s", d.Text)
	}
}

func TestBuildMetadataIncludesTypeAndTimestamp(t *testing.T) {
	meta := BuildMetadata(sampleEvent())
	if meta["type"] != "process" {
		t.Fatalf("expected type=process, got %s", meta["type"])
	}
	if meta["os"] != "linux" {
		t.Fatalf("expected os=linux, got %s", meta["os"])
	}
}
