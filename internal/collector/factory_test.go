package collector

import (
	"runtime"
	"testing"
)

func TestNewForGOOSUnsupported(t *testing.T) {
	_, err := newForGOOS("plan9")
	if err == nil {
		t.Fatal("expected error for unsupported OS")
	}
	if _, ok := err.(*ErrUnsupportedPlatform); !ok {
		t.Fatalf("expected *ErrUnsupportedPlatform, got %T", err)
	}
}

// TestNewForGOOSSupported only exercises runtime.GOOS: each platform file
// self-registers behind its own //go:build tag, so only the constructor
// for the OS this test binary was built for is ever linked in.
func TestNewForGOOSSupported(t *testing.T) {
	c, err := newForGOOS(runtime.GOOS)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", runtime.GOOS, err)
	}
	if c == nil {
		t.Fatalf("%s: expected non-nil collector", runtime.GOOS)
	}
}

func TestNewUsesRuntimeGOOS(t *testing.T) {
	c, err := New()
	if runtime.GOOS == "linux" || runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c == nil {
			t.Fatal("expected non-nil collector")
		}
	}
}
