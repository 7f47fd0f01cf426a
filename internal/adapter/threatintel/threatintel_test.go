package threatintel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLookupHashMergesFoundAcrossSources(t *testing.T) {
	mb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query_status": "ok", "data": [{"signature": "CoinMiner", "file_type": "elf", "tags": ["miner"]}]}`))
	}))
	defer mb.Close()

	uh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query_status": "no_results"}`))
	}))
	defer uh.Close()

	c := New("", mb.URL, uh.URL)
	result := c.LookupHash(context.Background(), "deadbeef")

	if !result.Found {
		t.Fatal("expected Found=true from malwarebazaar hit")
	}
	if result.MalwareBazaar["signature"] != "CoinMiner" {
		t.Fatalf("MalwareBazaar = %v, missing signature", result.MalwareBazaar)
	}
	if result.VirusTotal["found"] != false {
		t.Fatalf("VirusTotal without an API key should report found=false, got %v", result.VirusTotal)
	}
}

func TestLookupHashAllSourcesMissingCredentialsOrData(t *testing.T) {
	c := New("", "", "")
	result := c.LookupHash(context.Background(), "deadbeef")
	if result.Found {
		t.Fatal("expected Found=false when no source has anything")
	}
}
