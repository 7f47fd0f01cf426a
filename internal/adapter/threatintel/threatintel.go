// Package threatintel implements the out-of-scope threat-lookup tool's
// backing adapter, grounded on original_source's vt_check.py: three
// lookups (VirusTotal, MalwareBazaar, URLHaus) gathered concurrently,
// `asyncio.gather` translated to goroutines over a sync.WaitGroup in the
// teacher's fan-out idiom.
package threatintel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/baikal/syswatch/internal/logging"
)

const DefaultTimeout = 15 * time.Second

// Result is the combined {found, details...} shape spec.md §4.7 requires
// of ThreatIntel.lookup_hash, merged across every configured source.
type Result struct {
	SHA256        string         `json:"sha256"`
	Found         bool           `json:"found"`
	VirusTotal    map[string]any `json:"virustotal,omitempty"`
	MalwareBazaar map[string]any `json:"malwarebazaar,omitempty"`
	URLHaus       map[string]any `json:"urlhaus,omitempty"`
}

// Client queries the three free/optionally-keyed threat-intel sources.
type Client struct {
	VTAPIKey   string
	MBURL      string
	URLHausURL string
	HTTP       *http.Client
}

func New(vtAPIKey, mbURL, urlHausURL string) *Client {
	return &Client{
		VTAPIKey:   vtAPIKey,
		MBURL:      mbURL,
		URLHausURL: urlHausURL,
		HTTP:       &http.Client{Timeout: DefaultTimeout},
	}
}

// LookupHash runs all three lookups concurrently and merges the results.
// An individual source's failure never fails the whole lookup — it's
// recorded as {"found": false} for that source, same as the original's
// per-source try/except boundaries.
func (c *Client) LookupHash(ctx context.Context, sha256 string) Result {
	result := Result{SHA256: sha256}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wg.Add(3)

	go func() {
		defer wg.Done()
		mb := c.lookupMalwareBazaar(ctx, sha256)
		mu.Lock()
		result.MalwareBazaar = mb
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		vt := c.lookupVirusTotal(ctx, sha256)
		mu.Lock()
		result.VirusTotal = vt
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		uh := c.lookupURLHaus(ctx, sha256)
		mu.Lock()
		result.URLHaus = uh
		mu.Unlock()
	}()

	wg.Wait()

	result.Found = boolField(result.VirusTotal) || boolField(result.MalwareBazaar) || boolField(result.URLHaus)
	return result
}

func boolField(m map[string]any) bool {
	found, _ := m["found"].(bool)
	return found
}

func (c *Client) lookupMalwareBazaar(ctx context.Context, sha256 string) map[string]any {
	if c.MBURL == "" {
		return map[string]any{"found": false}
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	form := url.Values{"query": {"get_info"}, "hash": {sha256}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.MBURL, strings.NewReader(form.Encode()))
	if err != nil {
		return map[string]any{"found": false}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		logging.WithComponent("adapter.threatintel").Warn().Err(err).Msg("malwarebazaar lookup failed")
		return map[string]any{"found": false}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return map[string]any{"found": false}
	}

	var data struct {
		QueryStatus string `json:"query_status"`
		Data        []struct {
			Signature string   `json:"signature"`
			FileType  string   `json:"file_type"`
			Tags      []string `json:"tags"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil || data.QueryStatus != "ok" || len(data.Data) == 0 {
		return map[string]any{"found": false}
	}
	info := data.Data[0]
	return map[string]any{
		"found":     true,
		"signature": info.Signature,
		"file_type": info.FileType,
		"tags":      info.Tags,
	}
}

func (c *Client) lookupVirusTotal(ctx context.Context, sha256 string) map[string]any {
	if c.VTAPIKey == "" {
		return map[string]any{"found": false, "reason": "missing_api_key"}
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("https://www.virustotal.com/api/v3/files/%s", sha256), nil)
	if err != nil {
		return map[string]any{"found": false}
	}
	req.Header.Set("x-apikey", c.VTAPIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		logging.WithComponent("adapter.threatintel").Warn().Err(err).Msg("virustotal lookup failed")
		return map[string]any{"found": false}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return map[string]any{"found": false}
	}
	if resp.StatusCode != http.StatusOK {
		return map[string]any{"found": false}
	}

	var data struct {
		Data struct {
			Attributes struct {
				LastAnalysisStats map[string]int `json:"last_analysis_stats"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return map[string]any{"found": false}
	}
	stats := data.Data.Attributes.LastAnalysisStats
	return map[string]any{
		"found":      true,
		"malicious":  stats["malicious"],
		"suspicious": stats["suspicious"],
		"harmless":   stats["harmless"],
	}
}

func (c *Client) lookupURLHaus(ctx context.Context, sha256 string) map[string]any {
	if c.URLHausURL == "" {
		return map[string]any{"found": false}
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	form := url.Values{"sha256_hash": {sha256}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URLHausURL+"payload/", strings.NewReader(form.Encode()))
	if err != nil {
		return map[string]any{"found": false}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		logging.WithComponent("adapter.threatintel").Warn().Err(err).Msg("urlhaus lookup failed")
		return map[string]any{"found": false}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return map[string]any{"found": false}
	}

	var data struct {
		QueryStatus string `json:"query_status"`
		Payloads    []struct {
			URL string `json:"url"`
		} `json:"payloads"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil || data.QueryStatus != "ok" {
		return map[string]any{"found": false}
	}
	urls := make([]string, 0, len(data.Payloads))
	for _, p := range data.Payloads {
		urls = append(urls, p.URL)
	}
	return map[string]any{"found": true, "urls": urls}
}
