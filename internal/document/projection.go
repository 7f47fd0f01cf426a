// Package document projects a UnifiedEvent into the flat {id, text,
// metadata} form used both as embedding input and as vector-store
// metadata, grounded on the original Python pipeline's
// rag/document_builder.py (event_to_document).
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/baikal/syswatch/internal/event"
)

// Document is the deterministic (modulo ID) projection of a UnifiedEvent.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Project turns a UnifiedEvent into a Document. Text and Metadata are
// deterministic for a given event; ID carries a random tag so that
// re-emitting the exact same logical event still produces a distinct,
// append-only-safe identifier (spec.md §3).
func Project(e event.UnifiedEvent) Document {
	text := BuildText(e)
	meta := BuildMetadata(e)
	id := BuildID(e, text)
	return Document{ID: id, Text: text, Metadata: meta}
}

// BuildText renders the human-readable line-oriented form: two header
// lines (Event Type, Timestamp) followed by details then metadata,
// one "key: value" per line — same line order as the original
// event_to_document.
func BuildText(e event.UnifiedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event Type: %s\n", e.Type)
	fmt.Fprintf(&b, "Timestamp: %s\n", e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"))

	for _, k := range sortedKeys(e.Details) {
		fmt.Fprintf(&b, "%s: %v\n", k, stringifyValue(e.Details[k]))
	}

	if len(e.Metadata) > 0 {
		b.WriteString("\nMetadata:\n")
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, e.Metadata[k])
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// BuildMetadata builds the flat string map used as vector-store filter
// metadata: type, timestamp, and the event's own provenance metadata
// (already flat strings per spec.md §3).
func BuildMetadata(e event.UnifiedEvent) map[string]string {
	meta := make(map[string]string, len(e.Metadata)+2)
	meta["type"] = string(e.Type)
	meta["timestamp"] = e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	for k, v := range e.Metadata {
		meta[k] = v
	}
	return meta
}

// BuildID constructs a collision-resistant document ID:
// type|unix_timestamp|hash(canonical_text)|random_tag, where random_tag
// carries >= 32 bits of entropy (spec.md §3). The tag is a random (v4)
// UUID rather than a hand-rolled crypto/rand byte string, since it's a
// dependency already pulled transitively into this module's build.
func BuildID(e event.UnifiedEvent, canonicalText string) string {
	sum := sha256.Sum256([]byte(canonicalText))
	hashPart := hex.EncodeToString(sum[:])[:16]

	return fmt.Sprintf("%s|%d|%s|%s",
		e.Type,
		e.Timestamp.UTC().UnixMicro(),
		hashPart,
		uuid.NewString(),
	)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stringifyValue flattens nested maps/lists into a readable scalar
// before it enters a text line, matching spec.md §3's "nested structures
// are stringified before entering the vector-store metadata channel"
// for the text form as well.
func stringifyValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, stringifyValue(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		parts := make([]string, 0, len(val))
		for _, k := range sortedKeys(val) {
			parts = append(parts, k+"="+stringifyValue(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
