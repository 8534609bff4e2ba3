package drafts

import (
	"encoding/json"
	"regexp"
	"strings"
)

// draftsPayload is the JSON shape the system prompt asks the provider for.
type draftsPayload struct {
	Drafts []string `json:"drafts"`
}

var blankLinePattern = regexp.MustCompile(`\n[ \t]*\n`)

// ExtractDrafts recovers up to DraftCount drafts from the provider's raw
// output. Strategies, in order: strict JSON parse of the whole text, parse
// of an embedded JSON object containing the "drafts" key, split on
// blank-line boundaries. Results are trimmed and empties dropped; the
// caller pads short results.
func ExtractDrafts(raw string) []string {
	if payload := parsePayload(raw); payload != nil {
		return clean(payload.Drafts)
	}

	if span := findDraftsObject(raw); span != "" {
		if payload := parsePayload(span); payload != nil {
			return clean(payload.Drafts)
		}
	}

	return clean(blankLinePattern.Split(strings.TrimSpace(raw), DraftCount+1))
}

func parsePayload(s string) *draftsPayload {
	var payload draftsPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &payload); err != nil {
		return nil
	}
	if payload.Drafts == nil {
		return nil
	}
	return &payload
}

// findDraftsObject locates a JSON-like substring holding the "drafts" key:
// back from the key to the nearest '{', then forward across balanced braces,
// skipping over string literals.
func findDraftsObject(raw string) string {
	keyIdx := strings.Index(raw, `"drafts"`)
	if keyIdx < 0 {
		return ""
	}

	start := strings.LastIndex(raw[:keyIdx], "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}

func clean(drafts []string) []string {
	out := make([]string, 0, DraftCount)
	for _, d := range drafts {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		out = append(out, d)
		if len(out) == DraftCount {
			break
		}
	}
	return out
}
