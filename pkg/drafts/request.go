// Package drafts implements the generation pipeline: it validates the raw
// request, meters the caller's quota, renders the system prompt, invokes the
// completion provider, and always assembles exactly three reply drafts.
package drafts

import "strings"

// Tone selects the voice of the generated replies.
type Tone string

const (
	ToneFriendly     Tone = "friendly"
	ToneProfessional Tone = "professional"
	ToneConcise      Tone = "concise"
)

// RawRequest is the unvalidated inbound payload.
type RawRequest struct {
	Message  string `json:"message"`
	Tone     string `json:"tone"`
	Language string `json:"language,omitempty"`
}

// Request is a validated, sanitized generation request.
type Request struct {
	Message  string
	Tone     Tone
	Language string
}

// ParseTone maps the wire value ("Friendly", "professional", ...) onto a
// Tone. The zero value and ok=false signal an unknown tone.
func ParseTone(s string) (Tone, bool) {
	switch Tone(strings.ToLower(strings.TrimSpace(s))) {
	case ToneFriendly:
		return ToneFriendly, true
	case ToneProfessional:
		return ToneProfessional, true
	case ToneConcise:
		return ToneConcise, true
	}
	return "", false
}
