package drafts

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	// MinMessageRunes rejects messages shorter than this after sanitization.
	MinMessageRunes = 10

	// MaxMessageRunes silently truncates longer messages.
	MaxMessageRunes = 2500

	// DefaultLanguage lets the provider answer in the customer's language.
	DefaultLanguage = "auto"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// SanitizeMessage strips HTML-like tags and trims surrounding whitespace.
// Pure function: sanitizing twice yields the same output.
func SanitizeMessage(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

// ValidateRequest sanitizes and bounds-checks the raw input.
//
// The length check runs on the full sanitized message, truncation only
// afterwards: a long message is never rejected for being short, and a short
// one never slips through hidden in markup. Language is accepted as-is by
// design, defaulting to "auto".
func ValidateRequest(raw RawRequest) (Request, error) {
	message := SanitizeMessage(raw.Message)

	err := validation.Errors{
		"message": validation.Validate(message,
			validation.Required.Error("message is required"),
			validation.RuneLength(MinMessageRunes, 0).Error("message is too short")),
		"tone": validation.Validate(strings.ToLower(strings.TrimSpace(raw.Tone)),
			validation.Required.Error("tone is required"),
			validation.In(string(ToneFriendly), string(ToneProfessional), string(ToneConcise)).
				Error("tone must be one of friendly, professional, concise")),
	}.Filter()
	if err != nil {
		return Request{}, &ValidationError{Message: err.Error()}
	}

	if runes := []rune(message); len(runes) > MaxMessageRunes {
		message = string(runes[:MaxMessageRunes])
	}

	tone, _ := ParseTone(raw.Tone)

	language := strings.TrimSpace(raw.Language)
	if language == "" {
		language = DefaultLanguage
	}

	return Request{Message: message, Tone: tone, Language: language}, nil
}
