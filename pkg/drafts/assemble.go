package drafts

import "github.com/replyforge/replyforge/pkg/quota"

// FallbackDraft fills in whenever the provider yields fewer than three
// usable drafts, so the three-options contract always holds.
const FallbackDraft = "Thank you for reaching out. We want to make sure we get this right for you, so a member of our team will review your message and follow up with a detailed reply shortly."

// Response is the final result of a generation call.
type Response struct {
	Drafts []string       `json:"drafts"`
	Quota  quota.Snapshot `json:"quota"`
}

// PadDrafts returns exactly DraftCount drafts, padding a short list with
// FallbackDraft and truncating a long one. Pure function, no side effects.
func PadDrafts(drafts []string) []string {
	out := make([]string, 0, DraftCount)
	for _, d := range drafts {
		if len(out) == DraftCount {
			break
		}
		out = append(out, d)
	}
	for len(out) < DraftCount {
		out = append(out, FallbackDraft)
	}
	return out
}

// AssembleResponse combines the extracted drafts with the quota snapshot.
func AssembleResponse(drafts []string, snapshot quota.Snapshot) *Response {
	return &Response{
		Drafts: PadDrafts(drafts),
		Quota:  snapshot,
	}
}
