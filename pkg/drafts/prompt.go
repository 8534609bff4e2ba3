package drafts

import (
	"fmt"
	"strings"
)

// DraftCount is the number of reply options every response carries.
const DraftCount = 3

// maxDraftWords is the word budget each draft is instructed to stay under.
// Instruction only: the output is not post-validated against it.
const maxDraftWords = 120

// BuildSystemPrompt renders the system instruction for the completion
// provider. Pure and deterministic: same tone and language, same prompt.
func BuildSystemPrompt(tone Tone, language string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an experienced customer-support agent. ")
	fmt.Fprintf(&b, "Given a customer message, write exactly %d alternative reply drafts in a %s tone.\n\n", DraftCount, string(tone))

	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- Each draft must be a complete, ready-to-send reply under %d words.\n", maxDraftWords)
	b.WriteString("- Never invent policies, prices, order details, or commitments not present in the message.\n")
	b.WriteString("- If essential information is missing, ask exactly one clarifying question in the draft.\n")
	b.WriteString("- If the customer is upset or hostile, acknowledge and de-escalate before anything else.\n")
	if language != DefaultLanguage {
		fmt.Fprintf(&b, "- Write every draft in %s.\n", language)
	} else {
		b.WriteString("- Reply in the language the customer wrote in.\n")
	}

	b.WriteString("\nReturn only a JSON object of the shape ")
	b.WriteString(`{"drafts": ["draft one", "draft two", "draft three"]}`)
	b.WriteString(" with no other text before or after it.")

	return b.String()
}
