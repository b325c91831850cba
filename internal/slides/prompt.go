// Package slides builds the prompts that turn free-form user text into a
// plain-text slide deck: one slide per block, title on the first line, body
// below, blank line between slides.
package slides

import (
	"fmt"
	"strings"
)

// SystemPrompt pins the output contract for the completion model.
const SystemPrompt = "You create high-quality, concise slide decks. Output plain text only with titles and bodies per slide, separated by blank lines."

// Recognized tone and length defaults.
const (
	DefaultTone   = "inspiring"
	DefaultLength = "medium"
)

// BuildGuidance renders the user-facing prompt for the given content. The
// raw text is trimmed; tone and length fall back to their defaults when
// blank.
func BuildGuidance(raw, tone, length string) string {
	userText := strings.TrimSpace(raw)
	if tone = strings.TrimSpace(tone); tone == "" {
		tone = DefaultTone
	}
	if length = strings.TrimSpace(length); length == "" {
		length = DefaultLength
	}

	var b strings.Builder
	b.WriteString("You are a master slide & demo maker.\n\n")
	b.WriteString("GOAL\n")
	b.WriteString("Rewrite the USER's content into a compelling, original slide deck that feels crafted. Preserve the user's meaning and intent; enrich only where needed for clarity and flow.\n\n")
	b.WriteString("INPUTS\n")
	fmt.Fprintf(&b, "- USER_TEXT: %s\n", userText)
	fmt.Fprintf(&b, "- TONE: %s\n", tone)
	fmt.Fprintf(&b, "- LENGTH: %s\n\n", length)
	b.WriteString("RULES (must-follow)\n")
	b.WriteString("1) Produce 6-10 slides total.\n")
	b.WriteString("2) Each slide has: first line = concise Title (3-6 words, no numbering); following lines = Body block (bullets preferred using \"-\" only).\n")
	b.WriteString("3) Stay faithful to USER_TEXT. Do not add external facts, names, stats, or links. If the text is short or ambiguous, expand with neutral, illustrative examples and definitions.\n")
	b.WriteString("4) Absolutely no empty bodies. No placeholders.\n")
	b.WriteString("5) Style: short sentences, concrete specifics, strong verbs, no fluff.\n")
	b.WriteString("6) Output FORMAT is plain text: slides separated by ONE blank line; no numbering; no extra commentary or headers; no markdown.\n\n")
	b.WriteString("QUALITY CHECK BEFORE OUTPUT\n")
	b.WriteString("- All slides have both Title and Body.\n")
	b.WriteString("- Bullets use \"-\" only; no numbered lists.\n")
	b.WriteString("- Single blank line between slides; nothing before the first slide or after the last.\n\n")
	b.WriteString("NOW WRITE THE SLIDES\n")
	b.WriteString("Use the requested TONE. Deliver only the slides in the required plain-text format.")
	return b.String()
}
