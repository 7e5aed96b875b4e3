package manager

import (
	"strings"
	"unicode/utf8"
)

// DefaultSystemInstructions shape every answer for a blind user.
const DefaultSystemInstructions = `You are SightSpeak, a multimodal AI assistant for blind users.
Describe scenes clearly, practically and simply. Say what objects are present and where they are. Avoid abstract, poetic, or artistic language.
List visible objects, people, and text. Do not ask questions.
Avoid repeating similar details. Prioritize useful interpretation over raw visual description.
When translating, output only the translated result. Do not include any explanation or commentary.`

// PromptInput holds everything BuildPrompt needs.
type PromptInput struct {
	Instructions string
	Directive    string
	// Memory is a rendered MemoryRing; empty means no prior exchanges.
	Memory string
	Query  string
	// Budget is the maximum prompt size in characters; <=0 uses the default.
	Budget int
	// OnTruncate, if set, is told the oversized length when memory is dropped.
	OnTruncate func(size int)
}

// BuildPrompt assembles instructions, locale directive, memory and the query.
// When the result exceeds the budget the memory block is dropped as a whole:
// partial Q/A pairs are never emitted.
func BuildPrompt(in PromptInput) string {
	budget := in.Budget
	if budget <= 0 {
		budget = defaultPromptBudget
	}
	full := joinPrompt(in.Instructions, in.Directive, in.Memory, in.Query)
	if in.Memory == "" {
		return full
	}
	if n := utf8.RuneCountInString(full); n > budget {
		if in.OnTruncate != nil {
			in.OnTruncate(n)
		}
		return joinPrompt(in.Instructions, in.Directive, "", in.Query)
	}
	return full
}

func joinPrompt(instructions, directive, memory, query string) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{instructions, directive, memory} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, "Q: "+query+"\nA:")
	return strings.Join(parts, "\n")
}
