package service

import (
	"fmt"
	"strings"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

// NoMatchMarker is embedded in the user prompt when retrieval finds nothing,
// so the model admits the gap instead of inventing an answer. Callers and
// tests can check for it verbatim.
const NoMatchMarker = "No matching information was found in the knowledge base"

// DefaultSystemInstruction is used when the project does not configure one
const DefaultSystemInstruction = "You are a helpful customer support assistant."

// groundingDirectives is the fixed anti-hallucination contract appended to
// every system prompt. Not configurable.
const groundingDirectives = `Follow these rules strictly:
1. Answer using only the knowledge provided in the context of the user message.
2. When you use a knowledge item, cite its number, for example [Knowledge Item 2].
3. If the context does not contain the answer, say so explicitly. Never invent details.
4. Be concise.
5. Maintain a professional and friendly tone.`

// Prompt is the fully assembled input for one completion call
type Prompt struct {
	System string
	User   string
}

// AssemblePrompt renders the retrieved items into a grounded prompt. Items
// are rendered in the order given; ranking already happened in the retriever.
func AssemblePrompt(query string, items []*domain.KnowledgeItem, systemInstruction string) Prompt {
	system := strings.TrimSpace(systemInstruction)
	if system == "" {
		system = DefaultSystemInstruction
	}
	system += "\n\n" + groundingDirectives

	var user strings.Builder
	if len(items) == 0 {
		user.WriteString(NoMatchMarker)
		user.WriteString(" for this question. Tell the user you do not have information about this topic, ")
		user.WriteString("and suggest rephrasing the question or contacting human support. Do not fabricate an answer.")
	} else {
		user.WriteString("Context:\n\n")
		for i, item := range items {
			if i > 0 {
				user.WriteString("\n\n")
			}
			fmt.Fprintf(&user, "[Knowledge Item %d: %s]\n%s", i+1, item.Title, item.Content)
		}
	}

	user.WriteString("\n\nQuestion: ")
	user.WriteString(query)

	return Prompt{System: system, User: user.String()}
}
