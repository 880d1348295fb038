// Package prompt builds the exact text sent to the LLM for one
// conversational turn. A prompt is composed from four invariant policy
// blocks shared by every personality, a personality-specific trait block,
// an optional externally supplied principles document, the retrieved
// context, the conversation history, and the question itself.
//
// Responses are read aloud by the avatar frontend, so the voice block
// forbids visual formatting and demands short spoken-style sentences.
package prompt

import (
	"strings"

	"github.com/civiclens/avatar/internal/personality"
	"github.com/civiclens/avatar/pkg/types"
)

// PrinciplesLookup resolves an optional externally supplied principles document
// for a personality. Absence is not an error: implementations return
// ("", false) when no document exists for the key.
type PrinciplesLookup func(key string) (string, bool)

// The invariant policy blocks, identical across all personalities.
const (
	voiceGuidelines = `- Use natural speech patterns that would sound good when read aloud
- Keep sentences short to moderate in length (15-20 words maximum)
- Avoid using visual formatting like bullet points, headings, tables, or markdown
- Use transition phrases like "First," "Additionally," "Moreover," and "Finally"
- When listing items, use "such as" or natural numbering in a conversational way
- Pause between main ideas by starting new paragraphs
- Use a conversational tone that sounds natural when spoken
- Never reference visual elements or formatting`

	languageGuidelines = `1. The MOST IMPORTANT rule: Your response language MUST MATCH the question language
2. IGNORE any language in the context documents - use ONLY the question language
3. Use the information in the context for content, but TRANSLATE it to match the question language
4. If the answer is not in the context, provide an appropriate "I don't know" response in the question's language`

	responseGuidelines = `1. Answer based ONLY on the information provided in the context
2. Focus on providing factual, accurate information without speculation
3. Be concise but complete in your explanation
4. Structure your response in a way that flows naturally when spoken`

	reasoningGuidelines = `1. First, analyze if the question can be answered with the provided context
2. Identify the most relevant pieces of information
3. Formulate a response that directly addresses the question
4. Verify that your response doesn't contain information not present in the context`
)

// Assembler renders prompts for the personalities of a registry.
// The zero PrinciplesLookup means no personality has an external principles
// document.
type Assembler struct {
	registry   *Registry
	principles PrinciplesLookup
}

// Registry is the subset of the personality registry the assembler needs.
// Defined here so the assembler is testable with a stub.
type Registry = personality.Registry

// NewAssembler creates an assembler. principles may be nil.
func NewAssembler(registry *Registry, principles PrinciplesLookup) *Assembler {
	return &Assembler{registry: registry, principles: principles}
}

// Render produces the complete prompt for one turn. Unknown personality
// ids resolve to the generic default strategy rather than failing. The
// result is guaranteed to contain no unresolved placeholders even with
// empty context or empty history.
func (a *Assembler) Render(personalityID string, contextChunks []string, question string, history []types.Turn) string {
	desc := a.registry.Resolve(personalityID)

	var b strings.Builder

	b.WriteString("<instructions>\n")
	if desc.Traits != "" {
		b.WriteString("You are ")
		b.WriteString(desc.Name)
		b.WriteString(", an AI assistant that answers questions based on specific document knowledge.\n")
	} else {
		b.WriteString("You are an AI assistant that answers questions based on specific document knowledge.\n")
	}
	b.WriteString("IMPORTANT: Your responses will be read aloud by a voice system.\n")
	b.WriteString("You must ALWAYS respond in the EXACT SAME LANGUAGE as the user's question.\n")
	b.WriteString("</instructions>\n\n")

	if desc.Traits != "" {
		b.WriteString("<personality_traits>\n")
		b.WriteString(desc.Traits)
		b.WriteString("\n</personality_traits>\n\n")
	}

	if desc.PrinciplesKey != "" && a.principles != nil {
		if doc, ok := a.principles(desc.PrinciplesKey); ok && strings.TrimSpace(doc) != "" {
			b.WriteString("<principles>\n")
			b.WriteString(strings.TrimSpace(doc))
			b.WriteString("\n</principles>\n\n")
		}
	}

	b.WriteString("<context>\n")
	b.WriteString(joinContext(contextChunks))
	b.WriteString("\n</context>\n\n")

	b.WriteString("<voice_guidelines>\n")
	b.WriteString(voiceGuidelines)
	b.WriteString("\n</voice_guidelines>\n\n")

	b.WriteString("<language_guidelines>\n")
	b.WriteString(languageGuidelines)
	b.WriteString("\n</language_guidelines>\n\n")

	b.WriteString("<response_guidelines>\n")
	b.WriteString(responseGuidelines)
	b.WriteString("\n</response_guidelines>\n\n")

	b.WriteString("<reasoning>\n")
	b.WriteString(reasoningGuidelines)
	b.WriteString("\n</reasoning>\n\n")

	if len(history) > 0 {
		b.WriteString("<conversation_history>\n")
		for _, turn := range history {
			b.WriteString("Q: ")
			b.WriteString(turn.Question)
			b.WriteString("\nA: ")
			b.WriteString(turn.Answer)
			b.WriteString("\n")
		}
		b.WriteString("</conversation_history>\n\n")
	}

	b.WriteString("<question>")
	b.WriteString(question)
	b.WriteString("</question>\n")

	return b.String()
}

// joinContext joins retrieved chunk texts with blank-line separators.
// An empty chunk list renders as an empty section; the guidelines above
// already instruct the model to answer "I don't know" in that case.
func joinContext(chunks []string) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c) == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(c))
	}
	return strings.Join(parts, "\n\n")
}
