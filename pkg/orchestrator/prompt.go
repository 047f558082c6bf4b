package orchestrator

import "strings"

const systemPrompt = `You are an AI orchestrator with access to the user's device. You can:
- Read and write files (you will receive tool outputs)
- Use external APIs when the user provides keys
- Execute tasks and respond helpfully

Rules:
- Do not send messages or make external API calls without user permission unless explicitly asked
- Be concise but helpful
- When writing files, use the output directory provided
- If you need to do something you cannot do, explain what's needed

The user will send you messages. Respond appropriately.`

// buildSystemPrompt appends recalled memory context to the fixed system
// instruction.
func buildSystemPrompt(facts []string) string {
	if len(facts) == 0 {
		return systemPrompt
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nRelevant context:\n")
	for _, fact := range facts {
		b.WriteString(fact)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
