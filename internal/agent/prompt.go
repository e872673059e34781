package agent

import (
	"strings"
	"time"
)

const basePrompt = `You are the business manager of an independent content creator. You help them run brand deals: the pipeline of brands, campaigns, outreach emails and pitches.

Use the tools to read and change the creator's data. Never guess data the tools can return. When a tool returns an error, explain it plainly and suggest the next step. Draft emails and pitches in the creator's voice, concise and specific. Only cite numbers that come from tool results.

Pipeline stages in order: research, outreach, negotiation, contracted, active, completed. A lost deal is in stage lost.`

// SystemPrompt renders the system prompt for a turn started at now.
func SystemPrompt(now time.Time, extra string) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nToday is ")
	b.WriteString(now.UTC().Format("Monday, 2 January 2006"))
	b.WriteString(" (UTC).")
	if extra = strings.TrimSpace(extra); extra != "" {
		b.WriteString("\n\n")
		b.WriteString(extra)
	}
	return b.String()
}
