package ai

import (
	"fmt"
	"strings"

	"github.com/alekspetrov/ideabot/internal/idea"
)

const categorizeSystemPrompt = `You sort short personal ideas into categories.

Return JSON only: {"category": "...", "confidence": 0.0-1.0, "tags": ["...", "..."]}

Rules:
- Prefer one of the user's existing categories when it fits. Invent a new one only when none does.
- Category is one or two words, Title Case.
- 1 to 5 tags, lowercase, letters and digits only, no '#'.`

const insightsSystemPrompt = `You review a person's recent ideas and point out patterns.

Return JSON only: {"themes": ["...", "...", "..."], "connections": ["..."], "observation": "..."}

Rules:
- themes: up to 3 short recurring themes.
- connections: ideas that relate to each other, one sentence each. May be empty.
- observation: one or two sentences the person would find useful.`

// maxInsightIdeas bounds the prompt size for large windows.
const maxInsightIdeas = 50

func categorizeUserPrompt(text string, existing []string) string {
	var b strings.Builder
	if len(existing) > 0 {
		fmt.Fprintf(&b, "Existing categories: %s\n\n", strings.Join(existing, ", "))
	} else {
		b.WriteString("Existing categories: none yet\n\n")
	}
	fmt.Fprintf(&b, "Idea: %s", text)
	return b.String()
}

func insightsUserPrompt(ideas []*idea.Idea) string {
	if len(ideas) > maxInsightIdeas {
		ideas = ideas[len(ideas)-maxInsightIdeas:]
	}

	var b strings.Builder
	b.WriteString("Ideas from the past week:\n")
	for _, i := range ideas {
		fmt.Fprintf(&b, "- [%s] %s\n", i.DisplayCategory(), i.DisplayText())
	}
	return b.String()
}
