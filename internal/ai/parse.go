package ai

import (
	"encoding/json"
	"strings"

	"github.com/alekspetrov/ideabot/internal/idea"
)

const maxThemes = 3

// extractJSON returns the outermost JSON object in s, tolerating code fences
// and chatter around it.
func extractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func parseCategorization(raw string) (*idea.Categorization, error) {
	body, ok := extractJSON(raw)
	if !ok {
		return nil, malformed("no JSON object in categorization")
	}

	var cat idea.Categorization
	if err := json.Unmarshal([]byte(body), &cat); err != nil {
		return nil, malformed("categorization: %v", err)
	}
	return normalizeCategorization(&cat)
}

// normalizeCategorization trims the category, clamps confidence to [0,1]
// and normalizes tags. A missing category or no usable tag is malformed.
func normalizeCategorization(cat *idea.Categorization) (*idea.Categorization, error) {
	if cat == nil {
		return nil, malformed("nil categorization")
	}

	out := &idea.Categorization{
		Category:   strings.TrimSpace(cat.Category),
		Confidence: clamp01(cat.Confidence),
		Tags:       idea.NormalizeTags(cat.Tags),
	}
	if out.Category == "" {
		return nil, malformed("missing category")
	}
	if len(out.Tags) == 0 {
		return nil, malformed("no usable tags")
	}
	return out, nil
}

func parseInsights(raw string) (*idea.Insights, error) {
	body, ok := extractJSON(raw)
	if !ok {
		return nil, malformed("no JSON object in insights")
	}

	var ins idea.Insights
	if err := json.Unmarshal([]byte(body), &ins); err != nil {
		return nil, malformed("insights: %v", err)
	}
	return normalizeInsights(&ins)
}

func normalizeInsights(ins *idea.Insights) (*idea.Insights, error) {
	if ins == nil {
		return nil, malformed("nil insights")
	}

	out := &idea.Insights{
		Themes:      nonBlank(ins.Themes),
		Connections: nonBlank(ins.Connections),
		Observation: strings.TrimSpace(ins.Observation),
	}
	if len(out.Themes) == 0 {
		return nil, malformed("no themes")
	}
	if len(out.Themes) > maxThemes {
		out.Themes = out.Themes[:maxThemes]
	}
	if out.Observation == "" {
		return nil, malformed("missing observation")
	}
	return out, nil
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
