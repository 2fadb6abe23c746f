package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PriorityHints are deterministic phrase overrides applied after
// classification, for domain terms the model keeps getting wrong.
type PriorityHints struct {
	Hints []PriorityHint `yaml:"hints"`
}

type PriorityHint struct {
	Phrase   string `yaml:"phrase"`
	Priority string `yaml:"priority"`
}

func LoadPriorityHints(path string) (*PriorityHints, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read priority hints: %w", err)
	}
	var h PriorityHints
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse priority hints yaml: %w", err)
	}
	return &h, nil
}

func normalizeTextToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// applyPriorityHints overrides the classified priority of successfully
// enriched requests whose text contains a hint phrase. Failed records and
// hints with an unusable priority are left alone.
func applyPriorityHints(enriched []EnrichedRequest, hints *PriorityHints) {
	if hints == nil {
		return
	}

	for i := range enriched {
		if enriched[i].Analysis == nil {
			continue
		}
		text := normalizeTextToken(enriched[i].Choice)
		for _, hint := range hints.Hints {
			phrase := normalizeTextToken(hint.Phrase)
			priority := normalizePriority(hint.Priority)
			if phrase == "" || priority == PriorityUnknown {
				continue
			}
			if strings.Contains(text, phrase) {
				enriched[i].Analysis.Priority = priority
				enriched[i].Analysis.PriorityText = priorityLabels[priority]
				break
			}
		}
	}
}
