package core

import "strings"

// SchemaScore is the classifier score of one schema.
type SchemaScore struct {
	SchemaID string   `json:"schemaId"`
	Score    int      `json:"score"`
	Matched  []string `json:"matched,omitempty"` // Keywords found in the headers
}

// Classification is the classifier result.
type Classification struct {
	Schema   *DatasetSchema
	Scores   []SchemaScore // Registry order
	Fallback bool          // Every schema scored 0; the first was selected
}

// Classify scores each schema by the number of its keywords contained in at
// least one lowercase header. The strictly highest score wins, ties go to the
// earlier schema, and an all-zero result selects the first schema.
func Classify(headers []string, reg *Registry) (*Classification, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, ErrEmptyRegistry
	}

	lower := make([]string, len(headers))
	for i, h := range headers {
		lower[i] = strings.ToLower(h)
	}

	c := &Classification{}
	best := -1
	for _, s := range reg.All() {
		score := SchemaScore{SchemaID: s.ID}
		for _, kw := range s.KeywordPatterns {
			if containsAny(lower, kw) {
				score.Score++
				score.Matched = append(score.Matched, kw)
			}
		}
		c.Scores = append(c.Scores, score)
		if score.Score > best {
			best = score.Score
			c.Schema = s
		}
	}

	c.Fallback = best == 0
	return c, nil
}

// containsAny reports whether any of the lowercase headers contains pattern.
func containsAny(lowerHeaders []string, pattern string) bool {
	for _, h := range lowerHeaders {
		if strings.Contains(h, pattern) {
			return true
		}
	}
	return false
}
