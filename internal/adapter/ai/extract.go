// Package ai adapts the generative model into the five-field analysis
// contract: prompt construction, response extraction, and validation.
package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/valorize-app/valorize/internal/domain"
)

var requiredFields = []string{
	"cenarios",
	"pontos_fortes",
	"pontos_atencao",
	"recomendacao_investidor",
	"prompt_gamma",
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// ExtractJSONObject pulls the first balanced JSON object out of a model
// response that may wrap it in prose or markdown fences.
func ExtractJSONObject(s string) (string, error) {
	s = removeMarkdownFences(s)

	start := strings.Index(s, "{")
	if start == -1 {
		return "", fmt.Errorf("op=ai.extract: no JSON object in response: %w", domain.ErrSchemaInvalid)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("op=ai.extract: unbalanced JSON object: %w", domain.ErrSchemaInvalid)
}

func removeMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// fixTrailingCommas repairs the most common model JSON defect.
func fixTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

// DecodeAnalysis parses a raw model response into an Analysis. Any breach
// of the five-field contract yields ErrSchemaInvalid; an error field
// embedded by the model is propagated as a terminal failure. There is no
// partial merge: either the whole contract parses or nothing is kept.
func DecodeAnalysis(raw string) (domain.Analysis, error) {
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return domain.Analysis{}, err
	}
	obj = fixTrailingCommas(obj)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return domain.Analysis{}, fmt.Errorf("op=ai.decode: malformed JSON: %v: %w", err, domain.ErrSchemaInvalid)
	}

	if raw, ok := fields["error"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil || msg == "" {
			msg = string(raw)
		}
		return domain.Analysis{}, fmt.Errorf("op=ai.decode: model reported error: %s: %w", msg, domain.ErrUpstreamTerminal)
	}

	var missing []string
	for _, f := range requiredFields {
		if _, ok := fields[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return domain.Analysis{}, fmt.Errorf("op=ai.decode: missing fields %s: %w", strings.Join(missing, ","), domain.ErrSchemaInvalid)
	}

	var a domain.Analysis
	if err := json.Unmarshal([]byte(obj), &a); err != nil {
		return domain.Analysis{}, fmt.Errorf("op=ai.decode: field types: %v: %w", err, domain.ErrSchemaInvalid)
	}
	if a.RecomendacaoInvestidor == "" || a.PromptGamma == "" {
		return domain.Analysis{}, fmt.Errorf("op=ai.decode: empty recommendation or deck prompt: %w", domain.ErrSchemaInvalid)
	}
	return a, nil
}
