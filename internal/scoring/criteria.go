// Package scoring implements the deterministic valuation engine: the
// qualitative criteria table, the answer scale, and the financial
// indicator formulas.
package scoring

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed criteria.yaml
var criteriaYAML []byte

// Criterion is one qualitative question of the questionnaire. Weight may be
// negative for risk criteria (a high answer lowers the valuation).
type Criterion struct {
	ID     string `yaml:"id"`
	Label  string `yaml:"label"`
	Weight int    `yaml:"weight"`
}

type criteriaFile struct {
	Criteria []Criterion `yaml:"criteria"`
}

// Answer scale, worst to best. NÃO CONSIGO AVALIAR is the neutral answer.
const (
	AnswerBaixo        = "BAIXO"
	AnswerNaoAvaliavel = "NÃO CONSIGO AVALIAR"
	AnswerMedio        = "MÉDIO"
	AnswerAlto         = "ALTO"
	AnswerElevado      = "ELEVADO"
)

var answerScores = map[string]int{
	AnswerBaixo:        -1,
	AnswerNaoAvaliavel: 0,
	AnswerMedio:        1,
	AnswerAlto:         2,
	AnswerElevado:      3,
}

var (
	loadOnce sync.Once
	loaded   []Criterion
	loadErr  error
)

// Criteria returns the canonical criteria list in submission order. The
// table is embedded at build time so the engine has no runtime file
// dependency.
func Criteria() []Criterion {
	loadOnce.Do(func() {
		var f criteriaFile
		if err := yaml.Unmarshal(criteriaYAML, &f); err != nil {
			loadErr = fmt.Errorf("op=scoring.criteria: %w", err)
			return
		}
		loaded = f.Criteria
	})
	if loadErr != nil {
		// The embedded table is part of the binary; failing to parse it is
		// a build defect, not a runtime condition.
		panic(loadErr)
	}
	return loaded
}

// LabelFor returns the display label of a criterion id, or the id itself
// when unknown.
func LabelFor(id string) string {
	for _, c := range Criteria() {
		if c.ID == id {
			return c.Label
		}
	}
	return id
}

// NormalizeAnswer upper-cases and validates a qualitative answer. The wire
// contract is case-insensitive; storage is upper-cased.
func NormalizeAnswer(s string) (string, bool) {
	up := strings.ToUpper(strings.TrimSpace(s))
	_, ok := answerScores[up]
	return up, ok
}

// ScoreFor maps a normalized answer to its score.
func ScoreFor(answer string) (int, bool) {
	s, ok := answerScores[answer]
	return s, ok
}
