package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountQuotaExhausted(t *testing.T) {
	a := Account{UsageCount: 5, MaxFreeUses: 5}
	assert.True(t, a.QuotaExhausted())

	a.UsageCount = 4
	assert.False(t, a.QuotaExhausted())

	a.UsageCount = 100
	a.Unlimited = true
	assert.False(t, a.QuotaExhausted())
}

func TestInputsAnswersCoversAllCriteria(t *testing.T) {
	in := Inputs{
		VisaoPessoas:     "ALTO",
		NivelValidacao:   "BAIXO",
		PossibilidadeCopia: "ELEVADO",
	}
	got := in.Answers()
	assert.Len(t, got, 18)
	assert.Equal(t, "ALTO", got["visao_pessoas"])
	assert.Equal(t, "BAIXO", got["nivel_validacao"])
	assert.Equal(t, "ELEVADO", got["possibilidade_copia"])
	assert.Contains(t, got, "potencial_internacionalizacao")
}

func TestResultOmitsUnsetAnalysisFields(t *testing.T) {
	res := Result{
		Indicadores:   Indicators{FaturamentoMensal: 10000, FaturamentoAnual: 120000},
		ValuationBase: 50000,
	}
	b, err := json.Marshal(res)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.NotContains(t, m, "cenarios")
	assert.NotContains(t, m, "gamma_status")
	assert.NotContains(t, m, "error")
	assert.Contains(t, m, "valuation_base")
}

func TestResultRoundTripKeepsGammaFields(t *testing.T) {
	res := Result{
		ValuationBase: 1,
		GammaStatus:   GammaCompleted,
		GammaURL:      "https://gamma.app/docs/abc",
	}
	b, err := json.Marshal(res)
	require.NoError(t, err)

	var back Result
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, GammaCompleted, back.GammaStatus)
	assert.Equal(t, "https://gamma.app/docs/abc", back.GammaURL)
}
