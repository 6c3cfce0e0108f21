package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valorize-app/valorize/internal/domain"
)

const validAnalysis = `{
	"cenarios": {"realista": 120000, "otimista": 180000, "pessimista": 60000, "setor_crescimento_perc": 8.5},
	"pontos_fortes": [{"criterio": "Possibilidade de escala", "valor": 240000}],
	"pontos_atencao": [{"criterio": "Possibilidade de cópia do negócio", "valor": -240000}],
	"recomendacao_investidor": "Empresa com bom potencial de crescimento.",
	"prompt_gamma": "Apresentação executiva do valuation da empresa."
}`

func TestDecodeAnalysisPlainObject(t *testing.T) {
	t.Parallel()
	a, err := DecodeAnalysis(validAnalysis)
	require.NoError(t, err)
	assert.Equal(t, "Empresa com bom potencial de crescimento.", a.RecomendacaoInvestidor)
	assert.InDelta(t, 8.5, a.Cenarios["setor_crescimento_perc"], 1e-9)
	require.Len(t, a.PontosFortes, 1)
	assert.Equal(t, "Possibilidade de escala", a.PontosFortes[0].Criterio)
}

func TestDecodeAnalysisWrappedInProseAndFences(t *testing.T) {
	t.Parallel()
	raw := "Claro! Segue a análise solicitada:\n```json\n" + validAnalysis + "\n```\nEspero ter ajudado."
	a, err := DecodeAnalysis(raw)
	require.NoError(t, err)
	assert.NotEmpty(t, a.PromptGamma)
}

func TestDecodeAnalysisRepairsTrailingCommas(t *testing.T) {
	t.Parallel()
	raw := `{
		"cenarios": {"realista": 1, "otimista": 2, "pessimista": 3, "setor_crescimento_perc": 4,},
		"pontos_fortes": [],
		"pontos_atencao": [],
		"recomendacao_investidor": "ok",
		"prompt_gamma": "deck",
	}`
	a, err := DecodeAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, "deck", a.PromptGamma)
}

func TestDecodeAnalysisMissingFieldIsSchemaError(t *testing.T) {
	t.Parallel()
	raw := `{"cenarios": {}, "pontos_fortes": [], "pontos_atencao": [], "recomendacao_investidor": "ok"}`
	_, err := DecodeAnalysis(raw)
	require.ErrorIs(t, err, domain.ErrSchemaInvalid)
	assert.Contains(t, err.Error(), "prompt_gamma")
}

func TestDecodeAnalysisEmbeddedErrorIsTerminal(t *testing.T) {
	t.Parallel()
	_, err := DecodeAnalysis(`{"error": "dados insuficientes"}`)
	require.ErrorIs(t, err, domain.ErrUpstreamTerminal)
	assert.Contains(t, err.Error(), "dados insuficientes")
}

func TestDecodeAnalysisNoObjectIsSchemaError(t *testing.T) {
	t.Parallel()
	_, err := DecodeAnalysis("não consegui gerar a análise")
	require.ErrorIs(t, err, domain.ErrSchemaInvalid)
}

func TestExtractJSONObjectIgnoresBracesInStrings(t *testing.T) {
	t.Parallel()
	raw := `prefix {"a": "tem { chave } na string", "b": 2} suffix`
	obj, err := ExtractJSONObject(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"a": "tem { chave } na string", "b": 2}`, obj)
}
