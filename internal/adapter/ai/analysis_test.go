package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valorize-app/valorize/internal/domain"
)

type fakeGenerator struct {
	response string
	err      error
	prompt   string
}

func (f *fakeGenerator) Generate(_ domain.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func sampleRequest() domain.AnalysisRequest {
	return domain.AnalysisRequest{
		CompanyName: "Padaria Estrela",
		Sector:      "alimentação",
		Indicators: domain.Indicators{
			FaturamentoMensal:       10000,
			FaturamentoAnual:        120000,
			MargemContribuicaoValor: 6000,
			MargemContribuicaoPerc:  0.6,
			TicketMedio:             1000,
			PontoEquilibrio:         5000,
			TaxaConversao:           20,
		},
		Criteria: []domain.CriterionValue{
			{CriterioID: "pmf", Resposta: "ALTO", Pontuacao: 2, Peso: 2, ValorCalculado: 480000},
		},
		BaseValuation: 133333.33,
	}
}

func TestAnalyzeHappyPath(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{response: validAnalysis}
	a, err := NewAdapter(gen, 0).Analyze(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, a.PromptGamma)

	// Prompt embeds company, sector and BRL-formatted figures.
	assert.Contains(t, gen.prompt, "Padaria Estrela")
	assert.Contains(t, gen.prompt, "alimentação")
	assert.Contains(t, gen.prompt, "R$ 120.000,00")
	assert.Contains(t, gen.prompt, "prompt_gamma")
	assert.Contains(t, gen.prompt, "Product-market fit")
}

func TestAnalyzePropagatesGeneratorError(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{err: domain.ErrUpstreamTimeout}
	_, err := NewAdapter(gen, 0).Analyze(context.Background(), sampleRequest())
	require.ErrorIs(t, err, domain.ErrUpstreamTimeout)
}

func TestAnalyzeRejectsOversizedPrompt(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{response: validAnalysis}
	_, err := NewAdapter(gen, 10).Analyze(context.Background(), sampleRequest())
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Empty(t, gen.prompt)
}

func TestAnalyzeSchemaBreachSurfaces(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{response: `{"cenarios": {}}`}
	_, err := NewAdapter(gen, 0).Analyze(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSchemaInvalid))
}
