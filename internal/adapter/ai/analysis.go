package ai

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/valorize-app/valorize/internal/adapter/ai/tokencount"
	"github.com/valorize-app/valorize/internal/domain"
	"github.com/valorize-app/valorize/internal/scoring"
	"github.com/valorize-app/valorize/pkg/brl"
)

// TextGenerator produces raw model text for a prompt.
type TextGenerator interface {
	Generate(ctx domain.Context, prompt string) (string, error)
}

// Adapter implements domain.Analyzer on top of a TextGenerator.
type Adapter struct {
	gen        TextGenerator
	counter    *tokencount.Counter
	tokenLimit int
}

// NewAdapter constructs an Adapter. tokenLimit <= 0 disables the budget
// check.
func NewAdapter(gen TextGenerator, tokenLimit int) *Adapter {
	return &Adapter{gen: gen, counter: tokencount.NewCounter(), tokenLimit: tokenLimit}
}

// Analyze builds the analysis prompt, calls the model once, and decodes the
// five-field contract.
func (a *Adapter) Analyze(ctx domain.Context, req domain.AnalysisRequest) (domain.Analysis, error) {
	prompt := BuildPrompt(req)

	if a.tokenLimit > 0 {
		if n := a.counter.CountTokens(prompt); n > a.tokenLimit {
			return domain.Analysis{}, fmt.Errorf("op=ai.analyze: prompt of %d tokens exceeds limit %d: %w", n, a.tokenLimit, domain.ErrInvalidArgument)
		}
	}

	raw, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return domain.Analysis{}, err
	}

	analysis, err := DecodeAnalysis(raw)
	if err != nil {
		slog.Warn("analysis response rejected", slog.Any("error", err), slog.Int("response_len", len(raw)))
		return domain.Analysis{}, err
	}
	return analysis, nil
}

// BuildPrompt renders the pt-BR analysis prompt with the scored record
// embedded. Monetary values are formatted as BRL so the model mirrors the
// presentation the user will see.
func BuildPrompt(req domain.AnalysisRequest) string {
	var b strings.Builder

	b.WriteString("Você é um analista de investimentos especializado em avaliação de pequenas e médias empresas brasileiras.\n\n")
	fmt.Fprintf(&b, "Empresa: %s\n", req.CompanyName)
	fmt.Fprintf(&b, "Setor de atuação: %s\n\n", req.Sector)

	b.WriteString("Indicadores financeiros:\n")
	ind := req.Indicators
	fmt.Fprintf(&b, "- Faturamento mensal: %s\n", brl.Format(ind.FaturamentoMensal))
	fmt.Fprintf(&b, "- Faturamento anual: %s\n", brl.Format(ind.FaturamentoAnual))
	fmt.Fprintf(&b, "- Margem de contribuição: %s (%s)\n", brl.Format(ind.MargemContribuicaoValor), brl.FormatPercent(ind.MargemContribuicaoPerc))
	fmt.Fprintf(&b, "- Ticket médio: %s\n", brl.Format(ind.TicketMedio))
	fmt.Fprintf(&b, "- Ponto de equilíbrio: %s\n", brl.Format(ind.PontoEquilibrio))
	fmt.Fprintf(&b, "- Taxa de conversão: %.2f%%\n\n", ind.TaxaConversao)

	b.WriteString("Critérios qualitativos avaliados:\n")
	for _, cv := range req.Criteria {
		fmt.Fprintf(&b, "- %s: %s (peso %d, valor %s)\n", scoring.LabelFor(cv.CriterioID), cv.Resposta, cv.Peso, brl.Format(cv.ValorCalculado))
	}
	fmt.Fprintf(&b, "\nValuation base calculado: %s\n\n", brl.Format(req.BaseValuation))

	b.WriteString(`Com base nesses dados, responda com UM ÚNICO objeto JSON, sem nenhum texto fora dele, contendo exatamente estes cinco campos:
- "cenarios": objeto com "realista", "otimista", "pessimista" (valuations ajustados em reais) e "setor_crescimento_perc" (crescimento anual estimado do setor, em percentual);
- "pontos_fortes": lista de objetos {"criterio", "valor"} com os critérios que mais sustentam o valuation;
- "pontos_atencao": lista de objetos {"criterio", "valor"} com os critérios que mais fragilizam o valuation;
- "recomendacao_investidor": parágrafo objetivo com a recomendação para um investidor;
- "prompt_gamma": texto em português descrevendo uma apresentação executiva deste relatório de valuation, pronto para um gerador de slides.

Se não for possível produzir a análise, responda {"error": "motivo"}.`)

	return b.String()
}
