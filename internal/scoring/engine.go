package scoring

import (
	"fmt"

	"github.com/valorize-app/valorize/internal/domain"
)

// Engine computes the deterministic part of a valuation result. It is pure:
// same inputs, same output, no I/O.
type Engine struct {
	criteria []Criterion
}

// NewEngine returns an engine over the embedded criteria table.
func NewEngine() *Engine {
	return &Engine{criteria: Criteria()}
}

// Evaluate derives the financial indicators, scores every criterion against
// the annual revenue, and averages the criterion values into the base
// valuation. Answers must already be normalized; an unknown answer is a
// defect upstream and yields ErrInvalidArgument.
func (e *Engine) Evaluate(in domain.Inputs) (domain.Result, error) {
	ind := e.indicators(in)

	answers := in.Answers()
	values := make([]domain.CriterionValue, 0, len(e.criteria))
	var sum float64
	for _, c := range e.criteria {
		answer, ok := answers[c.ID]
		if !ok {
			return domain.Result{}, fmt.Errorf("op=scoring.evaluate: criterion %s missing: %w", c.ID, domain.ErrInvalidArgument)
		}
		score, ok := ScoreFor(answer)
		if !ok {
			return domain.Result{}, fmt.Errorf("op=scoring.evaluate: criterion %s has unknown answer %q: %w", c.ID, answer, domain.ErrInvalidArgument)
		}
		value := ind.FaturamentoAnual * float64(score) * float64(c.Weight)
		values = append(values, domain.CriterionValue{
			CriterioID:     c.ID,
			Resposta:       answer,
			Pontuacao:      score,
			Peso:           c.Weight,
			ValorCalculado: value,
		})
		sum += value
	}

	return domain.Result{
		Indicadores:      ind,
		ValoresCriterios: values,
		ValuationBase:    sum / float64(len(e.criteria)),
	}, nil
}

func (e *Engine) indicators(in domain.Inputs) domain.Indicators {
	ind := domain.Indicators{
		FaturamentoMensal: in.FaturamentoMensal,
		FaturamentoAnual:  in.FaturamentoMensal * 12,
	}
	ind.MargemContribuicaoValor = in.FaturamentoMensal - in.GastosVariaveis
	if in.FaturamentoMensal > 0 {
		ind.MargemContribuicaoPerc = ind.MargemContribuicaoValor / in.FaturamentoMensal
	}
	// A non-positive contribution margin has no breakeven point; zero keeps
	// the document well formed instead of propagating an infinity.
	if ind.MargemContribuicaoPerc > 0 {
		ind.PontoEquilibrio = in.GastosFixos / ind.MargemContribuicaoPerc
	}
	if in.NumVendas > 0 {
		ind.TicketMedio = in.FaturamentoMensal / float64(in.NumVendas)
	}
	if in.NumProspeccoes > 0 {
		ind.TaxaConversao = float64(in.NumVendas) / float64(in.NumProspeccoes) * 100
	}
	return ind
}
