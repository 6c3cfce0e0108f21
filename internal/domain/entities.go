// Package domain contains core entities, ports and error taxonomy for the
// valuation pipeline. It must not depend on any adapter package.
package domain

import (
	"context"
	"errors"
	"time"
)

// Context alias to keep signatures terse across ports.
type Context = context.Context

// Sentinel errors. Adapters wrap these with op= context; the HTTP layer maps
// them to status codes.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrConfigMissing     = errors.New("configuration missing")
	ErrSchemaInvalid     = errors.New("schema invalid")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamTransient = errors.New("upstream transient failure")
	ErrUpstreamTerminal  = errors.New("upstream terminal failure")
	ErrInternal          = errors.New("internal error")
)

// RecordStatus is the lifecycle state of a valuation record.
type RecordStatus string

const (
	RecordPending    RecordStatus = "PENDING"
	RecordProcessing RecordStatus = "PROCESSING"
	RecordSuccess    RecordStatus = "SUCCESS"
	RecordFailed     RecordStatus = "FAILED"
)

// GammaStatus tracks the presentation-generation sub-lifecycle inside the
// result document. Absent until the orchestrator finishes.
type GammaStatus string

const (
	GammaPending   GammaStatus = "pending"
	GammaCompleted GammaStatus = "completed"
	GammaFailed    GammaStatus = "failed"
)

// Inputs is the submitted questionnaire. Field names follow the wire
// contract; qualitative answers are stored upper-cased.
type Inputs struct {
	FaturamentoMensal float64 `json:"faturamento_mensal" validate:"gt=0"`
	GastosVariaveis   float64 `json:"gastos_variaveis" validate:"gte=0"`
	GastosFixos       float64 `json:"gastos_fixos" validate:"gte=0"`
	NumVendas         int     `json:"num_vendas" validate:"gt=0"`
	NumProspeccoes    int     `json:"num_prospeccoes" validate:"gt=0"`
	SetorAtuacao      string  `json:"setor_atuacao" validate:"required,max=255"`

	VisaoPessoas                 string `json:"visao_pessoas" validate:"required"`
	NivelValidacao               string `json:"nivel_validacao" validate:"required"`
	NivelEquipe                  string `json:"nivel_equipe" validate:"required"`
	PotencialNetwork             string `json:"potencial_network" validate:"required"`
	DiferencialModelo            string `json:"diferencial_modelo" validate:"required"`
	PossibilidadeEscala          string `json:"possibilidade_escala" validate:"required"`
	PMF                          string `json:"pmf" validate:"required"`
	PotencialAlcance             string `json:"potencial_alcance" validate:"required"`
	NivelParcerias               string `json:"nivel_parcerias" validate:"required"`
	EstagioModelo                string `json:"estagio_modelo" validate:"required"`
	EstagioPrototipo             string `json:"estagio_prototipo" validate:"required"`
	NivelAnaliseFinanceira       string `json:"nivel_analise_financeira" validate:"required"`
	EstagioComercializacao       string `json:"estagio_comercializacao" validate:"required"`
	NivelFaturamento             string `json:"nivel_faturamento" validate:"required"`
	NivelLucro                   string `json:"nivel_lucro" validate:"required"`
	PossibilidadeCopia           string `json:"possibilidade_copia" validate:"required"`
	PotencialMercadoBarreiras    string `json:"potencial_mercado_barreiras" validate:"required"`
	PotencialInternacionalizacao string `json:"potencial_internacionalizacao" validate:"required"`
}

// AnswerFields returns pointers to the qualitative answers keyed by
// criterion id, for in-place normalization.
func (in *Inputs) AnswerFields() map[string]*string {
	return map[string]*string{
		"visao_pessoas":                 &in.VisaoPessoas,
		"nivel_validacao":               &in.NivelValidacao,
		"nivel_equipe":                  &in.NivelEquipe,
		"potencial_network":             &in.PotencialNetwork,
		"diferencial_modelo":            &in.DiferencialModelo,
		"possibilidade_escala":          &in.PossibilidadeEscala,
		"pmf":                           &in.PMF,
		"potencial_alcance":             &in.PotencialAlcance,
		"nivel_parcerias":               &in.NivelParcerias,
		"estagio_modelo":                &in.EstagioModelo,
		"estagio_prototipo":             &in.EstagioPrototipo,
		"nivel_analise_financeira":      &in.NivelAnaliseFinanceira,
		"estagio_comercializacao":       &in.EstagioComercializacao,
		"nivel_faturamento":             &in.NivelFaturamento,
		"nivel_lucro":                   &in.NivelLucro,
		"possibilidade_copia":           &in.PossibilidadeCopia,
		"potencial_mercado_barreiras":   &in.PotencialMercadoBarreiras,
		"potencial_internacionalizacao": &in.PotencialInternacionalizacao,
	}
}

// Answers returns the qualitative answers keyed by criterion id, in no
// particular order. The canonical ordering lives in the scoring package.
func (in Inputs) Answers() map[string]string {
	out := make(map[string]string, 18)
	for id, v := range in.AnswerFields() {
		out[id] = *v
	}
	return out
}

// Indicators holds the derived financial indicators.
type Indicators struct {
	FaturamentoAnual        float64 `json:"faturamento_anual"`
	FaturamentoMensal       float64 `json:"faturamento_mensal"`
	MargemContribuicaoValor float64 `json:"margem_contribuicao_valor"`
	MargemContribuicaoPerc  float64 `json:"margem_contribuicao_perc"`
	TicketMedio             float64 `json:"ticket_medio"`
	PontoEquilibrio         float64 `json:"ponto_equilibrio"`
	TaxaConversao           float64 `json:"taxa_conversao"`
}

// CriterionValue is the scored contribution of one qualitative criterion.
type CriterionValue struct {
	CriterioID     string  `json:"criterio_id"`
	Resposta       string  `json:"resposta"`
	Pontuacao      int     `json:"pontuacao"`
	Peso           int     `json:"peso"`
	ValorCalculado float64 `json:"valor_calculado"`
}

// CriterionHighlight is one entry of pontos_fortes / pontos_atencao as
// produced by the analysis model. Valor is left untyped because the model
// may emit either a number or a formatted string.
type CriterionHighlight struct {
	Criterio string `json:"criterio"`
	Valor    any    `json:"valor"`
}

// Analysis is the model output under the five-field contract.
type Analysis struct {
	Cenarios               map[string]any       `json:"cenarios"`
	PontosFortes           []CriterionHighlight `json:"pontos_fortes"`
	PontosAtencao          []CriterionHighlight `json:"pontos_atencao"`
	RecomendacaoInvestidor string               `json:"recomendacao_investidor"`
	PromptGamma            string               `json:"prompt_gamma"`
}

// Result is the JSONB document persisted on a record. The deterministic part
// is always present once the orchestrator has run; the analysis part may be
// absent when the model failed (degraded success).
type Result struct {
	Indicadores      Indicators       `json:"indicadores"`
	ValoresCriterios []CriterionValue `json:"valores_criterios"`
	ValuationBase    float64          `json:"valuation_base"`

	Cenarios               map[string]any       `json:"cenarios,omitempty"`
	PontosFortes           []CriterionHighlight `json:"pontos_fortes,omitempty"`
	PontosAtencao          []CriterionHighlight `json:"pontos_atencao,omitempty"`
	RecomendacaoInvestidor string               `json:"recomendacao_investidor,omitempty"`
	PromptGamma            string               `json:"prompt_gamma,omitempty"`

	GammaStatus GammaStatus `json:"gamma_status,omitempty"`
	GammaURL    string      `json:"gamma_url,omitempty"`
	AgentError  string      `json:"agent_error,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// ValuationRecord is one submitted questionnaire and its outcome.
type ValuationRecord struct {
	ID        string
	AccountID string
	Status    RecordStatus
	Inputs    Inputs
	Result    *Result
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Account is the submitting tenant. Usage is counted per successfully
// processed record; Unlimited accounts bypass the free quota.
type Account struct {
	ID          string
	Email       string
	CompanyName string
	UsageCount  int
	MaxFreeUses int
	Unlimited   bool
	CreatedAt   time.Time
}

// QuotaExhausted reports whether a new submission must be rejected.
func (a Account) QuotaExhausted() bool {
	return !a.Unlimited && a.UsageCount >= a.MaxFreeUses
}

// Task payloads carried on the queue. Stages re-read the record by id so a
// redelivered message never acts on stale data.
type (
	OrchestrationTask struct {
		RecordID string `json:"record_id"`
	}
	PresentationTask struct {
		RecordID string `json:"record_id"`
	}
	NotificationTask struct {
		RecordID string `json:"record_id"`
	}
)

// RecordRepository persists valuation records.
type RecordRepository interface {
	Create(ctx Context, rec ValuationRecord) (string, error)
	Get(ctx Context, id string) (ValuationRecord, error)
	GetOwned(ctx Context, id, accountID string) (ValuationRecord, error)
	UpdateStatus(ctx Context, id string, status RecordStatus, errMsg *string) error
	SetResult(ctx Context, id string, res Result, status RecordStatus) error
	// CompletePresentation flips gamma_status pending->completed and stores
	// the url. Returns false when another delivery already settled it.
	CompletePresentation(ctx Context, id, url string) (bool, error)
	// FailPresentation flips gamma_status pending->failed.
	FailPresentation(ctx Context, id string) (bool, error)
	ListProcessingBefore(ctx Context, cutoff time.Time, limit int) ([]ValuationRecord, error)
}

// AccountRepository reads accounts and tracks usage.
type AccountRepository interface {
	Get(ctx Context, id string) (Account, error)
	IncrementUsage(ctx Context, id string) error
}

// Queue enqueues stage tasks. Delivery is at-least-once.
type Queue interface {
	EnqueueOrchestration(ctx Context, t OrchestrationTask) error
	EnqueuePresentation(ctx Context, t PresentationTask) error
	EnqueueNotification(ctx Context, t NotificationTask) error
}

// AnalysisRequest carries everything the analysis prompt embeds.
type AnalysisRequest struct {
	CompanyName   string
	Sector        string
	Indicators    Indicators
	Criteria      []CriterionValue
	BaseValuation float64
}

// Analyzer produces the scenario analysis for a scored record.
type Analyzer interface {
	Analyze(ctx Context, req AnalysisRequest) (Analysis, error)
}

// DeckGeneration is the polled state of a presentation job.
type DeckGeneration struct {
	Status string
	URL    string
}

// DeckService talks to the presentation-generation provider.
type DeckService interface {
	CreateGeneration(ctx Context, inputText string) (string, error)
	GetGeneration(ctx Context, id string) (DeckGeneration, error)
}

// ReportReadyEmail is the notification sent after a presentation completes.
type ReportReadyEmail struct {
	To          string
	CompanyName string
	DeckURL     string
	DetailURL   string
}

// Mailer delivers notifications.
type Mailer interface {
	SendReportReady(ctx Context, msg ReportReadyEmail) error
}

// StageClaimer guards a stage against duplicate queue deliveries. Claim is
// advisory; the repository CAS is the authoritative guard.
type StageClaimer interface {
	Claim(ctx Context, key string, ttl time.Duration) (bool, error)
	Release(ctx Context, key string) error
}
