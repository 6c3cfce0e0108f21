// Package pipeline implements the three asynchronous stages of a valuation:
// orchestration (scoring + analysis), presentation generation, and email
// notification. Handlers are idempotent against duplicate queue deliveries
// and own their in-process retry budgets.
package pipeline

import (
	"math/rand"
	"strings"
	"time"

	"github.com/valorize-app/valorize/internal/config"
	"github.com/valorize-app/valorize/internal/domain"
	"github.com/valorize-app/valorize/internal/scoring"
)

// Stages wires the stage handlers to their dependencies.
type Stages struct {
	records  domain.RecordRepository
	accounts domain.AccountRepository
	queue    domain.Queue
	analyzer domain.Analyzer
	deck     domain.DeckService
	mailer   domain.Mailer
	claimer  domain.StageClaimer
	engine   *scoring.Engine
	cfg      config.Config
}

// NewStages constructs the stage handlers. mailer and claimer may be nil;
// the notification stage degrades to a log line and the presentation claim
// falls back to the repository CAS alone.
func NewStages(
	records domain.RecordRepository,
	accounts domain.AccountRepository,
	queue domain.Queue,
	analyzer domain.Analyzer,
	deck domain.DeckService,
	mailer domain.Mailer,
	claimer domain.StageClaimer,
	cfg config.Config,
) *Stages {
	return &Stages{
		records:  records,
		accounts: accounts,
		queue:    queue,
		analyzer: analyzer,
		deck:     deck,
		mailer:   mailer,
		claimer:  claimer,
		engine:   scoring.NewEngine(),
		cfg:      cfg,
	}
}

// retryDelay returns uniform(2,5) × scale units, the delay shape used by
// every stage retry budget. scale encodes the attempt growth: 2^attempt for
// the presentation stage, attempt+1 for notification.
func (s *Stages) retryDelay(scale int) time.Duration {
	base := 2 + rand.Float64()*3
	return time.Duration(base * float64(scale) * float64(s.cfg.StageBackoff()))
}

func (s *Stages) detailURL(recordID string) string {
	return strings.TrimSuffix(s.cfg.DashboardBaseURL, "/") + "/reports/" + recordID
}

// timeAfter is swappable so retry tests do not depend on the wall clock.
var timeAfter = time.After
