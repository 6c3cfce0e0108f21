//go:build integration

// Package integration exercises the Postgres repositories against a real
// database. Run with: go test -tags integration ./internal/integration/...
package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/valorize-app/valorize/internal/adapter/repo/postgres"
	"github.com/valorize-app/valorize/internal/domain"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "valorize"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort(nat.Port("5432/tcp")),
		).WithStartupTimeoutDefault(90 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := "postgres://postgres:postgres@" + host + ":" + port.Port() + "/valorize?sslmode=disable"
	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migration, err := os.ReadFile("../../db/migrations/0001_init.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(migration))
	require.NoError(t, err)

	return pool
}

func seedAccount(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO accounts (id, email, company_name, usage_count, max_free_uses, unlimited)
		 VALUES ($1, $2, $3, 0, 5, FALSE)`,
		id, id+"@example.com", "Padaria Estrela")
	require.NoError(t, err)
	return id
}

func sampleInputs() domain.Inputs {
	in := domain.Inputs{
		FaturamentoMensal: 10000,
		GastosVariaveis:   4000,
		GastosFixos:       3000,
		NumVendas:         10,
		NumProspeccoes:    50,
		SetorAtuacao:      "alimentação",
	}
	for _, f := range in.AnswerFields() {
		*f = "MÉDIO"
	}
	return in
}

func TestRecordLifecycle(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	records := postgres.NewRecordRepo(pool)
	accounts := postgres.NewAccountRepo(pool)
	accountID := seedAccount(t, pool)

	id, err := records.Create(ctx, domain.ValuationRecord{
		AccountID: accountID,
		Status:    domain.RecordPending,
		Inputs:    sampleInputs(),
	})
	require.NoError(t, err)

	rec, err := records.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordPending, rec.Status)
	assert.Equal(t, "MÉDIO", rec.Inputs.VisaoPessoas)
	assert.Nil(t, rec.Result)

	require.NoError(t, records.UpdateStatus(ctx, id, domain.RecordProcessing, nil))

	res := domain.Result{
		ValuationBase: 200000,
		PromptGamma:   "Apresentação do valuation.",
		GammaStatus:   domain.GammaPending,
	}
	require.NoError(t, records.SetResult(ctx, id, res, domain.RecordSuccess))
	require.NoError(t, accounts.IncrementUsage(ctx, accountID))

	account, err := accounts.Get(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 1, account.UsageCount)

	// First settle wins the CAS, the duplicate delivery loses it.
	settled, err := records.CompletePresentation(ctx, id, "https://gamma.app/docs/abc")
	require.NoError(t, err)
	assert.True(t, settled)
	settled, err = records.CompletePresentation(ctx, id, "https://gamma.app/docs/dup")
	require.NoError(t, err)
	assert.False(t, settled)

	rec, err = records.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec.Result)
	assert.Equal(t, domain.GammaCompleted, rec.Result.GammaStatus)
	assert.Equal(t, "https://gamma.app/docs/abc", rec.Result.GammaURL)
	assert.Equal(t, domain.RecordSuccess, rec.Status)
}

func TestOwnershipScoping(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	records := postgres.NewRecordRepo(pool)
	owner := seedAccount(t, pool)
	stranger := seedAccount(t, pool)

	id, err := records.Create(ctx, domain.ValuationRecord{
		AccountID: owner,
		Status:    domain.RecordPending,
		Inputs:    sampleInputs(),
	})
	require.NoError(t, err)

	_, err = records.GetOwned(ctx, id, owner)
	require.NoError(t, err)
	_, err = records.GetOwned(ctx, id, stranger)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFailPresentationCAS(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	records := postgres.NewRecordRepo(pool)
	accountID := seedAccount(t, pool)

	id, err := records.Create(ctx, domain.ValuationRecord{
		AccountID: accountID,
		Status:    domain.RecordPending,
		Inputs:    sampleInputs(),
	})
	require.NoError(t, err)
	require.NoError(t, records.SetResult(ctx, id, domain.Result{
		ValuationBase: 100000,
		PromptGamma:   "deck",
		GammaStatus:   domain.GammaPending,
	}, domain.RecordSuccess))

	settled, err := records.FailPresentation(ctx, id)
	require.NoError(t, err)
	assert.True(t, settled)

	// Completion after a failure settle must lose.
	settled, err = records.CompletePresentation(ctx, id, "https://gamma.app/docs/late")
	require.NoError(t, err)
	assert.False(t, settled)
}

func TestSweeperListing(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	records := postgres.NewRecordRepo(pool)
	accountID := seedAccount(t, pool)

	id, err := records.Create(ctx, domain.ValuationRecord{
		AccountID: accountID,
		Status:    domain.RecordPending,
		Inputs:    sampleInputs(),
	})
	require.NoError(t, err)
	require.NoError(t, records.UpdateStatus(ctx, id, domain.RecordProcessing, nil))

	// Nothing is overdue yet.
	stuck, err := records.ListProcessingBefore(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, stuck)

	stuck, err = records.ListProcessingBefore(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, id, stuck[0].ID)
}
