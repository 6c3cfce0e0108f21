package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valorize-app/valorize/internal/config"
	"github.com/valorize-app/valorize/internal/domain"
)

func TestBodiesLinkBothURLs(t *testing.T) {
	t.Parallel()
	msg := domain.ReportReadyEmail{
		CompanyName: "Padaria Estrela",
		DeckURL:     "https://gamma.app/docs/abc",
		DetailURL:   "https://app.valorize.app/reports/r1",
	}
	for _, body := range []string{plainBody(msg), htmlBody(msg)} {
		assert.Contains(t, body, "Padaria Estrela")
		assert.Contains(t, body, msg.DeckURL)
		assert.Contains(t, body, msg.DetailURL)
	}
}

func TestSendRequiresRecipient(t *testing.T) {
	t.Parallel()
	m := New(config.Config{SMTPHost: "localhost", MailFrom: "no-reply@valorize.app"})
	err := m.SendReportReady(context.Background(), domain.ReportReadyEmail{})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}
