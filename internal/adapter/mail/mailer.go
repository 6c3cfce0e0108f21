// Package mail delivers the report-ready notification over SMTP.
package mail

import (
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/valorize-app/valorize/internal/config"
	"github.com/valorize-app/valorize/internal/domain"
)

// Mailer implements domain.Mailer with wneessen/go-mail.
type Mailer struct {
	cfg config.Config
}

// New constructs a Mailer.
func New(cfg config.Config) *Mailer {
	return &Mailer{cfg: cfg}
}

// SendReportReady emails the presentation and dashboard links. Each call
// opens a fresh SMTP session; notification volume does not justify a pool.
func (m *Mailer) SendReportReady(ctx domain.Context, msg domain.ReportReadyEmail) error {
	if msg.To == "" {
		return fmt.Errorf("op=mail.send: recipient missing: %w", domain.ErrInvalidArgument)
	}

	mm := gomail.NewMsg()
	if err := mm.From(m.cfg.MailFrom); err != nil {
		return fmt.Errorf("op=mail.send: %w", err)
	}
	if err := mm.To(msg.To); err != nil {
		return fmt.Errorf("op=mail.send: %w", err)
	}
	mm.Subject(fmt.Sprintf("Relatório de valuation pronto — %s", msg.CompanyName))
	mm.SetBodyString(gomail.TypeTextPlain, plainBody(msg))
	mm.AddAlternativeString(gomail.TypeTextHTML, htmlBody(msg))

	opts := []gomail.Option{
		gomail.WithPort(m.cfg.SMTPPort),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.cfg.SMTPUsername),
		gomail.WithPassword(m.cfg.SMTPPassword),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	client, err := gomail.NewClient(m.cfg.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("op=mail.send: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("op=mail.send: %w: %v", domain.ErrUpstreamTransient, err)
	}
	return nil
}

func plainBody(msg domain.ReportReadyEmail) string {
	return fmt.Sprintf(
		"Olá!\n\nA análise de valuation de %s foi concluída.\n\nApresentação: %s\nRelatório completo: %s\n\nEquipe Valorize",
		msg.CompanyName, msg.DeckURL, msg.DetailURL,
	)
}

func htmlBody(msg domain.ReportReadyEmail) string {
	return fmt.Sprintf(
		`<p>Olá!</p><p>A análise de valuation de <strong>%s</strong> foi concluída.</p><p><a href="%s">Ver apresentação</a><br><a href="%s">Ver relatório completo</a></p><p>Equipe Valorize</p>`,
		msg.CompanyName, msg.DeckURL, msg.DetailURL,
	)
}
