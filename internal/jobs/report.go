package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"spin-earn-backend/internal/archive"
	"spin-earn-backend/internal/config"
)

var ErrMailNotConfigured = errors.New("email not configured")

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPMailer struct {
	host string
	port int
	user string
	pass string
	from string
}

// NewSMTPMailer returns nil when SMTP_HOST is unset.
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	if cfg.SMTPHost == "" {
		return nil
	}
	return &SMTPMailer{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
		from: cfg.SMTPFrom,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if m == nil || m.from == "" {
		return ErrMailNotConfigured
	}
	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.from, []string{to}, composeMail(m.from, to, subject, body))
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func composeMail(from, to, subject, body string) []byte {
	return []byte(strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n"))
}

// Reporter builds yesterday's ledger summary from the archive and mails it.
type Reporter struct {
	Archive   *archive.Store
	Mailer    Mailer
	Recipient string
	CoinRate  decimal.Decimal
	Now       func() time.Time
	Log       *logrus.Entry
}

func (r *Reporter) Run(ctx context.Context) error {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	day := now().UTC().AddDate(0, 0, -1)

	report, err := r.Archive.BuildDailyReport(ctx, day)
	if err != nil {
		return err
	}
	if r.Mailer == nil || r.Recipient == "" {
		r.Log.WithField("day", report.Day.Format("2006-01-02")).Warn("report built but no mailer configured")
		return nil
	}

	subject := "Daily report " + report.Day.Format("2006-01-02")
	if err := r.Mailer.Send(ctx, r.Recipient, subject, report.Text(r.CoinRate)); err != nil {
		return fmt.Errorf("mail report: %w", err)
	}
	r.Log.WithFields(logrus.Fields{
		"day":       report.Day.Format("2006-01-02"),
		"recipient": r.Recipient,
	}).Info("daily report sent")
	return nil
}
