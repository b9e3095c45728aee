// Package mailer is the email-equivalent notification sink - a thin
// smtp client that the dispatcher treats as best-effort.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/beaconhq/beacon/server/logger"
	"github.com/beaconhq/beacon/shared"
)

var logg = logger.NewLogger()

type Mailer struct {
	config   shared.SmtpConfig
	testMode bool
}

// NewMailer builds an smtp mailer. With no host configured(or in
// testMode) messages are logged instead of sent.
func NewMailer(config shared.SmtpConfig, testMode bool) *Mailer {
	return &Mailer{config: config, testMode: testMode || config.Host == ""}
}

func (m *Mailer) SendEmail(subject, body string, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}

	if m.testMode {
		logg.Infof("[mailer] to=%v subject=%q", recipients, subject)
		return nil
	}

	msg := strings.Join([]string{
		fmt.Sprintf("From: %v", m.config.From),
		fmt.Sprintf("To: %v", strings.Join(recipients, ", ")),
		fmt.Sprintf("Subject: %v", subject),
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%v:%v", m.config.Host, m.config.Port)

	var a smtp.Auth
	if m.config.Username != "" {
		a = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	return smtp.SendMail(addr, a, m.config.From, recipients, []byte(msg))
}
