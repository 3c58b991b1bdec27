package alert

import (
	"context"

	"gopkg.in/gomail.v2"

	config "github.com/raids-lab/triad/pkg/config"
)

type smtpAlerter struct {
	dialer *gomail.Dialer
	from   string
}

func newSMTPAlerter() alertHandlerInterface {
	smtpConfig := config.GetConfig().SMTP
	return &smtpAlerter{
		dialer: gomail.NewDialer(smtpConfig.Host, smtpConfig.Port, smtpConfig.User, smtpConfig.Password),
		from:   smtpConfig.Notify,
	}
}

func (a *smtpAlerter) SendMessageTo(_ context.Context, receiver, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", a.from)
	m.SetHeader("To", receiver)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return a.dialer.DialAndSend(m)
}
