package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
)

// SMTPConfig настройки SMTP.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.Port != "" && c.From != ""
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailDispatcher отправляет письмо со ссылкой на портал.
type EmailDispatcher struct {
	config SMTPConfig
	server string
	auth   smtp.Auth
	send   sendMailFunc
}

func NewEmailDispatcher(config SMTPConfig) *EmailDispatcher {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &EmailDispatcher{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

func (d *EmailDispatcher) Dispatch(ctx context.Context, req Request) error {
	if !d.config.IsConfigured() {
		return ErrNotConfigured
	}
	if req.ClientEmail == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := d.buildMessage(req)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeNotificationFailed, "не удалось сформировать письмо")
	}
	if err := d.send(d.server, d.auth, d.config.From, []string{req.ClientEmail}, msg); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeNotificationFailed, "не удалось отправить письмо")
	}
	return nil
}

func (d *EmailDispatcher) buildMessage(req Request) ([]byte, error) {
	var body bytes.Buffer
	if err := emailTemplate.Execute(&body, req); err != nil {
		return nil, err
	}

	from := d.config.From
	if d.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", d.config.FromName, d.config.From)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", req.ClientEmail)
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subjectFor(req))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

func subjectFor(req Request) string {
	number := strings.TrimSpace(req.ProposalNumber)
	if req.Kind == KindRevised {
		return fmt.Sprintf("Предложение %s обновлено", number)
	}
	return fmt.Sprintf("Новое предложение %s", number)
}

var emailTemplate = template.Must(template.New("proposal").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
<p>Здравствуйте{{if .ClientName}}, {{.ClientName}}{{end}}!</p>
{{if eq .Kind "revised"}}<p>Мы обновили предложение «{{.ProposalTitle}}» с учётом ваших комментариев.</p>
{{else}}<p>Для вас подготовлено предложение «{{.ProposalTitle}}».</p>
{{end}}<p><a href="{{.ProposalURL}}">Открыть предложение</a></p>
{{if .ApprovalURL}}<p><a href="{{.ApprovalURL}}">Одобрить предложение</a></p>
{{end}}</body>
</html>
`))
