// Package mail delivers transactional e-mail: verification codes sent over
// SMTP directly or queued on Pub/Sub for the worker.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidMessage is returned for messages without a recipient or body.
var ErrInvalidMessage = errors.New("invalid mail message")

// Message is a plain-text e-mail.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Validate checks that the message can be delivered.
func (m Message) Validate() error {
	if m.To == "" || m.Subject == "" || m.Text == "" {
		return ErrInvalidMessage
	}
	return nil
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Purpose selects the wording of a verification e-mail.
type Purpose string

// Verification purposes.
const (
	PurposeForgotPassword Purpose = "forgot-password"
	PurposeRegister       Purpose = "register"
)

var subjects = map[Purpose]string{
	PurposeForgotPassword: "NTUGo 重設密碼驗證碼",
	PurposeRegister:       "NTUGo 註冊驗證碼",
}

var verificationTemplate = template.Must(template.New("verification").Parse(
	`您好，

{{if eq .Purpose "forgot-password"}}我們收到了重設您 NTUGo 帳號密碼的請求。{{else}}感謝您註冊 NTUGo。{{end}}
您的驗證碼是：

    {{.Code}}

驗證碼將在 {{.Minutes}} 分鐘後失效。如果這不是您本人的操作，請忽略這封郵件。

NTUGo 團隊
`))

// VerificationCodeMessage renders the e-mail carrying a verification code.
func VerificationCodeMessage(to, code string, expiry time.Duration, purpose Purpose) (Message, error) {
	subject, ok := subjects[purpose]
	if !ok {
		return Message{}, fmt.Errorf("unknown mail purpose %q", purpose)
	}

	var body bytes.Buffer
	err := verificationTemplate.Execute(&body, struct {
		Purpose Purpose
		Code    string
		Minutes int
	}{purpose, code, int(expiry / time.Minute)})
	if err != nil {
		return Message{}, fmt.Errorf("rendering verification mail: %w", err)
	}

	return Message{To: to, Subject: subject, Text: body.String()}, nil
}

// LogMailer logs messages instead of sending them. The body, which carries
// the code, is only logged at debug level.
type LogMailer struct {
	Logger zerolog.Logger
}

// Send logs msg.
func (m LogMailer) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	m.Logger.Info().Str("subject", msg.Subject).Msg("mail delivery disabled, message not sent")
	m.Logger.Debug().Str("to", msg.To).Str("text", msg.Text).Msg("unsent mail")
	return nil
}
