package notification

import (
	"context"
	"fmt"
	"sync"

	"carrental-backend/internal/logger"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender delivers one plain-text email.
type Sender interface {
	Send(ctx context.Context, toEmail, toName, subject, body string) error
}

type SendGridSender struct {
	mu       sync.Mutex
	client   *sendgrid.Client
	fromAddr string
	fromName string
}

func NewSendGridSender(apiKey, fromAddr, fromName string) *SendGridSender {
	return &SendGridSender{
		client:   sendgrid.NewSendClient(apiKey),
		fromAddr: fromAddr,
		fromName: fromName,
	}
}

// newSendGridSenderWithHost points the client at another API host.
func newSendGridSenderWithHost(apiKey, host, fromAddr, fromName string) *SendGridSender {
	request := sendgrid.GetRequest(apiKey, "/v3/mail/send", host)
	request.Method = "POST"
	return &SendGridSender{
		client:   &sendgrid.Client{Request: request},
		fromAddr: fromAddr,
		fromName: fromName,
	}
}

func (s *SendGridSender) Send(ctx context.Context, toEmail, toName, subject, body string) error {
	logger.ExternalServiceCall("sendgrid", "Send", "to", toEmail, "subject", subject)

	from := mail.NewEmail(s.fromName, s.fromAddr)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, body, "")

	// The client stores the request body on itself.
	s.mu.Lock()
	response, err := s.client.SendWithContext(ctx, message)
	s.mu.Unlock()
	if err != nil {
		logger.ExternalServiceResult("sendgrid", "Send", err, "to", toEmail)
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		err := fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
		logger.ExternalServiceResult("sendgrid", "Send", err, "to", toEmail)
		return err
	}

	logger.ExternalServiceResult("sendgrid", "Send", nil, "to", toEmail, "status", response.StatusCode)
	return nil
}

// LogSender logs emails instead of sending them.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, toEmail, toName, subject, body string) error {
	logger.InfoContext(ctx, "Email (not sent)", "to", toEmail, "subject", subject, "body", body)
	return nil
}
