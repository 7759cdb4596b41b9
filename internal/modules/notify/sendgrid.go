// README: Email channel over SendGrid.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"ordertrack/internal/modules/order"
)

// EmailSender delivers one message.
type EmailSender interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type SendGridClient struct {
	apiKey   string
	fromName string
}

func NewSendGridClient(apiKey, fromName string) *SendGridClient {
	return &SendGridClient{apiKey: apiKey, fromName: fromName}
}

func (c *SendGridClient) Send(ctx context.Context, from, to, subject, body string) error {
	if c.apiKey == "" {
		return fmt.Errorf("sendgrid api key is empty")
	}
	if from == "" {
		return fmt.Errorf("from address is empty")
	}
	if to == "" {
		return fmt.Errorf("to address is empty")
	}

	htmlContent := "<p>" + strings.ReplaceAll(html.EscapeString(body), "\n", "<br>") + "</p>"
	message := mail.NewSingleEmail(
		mail.NewEmail(c.fromName, from),
		subject,
		mail.NewEmail("", to),
		body,
		htmlContent,
	)

	response, err := sendgrid.NewSendClient(c.apiKey).SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", response.StatusCode, response.Body)
	}
	return nil
}

// EmailNotifier mails the customer on the address recorded on the order.
type EmailNotifier struct {
	sender EmailSender
	from   string
}

func NewEmailNotifier(sender EmailSender, from string) *EmailNotifier {
	return &EmailNotifier{sender: sender, from: from}
}

func (n *EmailNotifier) Notify(ctx context.Context, note order.Notification) error {
	to := strings.TrimSpace(note.Order.CustomerEmail)
	if to == "" {
		return ErrNoRecipient
	}
	subject, body := Render(note)
	return n.sender.Send(ctx, n.from, to, subject, body)
}
