package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/mailgun/mailgun-go/v5"
)

// MailgunTransport sends mail through Mailgun's HTTP API.
type MailgunTransport struct {
	client mailgun.Mailgun
	domain string
}

// NewMailgunTransport creates a Mailgun transport.
// domain: Mailgun sending domain (e.g., "mg.example.com")
// apiKey: Mailgun API key
// eu: use the EU region API base
func NewMailgunTransport(domain, apiKey string, eu bool) (*MailgunTransport, error) {
	// Trim whitespace from inputs (important when loaded from env files)
	domain = strings.TrimSpace(domain)
	apiKey = strings.TrimSpace(apiKey)
	if domain == "" || apiKey == "" {
		return nil, fmt.Errorf("%w: mailgun domain and api key are required", ErrInvalidTransportConfig)
	}

	mg := mailgun.NewMailgun(apiKey)
	if eu {
		// Mailgun v5 adds the /v3 suffix itself
		if err := mg.SetAPIBase("https://api.eu.mailgun.net"); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransportConfig, err)
		}
	}

	return &MailgunTransport{client: mg, domain: domain}, nil
}

// Verify checks the transport locally. The Mailgun API is stateless, so
// there is no session to open; bad credentials surface on the first Send.
func (t *MailgunTransport) Verify(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.client == nil || t.domain == "" {
		return fmt.Errorf("%w: mailgun client not initialized", ErrInvalidTransportConfig)
	}
	return nil
}

// Send delivers msg via the Mailgun messages API.
func (t *MailgunTransport) Send(ctx context.Context, msg *Message) (*SendInfo, error) {
	sender := fmt.Sprintf("%s <%s>", msg.FromName, msg.FromAddress)
	message := mailgun.NewMessage(t.domain, sender, msg.Subject, msg.TextBody, msg.To)
	message.SetHTML(msg.HTMLBody)
	for name, value := range msg.Headers {
		message.AddHeader(name, value)
	}

	resp, err := t.client.Send(ctx, message)
	if err != nil {
		return nil, err
	}

	return &SendInfo{
		MessageID: resp.ID,
		Accepted:  []string{msg.To},
		Rejected:  []string{},
		Response:  resp.Message,
	}, nil
}

var _ Transport = (*MailgunTransport)(nil)
