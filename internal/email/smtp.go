package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// SMTPTransport sends mail through an SMTP server using gomail.
//
// Every Send opens a fresh connection; reset emails are rare enough that
// pooling connections is not worth holding them open.
type SMTPTransport struct {
	dialer *gomail.Dialer
}

// NewSMTPTransport validates cfg and builds an SMTP transport.
// It does not touch the network; call Verify for that.
func NewSMTPTransport(cfg TransportConfig) (*SMTPTransport, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, fmt.Errorf("%w: host is empty", ErrInvalidTransportConfig)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrInvalidTransportConfig, cfg.Port)
	}

	d := gomail.NewDialer(host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.Secure
	d.TLSConfig = &tls.Config{
		ServerName: host,
		// Relaxed outside production so self-signed dev relays work
		InsecureSkipVerify: !cfg.RejectUnauthorized, // #nosec G402
		MinVersion:         tls.VersionTLS12,
	}

	return &SMTPTransport{dialer: d}, nil
}

// Verify dials and authenticates against the SMTP server, then disconnects.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	return runWithContext(ctx, func() error {
		conn, err := t.newDialer().Dial()
		if err != nil {
			return err
		}
		return conn.Close()
	})
}

// Send delivers msg as a multipart/alternative email (text first, HTML preferred).
func (t *SMTPTransport) Send(ctx context.Context, msg *Message) (*SendInfo, error) {
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), messageIDDomain(msg.FromAddress, t.dialer.Host))

	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.FromAddress, msg.FromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", messageID)
	m.SetDateHeader("Date", time.Now())
	for name, value := range msg.Headers {
		m.SetHeader(name, value)
	}
	m.SetBody("text/plain", msg.TextBody)
	m.AddAlternative("text/html", msg.HTMLBody)

	if err := runWithContext(ctx, func() error { return t.newDialer().DialAndSend(m) }); err != nil {
		return nil, err
	}

	return &SendInfo{
		MessageID: messageID,
		Accepted:  []string{msg.To},
		Rejected:  []string{},
	}, nil
}

// Host returns the SMTP server hostname
func (t *SMTPTransport) Host() string {
	return t.dialer.Host
}

// Port returns the SMTP server port
func (t *SMTPTransport) Port() int {
	return t.dialer.Port
}

// newDialer copies the configured dialer. gomail picks the auth mechanism
// lazily and stores it on the dialer, so a shared one is not safe for
// concurrent sends.
func (t *SMTPTransport) newDialer() *gomail.Dialer {
	d := *t.dialer
	return &d
}

// runWithContext runs fn and returns early if ctx ends first. gomail has no
// context support, so an abandoned fn finishes in the background bounded by
// gomail's own dial timeout.
func runWithContext(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func messageIDDomain(fromAddress, fallback string) string {
	if at := strings.LastIndex(fromAddress, "@"); at >= 0 && at < len(fromAddress)-1 {
		return fromAddress[at+1:]
	}
	return fallback
}

var _ Transport = (*SMTPTransport)(nil)
