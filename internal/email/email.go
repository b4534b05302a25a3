// Package email delivers password reset notifications.
//
// A Configurator inspects the mail settings once at startup and produces a
// Setup describing whether a usable Transport exists. A Dispatcher built from
// that Setup either sends the reset message through the transport or, when no
// transport is ready, logs a simulated delivery. Either way the caller gets a
// Result that always carries the reset link.
package email

import (
	"context"
	"errors"
	"time"
)

// Transport is the outbound mail capability used by the Dispatcher.
// Implementations include SMTP (gomail) and Mailgun, plus MockTransport for tests.
type Transport interface {
	// Verify checks that the transport can reach and authenticate with its backend.
	Verify(ctx context.Context) error

	// Send delivers a single message. The returned error message is reported
	// to callers verbatim.
	Send(ctx context.Context, msg *Message) (*SendInfo, error)
}

// Message is a fully rendered outgoing email.
type Message struct {
	FromName    string
	FromAddress string
	To          string
	Subject     string
	HTMLBody    string
	TextBody    string
	Headers     map[string]string
}

// SendInfo is what a transport reports back after a successful send.
type SendInfo struct {
	MessageID string
	Accepted  []string
	Rejected  []string
	Response  string
}

// Metadata carries optional request context attached to a reset notification.
type Metadata struct {
	PersonName string
	RequestIP  string
	UserAgent  string
}

// TransportConfig holds the settings needed to build an SMTP transport.
type TransportConfig struct {
	Host               string
	Port               int
	Secure             bool // implicit TLS
	Username           string
	Password           string
	RejectUnauthorized bool // verify the server certificate
}

// State is the lifecycle of the mail transport as decided at startup.
type State int

// Transport states. Only the Configurator moves between them.
const (
	StateUnconfigured State = iota
	StateConfiguring
	StateReady
	StateFailed
)

// String returns the lowercase state name used in logs and health output
func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfiguring:
		return "configuring"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	// DefaultPort is used when the configured SMTP port is empty.
	DefaultPort = 587

	// TokenExpiry is the reset token lifetime shown to the user. It is
	// enforced by the token store, not here.
	TokenExpiry = 5 * time.Minute

	// ResetPath is appended to the frontend base URL to form the reset link.
	ResetPath = "/reset-password.html"

	// DefaultFrontendBaseURL is used when no frontend URL is configured.
	DefaultFrontendBaseURL = "http://localhost:3000"

	// DefaultProductName labels the subject line and the default sender.
	DefaultProductName = "Medical System"

	// CorrelationHeader carries a short token prefix for tracing deliveries.
	CorrelationHeader = "X-Reset-Token-ID"

	// correlationPrefixLen bounds how much of the token leaves the process.
	correlationPrefixLen = 8
)

var (
	// ErrMissingSettings is recorded when required transport settings are absent
	ErrMissingSettings = errors.New("missing mail transport settings")

	// ErrInvalidTransportConfig is returned when transport settings are malformed
	ErrInvalidTransportConfig = errors.New("invalid mail transport configuration")
)
