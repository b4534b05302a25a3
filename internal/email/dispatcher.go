package email

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sebasr/reset-mailer/internal/metrics"
)

// SimulationRecord describes a reset email that was logged instead of sent.
type SimulationRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	To          string    `json:"to"`
	ResetLink   string    `json:"resetLink"`
	TokenExpiry string    `json:"tokenExpiry"`
	PersonName  string    `json:"personName"`
	RequestIP   string    `json:"requestIp"`
	Simulated   bool      `json:"simulated"`
}

// DeliveryRecord describes a reset email accepted by the transport.
type DeliveryRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	To         string    `json:"to"`
	MessageID  string    `json:"messageId"`
	Accepted   []string  `json:"accepted"`
	Rejected   []string  `json:"rejected"`
	PersonName string    `json:"personName"`
	RequestIP  string    `json:"requestIp"`
}

// ErrorRecord describes a failed send attempt.
type ErrorRecord struct {
	Timestamp time.Time `json:"timestamp"`
	To        string    `json:"to"`
	Error     string    `json:"error"`
	ResetLink string    `json:"resetLink"`
}

// Result is the outcome of one Dispatch call. ResetLink is always set.
//
// Exactly one of Simulation, Delivery or ErrorDetails is non-nil. A failed
// send also sets DevelopmentMode so callers that only check that flag keep
// showing the link to the user; FallbackLinkExposed says the same thing
// without overloading the simulation flag.
type Result struct {
	Success             bool              `json:"success"`
	DevelopmentMode     bool              `json:"developmentMode,omitempty"`
	FallbackLinkExposed bool              `json:"fallbackLinkExposed,omitempty"`
	MessageID           string            `json:"messageId,omitempty"`
	To                  string            `json:"to,omitempty"`
	ResetLink           string            `json:"resetLink"`
	Error               string            `json:"error,omitempty"`
	Simulation          *SimulationRecord `json:"simulation,omitempty"`
	Delivery            *DeliveryRecord   `json:"delivery,omitempty"`
	ErrorDetails        *ErrorRecord      `json:"errorDetails,omitempty"`
}

// Simulated reports whether the result came from the simulation path.
func (r *Result) Simulated() bool {
	return r.Simulation != nil
}

// DispatcherConfig holds the settings a Dispatcher needs beyond the transport.
type DispatcherConfig struct {
	FrontendBaseURL    string
	ProductName        string
	From               string // optional "Name <address>" sender
	DefaultFromAddress string // used when From is empty, normally the SMTP account
	Production         bool
	// Console receives the human-readable banner for simulated sends.
	// Defaults to os.Stderr; set io.Discard to silence it.
	Console io.Writer
}

// Dispatcher sends password reset emails, or simulates them when the
// transport is not ready. It holds no mutable state and is safe for
// concurrent use.
type Dispatcher struct {
	setup   *Setup
	cfg     DispatcherConfig
	from    FromIdentity
	subject string
	logger  *zap.Logger
	now     func() time.Time
}

// NewDispatcher creates a dispatcher bound to a configured transport setup.
func NewDispatcher(setup *Setup, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.ProductName == "" {
		cfg.ProductName = DefaultProductName
	}
	if strings.TrimSpace(cfg.FrontendBaseURL) == "" {
		cfg.FrontendBaseURL = DefaultFrontendBaseURL
	}
	if cfg.Console == nil {
		cfg.Console = os.Stderr
	}
	if setup == nil {
		setup = &Setup{State: StateUnconfigured}
	}

	logger = logger.Named("mail")
	from := ResolveFrom(cfg.From, cfg.DefaultFromAddress, cfg.ProductName)
	if from.Err != nil {
		logger.Warn("could not parse sender, using it as a bare address",
			zap.String("from", cfg.From),
			zap.Error(from.Err),
		)
	}

	return &Dispatcher{
		setup:   setup,
		cfg:     cfg,
		from:    from,
		subject: fmt.Sprintf("Password Reset Request - %s", cfg.ProductName),
		logger:  logger,
		now:     time.Now,
	}
}

// State returns the transport state the dispatcher was built with.
func (d *Dispatcher) State() State {
	return d.setup.State
}

// From returns the resolved sender identity.
func (d *Dispatcher) From() FromIdentity {
	return d.from
}

// Dispatch delivers a password reset email for token to the recipient.
// It never returns an error: failures are reported in the Result, which
// always includes the reset link. No retries are attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, to, token string, meta Metadata) (result *Result) {
	resetLink := BuildResetLink(d.cfg.FrontendBaseURL, token)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("password reset dispatch panicked", zap.String("to", to), zap.Any("panic", r))
			result = d.failure(to, resetLink, fmt.Errorf("internal error: %v", r))
		}
	}()

	if !d.setup.Ready() {
		return d.simulate(to, resetLink, meta)
	}
	return d.deliver(ctx, to, token, resetLink, meta)
}

func (d *Dispatcher) simulate(to, resetLink string, meta Metadata) *Result {
	rec := &SimulationRecord{
		Timestamp:   d.now().UTC(),
		To:          to,
		ResetLink:   resetLink,
		TokenExpiry: expiryText(),
		PersonName:  meta.PersonName,
		RequestIP:   meta.RequestIP,
		Simulated:   true,
	}

	d.logger.Info("simulated password reset email",
		zap.String("to", to),
		zap.String("reset_link", resetLink),
		zap.String("person_name", meta.PersonName),
		zap.String("request_ip", meta.RequestIP),
		zap.String("user_agent", meta.UserAgent),
		zap.String("transport_state", d.setup.State.String()),
	)
	writeSimulationBanner(d.cfg.Console, rec, meta.UserAgent)
	metrics.DispatchTotal.WithLabelValues(metrics.OutcomeSimulated).Inc()

	return &Result{
		Success:         true,
		DevelopmentMode: true,
		ResetLink:       resetLink,
		Simulation:      rec,
	}
}

func (d *Dispatcher) deliver(ctx context.Context, to, token, resetLink string, meta Metadata) *Result {
	now := d.now()
	htmlBody, textBody, err := renderResetBodies(newResetTemplateData(d.cfg.ProductName, meta.PersonName, resetLink, now))
	if err != nil {
		return d.failure(to, resetLink, err)
	}

	msg := &Message{
		FromName:    d.from.Name,
		FromAddress: d.from.Address,
		To:          to,
		Subject:     d.subject,
		HTMLBody:    htmlBody,
		TextBody:    textBody,
		Headers: map[string]string{
			CorrelationHeader: CorrelationID(token),
		},
	}

	start := time.Now()
	info, err := d.setup.Transport.Send(ctx, msg)
	if err != nil {
		metrics.SendDuration.WithLabelValues(metrics.OutcomeFailed).Observe(time.Since(start).Seconds())
		return d.failure(to, resetLink, err)
	}
	metrics.SendDuration.WithLabelValues(metrics.OutcomeDelivered).Observe(time.Since(start).Seconds())
	if info == nil {
		info = &SendInfo{}
	}

	rec := &DeliveryRecord{
		Timestamp:  d.now().UTC(),
		To:         to,
		MessageID:  info.MessageID,
		Accepted:   info.Accepted,
		Rejected:   info.Rejected,
		PersonName: meta.PersonName,
		RequestIP:  meta.RequestIP,
	}

	status := info.Response
	if status == "" {
		status = "sent"
	}
	d.logger.Info("password reset email sent",
		zap.String("to", to),
		zap.String("message_id", info.MessageID),
		zap.String("status", status),
		zap.Strings("accepted", info.Accepted),
		zap.Strings("rejected", info.Rejected),
		zap.String("correlation_id", msg.Headers[CorrelationHeader]),
	)
	metrics.DispatchTotal.WithLabelValues(metrics.OutcomeDelivered).Inc()

	return &Result{
		Success:   true,
		MessageID: info.MessageID,
		To:        to,
		ResetLink: resetLink,
		Delivery:  rec,
	}
}

func (d *Dispatcher) failure(to, resetLink string, err error) *Result {
	rec := &ErrorRecord{
		Timestamp: d.now().UTC(),
		To:        to,
		Error:     err.Error(),
		ResetLink: resetLink,
	}

	d.logger.Error("failed to send password reset email",
		zap.String("to", to),
		zap.Error(err),
	)
	if !d.cfg.Production {
		d.logger.Info("password reset link", zap.String("reset_link", resetLink))
	}
	metrics.DispatchTotal.WithLabelValues(metrics.OutcomeFailed).Inc()

	return &Result{
		Success:             false,
		Error:               err.Error(),
		ResetLink:           resetLink,
		ErrorDetails:        rec,
		DevelopmentMode:     true,
		FallbackLinkExposed: true,
	}
}

// BuildResetLink joins the frontend base URL, the reset path and the token.
// An empty base falls back to DefaultFrontendBaseURL.
func BuildResetLink(baseURL, token string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultFrontendBaseURL
	}
	return base + ResetPath + "?token=" + url.QueryEscape(token)
}

// CorrelationID returns at most the first 8 characters of token, for the
// correlation header. The full token never leaves in headers.
func CorrelationID(token string) string {
	runes := []rune(token)
	if len(runes) > correlationPrefixLen {
		runes = runes[:correlationPrefixLen]
	}
	return string(runes)
}

func expiryText() string {
	return fmt.Sprintf("%d minutes", int(TokenExpiry/time.Minute))
}
