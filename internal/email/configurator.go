package email

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sebasr/reset-mailer/internal/config"
	"github.com/sebasr/reset-mailer/internal/metrics"
)

// Setup is the outcome of transport configuration. It is created once at
// startup and only read afterwards.
type Setup struct {
	Provider  string
	State     State
	Transport Transport // nil unless State is StateReady
	Missing   []string  // required settings that were absent
	Err       error     // why the transport is not ready, if it isn't
}

// Ready reports whether live sends should be attempted.
func (s *Setup) Ready() bool {
	return s != nil && s.State == StateReady && s.Transport != nil
}

// Configurator decides at startup whether a usable mail transport exists.
type Configurator struct {
	cfg        config.EmailConfig
	production bool
	logger     *zap.Logger

	// NewSMTP and NewMailgun build transports. Tests replace them.
	NewSMTP    func(TransportConfig) (Transport, error)
	NewMailgun func(domain, apiKey string, eu bool) (Transport, error)
}

// NewConfigurator creates a configurator for the given settings.
// production enables strict TLS certificate checks.
func NewConfigurator(cfg config.EmailConfig, production bool, logger *zap.Logger) *Configurator {
	return &Configurator{
		cfg:        cfg,
		production: production,
		logger:     logger.Named("mail"),
		NewSMTP: func(tc TransportConfig) (Transport, error) {
			return NewSMTPTransport(tc)
		},
		NewMailgun: func(domain, apiKey string, eu bool) (Transport, error) {
			return NewMailgunTransport(domain, apiKey, eu)
		},
	}
}

// Configure validates settings, builds the transport and waits for its
// connectivity check, bounded by the configured verify timeout. It never
// fails: every problem is recorded in the returned Setup, and a Setup that
// is not ready makes dispatchers simulate.
func (c *Configurator) Configure(ctx context.Context) (setup *Setup) {
	setup = &Setup{Provider: c.cfg.Provider, State: StateUnconfigured}
	defer func() {
		if r := recover(); r != nil {
			setup.State = StateFailed
			setup.Transport = nil
			setup.Err = fmt.Errorf("%w: panic while configuring: %v", ErrInvalidTransportConfig, r)
			c.logger.Error("mail transport setup panicked", zap.Any("panic", r))
		}
		c.publish(setup)
	}()

	if missing := c.missingSettings(); len(missing) > 0 {
		setup.Missing = missing
		setup.Err = fmt.Errorf("%w: %s", ErrMissingSettings, strings.Join(missing, ", "))
		c.logger.Warn("mail settings incomplete, reset emails will be simulated",
			zap.Strings("missing", missing),
		)
		return setup
	}

	transport, err := c.buildTransport()
	if err != nil {
		setup.State = StateFailed
		setup.Err = err
		c.logger.Error("failed to create mail transport", zap.Error(err))
		return setup
	}

	setup.State = StateConfiguring
	c.logger.Info("verifying mail server connection", zap.String("provider", c.cfg.Provider))

	verifyCtx, cancel := context.WithTimeout(ctx, c.cfg.VerifyTimeout)
	defer cancel()

	if err := transport.Verify(verifyCtx); err != nil {
		setup.State = StateFailed
		setup.Err = fmt.Errorf("mail server verification failed: %w", err)
		c.logger.Error("mail server connection failed, reset emails will be simulated", zap.Error(err))
		return setup
	}

	setup.State = StateReady
	setup.Transport = transport
	c.logger.Info("mail server ready", zap.String("provider", c.cfg.Provider))
	return setup
}

// missingSettings lists the required settings for the provider that are empty.
func (c *Configurator) missingSettings() []string {
	var required map[string]string
	var order []string

	switch c.cfg.Provider {
	case config.ProviderMailgun:
		required = map[string]string{
			"MAILGUN_DOMAIN":  c.cfg.MailgunDomain,
			"MAILGUN_API_KEY": c.cfg.MailgunAPIKey,
		}
		order = []string{"MAILGUN_DOMAIN", "MAILGUN_API_KEY"}
	default:
		required = map[string]string{
			"SMTP_HOST": c.cfg.SMTPHost,
			"SMTP_PORT": c.cfg.SMTPPort,
			"SMTP_USER": c.cfg.SMTPUser,
			"SMTP_PASS": c.cfg.SMTPPass,
		}
		order = []string{"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS"}
	}

	var missing []string
	for _, key := range order {
		if strings.TrimSpace(required[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

func (c *Configurator) buildTransport() (Transport, error) {
	if c.cfg.Provider == config.ProviderMailgun {
		return c.NewMailgun(c.cfg.MailgunDomain, c.cfg.MailgunAPIKey, c.cfg.MailgunEU)
	}

	tc, err := c.transportConfig()
	if err != nil {
		return nil, err
	}
	return c.NewSMTP(tc)
}

func (c *Configurator) transportConfig() (TransportConfig, error) {
	port, err := parsePort(c.cfg.SMTPPort)
	if err != nil {
		return TransportConfig{}, err
	}
	return TransportConfig{
		Host:               c.cfg.SMTPHost,
		Port:               port,
		Secure:             c.cfg.SMTPSecure,
		Username:           c.cfg.SMTPUser,
		Password:           c.cfg.SMTPPass,
		RejectUnauthorized: c.production,
	}, nil
}

func (c *Configurator) publish(setup *Setup) {
	all := []string{
		StateUnconfigured.String(),
		StateConfiguring.String(),
		StateReady.String(),
		StateFailed.String(),
	}
	metrics.SetTransportState(setup.State.String(), all)
}

// parsePort parses an SMTP port, defaulting to DefaultPort when empty.
func parsePort(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultPort, nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: port %q is not a number", ErrInvalidTransportConfig, raw)
	}
	return port, nil
}
