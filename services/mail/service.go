package mail

import (
	"bytes"
	"embed"
	"fmt"
	textTemplate "text/template"
	"time"

	"github.com/goaltrack/goaltrack/config"
	"github.com/goaltrack/goaltrack/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

//go:embed templates/*.txt
var templateFS embed.FS

// Service delivers the confirmation codes and reset links. Delivery is
// fire-and-forget from the caller's perspective: the auth flow waits only
// for the SMTP handoff, never for receipt.
type Service struct {
	config    *config.MailConfig
	appName   string
	client    *mail.Client
	templates *textTemplate.Template
	logger    *logging.Service
}

func NewService(cfg *config.Config, logger *logging.Service) (*Service, error) {
	if cfg.Mail.FromAddress == "" {
		return nil, fmt.Errorf("GOALTRACK_MAIL_FROM_ADDRESS is required")
	}

	clientOpts := []mail.Option{
		mail.WithPort(cfg.Mail.Port),
	}

	switch cfg.Mail.Encryption {
	case "ssl":
		clientOpts = append(clientOpts, mail.WithSSL())
	case "none":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	if cfg.Mail.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Mail.Username),
			mail.WithPassword(cfg.Mail.Password))
	}

	client, err := mail.NewClient(cfg.Mail.Host, clientOpts...)
	if err != nil {
		logger.Error("failed to create mail client",
			zap.Error(err),
			zap.String("host", cfg.Mail.Host),
			zap.Int("port", cfg.Mail.Port))
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	templates, err := textTemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse mail templates: %w", err)
	}

	logger.Info("mail service initialized",
		zap.String("host", cfg.Mail.Host),
		zap.Int("port", cfg.Mail.Port),
		zap.String("from_address", cfg.Mail.FromAddress))

	return &Service{
		config:    &cfg.Mail,
		appName:   cfg.App.Name,
		client:    client,
		templates: templates,
		logger:    logger,
	}, nil
}

func (s *Service) SendConfirmationCode(email, code string) error {
	return s.sendTemplate("confirmation_code.txt", email,
		fmt.Sprintf("%s email confirmation", s.appName),
		map[string]any{
			"AppName": s.appName,
			"Code":    code,
		})
}

func (s *Service) SendPasswordReset(email, resetURL string) error {
	return s.sendTemplate("password_reset.txt", email,
		fmt.Sprintf("%s password reset", s.appName),
		map[string]any{
			"AppName":  s.appName,
			"ResetURL": resetURL,
		})
}

func (s *Service) sendTemplate(templateName, to, subject string, data map[string]any) error {
	tmpl := s.templates.Lookup(templateName)
	if tmpl == nil {
		return fmt.Errorf("mail template %q not found", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render mail template %q: %w", templateName, err)
	}

	message := mail.NewMsg()

	fromAddr := s.config.FromAddress
	if s.config.FromName != "" {
		fromAddr = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromAddress)
	}
	if err := message.From(fromAddr); err != nil {
		return fmt.Errorf("failed to set FROM address: %w", err)
	}
	if err := message.To(to); err != nil {
		return fmt.Errorf("failed to set TO address: %w", err)
	}

	message.Subject(subject)
	message.SetBodyString(mail.TypeTextPlain, body.String())

	start := time.Now()
	if err := s.client.DialAndSend(message); err != nil {
		s.logger.Error("failed to send email",
			zap.Error(err),
			zap.String("template", templateName),
			zap.Duration("attempt_duration", time.Since(start)))
		return err
	}

	s.logger.Info("email sent",
		zap.String("template", templateName),
		zap.Duration("send_duration", time.Since(start)))
	return nil
}
