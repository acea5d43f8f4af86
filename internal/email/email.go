package email

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"idea-portal/internal/config"
	"idea-portal/internal/models"
)

// Service handles email operations
type Service struct {
	config *config.EmailConfig
}

// NewService creates a new email service
func NewService(cfg *config.EmailConfig) *Service {
	return &Service{
		config: cfg,
	}
}

// Enabled reports whether notifications are sent at all
func (s *Service) Enabled() bool {
	return s != nil && s.config != nil && s.config.Enabled
}

// EmailTemplate represents an email template
type EmailTemplate struct {
	Subject string
	Body    *template.Template
}

const layoutHead = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 700px; margin: 0 auto; padding: 20px;">
`

const layoutFoot = `
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">This is an automated notification. Please do not reply.</p>
    </div>
</body>
</html>
`

var statusChangeTemplate = template.Must(template.New("status_change").Parse(layoutHead + `
        <h2 style="color: #4a90e2;">Your proposal has a new status</h2>
        <p>Hello {{.Name}},</p>
        <p>The status of your proposal <strong>{{.Code}} {{.ProposalTitle}}</strong> changed.</p>
        <div style="background-color: #e3f2fd; border-left: 4px solid #2196f3; padding: 15px; margin: 20px 0;">
            <p style="margin: 5px 0;"><strong>Previous status:</strong> {{.From}}</p>
            <p style="margin: 5px 0;"><strong>New status:</strong> {{.To}}</p>
            {{- if .Summary}}
            <p style="margin: 5px 0;"><strong>Current rating:</strong> {{.Summary.Percentage}}% ({{.Summary.Grade}}, {{.Summary.Count}} ratings)</p>
            {{- end}}
        </div>
        <div style="text-align: center; margin: 30px 0;">
            <a href="{{.Link}}" style="background-color: #4a90e2; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Open proposal</a>
        </div>
` + layoutFoot))

var digestTemplate = template.Must(template.New("manager_digest").Funcs(template.FuncMap{"daysSince": daysSince}).Parse(layoutHead + `
        <h2 style="color: #4a90e2;">Proposals awaiting your rating</h2>
        <p>Hello {{.Name}},</p>
        <p>There are <strong>{{len .Items}} submitted proposals</strong> waiting for a rating:</p>
        <table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
            <thead>
                <tr style="background-color: #f5f5f5; border-bottom: 2px solid #ddd;">
                    <th style="padding: 12px 8px; text-align: left;">Proposal</th>
                    <th style="padding: 12px 8px; text-align: left;">Author</th>
                    <th style="padding: 12px 8px; text-align: center;">Waiting</th>
                    <th style="padding: 12px 8px; text-align: center;">Ratings</th>
                </tr>
            </thead>
            <tbody>
            {{- range .Items}}
                <tr style="border-bottom: 1px solid #eee;">
                    <td style="padding: 12px 8px;"><a href="{{$.BaseURL}}/proposals/{{.Code}}" style="color: #4a90e2; text-decoration: none;">{{.Code}}</a> {{.Title}}</td>
                    <td style="padding: 12px 8px;">{{.AuthorName}}</td>
                    <td style="padding: 12px 8px; text-align: center;">{{daysSince .SubmittedAt}} days</td>
                    <td style="padding: 12px 8px; text-align: center;">{{.RatingCount}}</td>
                </tr>
            {{- end}}
            </tbody>
        </table>
` + layoutFoot))

func daysSince(t time.Time) int {
	return int(time.Since(t).Hours() / 24)
}

func render(tpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", tpl.Name(), err)
	}
	return buf.String(), nil
}

// StatusChangeBody renders the author notification for a status change
func (s *Service) StatusChangeBody(authorName string, p *models.Proposal, from, to string) (string, error) {
	return render(statusChangeTemplate, map[string]any{
		"Title":         "Proposal status changed",
		"Name":          authorName,
		"Code":          p.Code,
		"ProposalTitle": p.Title,
		"From":          from,
		"To":            to,
		"Summary":       p.RatingSummary,
		"Link":          fmt.Sprintf("%s/proposals/%s", s.config.PortalURL, p.Code),
	})
}

// SendStatusChangeNotification tells the author their proposal moved from one status to another
func (s *Service) SendStatusChangeNotification(to, authorName string, p *models.Proposal, from, toStatus string) error {
	if !s.Enabled() {
		return nil
	}

	body, err := s.StatusChangeBody(authorName, p, from, toStatus)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s is now %s", p.Code, toStatus)
	return s.sendEmail(to, subject, body)
}

// DigestBody renders the manager digest
func (s *Service) DigestBody(managerName string, items []models.PendingReviewItem) (string, error) {
	return render(digestTemplate, map[string]any{
		"Title":   "Proposals awaiting rating",
		"Name":    managerName,
		"Items":   items,
		"BaseURL": s.config.PortalURL,
	})
}

// SendManagerDigest sends the summary of proposals awaiting a rating
func (s *Service) SendManagerDigest(to, managerName string, items []models.PendingReviewItem) error {
	if !s.Enabled() || len(items) == 0 {
		return nil // Don't send empty digests
	}

	body, err := s.DigestBody(managerName, items)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Digest: %d proposals awaiting rating", len(items))
	return s.sendEmail(to, subject, body)
}

// buildMessage assembles headers and body of an HTML message
func (s *Service) buildMessage(to, subject, body string) []byte {
	headers := [][2]string{
		{"From", s.config.SMTPFrom},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var message bytes.Buffer
	for _, h := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	message.WriteString("\r\n")
	message.WriteString(body)
	return message.Bytes()
}

// sendEmail sends an email using SMTP
func (s *Service) sendEmail(to, subject, body string) error {
	message := s.buildMessage(to, subject, body)

	addr := net.JoinHostPort(s.config.SMTPHost, s.config.SMTPPort)
	slog.Debug("Attempting to connect to SMTP server", "address", addr)

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		slog.Error("Failed to connect to SMTP server", "address", addr, "error", err)
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func(conn net.Conn) {
		if err := conn.Close(); err != nil {
			slog.Debug("Failed to close SMTP connection", "error", err)
		}
	}(conn)

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		slog.Error("Failed to create SMTP client", "error", err)
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func(client *smtp.Client) {
		if err := client.Close(); err != nil {
			slog.Debug("Failed to close SMTP client", "error", err)
		}
	}(client)

	// For development (e.g., Mailpit), no authentication is needed
	if s.config.SMTPUsername != "" && s.config.SMTPPassword != "" {
		auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
		_ = client.Auth(auth)
	}

	if err := client.Mail(s.config.SMTPFrom); err != nil {
		slog.Error("Failed to set sender", "from", s.config.SMTPFrom, "error", err)
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		slog.Error("Failed to set recipient", "to", to, "error", err)
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		slog.Error("Failed to initiate data transfer", "error", err)
		return fmt.Errorf("failed to initiate data transfer: %w", err)
	}
	if _, err := wc.Write(message); err != nil {
		_ = wc.Close()
		slog.Error("Failed to write message", "error", err)
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := closeData(wc); err != nil {
		return err
	}

	slog.Info("Email sent successfully", "to", to, "subject", subject)
	return client.Quit()
}

func closeData(wc io.WriteCloser) error {
	if err := wc.Close(); err != nil {
		slog.Error("Failed to finish message", "error", err)
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return nil
}
