package mailer

import (
	"fmt"
	"html"
	"os"
	"regexp"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail applies the same loose shape check the contact form uses.
func IsValidEmail(v string) bool {
	return emailPattern.MatchString(v)
}

// Mailer sends contact-form notifications over SMTP. When no credentials are
// configured it stays disabled and every send is a logged no-op, so a missing
// mail setup never breaks the contact endpoint.
type Mailer struct {
	dialer   *gomail.Dialer
	from     string
	notifyTo string
	siteName string
	siteURL  string
	confirm  bool
	logger   *zap.SugaredLogger
}

func NewFromEnv(logger *zap.SugaredLogger) *Mailer {
	user := os.Getenv("MAIL_USER")
	pass := os.Getenv("MAIL_PASS")
	host := getEnvOrDefault("MAIL_HOST", "smtp.gmail.com")
	port, err := strconv.Atoi(getEnvOrDefault("MAIL_PORT", "587"))
	if err != nil {
		port = 587
	}

	m := &Mailer{
		from:     user,
		notifyTo: getEnvOrDefault("CONTACT_NOTIFY_TO", user),
		siteName: getEnvOrDefault("SITE_NAME", "MyCopingMechanism"),
		siteURL:  getEnvOrDefault("SITE_URL", "http://localhost:5173"),
		confirm:  getEnvOrDefault("MAIL_SEND_CONFIRM", "true") != "false",
		logger:   logger,
	}
	if user != "" && pass != "" {
		m.dialer = gomail.NewDialer(host, port, user, pass)
	} else {
		logger.Warnw("mailer disabled: MAIL_USER/MAIL_PASS not set")
	}
	return m
}

// SendContactEmail notifies the site owner about a contact submission and, when
// enabled, sends a best-effort confirmation back to the visitor. Only the owner
// notification failure is returned; a failed confirmation is just logged.
func (m *Mailer) SendContactEmail(name, fromEmail, message string) error {
	if m.dialer == nil {
		m.logger.Infow("mailer disabled; skipping contact notification", "from", fromEmail)
		return nil
	}
	if m.notifyTo == "" {
		return fmt.Errorf("no destination email for contact notification")
	}

	owner := gomail.NewMessage()
	owner.SetHeader("From", m.from)
	owner.SetHeader("To", m.notifyTo)
	owner.SetHeader("Subject", fmt.Sprintf("New %s contact from %s", m.siteName, name))
	if IsValidEmail(fromEmail) {
		owner.SetHeader("Reply-To", fromEmail)
	}
	owner.SetBody("text/plain", fmt.Sprintf("From: %s <%s>\n\nMessage:\n%s", name, fromEmail, message))
	owner.AddAlternative("text/html", m.ownerHTML(name, fromEmail, message))

	if err := m.dialer.DialAndSend(owner); err != nil {
		return fmt.Errorf("failed to send owner notification: %w", err)
	}
	m.logger.Infow("contact notification sent", "to", m.notifyTo)

	if m.confirm && IsValidEmail(fromEmail) {
		confirm := gomail.NewMessage()
		confirm.SetHeader("From", m.from)
		confirm.SetHeader("To", fromEmail)
		confirm.SetHeader("Subject", fmt.Sprintf("Thanks for contacting %s", m.siteName))
		confirm.SetBody("text/plain",
			fmt.Sprintf("Hi %s,\n\nThanks for reaching out! We received your message and will get back to you soon.\n\n— %s", name, m.siteName))
		confirm.AddAlternative("text/html", m.confirmHTML(name))
		if err := m.dialer.DialAndSend(confirm); err != nil {
			m.logger.Warnw("confirmation email failed", "error", err, "to", fromEmail)
		}
	}

	return nil
}

func (m *Mailer) ownerHTML(name, fromEmail, message string) string {
	return fmt.Sprintf(
		`<h2>New contact form message</h2><p><strong>%s</strong> &lt;%s&gt;</p><pre>%s</pre><p><a href="%s">Open %s</a></p>`,
		html.EscapeString(name), html.EscapeString(fromEmail), html.EscapeString(message),
		html.EscapeString(m.siteURL), html.EscapeString(m.siteName))
}

func (m *Mailer) confirmHTML(name string) string {
	return fmt.Sprintf(
		`<p>Hi <strong>%s</strong>,</p><p>Thanks for reaching out! We received your message and will get back to you soon.</p><p>— The %s Team</p>`,
		html.EscapeString(name), html.EscapeString(m.siteName))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
