package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"taxtrack/internal/repositories"
)

// EmailNotifier mails the user an event concerns. Events without a user are
// ignored here; the log sink still records them.
type EmailNotifier struct {
	dialer *gomail.Dialer
	from   string
	users  repositories.UserRepository
}

func NewEmailNotifier(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string, users repositories.UserRepository) *EmailNotifier {
	return &EmailNotifier{
		dialer: gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword),
		from:   fromEmail,
		users:  users,
	}
}

var emailSubjects = map[EventType]string{
	EventTaskCreated:      "New obligation task assigned",
	EventTaskLate:         "Obligation task overdue",
	EventApprovalPending:  "Document waiting for your approval",
	EventDocumentRejected: "Document rejected",
}

func (n *EmailNotifier) Notify(ctx context.Context, e Event) error {
	subject, ok := emailSubjects[e.Type]
	if !ok || e.UserID == 0 {
		return nil
	}
	user, err := n.users.FindByID(ctx, e.UserID)
	if err != nil {
		return err
	}
	if user == nil || user.Email == "" {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", subject)

	body := fmt.Sprintf(`
		<p>Hello %s,</p>
		<p>%s</p>
		<p>Open the panel to see the details.</p>
	`, user.Name, e.Message)
	m.SetBody("text/html", body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send %s email: %w", e.Type, err)
	}
	return nil
}
