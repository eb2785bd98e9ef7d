package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jobcatcher/jobcatcher/internal/resume"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const defaultSubjectPrefix = "Application"

// DeliveryError signals that the outbound email for one posting could not
// be sent. The pipeline logs it and continues with the remaining postings.
type DeliveryError struct {
	PostingID string
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivering resume for posting %s to %s: %v", e.PostingID, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Mailer sends tailored resumes to recruiter addresses over SMTP with
// STARTTLS.
type Mailer struct {
	client        *mail.Client
	from          string
	subjectPrefix string
	logger        *zap.Logger

	// AttachmentName overrides the default name of the attached resume file.
	AttachmentName string
}

func NewMailer(host string, port int, from, password, subjectPrefix string, logger *zap.Logger) (*Mailer, error) {
	if strings.TrimSpace(host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("sender address is required")
	}

	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(from),
		mail.WithPassword(password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	if strings.TrimSpace(subjectPrefix) == "" {
		subjectPrefix = defaultSubjectPrefix
	}

	return &Mailer{
		client:        client,
		from:          from,
		subjectPrefix: subjectPrefix,
		logger:        logger,
	}, nil
}

// Send delivers exactly one email with the tailored resume as body and as a
// plain-text attachment.
func (m *Mailer) Send(ctx context.Context, to string, doc *resume.Document) error {
	msg, err := m.buildMessage(to, doc)
	if err != nil {
		return &DeliveryError{PostingID: doc.PostingID, Recipient: to, Err: err}
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return &DeliveryError{PostingID: doc.PostingID, Recipient: to, Err: err}
	}

	m.logger.Info("email sent",
		zap.String("posting_id", doc.PostingID),
		zap.String("recipient", to),
		zap.String("posting_title", doc.PostingTitle),
	)

	return nil
}

func (m *Mailer) buildMessage(to string, doc *resume.Document) (*mail.Msg, error) {
	if doc == nil || strings.TrimSpace(doc.Body) == "" {
		return nil, errors.New("tailored resume body is empty")
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}

	msg.Subject(fmt.Sprintf("%s: %s", m.subjectPrefix, doc.PostingTitle))
	msg.SetBodyString(mail.TypeTextPlain, doc.Body)

	name := strings.TrimSpace(m.AttachmentName)
	if name == "" {
		name = "resume.txt"
	}
	if err := msg.AttachReader(name, strings.NewReader(doc.Body)); err != nil {
		return nil, fmt.Errorf("attach resume: %w", err)
	}

	return msg, nil
}
