package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const categorySealed = "document_sealed"

// EmailSender is the slice of the SES v2 API this service uses.
type EmailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SentNotification is the delivery log row.
type SentNotification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Recipient string
	Category  string
	Subject   string
	Status    string // 'sent', 'failed', 'rate_limited'
	CreatedAt time.Time
}

// Service sends operational emails. Deliveries are rate limited per
// (recipient, category) so a burst of sealing activity cannot flood an
// inbox.
type Service struct {
	db      *gorm.DB
	sender  EmailSender
	from    string
	limiter *rateCache
	logger  *zap.Logger
}

func NewService(db *gorm.DB, sender EmailSender, from string, logger *zap.Logger) (*Service, error) {
	if db != nil {
		if err := db.AutoMigrate(&SentNotification{}); err != nil {
			return nil, fmt.Errorf("notifications: migrate: %w", err)
		}
	}
	return &Service{
		db:      db,
		sender:  sender,
		from:    from,
		limiter: newRateCache(5, time.Hour, 10000),
		logger:  logger,
	}, nil
}

// DocumentSealed mails every signer that the document is fully signed and
// where to verify it.
func (s *Service) DocumentSealed(ctx context.Context, title, verifyURL string, recipients []string) error {
	subject := fmt.Sprintf("Document %q is fully signed", title)
	body := fmt.Sprintf(
		"All requested signatures on %q have been completed and the document has been sealed.\n\nVerify its authenticity at any time: %s\n",
		title, verifyURL)

	for _, recipient := range recipients {
		if !s.limiter.Allow(recipient, categorySealed) {
			s.logger.Warn("notification rate limited",
				zap.String("recipient", recipient),
				zap.String("category", categorySealed))
			s.record(recipient, subject, "rate_limited")
			continue
		}
		if err := s.send(ctx, recipient, subject, body); err != nil {
			s.logger.Warn("notification delivery failed",
				zap.String("recipient", recipient),
				zap.Error(err))
			s.record(recipient, subject, "failed")
			continue
		}
		s.record(recipient, subject, "sent")
	}
	return nil
}

func (s *Service) send(ctx context.Context, recipient, subject, body string) error {
	if s.sender == nil {
		return fmt.Errorf("notifications: no email sender configured")
	}
	_, err := s.sender.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{recipient},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(body)},
				},
			},
		},
	})
	return err
}

func (s *Service) record(recipient, subject, status string) {
	if s.db == nil {
		return
	}
	row := &SentNotification{
		ID:        uuid.New(),
		Recipient: recipient,
		Category:  categorySealed,
		Subject:   subject,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Create(row).Error; err != nil {
		s.logger.Warn("notification log write failed", zap.Error(err))
	}
}
