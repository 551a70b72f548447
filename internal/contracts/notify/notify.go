// internal/contracts/notify/notify.go
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"

	"home-contracts/internal/common/config"
	"home-contracts/internal/common/logger"
	"home-contracts/internal/models"
)

const (
	StatusSent     = "SENT"
	StatusFailed   = "FAILED"
	StatusDisabled = "DISABLED"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Receipt reports the outcome of one submitter notification.
type Receipt struct {
	NotificationID string
	Recipient      string
	Role           models.SubmitterRole
	Status         string
	SentAt         string
}

// Notifier delivers signing links to envelope submitters over SES email
// and, for submitters with a phone on file, SNS SMS. The counter-signer is
// dealer staff and is skipped; they sign from the back office.
type Notifier struct {
	config    config.NotificationConfig
	logger    logger.Logger
	sesClient SESService
	snsClient SNSService
}

func New(cfg config.NotificationConfig, log logger.Logger) (*Notifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewWithClients(cfg, ses.NewFromConfig(awsCfg), sns.NewFromConfig(awsCfg), log), nil
}

func NewWithClients(cfg config.NotificationConfig, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		config:    cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "notifier"}),
		sesClient: sesClient,
		snsClient: snsClient,
	}
}

// SigningRequested notifies each buyer-side submitter that an envelope is
// waiting for their signature. signingURL must produce the submitter's
// personal link. Delivery failures are reported per submitter; one failed
// send does not stop the rest.
func (n *Notifier) SigningRequested(ctx context.Context, order *models.Order, pack models.PackType, envelope *models.Envelope, signingURL func(email string) string) []Receipt {
	receipts := make([]Receipt, 0, len(envelope.Submitters))
	for _, submitter := range envelope.Submitters {
		if submitter.Role == models.RoleCounterSigner {
			continue
		}
		receipts = append(receipts, n.notifySubmitter(ctx, order, pack, submitter, signingURL(submitter.Email)))
	}
	return receipts
}

func (n *Notifier) notifySubmitter(ctx context.Context, order *models.Order, pack models.PackType, submitter models.Submitter, link string) Receipt {
	receipt := Receipt{
		NotificationID: uuid.New().String(),
		Recipient:      submitter.Email,
		Role:           submitter.Role,
		Status:         StatusDisabled,
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}

	subject, body := buildSigningMessage(order, pack, submitter.Name, link)

	emailSent := false
	smsSent := false

	if n.config.Email.Enabled && submitter.Email != "" {
		if err := n.sendEmail(ctx, submitter.Email, subject, body); err != nil {
			n.logger.Error("email send failed", map[string]interface{}{
				"orderId": order.ID,
				"pack":    string(pack),
				"email":   submitter.Email,
				"error":   err.Error(),
			})
			receipt.Status = StatusFailed
			return receipt
		}
		emailSent = true
	}

	phone := phoneFor(order, submitter)
	if n.config.SMS.Enabled && phone != "" {
		if err := n.sendSMS(ctx, phone, body); err != nil {
			n.logger.Error("SMS send failed", map[string]interface{}{
				"orderId": order.ID,
				"pack":    string(pack),
				"phone":   phone,
				"error":   err.Error(),
			})
			receipt.Status = StatusFailed
			return receipt
		}
		smsSent = true
	}

	if emailSent || smsSent {
		receipt.Status = StatusSent
	}
	return receipt
}

func phoneFor(order *models.Order, submitter models.Submitter) string {
	switch submitter.Role {
	case models.RoleBuyer:
		return order.Buyer.Phone
	case models.RoleCoBuyer:
		if order.CoBuyer != nil {
			return order.CoBuyer.Phone
		}
	}
	return ""
}

func buildSigningMessage(order *models.Order, pack models.PackType, recipientName, link string) (string, string) {
	packLabel := packLabels[pack]
	if packLabel == "" {
		packLabel = string(pack)
	}

	subject := fmt.Sprintf("Your %s documents for order %s are ready to sign", packLabel, order.ID)
	body := strings.Join([]string{
		fmt.Sprintf("Hello %s,", recipientName),
		"",
		fmt.Sprintf("The %s documents for your %s (order %s) are ready for your signature.", packLabel, order.ModelDescription, order.ID),
		"",
		"Sign here: " + link,
	}, "\n")
	return subject, body
}

var packLabels = map[models.PackType]string{
	models.PackAgreement: "purchase agreement",
	models.PackDelivery:  "delivery and site readiness",
	models.PackFinal:     "final acknowledgment",
}

func (n *Notifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.Email.FromEmail),
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, to, message string) error {
	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}
