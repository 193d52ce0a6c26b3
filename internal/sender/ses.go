package sender

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"

	"github.com/bellasuite/notify/internal/config"
	"github.com/bellasuite/notify/internal/pkg/logger"
)

// SESSender delivers email through AWS SES using the SDK v2.
type SESSender struct {
	fromName  string
	fromEmail string
	client    *sesv2.Client
}

// NewSESSender creates an SES sender. The AWS client is initialized
// only when credentials are configured.
func NewSESSender(cfg config.SESConfig) *SESSender {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	s := &SESSender{fromName: cfg.FromName, fromEmail: cfg.FromEmail}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		)
		if err != nil {
			log.Printf("[SES] Warning: Failed to initialize AWS config: %v", err)
		} else {
			s.client = sesv2.NewFromConfig(awsCfg)
		}
	}
	return s
}

func (s *SESSender) Provider() string { return "ses" }

// Send delivers a single email. Provider rejections come back as a
// failed Result with an error code, not an error; only a missing
// client is an error.
func (s *SESSender) Send(ctx context.Context, msg *Message) (*Result, error) {
	if s.client == nil {
		return nil, fmt.Errorf("SES client not initialized - check credentials")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.Recipient}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("notification_id"), Value: aws.String(msg.NotificationID)},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		log.Printf("[SES] Failed to send to %s: %v", logger.RedactEmail(msg.Recipient), err)
		return &Result{Success: false, ErrorCode: sesErrorCode(err), Err: err}, nil
	}

	messageID := ""
	if out.MessageId != nil {
		messageID = *out.MessageId
	}
	log.Printf("[SES] Sent to %s (id: %s)", logger.RedactEmail(msg.Recipient), messageID)

	return &Result{Success: true, ProviderMsgID: messageID, SentAt: time.Now()}, nil
}

// sesErrorCode maps SDK errors to classifiable codes.
func sesErrorCode(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException", "SendingPausedException":
			return "429"
		case "BadRequestException", "MessageRejected":
			return "invalid_recipient"
		}
		return apiErr.ErrorCode()
	}
	return "provider_error"
}
