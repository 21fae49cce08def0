package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/fleurease/fleurease-api/pkg/logger"
)

// SESAPI is the slice of the SES client the sender uses
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender sends mail through Amazon SES
type SESSender struct {
	client      SESAPI
	fromAddress string
	logger      *slog.Logger
}

// NewSESSender loads the default AWS credential chain for region.
func NewSESSender(ctx context.Context, region, fromAddress string, log *slog.Logger) (*SESSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESSenderWithClient(ses.NewFromConfig(cfg), fromAddress, log), nil
}

func NewSESSenderWithClient(client SESAPI, fromAddress string, log *slog.Logger) *SESSender {
	return &SESSender{client: client, fromAddress: fromAddress, logger: log}
}

func (s *SESSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	body := &types.Body{}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")}
	}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")}
	}

	result, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.fromAddress),
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
	})
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("email", logger.SanitizedEmail(msg.To)),
			slog.String("subject", msg.Subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("email", logger.SanitizedEmail(msg.To)),
		slog.String("subject", msg.Subject),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}
