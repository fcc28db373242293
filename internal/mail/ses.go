// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"
	netmail "net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/samber/oops"
)

const charsetUTF8 = "UTF-8"

// SESConfig configures the ses driver. Credentials come from the default AWS chain.
type SESConfig struct {
	Region string `koanf:"region"`
}

// SESAPI is the subset of the SES client used by SESSender.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	GetSendQuota(ctx context.Context, params *ses.GetSendQuotaInput, optFns ...func(*ses.Options)) (*ses.GetSendQuotaOutput, error)
}

// NewSESClient loads the default AWS configuration for region.
func NewSESClient(ctx context.Context, region string) (*ses.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, oops.Code(CodeNotConfigured).
			With("transport", DriverSES).
			With("region", region).
			Wrap(err)
	}
	return ses.NewFromConfig(cfg), nil
}

// SESSender delivers messages through Amazon SES.
type SESSender struct {
	client SESAPI
	source string
}

// NewSESSender creates an SESSender sending as fromName <from>.
func NewSESSender(client SESAPI, from, fromName string) (*SESSender, error) {
	if from == "" {
		return nil, oops.Code(CodeNotConfigured).
			With("transport", DriverSES).
			Errorf("a from address is required for ses")
	}
	source := from
	if fromName != "" {
		source = (&netmail.Address{Name: fromName, Address: from}).String()
	}
	return &SESSender{client: client, source: source}, nil
}

// Send delivers msg.
func (s *SESSender) Send(ctx context.Context, msg *Message) error {
	body := &types.Body{
		Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String(charsetUTF8)},
	}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(charsetUTF8)}
	}

	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.source),
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charsetUTF8)},
			Body:    body,
		},
	})
	if err != nil {
		return oops.Code(CodeSendFailed).
			With("kind", msg.Kind).
			With("transport", DriverSES).
			Wrap(err)
	}
	return nil
}

// Verify checks that the credentials can call SES.
func (s *SESSender) Verify(ctx context.Context) error {
	if _, err := s.client.GetSendQuota(ctx, &ses.GetSendQuotaInput{}); err != nil {
		return oops.Code(CodeSendFailed).With("transport", DriverSES).Wrap(err)
	}
	return nil
}
