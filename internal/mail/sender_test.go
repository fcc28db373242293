// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/mail"
	"github.com/holomush/warden/pkg/errutil"
)

type mockSES struct {
	mock.Mock
}

func (m *mockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ses.SendEmailOutput)
	return out, args.Error(1)
}

func (m *mockSES) GetSendQuota(ctx context.Context, params *ses.GetSendQuotaInput, _ ...func(*ses.Options)) (*ses.GetSendQuotaOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ses.GetSendQuotaOutput)
	return out, args.Error(1)
}

func testMessage() *mail.Message {
	return &mail.Message{
		Kind:    mail.KindVerification,
		To:      "alice@example.com",
		Subject: "Verify Your Email Address - Warden",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	}
}

func TestSESSender_Send(t *testing.T) {
	client := &mockSES{}
	client.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return aws.ToString(in.Source) == `"Warden" <no-reply@example.com>` &&
			len(in.Destination.ToAddresses) == 1 &&
			in.Destination.ToAddresses[0] == "alice@example.com" &&
			aws.ToString(in.Message.Subject.Data) == "Verify Your Email Address - Warden" &&
			aws.ToString(in.Message.Body.Html.Data) == "<p>hi</p>" &&
			aws.ToString(in.Message.Body.Text.Data) == "hi"
	})).Return(&ses.SendEmailOutput{MessageId: aws.String("m-1")}, nil).Once()

	sender, err := mail.NewSESSender(client, "no-reply@example.com", "Warden")
	require.NoError(t, err)
	require.NoError(t, sender.Send(context.Background(), testMessage()))
	client.AssertExpectations(t)
}

func TestSESSender_SendFailure(t *testing.T) {
	client := &mockSES{}
	client.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	sender, err := mail.NewSESSender(client, "no-reply@example.com", "")
	require.NoError(t, err)

	err = sender.Send(context.Background(), testMessage())
	errutil.AssertErrorCode(t, err, mail.CodeSendFailed)
	errutil.AssertErrorContext(t, err, "transport", mail.DriverSES)
}

func TestSESSender_Verify(t *testing.T) {
	client := &mockSES{}
	client.On("GetSendQuota", mock.Anything, mock.Anything).Return(&ses.GetSendQuotaOutput{}, nil).Once()

	sender, err := mail.NewSESSender(client, "no-reply@example.com", "Warden")
	require.NoError(t, err)
	assert.NoError(t, sender.Verify(context.Background()))
	client.AssertExpectations(t)
}

func TestNewSESSender_RequiresFrom(t *testing.T) {
	_, err := mail.NewSESSender(&mockSES{}, "", "Warden")
	errutil.AssertErrorCode(t, err, mail.CodeNotConfigured)
}

func TestLogSender_LogsMessage(t *testing.T) {
	var buf bytes.Buffer
	sender := mail.NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, sender.Send(context.Background(), testMessage()))
	assert.Contains(t, buf.String(), `"to":"alice@example.com"`)
	assert.Contains(t, buf.String(), `"kind":"verification"`)
	assert.NoError(t, sender.Verify(context.Background()))
}

func TestLogSender_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := mail.NewLogSender(nil).Send(ctx, testMessage())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSender(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	t.Run("log is the default driver", func(t *testing.T) {
		sender, err := mail.NewSender(ctx, mail.Config{}, logger)
		require.NoError(t, err)
		assert.IsType(t, &mail.LogSender{}, sender)
	})

	t.Run("smtp without credentials is not configured", func(t *testing.T) {
		sender, err := mail.NewSender(ctx, mail.Config{
			Driver: mail.DriverSMTP,
			SMTP:   mail.SMTPConfig{Host: "smtp.example.com", Port: 587},
		}, logger)
		require.NoError(t, err)

		errutil.AssertErrorCode(t, sender.Send(ctx, testMessage()), mail.CodeNotConfigured)
		errutil.AssertErrorCode(t, sender.Verify(ctx), mail.CodeNotConfigured)
	})

	t.Run("smtp with credentials", func(t *testing.T) {
		sender, err := mail.NewSender(ctx, mail.Config{
			Driver: mail.DriverSMTP,
			From:   "no-reply@example.com",
			SMTP: mail.SMTPConfig{
				Host:     "smtp.example.com",
				Port:     587,
				Username: "user",
				Password: "pass",
			},
		}, logger)
		require.NoError(t, err)
		assert.IsType(t, &mail.SMTPSender{}, sender)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := mail.NewSender(ctx, mail.Config{Driver: "pigeon"}, logger)
		errutil.AssertErrorCode(t, err, mail.CodeDriverUnknown)
	})
}

func TestNewSMTPSender_RequiresHost(t *testing.T) {
	_, err := mail.NewSMTPSender(mail.SMTPConfig{Username: "u", Password: "p"}, "from@example.com", "")
	errutil.AssertErrorCode(t, err, mail.CodeNotConfigured)
}
