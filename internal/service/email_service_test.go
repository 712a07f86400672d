package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESMailerSend(t *testing.T) {
	client := &fakeSES{}
	mailer := newSESMailer(client, "noreply@example.com", "Academy", discardLogger())

	err := mailer.Send(context.Background(), "ada@example.com", "Subject", "text body", "<p>html body</p>")
	require.NoError(t, err)

	require.NotNil(t, client.input)
	assert.Equal(t, "Academy <noreply@example.com>", aws.ToString(client.input.FromEmailAddress))
	assert.Equal(t, []string{"ada@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Subject", aws.ToString(client.input.Content.Simple.Subject.Data))
	assert.Equal(t, "text body", aws.ToString(client.input.Content.Simple.Body.Text.Data))
	assert.Equal(t, "<p>html body</p>", aws.ToString(client.input.Content.Simple.Body.Html.Data))
}

func TestSESMailerTextOnly(t *testing.T) {
	client := &fakeSES{}
	mailer := newSESMailer(client, "noreply@example.com", "", discardLogger())

	require.NoError(t, mailer.Send(context.Background(), "ada@example.com", "Subject", "text", ""))
	assert.Equal(t, "noreply@example.com", aws.ToString(client.input.FromEmailAddress))
	assert.Nil(t, client.input.Content.Simple.Body.Html)
}

func TestSESMailerError(t *testing.T) {
	client := &fakeSES{err: errors.New("throttled")}
	mailer := newSESMailer(client, "noreply@example.com", "Academy", discardLogger())

	err := mailer.Send(context.Background(), "ada@example.com", "Subject", "text", "html")
	assert.ErrorContains(t, err, "throttled")
}

func TestSESMailerRequiresFromAddress(t *testing.T) {
	_, err := NewSESMailer(context.Background(), "eu-west-1", "", "Academy", discardLogger())
	assert.ErrorContains(t, err, "SES_FROM_EMAIL")
}

func TestDisabledMailerLogsNoBody(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mailer := NewDisabledMailer(logger)

	const token = "4f9c2a7e81d3b6055e0f1c9a2b7d8e36"
	text := resetEmailText("Ada", "http://localhost:3333/resetPassword?token="+token, 15)
	html := resetEmailHTML("Ada", "http://localhost:3333/resetPassword?token="+token, 15)

	require.NoError(t, mailer.Send(context.Background(), "ada@example.com", resetEmailSubject, text, html))

	logged := buf.String()
	assert.Contains(t, logged, "ada@example.com")
	assert.Contains(t, logged, resetEmailSubject)
	assert.NotContains(t, logged, token)
}
