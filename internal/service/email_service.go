package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

const resetEmailSubject = "Reset your password"

// sesClient is the part of the SES v2 API the mailer uses
type sesClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer sends email via Amazon SES. A disabled mailer only logs the
// recipient and subject of what it would have sent.
type SESMailer struct {
	client    sesClient
	fromEmail string
	fromName  string
	enabled   bool
	logger    *slog.Logger
}

// NewSESMailer creates a mailer sending from fromEmail in region
func NewSESMailer(ctx context.Context, awsRegion, fromEmail, fromName string, logger *slog.Logger) (*SESMailer, error) {
	if fromEmail == "" {
		return nil, errors.New("SES_FROM_EMAIL is required to send email")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("email service enabled", "from", fromEmail, "region", awsRegion)
	return newSESMailer(sesv2.NewFromConfig(cfg), fromEmail, fromName, logger), nil
}

// NewDisabledMailer creates a mailer that drops every message
func NewDisabledMailer(logger *slog.Logger) *SESMailer {
	return &SESMailer{enabled: false, logger: logger}
}

func newSESMailer(client sesClient, fromEmail, fromName string, logger *slog.Logger) *SESMailer {
	return &SESMailer{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
		enabled:   true,
		logger:    logger,
	}
}

// Send delivers one message with text and HTML bodies
func (m *SESMailer) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	if !m.enabled {
		m.logger.Info("skipping email send (service disabled)", "to", to, "subject", subject)
		return nil
	}

	fromAddress := m.fromEmail
	if m.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail)
	}

	body := &types.Body{
		Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
	}
	if htmlBody != "" {
		body.Html = &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}

	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	attrs := []any{"to", to, "subject", subject}
	if result != nil && result.MessageId != nil {
		attrs = append(attrs, "message_id", *result.MessageId)
	}
	m.logger.Info("email sent", attrs...)
	return nil
}

func resetEmailText(name, link string, minutes int) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(`Hi %s,

We received a request to reset your password.
Use the link below to set a new one (expires in %d minutes):
%s

If you didn't request this, you can safely ignore this email.

Thanks,
The Team
`, name, minutes, link)
}

func resetEmailHTML(name, link string, minutes int) string {
	if name == "" {
		name = "there"
	}
	safeName := html.EscapeString(name)
	safeLink := html.EscapeString(link)

	return fmt.Sprintf(`<!doctype html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<title>%s</title>
	<meta name="viewport" content="width=device-width, initial-scale=1" />
</head>
<body style="margin:0;background:#f6f7fb;font-family:system-ui,-apple-system,Segoe UI,Roboto,Helvetica,Arial,sans-serif;color:#111;">
	<table role="presentation" width="100%%" cellpadding="0" cellspacing="0" style="background:#f6f7fb;padding:32px 0;">
		<tr>
			<td align="center">
				<table role="presentation" width="600" cellpadding="0" cellspacing="0" style="max-width:600px;background:#ffffff;border-radius:12px;">
					<tr>
						<td style="padding:28px;">
							<h1 style="margin:0 0 12px;font-size:20px;">Reset your password</h1>
							<p style="margin:0 0 16px;font-size:15px;color:#333;">Hi %s, we received a request to reset your password.</p>
							<p style="margin:0 0 20px;font-size:15px;color:#333;">Click the button below to choose a new password. This link expires in <strong>%d minutes</strong>.</p>
							<p style="margin:0 0 28px;">
								<a href="%s" style="display:inline-block;background:#1f53ff;color:#fff;text-decoration:none;padding:12px 18px;border-radius:8px;font-weight:600;">Reset Password</a>
							</p>
							<p style="margin:0 0 10px;font-size:13px;color:#666;">If the button doesn't work, copy and paste this URL into your browser:</p>
							<p style="word-break:break-all;margin:0 0 24px;font-size:12px;color:#666;">%s</p>
							<p style="margin:0;font-size:13px;color:#666;">If you didn't request this, you can safely ignore this email.</p>
						</td>
					</tr>
					<tr>
						<td style="background:#f0f2f7;padding:14px 28px;font-size:12px;color:#65708b;">&copy; %d Academy</td>
					</tr>
				</table>
			</td>
		</tr>
	</table>
</body>
</html>
`, resetEmailSubject, safeName, minutes, safeLink, safeLink, time.Now().Year())
}
