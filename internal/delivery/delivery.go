package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/npm-sync/internal/httpclient"
	"github.com/stacklok/npm-sync/internal/jobs"
	"github.com/stacklok/npm-sync/internal/queue"
)

// ChatDeliverer posts notifications to user chat webhooks
type ChatDeliverer struct {
	client httpclient.Client
	appURL string
	logger *slog.Logger
}

// NewChatDeliverer creates a chat deliverer
func NewChatDeliverer(client httpclient.Client, appURL string) *ChatDeliverer {
	return &ChatDeliverer{
		client: client,
		appURL: appURL,
		logger: slog.With("component", "chat_delivery"),
	}
}

// Handler returns the queue handler of chat deliveries
func (d *ChatDeliverer) Handler() queue.Handler {
	return jobs.Handle(d.Deliver)
}

// Deliver renders the job and posts it to the webhook as {"text": ...}
func (d *ChatDeliverer) Deliver(ctx context.Context, job jobs.ChatJob) error {
	if job.WebhookURL == "" {
		return backoff.Permanent(fmt.Errorf("chat job %s has no webhook url", job.Key))
	}
	msg, err := Render(job.Template, job.Props, d.appURL)
	if err != nil {
		return backoff.Permanent(err)
	}

	payload := map[string]string{"text": "*" + msg.Subject + "*\n" + msg.Text}
	if _, err := d.client.PostJSON(ctx, job.WebhookURL, payload, nil); err != nil {
		return classify(fmt.Errorf("failed to post chat message: %w", err))
	}
	d.logger.Debug("Chat message delivered", "user_id", job.UserID, "key", job.Key)
	return nil
}

// EmailConfig configures the email API
type EmailConfig struct {
	Endpoint string
	From     string
	APIKey   string
	AppURL   string
}

// EmailDeliverer sends notifications through an HTTP email API
type EmailDeliverer struct {
	client httpclient.Client
	cfg    EmailConfig
	logger *slog.Logger
}

// NewEmailDeliverer creates an email deliverer
func NewEmailDeliverer(client httpclient.Client, cfg EmailConfig) *EmailDeliverer {
	return &EmailDeliverer{
		client: client,
		cfg:    cfg,
		logger: slog.With("component", "email_delivery"),
	}
}

// Handler returns the queue handler of email deliveries
func (d *EmailDeliverer) Handler() queue.Handler {
	return jobs.Handle(d.Deliver)
}

type emailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	// IdempotencyKey lets the provider drop a resend of a delivered message
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// Deliver renders the job and sends it
func (d *EmailDeliverer) Deliver(ctx context.Context, job jobs.EmailJob) error {
	if job.To == "" {
		return backoff.Permanent(fmt.Errorf("email job %s has no recipient", job.Key))
	}
	msg, err := Render(job.Template, job.Props, d.cfg.AppURL)
	if err != nil {
		return backoff.Permanent(err)
	}

	header := http.Header{}
	if d.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	}
	req := emailRequest{
		From:           d.cfg.From,
		To:             job.To,
		Subject:        msg.Subject,
		Text:           msg.Text,
		IdempotencyKey: job.Key,
	}
	if _, err := d.client.PostJSON(ctx, d.cfg.Endpoint, req, header); err != nil {
		return classify(fmt.Errorf("failed to send email: %w", err))
	}
	d.logger.Debug("Email delivered", "user_id", job.UserID, "template", job.Template, "key", job.Key)
	return nil
}

// classify marks client errors other than 408 and 429 as permanent. Other
// errors keep their Retry-After hint for the consumer.
func classify(err error) error {
	if httpclient.IsPermanent(err) {
		return backoff.Permanent(err)
	}
	return err
}
