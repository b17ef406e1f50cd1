package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/npm-sync/internal/httpclient"
	"github.com/stacklok/npm-sync/internal/httpclient/mocks"
	"github.com/stacklok/npm-sync/internal/jobs"
	"github.com/stacklok/npm-sync/internal/notify"
	"github.com/stacklok/npm-sync/internal/queue"
	"github.com/stacklok/npm-sync/internal/releases"
)

func isPermanent(err error) bool {
	var permanent *backoff.PermanentError
	return errors.As(err, &permanent)
}

func updateJob(webhook string) jobs.ChatJob {
	return jobs.ChatJob{
		UserID:     "u1",
		WebhookURL: webhook,
		Template:   notify.TemplatePackageUpdate,
		Props: map[string]string{
			"packageName":     "left-pad",
			"previousVersion": "1.0.0",
			"newVersion":      "1.1.0",
			"diffKind":        "minor",
		},
		Key: jobs.ChatKey("u1", "left-pad", "1.1.0"),
	}
}

func TestChatDeliverer_Deliver(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		bodies []map[string]string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body map[string]string
		assert.NoError(t, json.Unmarshal(raw, &body))
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewChatDeliverer(httpclient.NewDefaultClient(5*time.Second), "")
	require.NoError(t, d.Deliver(context.Background(), updateJob(server.URL+"/hook")))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.Equal(t, "*left-pad 1.1.0 released*\nleft-pad was updated from 1.0.0 to 1.1.0 (minor).", bodies[0]["text"])
}

func TestChatDeliverer_UpstreamErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		retryAfter    string
		wantPermanent bool
		wantRetry     time.Duration
	}{
		{name: "gone_webhook", status: http.StatusNotFound, wantPermanent: true},
		{name: "bad_request", status: http.StatusBadRequest, wantPermanent: true},
		{name: "rate_limited", status: http.StatusTooManyRequests, retryAfter: "30", wantRetry: 30 * time.Second},
		{name: "server_error", status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			d := NewChatDeliverer(httpclient.NewDefaultClient(5*time.Second), "")
			err := d.Deliver(context.Background(), updateJob(server.URL))
			require.Error(t, err)
			assert.Equal(t, tt.wantPermanent, isPermanent(err))
			assert.Equal(t, tt.status, httpclient.StatusCode(err))

			var hinter queue.RetryHinter
			require.ErrorAs(t, err, &hinter)
			assert.Equal(t, tt.wantRetry, hinter.RetryAfter())
		})
	}
}

func TestChatDeliverer_InvalidJobsArePermanent(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	d := NewChatDeliverer(client, "")

	err := d.Deliver(context.Background(), updateJob(""))
	assert.True(t, isPermanent(err))

	job := updateJob("https://hooks.example.com/x")
	job.Template = "unknown"
	err = d.Deliver(context.Background(), job)
	assert.True(t, isPermanent(err))
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestEmailDeliverer_Deliver(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	d := NewEmailDeliverer(client, EmailConfig{
		Endpoint: "https://mail.example.com/send",
		From:     "updates@example.com",
		APIKey:   "k3y",
		AppURL:   "https://app.example.com",
	})

	job := jobs.EmailJob{
		To:       "dev@example.com",
		UserID:   "u1",
		Template: releases.TemplateReleaseLaunched,
		Props: map[string]string{
			"releaseTitle":  "Vite 6",
			"packageName":   "vite",
			"version":       "6.0.0",
			"targetVersion": "6",
		},
		Key: jobs.ReleaseKey("u1", "r1"),
	}

	client.EXPECT().
		PostJSON(gomock.Any(), "https://mail.example.com/send", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, payload any, header http.Header) ([]byte, error) {
			req, ok := payload.(emailRequest)
			require.True(t, ok)
			assert.Equal(t, "updates@example.com", req.From)
			assert.Equal(t, "dev@example.com", req.To)
			assert.Equal(t, "Vite 6 is out", req.Subject)
			assert.Contains(t, req.Text, "https://app.example.com/packages/vite")
			assert.Equal(t, job.Key, req.IdempotencyKey)
			assert.Equal(t, "Bearer k3y", header.Get("Authorization"))
			return []byte(`{"id":"m1"}`), nil
		})

	require.NoError(t, d.Deliver(context.Background(), job))
}

func TestEmailDeliverer_Handler(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	d := NewEmailDeliverer(client, EmailConfig{Endpoint: "https://mail.example.com/send", From: "a@example.com"})

	job := jobs.EmailJob{
		To:       "dev@example.com",
		UserID:   "u1",
		Template: notify.TemplateSecurityUpdate,
		Props: map[string]string{
			"packageName":          "lodash",
			"previousVersion":      "4.17.20",
			"newVersion":           "4.17.21",
			"severity":             "critical",
			"vulnerabilitiesFixed": "1",
		},
		Key: jobs.EmailKey("u1", "lodash", "4.17.21"),
	}
	raw, err := jobs.Encode(job)
	require.NoError(t, err)

	client.EXPECT().
		PostJSON(gomock.Any(), "https://mail.example.com/send", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ any, header http.Header) ([]byte, error) {
			assert.Empty(t, header.Get("Authorization"))
			return nil, &httpclient.HTTPError{StatusCode: http.StatusServiceUnavailable, Retry: time.Minute}
		})

	err = d.Handler()(context.Background(), &queue.Job{Queue: "email-delivery", Payload: raw})
	require.Error(t, err)
	assert.False(t, isPermanent(err))

	err = d.Handler()(context.Background(), &queue.Job{Queue: "email-delivery", Payload: []byte("not json")})
	assert.True(t, isPermanent(err))
}

func TestEmailDeliverer_MissingRecipient(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	d := NewEmailDeliverer(mocks.NewMockClient(ctrl), EmailConfig{Endpoint: "https://mail.example.com/send"})
	err := d.Deliver(context.Background(), jobs.EmailJob{Template: notify.TemplatePackageUpdate, Key: "email:u1:a:1"})
	assert.True(t, isPermanent(err))
}
