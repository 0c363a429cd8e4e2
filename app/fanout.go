// Package app contains the FanoutService for delivering webhook events.
package app

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillcms/quill/adapters/metrics"
	"github.com/quillcms/quill/domain/webhook"
)

// FanoutService delivers operation events to registered webhooks.
// Deliveries are fire-and-forget: failures are logged, never retried, and
// never affect the already-returned HTTP response. No ordering or
// confirmation guarantee is made between webhooks.
type FanoutService struct {
	logger  zerolog.Logger
	client  *http.Client
	metrics *metrics.Collector

	shutdownCtx context.Context
	shutdownFn  context.CancelFunc
}

// NewFanoutService creates a fan-out service. metrics may be nil.
func NewFanoutService(logger zerolog.Logger, collector *metrics.Collector) *FanoutService {
	shutdownCtx, shutdownFn := context.WithCancel(context.Background())

	return &FanoutService{
		logger: logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		metrics:     collector,
		shutdownCtx: shutdownCtx,
		shutdownFn:  shutdownFn,
	}
}

// Dispatch fans an event out to every webhook whose operation set contains
// the just-completed operation. It returns immediately; deliveries run in
// goroutines bounded by the shutdown context.
func (s *FanoutService) Dispatch(event webhook.Event, webhooks []webhook.Webhook) {
	matching := webhook.FilterForOperation(webhooks, event.Operation)
	if len(matching) == 0 {
		return
	}

	payload := webhook.BuildPayload(event)
	payloadBytes, err := webhook.SerializePayload(payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("serialize webhook payload")
		return
	}

	for _, wh := range matching {
		timeout := 30 * time.Second
		if wh.TimeoutMS > 0 {
			timeout = time.Duration(wh.TimeoutMS) * time.Millisecond
		}

		ctx, cancel := context.WithTimeout(s.shutdownCtx, timeout)
		go func(ctx context.Context, cancel context.CancelFunc, wh webhook.Webhook) {
			defer cancel()
			s.deliver(ctx, wh, event, payloadBytes)
		}(ctx, cancel, wh)
	}

	s.logger.Debug().
		Str("operation", event.Operation).
		Str("collection", event.Collection).
		Int("webhook_count", len(matching)).
		Msg("webhook event dispatched")
}

// deliver sends one webhook request. Each delivery is independent.
func (s *FanoutService) deliver(ctx context.Context, wh webhook.Webhook, event webhook.Event, payload []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(payload))
	if err != nil {
		s.logFailure(wh, event, err, 0)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Quill-Webhook/1.0")
	req.Header.Set("X-Quill-Collection", event.Collection)
	req.Header.Set("X-Quill-Operation", event.Operation)
	for k, v := range wh.Headers {
		req.Header.Set(k, v)
	}

	if wh.Secret != "" {
		req.Header.Set("X-Quill-Signature", webhook.SignPayload(payload, wh.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logFailure(wh, event, err, 0)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logFailure(wh, event, nil, resp.StatusCode)
		return
	}

	if s.metrics != nil {
		s.metrics.WebhookDeliveries.WithLabelValues("success").Inc()
	}
	s.logger.Debug().
		Str("webhook", wh.Name).
		Str("url", wh.URL).
		Int("status", resp.StatusCode).
		Msg("webhook delivered")
}

func (s *FanoutService) logFailure(wh webhook.Webhook, event webhook.Event, err error, status int) {
	if s.metrics != nil {
		s.metrics.WebhookDeliveries.WithLabelValues("failure").Inc()
	}
	s.logger.Warn().
		Err(err).
		Str("webhook", wh.Name).
		Str("url", wh.URL).
		Str("operation", event.Operation).
		Str("collection", event.Collection).
		Int("status", status).
		Msg("webhook delivery failed")
}

// Shutdown cancels in-flight deliveries.
func (s *FanoutService) Shutdown() {
	s.shutdownFn()
}
