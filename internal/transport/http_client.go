// Package transport performs the signed outbound HTTP POST for one delivery
// attempt. It carries no retry policy; interpreting the result belongs to
// the dispatcher.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/liyaqa/webhook-delivery/internal/models"
	"github.com/liyaqa/webhook-delivery/internal/signature"
)

// Headers identifying the event and delivery on outbound requests.
const (
	EventTypeHeader  = "X-Liyaqa-Event"
	EventIDHeader    = "X-Liyaqa-Event-Id"
	DeliveryIDHeader = "X-Liyaqa-Delivery-Id"
)

// Result captures one attempt without judging retry policy. StatusCode is
// nil on transport errors (timeout, DNS, connection refused).
type Result struct {
	Success      bool
	StatusCode   *int
	ResponseBody string
	Error        string
}

type Client struct {
	httpClient   *http.Client
	signer       signature.Signer
	maxBodyBytes int
	logger       *zap.Logger
}

func NewClient(timeout time.Duration, maxBodyBytes int, signer signature.Signer, logger *zap.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		signer:       signer,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// Deliver POSTs the delivery payload to the webhook URL exactly once,
// signing the canonical payload bytes with the webhook's current secret.
// The captured response body is truncated to the configured cap.
func (c *Client) Deliver(ctx context.Context, webhook *models.Webhook, delivery *models.Delivery) *Result {
	result := &Result{}

	payloadBytes, err := json.Marshal(delivery.Payload)
	if err != nil {
		result.Error = fmt.Sprintf("failed to marshal payload: %v", err)
		return result
	}

	sig, err := c.signer.Sign(webhook.Secret, payloadBytes)
	if err != nil {
		result.Error = fmt.Sprintf("failed to sign payload: %v", err)
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(payloadBytes))
	if err != nil {
		result.Error = fmt.Sprintf("failed to build request: %v", err)
		return result
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.Header, sig)
	req.Header.Set(EventTypeHeader, delivery.EventType)
	req.Header.Set(EventIDHeader, delivery.EventID.String())
	req.Header.Set(DeliveryIDHeader, delivery.ID.String())
	for name, value := range webhook.Headers {
		req.Header.Set(name, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = &resp.StatusCode
	result.ResponseBody = c.readBody(resp.Body, webhook.URL)
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !result.Success {
		result.Error = fmt.Sprintf("endpoint returned HTTP %d", resp.StatusCode)
	}

	return result
}

// readBody reads at most maxBodyBytes of the response, discarding the rest.
func (c *Client) readBody(body io.Reader, url string) string {
	buf := make([]byte, c.maxBodyBytes+1)
	n, err := io.ReadFull(body, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		c.logger.Warn("Failed to read response body",
			zap.String("url", url),
			zap.Error(err),
		)
	}

	if n > c.maxBodyBytes {
		n = c.maxBodyBytes
	}
	return string(buf[:n])
}
