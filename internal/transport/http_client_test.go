package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/liyaqa/webhook-delivery/internal/models"
	"github.com/liyaqa/webhook-delivery/internal/signature"
)

func newTestClient(maxBodyBytes int) *Client {
	return NewClient(2*time.Second, maxBodyBytes, signature.NewHMACSigner(), zap.NewNop())
}

func testWebhook(url string) *models.Webhook {
	return &models.Webhook{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		URL:      url,
		Secret:   "aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899",
		Events:   models.StringList{"member.created"},
		Headers:  models.HeaderMap{"X-Custom": "custom-value"},
		IsActive: true,
	}
}

func testDelivery(webhookID uuid.UUID) *models.Delivery {
	return &models.Delivery{
		ID:        uuid.New(),
		WebhookID: webhookID,
		EventType: "member.created",
		EventID:   uuid.New(),
		Payload:   models.JSONMap{"memberId": "m-1"},
		Status:    models.StatusDelivering,
	}
}

func TestDeliverSuccess(t *testing.T) {
	var (
		gotHeaders http.Header
		gotBody    []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"received":true}`))
	}))
	defer server.Close()

	client := newTestClient(2048)
	webhook := testWebhook(server.URL)
	delivery := testDelivery(webhook.ID)

	result := client.Deliver(context.Background(), webhook, delivery)

	assert.True(t, result.Success)
	require.NotNil(t, result.StatusCode)
	assert.Equal(t, http.StatusOK, *result.StatusCode)
	assert.Equal(t, `{"received":true}`, result.ResponseBody)
	assert.Empty(t, result.Error)

	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, delivery.EventType, gotHeaders.Get(EventTypeHeader))
	assert.Equal(t, delivery.EventID.String(), gotHeaders.Get(EventIDHeader))
	assert.Equal(t, delivery.ID.String(), gotHeaders.Get(DeliveryIDHeader))
	assert.Equal(t, "custom-value", gotHeaders.Get("X-Custom"))

	// The signature must verify against the exact bytes that were sent.
	signer := signature.NewHMACSigner()
	expected, err := signer.Sign(webhook.Secret, gotBody)
	require.NoError(t, err)
	assert.Equal(t, expected, gotHeaders.Get(signature.Header))
}

func TestDeliverNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("try later"))
	}))
	defer server.Close()

	client := newTestClient(2048)
	webhook := testWebhook(server.URL)

	result := client.Deliver(context.Background(), webhook, testDelivery(webhook.ID))

	assert.False(t, result.Success)
	require.NotNil(t, result.StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, *result.StatusCode)
	assert.Equal(t, "try later", result.ResponseBody)
	assert.Contains(t, result.Error, "503")
}

func TestDeliverConnectionRefused(t *testing.T) {
	// Grab a port nothing listens on.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(2048)
	webhook := testWebhook(url)

	result := client.Deliver(context.Background(), webhook, testDelivery(webhook.ID))

	assert.False(t, result.Success)
	assert.Nil(t, result.StatusCode)
	assert.NotEmpty(t, result.Error)
}

func TestDeliverTruncatesResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 5000)))
	}))
	defer server.Close()

	client := newTestClient(64)
	webhook := testWebhook(server.URL)

	result := client.Deliver(context.Background(), webhook, testDelivery(webhook.ID))

	assert.True(t, result.Success)
	assert.Len(t, result.ResponseBody, 64)
}
