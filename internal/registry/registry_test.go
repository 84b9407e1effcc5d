package registry

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/liyaqa/webhook-delivery/internal/apperrors"
	"github.com/liyaqa/webhook-delivery/internal/models"
	"github.com/liyaqa/webhook-delivery/internal/signature"
)

func newTestRegistry(t *testing.T) (*Registry, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Webhook{}, &models.Delivery{}))

	return NewRegistry(db, signature.NewHMACSigner(), zap.NewNop()), db
}

func TestCreateWebhook(t *testing.T) {
	reg, _ := newTestRegistry(t)
	tenantID := uuid.New()

	webhook, err := reg.Create(context.Background(), tenantID, CreateWebhookInput{
		Name:   "CRM sync",
		URL:    "https://crm.example.com/hooks/liyaqa",
		Events: []string{"member.created", "member.updated"},
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, webhook.ID)
	assert.Equal(t, tenantID, webhook.TenantID)
	assert.True(t, webhook.IsActive)
	assert.Equal(t, 60, webhook.RateLimitPerMin)
	assert.Len(t, webhook.Secret, 64)
}

func TestCreateWebhookValidation(t *testing.T) {
	reg, _ := newTestRegistry(t)
	tenantID := uuid.New()
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateWebhookInput
	}{
		{
			name:  "plain http to public host",
			input: CreateWebhookInput{URL: "http://example.com/hook", Events: []string{"member.created"}},
		},
		{
			name:  "unknown event type",
			input: CreateWebhookInput{URL: "https://example.com/hook", Events: []string{"bogus.event"}},
		},
		{
			name:  "empty event list",
			input: CreateWebhookInput{URL: "https://example.com/hook", Events: []string{}},
		},
		{
			name:  "missing url",
			input: CreateWebhookInput{Events: []string{"member.created"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Create(ctx, tenantID, tt.input)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestCreateWebhookAllowsLocalHTTP(t *testing.T) {
	reg, _ := newTestRegistry(t)

	webhook, err := reg.Create(context.Background(), uuid.New(), CreateWebhookInput{
		URL:    "http://localhost:3000/hook",
		Events: []string{"*"},
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/hook", webhook.URL)
}

func TestGetWebhookTenantScoped(t *testing.T) {
	reg, _ := newTestRegistry(t)
	tenantID := uuid.New()
	ctx := context.Background()

	webhook, err := reg.Create(ctx, tenantID, CreateWebhookInput{
		URL:    "https://example.com/hook",
		Events: []string{"invoice.paid"},
	})
	require.NoError(t, err)

	got, err := reg.Get(ctx, tenantID, webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, webhook.ID, got.ID)

	_, err = reg.Get(ctx, uuid.New(), webhook.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateWebhookPartial(t *testing.T) {
	reg, _ := newTestRegistry(t)
	tenantID := uuid.New()
	ctx := context.Background()

	webhook, err := reg.Create(ctx, tenantID, CreateWebhookInput{
		Name:   "original",
		URL:    "https://example.com/hook",
		Events: []string{"member.created"},
	})
	require.NoError(t, err)

	name := "renamed"
	updated, err := reg.Update(ctx, tenantID, webhook.ID, UpdateWebhookInput{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, webhook.URL, updated.URL)
	assert.Equal(t, webhook.Secret, updated.Secret)
	assert.Equal(t, []string{"member.created"}, []string(updated.Events))
}

func TestUpdateWebhookRejectsBadURL(t *testing.T) {
	reg, _ := newTestRegistry(t)
	tenantID := uuid.New()
	ctx := context.Background()

	webhook, err := reg.Create(ctx, tenantID, CreateWebhookInput{
		URL:    "https://example.com/hook",
		Events: []string{"member.created"},
	})
	require.NoError(t, err)

	badURL := "ftp://example.com/hook"
	_, err = reg.Update(ctx, tenantID, webhook.ID, UpdateWebhookInput{URL: &badURL})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	unchanged, err := reg.Get(ctx, tenantID, webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/hook", unchanged.URL)
}

func TestActivateDeactivate(t *testing.T) {
	reg, _ := newTestRegistry(t)
	tenantID := uuid.New()
	ctx := context.Background()

	webhook, err := reg.Create(ctx, tenantID, CreateWebhookInput{
		URL:    "https://example.com/hook",
		Events: []string{"member.created"},
	})
	require.NoError(t, err)

	deactivated, err := reg.Deactivate(ctx, tenantID, webhook.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	activated, err := reg.Activate(ctx, tenantID, webhook.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
}

func TestRegenerateSecret(t *testing.T) {
	reg, _ := newTestRegistry(t)
	tenantID := uuid.New()
	ctx := context.Background()

	webhook, err := reg.Create(ctx, tenantID, CreateWebhookInput{
		URL:    "https://example.com/hook",
		Events: []string{"member.created"},
	})
	require.NoError(t, err)

	rotated, err := reg.RegenerateSecret(ctx, tenantID, webhook.ID)
	require.NoError(t, err)
	assert.Len(t, rotated.Secret, 64)
	assert.NotEqual(t, webhook.Secret, rotated.Secret)
}

func TestDeleteCascadesDeliveries(t *testing.T) {
	reg, db := newTestRegistry(t)
	tenantID := uuid.New()
	ctx := context.Background()

	webhook, err := reg.Create(ctx, tenantID, CreateWebhookInput{
		URL:    "https://example.com/hook",
		Events: []string{"member.created"},
	})
	require.NoError(t, err)

	delivery := &models.Delivery{
		ID:        uuid.New(),
		WebhookID: webhook.ID,
		EventType: "member.created",
		EventID:   uuid.New(),
		Payload:   models.JSONMap{"memberId": "m-1"},
		Status:    models.StatusPending,
	}
	require.NoError(t, db.Create(delivery).Error)

	require.NoError(t, reg.Delete(ctx, tenantID, webhook.ID))

	var webhookCount, deliveryCount int64
	require.NoError(t, db.Model(&models.Webhook{}).Count(&webhookCount).Error)
	require.NoError(t, db.Model(&models.Delivery{}).Count(&deliveryCount).Error)
	assert.Zero(t, webhookCount)
	assert.Zero(t, deliveryCount)
}

func TestFindActiveByEventType(t *testing.T) {
	reg, _ := newTestRegistry(t)
	tenantID := uuid.New()
	ctx := context.Background()

	exact, err := reg.Create(ctx, tenantID, CreateWebhookInput{
		Name:   "exact",
		URL:    "https://example.com/exact",
		Events: []string{"member.created"},
	})
	require.NoError(t, err)

	wildcard, err := reg.Create(ctx, tenantID, CreateWebhookInput{
		Name:   "wildcard",
		URL:    "https://example.com/all",
		Events: []string{"*"},
	})
	require.NoError(t, err)

	other, err := reg.Create(ctx, tenantID, CreateWebhookInput{
		Name:   "other",
		URL:    "https://example.com/other",
		Events: []string{"invoice.paid"},
	})
	require.NoError(t, err)

	inactive, err := reg.Create(ctx, tenantID, CreateWebhookInput{
		Name:   "inactive",
		URL:    "https://example.com/inactive",
		Events: []string{"member.created"},
	})
	require.NoError(t, err)
	_, err = reg.Deactivate(ctx, tenantID, inactive.ID)
	require.NoError(t, err)

	// Same event subscribed by a different tenant must not leak in.
	_, err = reg.Create(ctx, uuid.New(), CreateWebhookInput{
		URL:    "https://example.com/foreign",
		Events: []string{"member.created"},
	})
	require.NoError(t, err)

	matched, err := reg.FindActiveByEventType(ctx, tenantID, "member.created")
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(matched))
	for _, w := range matched {
		ids = append(ids, w.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{exact.ID, wildcard.ID}, ids)
	assert.NotContains(t, ids, other.ID)
	assert.NotContains(t, ids, inactive.ID)
}
