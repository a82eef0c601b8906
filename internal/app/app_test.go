package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/analytics"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/services/storeapi/storeapitest"
)

func testConfig(t *testing.T, storeURL string) *config.Config {
	t.Helper()
	return &config.Config{
		StoreAPIURL:            storeURL,
		RequestTimeout:         5 * time.Second,
		DatabaseURL:            "sqlite://" + filepath.Join(t.TempDir(), "storefront.db"),
		SessionStore:           "database",
		SessionKey:             "default",
		SessionTTL:             time.Hour,
		AnalyticsSink:          "datalayer",
		ExperimentSiteCode:     "site",
		FeatureFlags:           "banner",
		ExperimentCheckoutGoal: "checkout",
	}
}

func newFake(t *testing.T) *storeapitest.Server {
	t.Helper()
	fake := storeapitest.New()
	t.Cleanup(fake.Close)
	fake.SetProducts(models.Product{ID: "1", Name: "Widget", Price: decimal.RequireFromString("9.99")})
	fake.SetCategories("tools")
	return fake
}

func TestNewAndMount(t *testing.T) {
	fake := newFake(t)
	a, err := New(testConfig(t, fake.URL), logger.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	a.Mount(context.Background())

	v := a.Storefront.View()
	assert.Len(t, v.Products, 1)
	assert.Equal(t, []string{"banner"}, v.Flags)
	assert.Nil(t, a.Google)
	assert.Equal(t, []string{analytics.EventUserStatusCheck, analytics.EventPageView}, a.DataLayer.Events())
}

func TestSessionSurvivesRestart(t *testing.T) {
	fake := newFake(t)
	mr := miniredis.RunT(t)
	cfg := testConfig(t, fake.URL)
	cfg.SessionStore = "redis"
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"
	ctx := context.Background()

	first, err := New(cfg, logger.Nop(), nil)
	require.NoError(t, err)
	first.Mount(ctx)
	require.NoError(t, first.Storefront.Register(ctx, "ada@example.com", "secret1", "secret1", "Ada"))
	uid := first.Storefront.View().Session.UID
	first.Close()

	second, err := New(cfg, logger.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(second.Close)
	second.Mount(ctx)

	v := second.Storefront.View()
	require.NotNil(t, v.Session)
	assert.Equal(t, uid, v.Session.UID)
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.SessionStore = "memcached"
	_, err := New(cfg, logger.Nop(), nil)
	assert.Error(t, err)

	cfg = testConfig(t, "http://127.0.0.1:1")
	cfg.AnalyticsSink = "carrier-pigeon"
	_, err = New(cfg, logger.Nop(), nil)
	assert.Error(t, err)
}

func TestGoogleEnabledByClientID(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.GoogleClientID = "client"
	cfg.GoogleRedirectURL = "urn:ietf:wg:oauth:2.0:oob"

	a, err := New(cfg, logger.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	require.NotNil(t, a.Google)
	url, state, err := a.Google.AuthURL()
	require.NoError(t, err)
	assert.Contains(t, url, "client_id=client")
	assert.NotEmpty(t, state)
}
