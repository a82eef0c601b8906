package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/analytics"
	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/experiment"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/services/storeapi"
	"storefront/internal/services/storeapi/storeapitest"
	"storefront/internal/storefront"
)

type testServer struct {
	router *gin.Engine
	api    *storeapitest.Server
	dl     *analytics.DataLayer
	expts  *experiment.GormStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fake := storeapitest.New()
	t.Cleanup(fake.Close)
	fake.SetProducts(
		models.Product{ID: "1", Name: "Widget", Price: decimal.RequireFromString("9.99"), Category: "tools"},
		models.Product{ID: "2", Name: "Gadget", Price: decimal.RequireFromString("24.50"), Category: "toys"},
	)
	fake.SetCategories("tools", "toys")

	log := logger.Nop()
	m := metrics.New()
	dl := analytics.NewDataLayer()
	store := experiment.NewGormStore(db.DB)
	engine, err := experiment.NewEngine(experiment.Config{SiteCode: "site", Flags: "banner"}, store, log)
	require.NoError(t, err)

	gate := auth.NewGate(auth.GateConfig{
		Provider:   auth.NewLocalProvider(db.DB, log),
		Store:      auth.NewDBStore(db.DB, 0),
		StoreKey:   "test",
		Sink:       dl,
		Correlator: engine,
		Metrics:    m,
		Logger:     log,
	})
	sf := storefront.New(storefront.Config{
		Store:       storeapi.NewClient(storeapi.Config{BaseURL: fake.URL}, m, log),
		Sessions:    gate,
		Experiments: engine,
		Sink:        dl,
		Metrics:     m,
		Logger:      log,
	})
	t.Cleanup(sf.Close)
	sf.Mount(context.Background())

	srv := New(&config.Config{Env: "test"}, log, Deps{Storefront: sf, DataLayer: dl, Metrics: m})
	return &testServer{router: srv.Router(), api: fake, dl: dl, expts: store}
}

type envelope struct {
	Data  storefront.View `json:"data"`
	Order *models.Order   `json:"order"`
	Error string          `json:"error"`
	Code  string          `json:"code"`
	Field string          `json:"field"`
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "storefront_storeapi_requests_total")
}

func TestStateAfterMount(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/api/v1/state", nil)

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, storefront.ModeBrowsing, env.Data.Mode)
	assert.Len(t, env.Data.Products, 2)
	assert.Equal(t, []string{"tools", "toys"}, env.Data.Categories)
	assert.Equal(t, []string{"banner"}, env.Data.Flags)
	assert.Nil(t, env.Data.Session)
}

func TestAddToCartRequiresSignIn(t *testing.T) {
	s := newTestServer(t)
	s.api.ResetCalls()

	code, env := s.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{"productId": "1"})

	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, storefront.ModeLoginOpen, env.Data.Mode)
	assert.Empty(t, s.api.Calls())
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":           "ada@example.com",
		"password":        "secret1",
		"confirmPassword": "secret2",
	})

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "password_confirm", env.Field)
	assert.Equal(t, "Passwords do not match", env.Data.AuthError)
}

func TestLoginFailure(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "nobody@example.com", "password": "secret1"})

	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, auth.CodeInvalidCredential, env.Code)
	assert.Contains(t, env.Data.AuthError, "Failed to log in: ")
}

func TestShoppingFlow(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/mode", gin.H{"action": "request_auth"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, storefront.ModeLoginOpen, env.Data.Mode)

	code, env = s.do(t, http.MethodPost, "/api/v1/auth/mode", gin.H{"action": "switch_to_register"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, storefront.ModeRegisterOpen, env.Data.Mode)

	code, env = s.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":           "ada@example.com",
		"password":        "secret1",
		"confirmPassword": "secret1",
		"displayName":     "Ada",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NotNil(t, env.Data.Session)
	assert.Equal(t, storefront.ModeBrowsing, env.Data.Mode)
	uid := env.Data.Session.UID

	code, env = s.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{"productId": "1", "quantity": 2})
	require.Equal(t, http.StatusOK, code, env.Error)
	code, env = s.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{"productId": "2"})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, 3, env.Data.TotalItems)
	assert.Equal(t, "44.48", env.Data.TotalPrice)

	code, env = s.do(t, http.MethodPut, "/api/v1/cart/items/2", gin.H{"quantity": 0})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "19.98", env.Data.TotalPrice)

	code, env = s.do(t, http.MethodPost, "/api/v1/cart/open", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, storefront.ModeCartOpen, env.Data.Mode)

	code, env = s.do(t, http.MethodPost, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NotNil(t, env.Order)
	assert.Equal(t, "O1", env.Order.OrderID)
	assert.Empty(t, env.Data.Cart)
	assert.Equal(t, storefront.ModeBrowsing, env.Data.Mode)
	assert.Contains(t, env.Data.Notice.Message, "O1")
	assert.Empty(t, s.api.Cart(uid))

	conversions, err := s.expts.Conversions(context.Background(), "checkout")
	require.NoError(t, err)
	require.Len(t, conversions, 1)
	assert.Equal(t, "19.98", conversions[0].Revenue.StringFixed(2))

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/datalayer", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var drained struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &drained))
	events := make([]string, 0, len(drained.Data))
	for _, e := range drained.Data {
		events = append(events, e["event"].(string))
	}
	assert.Equal(t, []string{
		analytics.EventUserStatusCheck,
		analytics.EventPageView,
		analytics.EventLogin,
		analytics.EventAddToCart,
		analytics.EventAddToCart,
		analytics.EventPurchase,
	}, events)
	assert.Empty(t, s.dl.Entries())

	code, env = s.do(t, http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, env.Data.Session)
}

func TestCheckoutEmptyCart(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":           "bob@example.com",
		"password":        "secret1",
		"confirmPassword": "secret1",
	})
	require.Equal(t, http.StatusOK, code)

	code, env := s.do(t, http.MethodPost, "/api/v1/checkout", nil)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Your cart is empty", env.Data.Notice.Message)
}

func TestFilters(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/api/v1/category", gin.H{"category": "toys"})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, env.Data.Products, 1)
	assert.Equal(t, "Gadget", env.Data.Products[0].Name)

	code, env = s.do(t, http.MethodPost, "/api/v1/search", gin.H{"query": "widget"})
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, env.Data.Category)
	require.Len(t, env.Data.Products, 1)
	assert.Equal(t, "Widget", env.Data.Products[0].Name)

	code, env = s.do(t, http.MethodDelete, "/api/v1/filters", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, env.Data.Products, 2)
}

func TestProductPage(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products/2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Gadget"`)

	code, env := s.do(t, http.MethodGet, "/api/v1/products/404", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Product not found", env.Data.Notice.Message)
}

func TestInvalidModeAction(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/v1/auth/mode", gin.H{"action": "switch_to_login"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/mode", gin.H{"action": "fly"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGoogleNotConfigured(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/api/v1/auth/google/url", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/google", gin.H{"code": "abc"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, auth.CodeNotAllowed, env.Code)
}

func TestPasswordRecovery(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/v1/auth/password", gin.H{"password": "secret2", "confirmPassword": "secret2"})
	assert.Equal(t, http.StatusUnauthorized, code)
	s.do(t, http.MethodPost, "/api/v1/auth/mode", gin.H{"action": "close"})

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":           "ada@example.com",
		"password":        "secret1",
		"confirmPassword": "secret1",
		"displayName":     "Ada",
	})
	require.Equal(t, http.StatusOK, code)

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/reset", gin.H{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, auth.CodeUserNotFound, env.Code)

	code, env = s.do(t, http.MethodPost, "/api/v1/auth/reset", gin.H{"email": "ada@example.com"})
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, env.Data.Notice)
	assert.Contains(t, env.Data.Notice.Message, "ada@example.com")

	code, env = s.do(t, http.MethodPost, "/api/v1/auth/password", gin.H{"password": "secret2", "confirmPassword": "secret3"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "password_confirm", env.Field)

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/password", gin.H{"password": "secret2", "confirmPassword": "secret2"})
	require.Equal(t, http.StatusOK, code)

	s.do(t, http.MethodPost, "/api/v1/auth/logout", nil)
	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ada@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, env = s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ada@example.com", "password": "secret2"})
	require.Equal(t, http.StatusOK, code)
	assert.NotNil(t, env.Data.Session)
}
