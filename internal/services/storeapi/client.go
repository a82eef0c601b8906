package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/models"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// MaxFailures is the number of consecutive failures that opens the breaker. Zero disables it.
	MaxFailures int
}

// Client talks to the remote catalog/cart/checkout API. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[struct{}]
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

func NewClient(cfg Config, m *metrics.Metrics, logger *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		metrics: m,
		logger:  logger.With("component", "storeapi"),
	}

	if cfg.MaxFailures > 0 {
		maxFailures := uint32(cfg.MaxFailures)
		c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    "storeapi",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || IsNotFound(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn("circuit %s: %s -> %s", name, from, to)
			},
		})
	}

	return c
}

type call struct {
	op       string
	method   string
	path     string
	body     interface{}
	out      interface{}
	resource string
	id       string
}

// ListProducts fetches the whole catalog
func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := c.do(ctx, call{
		op:       "list_products",
		method:   http.MethodGet,
		path:     "/products",
		out:      &products,
		resource: "products",
	})
	if err != nil {
		return nil, err
	}
	return orEmpty(products), nil
}

// SearchProducts treats a blank query as ListProducts.
func (c *Client) SearchProducts(ctx context.Context, query string) ([]models.Product, error) {
	if strings.TrimSpace(query) == "" {
		return c.ListProducts(ctx)
	}

	var products []models.Product
	err := c.do(ctx, call{
		op:       "search_products",
		method:   http.MethodGet,
		path:     "/products/search/" + url.PathEscape(query),
		out:      &products,
		resource: "products",
		id:       query,
	})
	if err != nil {
		return nil, err
	}
	return orEmpty(products), nil
}

func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	err := c.do(ctx, call{
		op:       "list_categories",
		method:   http.MethodGet,
		path:     "/categories",
		out:      &categories,
		resource: "categories",
	})
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

// ListProductsByCategory treats an empty category as ListProducts.
func (c *Client) ListProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	if strings.TrimSpace(category) == "" {
		return c.ListProducts(ctx)
	}

	var products []models.Product
	err := c.do(ctx, call{
		op:       "list_products_by_category",
		method:   http.MethodGet,
		path:     "/products/category/" + url.PathEscape(category),
		out:      &products,
		resource: "category",
		id:       category,
	})
	if err != nil {
		return nil, err
	}
	return orEmpty(products), nil
}

// GetProduct returns a *NotFoundError when the catalog has no such id.
func (c *Client) GetProduct(ctx context.Context, id models.ID) (*models.Product, error) {
	var product models.Product
	err := c.do(ctx, call{
		op:       "get_product",
		method:   http.MethodGet,
		path:     "/products/" + url.PathEscape(id.String()),
		out:      &product,
		resource: "product",
		id:       id.String(),
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) GetCart(ctx context.Context, userID string) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := c.do(ctx, call{
		op:       "get_cart",
		method:   http.MethodGet,
		path:     "/cart/" + url.PathEscape(userID),
		out:      &lines,
		resource: "cart",
		id:       userID,
	})
	if err != nil {
		return nil, err
	}
	return orEmptyCart(lines), nil
}

type addToCartRequest struct {
	ProductID models.ID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

type updateCartLineRequest struct {
	Quantity int `json:"quantity"`
}

// AddToCart returns the full cart after the addition.
func (c *Client) AddToCart(ctx context.Context, userID string, productID models.ID, quantity int) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := c.do(ctx, call{
		op:       "add_to_cart",
		method:   http.MethodPost,
		path:     "/cart/" + url.PathEscape(userID),
		body:     addToCartRequest{ProductID: productID, Quantity: quantity},
		out:      &lines,
		resource: "cart",
		id:       userID,
	})
	if err != nil {
		return nil, err
	}
	return orEmptyCart(lines), nil
}

func (c *Client) UpdateCartLine(ctx context.Context, userID string, productID models.ID, quantity int) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := c.do(ctx, call{
		op:       "update_cart_line",
		method:   http.MethodPut,
		path:     "/cart/" + url.PathEscape(userID) + "/" + url.PathEscape(productID.String()),
		body:     updateCartLineRequest{Quantity: quantity},
		out:      &lines,
		resource: "cart line",
		id:       productID.String(),
	})
	if err != nil {
		return nil, err
	}
	return orEmptyCart(lines), nil
}

func (c *Client) RemoveFromCart(ctx context.Context, userID string, productID models.ID) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := c.do(ctx, call{
		op:       "remove_from_cart",
		method:   http.MethodDelete,
		path:     "/cart/" + url.PathEscape(userID) + "/" + url.PathEscape(productID.String()),
		out:      &lines,
		resource: "cart line",
		id:       productID.String(),
	})
	if err != nil {
		return nil, err
	}
	return orEmptyCart(lines), nil
}

// Checkout places the order for the user's server-side cart.
func (c *Client) Checkout(ctx context.Context, userID string, checkoutCtx models.CheckoutContext) (*models.Order, error) {
	var resp models.CheckoutResponse
	err := c.do(ctx, call{
		op:       "checkout",
		method:   http.MethodPost,
		path:     "/checkout/" + url.PathEscape(userID),
		body:     checkoutCtx,
		out:      &resp,
		resource: "checkout",
		id:       userID,
	})
	if err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, &TransportError{Op: "checkout", Err: errors.New("response has no order")}
	}
	return resp.Order, nil
}

func (c *Client) do(ctx context.Context, cl call) error {
	start := time.Now()

	var err error
	if c.breaker != nil {
		_, err = c.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, c.roundTrip(ctx, cl)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &TransportError{Op: cl.op, Err: err}
		}
	} else {
		err = c.roundTrip(ctx, cl)
	}

	c.metrics.ObserveRemote(cl.op, outcome(err), time.Since(start))
	if err != nil {
		c.logger.Debug("%s %s failed: %v", cl.method, cl.path, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, cl call) error {
	var reader io.Reader
	if cl.body != nil {
		jsonData, err := json.Marshal(cl.body)
		if err != nil {
			return &TransportError{Op: cl.op, Err: errors.Wrap(err, "marshal request")}
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, reader)
	if err != nil {
		return &TransportError{Op: cl.op, Err: errors.Wrap(err, "create request")}
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: cl.op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return &NotFoundError{Resource: cl.resource, ID: cl.id}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &TransportError{Op: cl.op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if cl.out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
		return &TransportError{Op: cl.op, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "decode response")}
	}
	return nil
}

func orEmpty(products []models.Product) []models.Product {
	if products == nil {
		return []models.Product{}
	}
	return products
}

func orEmptyCart(lines []models.CartLine) []models.CartLine {
	if lines == nil {
		return []models.CartLine{}
	}
	return lines
}
