// Package storeapitest runs an in-memory store API for tests and local development.
package storeapitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

type Server struct {
	*httptest.Server

	mu         sync.Mutex
	products   []models.Product
	categories []string
	carts      map[string][]models.CartLine
	calls      []string
	failures   map[string]int
	checkouts  []models.CheckoutContext
	orders     int
}

func New() *Server {
	s := &Server{
		carts:    make(map[string][]models.CartLine),
		failures: make(map[string]int),
	}
	s.Server = httptest.NewServer(s.Router())
	return s
}

// Router exposes the handlers without starting a listener.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Get("/products", s.listProducts)
	r.Get("/products/search/{query}", s.searchProducts)
	r.Get("/products/category/{category}", s.productsByCategory)
	r.Get("/products/{id}", s.getProduct)
	r.Get("/categories", s.listCategories)

	r.Get("/cart/{userID}", s.getCart)
	r.Post("/cart/{userID}", s.addToCart)
	r.Put("/cart/{userID}/{productID}", s.updateCartLine)
	r.Delete("/cart/{userID}/{productID}", s.removeFromCart)
	r.Post("/checkout/{userID}", s.checkout)

	return r
}

func (s *Server) SetProducts(products ...models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append([]models.Product(nil), products...)
}

func (s *Server) SetCategories(categories ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append([]string(nil), categories...)
}

func (s *Server) SetCart(userID string, lines ...models.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[userID] = append([]models.CartLine(nil), lines...)
}

func (s *Server) Cart(userID string) []models.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CartLine{}, s.carts[userID]...)
}

// Calls lists every request received as "METHOD /path".
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Fail makes every request to method+path answer with status until Recover is called.
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

func (s *Server) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]int)
}

// Checkouts returns the contexts received by the checkout endpoint.
func (s *Server) Checkouts() []models.CheckoutContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CheckoutContext(nil), s.checkouts...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.calls = append(s.calls, key)
		status, failing := s.failures[key]
		s.mu.Unlock()

		if failing {
			writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// param decodes a route parameter. chi routes on the raw path when it holds
// escapes such as %2F, and then hands those parameters back still encoded.
func param(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.products)
}

func (s *Server) searchProducts(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(param(r, "query"))

	s.mu.Lock()
	defer s.mu.Unlock()
	found := []models.Product{}
	for _, p := range s.products {
		if strings.Contains(strings.ToLower(p.Name), query) || strings.Contains(strings.ToLower(p.Description), query) {
			found = append(found, p)
		}
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) productsByCategory(w http.ResponseWriter, r *http.Request) {
	category := param(r, "category")

	s.mu.Lock()
	defer s.mu.Unlock()
	found := []models.Product{}
	for _, p := range s.products {
		if p.Category == category {
			found = append(found, p)
		}
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id := models.ID(param(r, "id"))

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.findProduct(id); ok {
		writeJSON(w, http.StatusOK, p)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.categories)
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	userID := param(r, "userID")

	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.cartLocked(userID))
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	userID := param(r, "userID")

	var req struct {
		ProductID models.ID `json:"productId"`
		Quantity  int       `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cart line"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findProduct(req.ProductID); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}

	lines := s.carts[userID]
	merged := false
	for i := range lines {
		if lines[i].ProductID == req.ProductID {
			lines[i].Quantity += req.Quantity
			merged = true
			break
		}
	}
	if !merged {
		lines = append(lines, models.CartLine{ProductID: req.ProductID, Quantity: req.Quantity})
	}
	s.carts[userID] = lines
	writeJSON(w, http.StatusOK, s.cartLocked(userID))
}

func (s *Server) updateCartLine(w http.ResponseWriter, r *http.Request) {
	userID := param(r, "userID")
	productID := models.ID(param(r, "productID"))

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quantity"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Quantity < 1 {
		s.removeLocked(userID, productID)
	} else {
		for i := range s.carts[userID] {
			if s.carts[userID][i].ProductID == productID {
				s.carts[userID][i].Quantity = req.Quantity
			}
		}
	}
	writeJSON(w, http.StatusOK, s.cartLocked(userID))
}

func (s *Server) removeFromCart(w http.ResponseWriter, r *http.Request) {
	userID := param(r, "userID")
	productID := models.ID(param(r, "productID"))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(userID, productID)
	writeJSON(w, http.StatusOK, s.cartLocked(userID))
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	userID := param(r, "userID")

	var checkoutCtx models.CheckoutContext
	if err := json.NewDecoder(r.Body).Decode(&checkoutCtx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid checkout context"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[userID]
	if len(lines) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cart is empty"})
		return
	}

	total := decimal.Zero
	for _, l := range lines {
		if p, ok := s.findProduct(l.ProductID); ok {
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
	}

	s.orders++
	s.checkouts = append(s.checkouts, checkoutCtx)
	delete(s.carts, userID)

	writeJSON(w, http.StatusOK, models.CheckoutResponse{Order: &models.Order{
		OrderID: fmt.Sprintf("O%d", s.orders),
		Total:   total,
		Status:  "placed",
	}})
}

func (s *Server) findProduct(id models.ID) (models.Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

func (s *Server) cartLocked(userID string) []models.CartLine {
	return append([]models.CartLine{}, s.carts[userID]...)
}

func (s *Server) removeLocked(userID string, productID models.ID) {
	lines := s.carts[userID]
	kept := lines[:0]
	for _, l := range lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	s.carts[userID] = kept
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
