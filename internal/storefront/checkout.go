package storefront

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"storefront/internal/analytics"
	"storefront/internal/cart"
	"storefront/internal/models"
)

var (
	ErrSignInRequired = errors.New("storefront: sign in required")
	ErrCartEmpty      = errors.New("storefront: cart is empty")
)

// AddToCart without a session opens the login form instead of calling the store.
func (s *Storefront) AddToCart(ctx context.Context, productID models.ID, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}

	sess := s.sessions.CurrentSession()
	s.mu.Lock()
	if sess == nil {
		s.transitionLocked(ActionRequestAuth, false)
		s.mu.Unlock()
		return ErrSignInRequired
	}
	seq := s.cartSeq.next()
	s.mu.Unlock()

	lines, err := s.store.AddToCart(ctx, sess.UID, productID, quantity)

	s.mu.Lock()
	if err != nil {
		s.mu.Unlock()
		s.mutationFailed("Error adding to cart", "Could not add the item to your cart. Please try again.", err)
		return err
	}
	s.applyCartLocked(seq, lines)
	product := s.findProductLocked(productID)
	s.mu.Unlock()

	s.emit(ctx, analytics.EventAddToCart, analytics.ItemPayload(product, quantity, s.visitorCode()))
	return nil
}

// RemoveFromCart is a no-op without a session.
func (s *Storefront) RemoveFromCart(ctx context.Context, productID models.ID) error {
	sess := s.sessions.CurrentSession()
	if sess == nil {
		return nil
	}

	s.mu.Lock()
	seq := s.cartSeq.next()
	s.mu.Unlock()

	lines, err := s.store.RemoveFromCart(ctx, sess.UID, productID)
	if err != nil {
		s.mutationFailed("Error removing from cart", "Could not remove the item. Please try again.", err)
		return err
	}

	s.mu.Lock()
	s.applyCartLocked(seq, lines)
	s.mu.Unlock()
	return nil
}

// UpdateQuantity sets a line's quantity; below 1 the line is removed.
func (s *Storefront) UpdateQuantity(ctx context.Context, productID models.ID, quantity int) error {
	if quantity < 1 {
		return s.RemoveFromCart(ctx, productID)
	}

	sess := s.sessions.CurrentSession()
	if sess == nil {
		return nil
	}

	s.mu.Lock()
	seq := s.cartSeq.next()
	s.mu.Unlock()

	lines, err := s.store.UpdateCartLine(ctx, sess.UID, productID, quantity)
	if err != nil {
		s.mutationFailed("Error updating cart", "Could not update the quantity. Please try again.", err)
		return err
	}

	s.mu.Lock()
	s.applyCartLocked(seq, lines)
	s.mu.Unlock()
	return nil
}

func (s *Storefront) IncrementQuantity(ctx context.Context, productID models.ID) error {
	return s.stepQuantity(ctx, productID, 1)
}

// DecrementQuantity removes the line when it reaches zero.
func (s *Storefront) DecrementQuantity(ctx context.Context, productID models.ID) error {
	return s.stepQuantity(ctx, productID, -1)
}

func (s *Storefront) stepQuantity(ctx context.Context, productID models.ID, delta int) error {
	s.mu.Lock()
	current := 0
	for _, l := range s.lines {
		if l.ProductID == productID {
			current = l.Quantity
			break
		}
	}
	s.mu.Unlock()

	if current == 0 {
		return nil
	}
	return s.UpdateQuantity(ctx, productID, current+delta)
}

func (s *Storefront) mutationFailed(what, message string, err error) {
	s.logger.Error("%s: %v", what, err)
	s.mu.Lock()
	s.notice = &Notice{Kind: NoticeError, Message: message}
	s.mu.Unlock()
}

// Checkout places the order for the server-side cart. Without a session it
// opens the login form; on failure the cart is left as it was.
func (s *Storefront) Checkout(ctx context.Context) (*models.Order, error) {
	sess := s.sessions.CurrentSession()

	s.mu.Lock()
	if sess == nil {
		s.transitionLocked(ActionRequestAuth, false)
		s.mu.Unlock()
		return nil, ErrSignInRequired
	}
	if len(s.lines) == 0 {
		s.notice = &Notice{Kind: NoticeInfo, Message: "Your cart is empty"}
		s.mu.Unlock()
		return nil, ErrCartEmpty
	}
	purchased := cart.Reconcile(s.lines, s.products)
	s.mu.Unlock()

	visitorCode := s.visitorCode()
	order, err := s.store.Checkout(ctx, sess.UID, models.CheckoutContext{VisitorCode: visitorCode})
	if err != nil {
		s.logger.Error("Error during checkout: %v", err)
		s.metrics.Checkout("failed")
		s.mu.Lock()
		s.notice = &Notice{Kind: NoticeError, Message: "Checkout failed. Please try again."}
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.cartSeq.invalidate()
	s.lines = []models.CartLine{}
	if _, err := s.transitionLocked(ActionCheckoutSuccess, true); err != nil {
		s.mode = modeState{current: ModeBrowsing}
	}
	s.notice = &Notice{
		Kind:    NoticeSuccess,
		Message: fmt.Sprintf("Order placed successfully! Order ID: %s", order.OrderID),
	}
	s.mu.Unlock()

	s.metrics.Checkout("ok")
	s.logger.Info("order %s placed for %s, total %s", order.OrderID, sess.UID, cart.FormatPrice(order.Total))

	if s.experiments != nil {
		if err := s.experiments.TrackConversion(ctx, s.checkoutGoal, order.Total); err != nil {
			s.logger.Warn("Error tracking conversion: %v", err)
		}
	}
	s.emit(ctx, analytics.EventPurchase, analytics.PurchasePayload(order, purchased, visitorCode))
	return order, nil
}
